package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mesafast/mesafast-backend/pkg/enums"
)

// OrderStatusHistory is the append-only audit trail of an order's lifecycle.
// One row is written at creation and one per transition; rows are never
// updated or deleted.
type OrderStatusHistory struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null"`
	Status    enums.OrderStatus `gorm:"column:status;type:order_status;not null"`
	ChangedBy uuid.UUID         `gorm:"column:changed_by;type:uuid;not null"`
	Notes     *string           `gorm:"column:notes"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}

// TableName overrides gorm's pluralization; the table is singular.
func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}
