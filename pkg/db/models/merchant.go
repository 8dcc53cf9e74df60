package models

import (
	"time"

	"github.com/google/uuid"
)

// Merchant is a restaurant selling through the marketplace.
type Merchant struct {
	ID   uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name string    `gorm:"column:name;not null"`

	// DeliveryFeeCents overrides the platform default when positive.
	DeliveryFeeCents *int `gorm:"column:delivery_fee_cents"`

	Active    bool      `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
