package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mesafast/mesafast-backend/pkg/enums"
)

// Order represents one purchase transaction placed by a customer against a
// single merchant. Rows are never deleted; cancellation is a terminal status.
type Order struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber string    `gorm:"column:order_number;not null"`

	CustomerID uuid.UUID  `gorm:"column:customer_id;type:uuid;not null"`
	MerchantID uuid.UUID  `gorm:"column:merchant_id;type:uuid;not null"`
	CourierID  *uuid.UUID `gorm:"column:courier_id;type:uuid"`

	Status enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`

	SubtotalCents    int `gorm:"column:subtotal_cents;not null"`
	DeliveryFeeCents int `gorm:"column:delivery_fee_cents;not null;default:0"`
	DiscountCents    int `gorm:"column:discount_cents;not null;default:0"`
	TaxCents         int `gorm:"column:tax_cents;not null;default:0"`
	TotalCents       int `gorm:"column:total_cents;not null"`

	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null;default:'cash'"`

	// Delivery target snapshot, independent of later profile changes.
	DeliveryAddress string  `gorm:"column:delivery_address;not null"`
	DeliveryPhone   string  `gorm:"column:delivery_phone;not null"`
	DeliveryNotes   *string `gorm:"column:delivery_notes"`

	Rating     *int       `gorm:"column:rating"`
	Review     *string    `gorm:"column:review"`
	ReviewedAt *time.Time `gorm:"column:reviewed_at"`

	ConfirmedAt *time.Time `gorm:"column:confirmed_at"`
	PreparingAt *time.Time `gorm:"column:preparing_at"`
	ReadyAt     *time.Time `gorm:"column:ready_at"`
	PickedUpAt  *time.Time `gorm:"column:picked_up_at"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`

	Items   []OrderLineItem      `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	History []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
