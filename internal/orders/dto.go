package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/mesafast/mesafast-backend/pkg/enums"
)

// CartItemInput is one requested cart entry. Prices are resolved from the
// catalog, never taken from the client.
type CartItemInput struct {
	MenuItemID          uuid.UUID
	Qty                 int
	SpecialInstructions *string
}

// CreateOrderInput captures everything needed to place an order.
type CreateOrderInput struct {
	CustomerID      uuid.UUID
	MerchantID      uuid.UUID
	Items           []CartItemInput
	DeliveryAddress string
	DeliveryPhone   string
	DeliveryNotes   *string
	PaymentMethod   enums.PaymentMethod
}

// UpdateStatusInput carries a requested lifecycle transition.
type UpdateStatusInput struct {
	OrderID   uuid.UUID
	NewStatus enums.OrderStatus
	ActorID   uuid.UUID
	ActorRole enums.ActorRole
	Notes     *string
}

// ReviewInput carries a post-delivery review submission.
type ReviewInput struct {
	OrderID    uuid.UUID
	CustomerID uuid.UUID
	Rating     int
	Review     *string
}

// OrderFilters describe the inputs supported by customer and merchant lists.
type OrderFilters struct {
	Status   *enums.OrderStatus
	DateFrom *time.Time
	DateTo   *time.Time
}

// CourierOrderFilters describe the courier list inputs. When Status is nil
// the list defaults to active orders only (ready or en_route).
type CourierOrderFilters struct {
	Status *enums.OrderStatus
}

// OrderSummary exposes the aggregated fields returned by list endpoints.
type OrderSummary struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	MerchantID    uuid.UUID           `json:"merchant_id"`
	CustomerID    uuid.UUID           `json:"customer_id"`
	CourierID     *uuid.UUID          `json:"courier_id,omitempty"`
	Status        enums.OrderStatus   `json:"status"`
	TotalCents    int                 `json:"total_cents"`
	TotalItems    int                 `json:"total_items"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	CreatedAt     time.Time           `json:"created_at"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
