package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mesafast/mesafast-backend/pkg/db/models"
	"github.com/mesafast/mesafast-backend/pkg/enums"
	"github.com/mesafast/mesafast-backend/pkg/pagination"
)

// Repository defines persistence operations for the order aggregate.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderLineItems(ctx context.Context, items []models.OrderLineItem) error
	CreateStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderDetail(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListCustomerOrders(ctx context.Context, customerID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error)
	ListMerchantOrders(ctx context.Context, merchantID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error)
	ListUnassignedReadyOrders(ctx context.Context, params pagination.Params) (*OrderList, error)
	ListCourierOrders(ctx context.Context, courierID uuid.UUID, params pagination.Params, filters CourierOrderFilters) (*OrderList, error)
	TransitionOrder(ctx context.Context, orderID uuid.UUID, from enums.OrderStatus, updates map[string]any) (int64, error)
	ClaimForCourier(ctx context.Context, orderID, courierID uuid.UUID, pickedUpAt time.Time) (int64, error)
	UpdateReview(ctx context.Context, orderID, customerID uuid.UUID, rating int, review *string, reviewedAt time.Time) (int64, error)
	FindPendingOrdersBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}
