package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mesafast/mesafast-backend/pkg/db/models"
	"github.com/mesafast/mesafast-backend/pkg/enums"
	pkgerrors "github.com/mesafast/mesafast-backend/pkg/errors"
	"github.com/mesafast/mesafast-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Omit("Items", "History").Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateOrderLineItems(ctx context.Context, items []models.OrderLineItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) CreateStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderDetail(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_line_items.created_at ASC")
		}).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_status_history.created_at ASC")
		}).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListCustomerOrders(ctx context.Context, customerID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("customer_id = ?", customerID)
	query = applyOrderFilters(query, filters)
	return r.listOrders(ctx, query, params)
}

func (r *repository) ListMerchantOrders(ctx context.Context, merchantID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("merchant_id = ?", merchantID)
	query = applyOrderFilters(query, filters)
	return r.listOrders(ctx, query, params)
}

func (r *repository) ListUnassignedReadyOrders(ctx context.Context, params pagination.Params) (*OrderList, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ? AND courier_id IS NULL", enums.OrderStatusReady)
	return r.listOrders(ctx, query, params)
}

func (r *repository) ListCourierOrders(ctx context.Context, courierID uuid.UUID, params pagination.Params, filters CourierOrderFilters) (*OrderList, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("courier_id = ?", courierID)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	} else {
		query = query.Where("status IN ?", []enums.OrderStatus{enums.OrderStatusReady, enums.OrderStatusEnRoute})
	}
	return r.listOrders(ctx, query, params)
}

func (r *repository) listOrders(ctx context.Context, query *gorm.DB, params pagination.Params) (*OrderList, error) {
	limit := pagination.NormalizeLimit(params.Limit)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		// A bad cursor is a client mistake, not a store fault.
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid pagination cursor")
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Order
	err = query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	nextCursor := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	summaries := make([]OrderSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, summarize(row))
	}

	// total_items requires a second pass because summaries come from the
	// orders table alone.
	if len(summaries) > 0 {
		ids := make([]uuid.UUID, 0, len(summaries))
		for _, s := range summaries {
			ids = append(ids, s.ID)
		}
		counts, err := r.lineItemCounts(ctx, ids)
		if err != nil {
			return nil, err
		}
		for i := range summaries {
			summaries[i].TotalItems = counts[summaries[i].ID]
		}
	}

	return &OrderList{Orders: summaries, NextCursor: nextCursor}, nil
}

func (r *repository) lineItemCounts(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	type row struct {
		OrderID uuid.UUID
		Total   int
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.OrderLineItem{}).
		Select("order_id, COALESCE(SUM(qty), 0) AS total").
		Where("order_id IN ?", orderIDs).
		Group("order_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uuid.UUID]int, len(rows))
	for _, rec := range rows {
		counts[rec.OrderID] = rec.Total
	}
	return counts, nil
}

// TransitionOrder guards the write with the status the caller previously
// read, so a concurrent transition (the assignment claim included) matches
// zero rows instead of being overwritten.
func (r *repository) TransitionOrder(ctx context.Context, orderID uuid.UUID, from enums.OrderStatus, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// ClaimForCourier performs the atomic check-and-set for delivery assignment.
// The WHERE clause is the race guard: only one concurrent caller can match
// an unassigned ready order, every other caller sees zero rows affected.
func (r *repository) ClaimForCourier(ctx context.Context, orderID, courierID uuid.UUID, pickedUpAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ? AND courier_id IS NULL", orderID, enums.OrderStatusReady).
		Updates(map[string]any{
			"courier_id":   courierID,
			"status":       enums.OrderStatusEnRoute,
			"picked_up_at": pickedUpAt,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// UpdateReview conditions the write on ownership and delivered status so
// ineligible calls match zero rows instead of failing.
func (r *repository) UpdateReview(ctx context.Context, orderID, customerID uuid.UUID, rating int, review *string, reviewedAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND customer_id = ? AND status = ?", orderID, customerID, enums.OrderStatusDelivered).
		Updates(map[string]any{
			"rating":      rating,
			"review":      review,
			"reviewed_at": reviewedAt,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repository) FindPendingOrdersBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPending, cutoff).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func summarize(order models.Order) OrderSummary {
	return OrderSummary{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		MerchantID:    order.MerchantID,
		CustomerID:    order.CustomerID,
		CourierID:     order.CourierID,
		Status:        order.Status,
		TotalCents:    order.TotalCents,
		PaymentMethod: order.PaymentMethod,
		CreatedAt:     order.CreatedAt,
	}
}

func applyOrderFilters(query *gorm.DB, filters OrderFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}
