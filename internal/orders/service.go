package orders

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mesafast/mesafast-backend/internal/catalog"
	"github.com/mesafast/mesafast-backend/pkg/db/models"
	"github.com/mesafast/mesafast-backend/pkg/enums"
	pkgerrors "github.com/mesafast/mesafast-backend/pkg/errors"
	"github.com/mesafast/mesafast-backend/pkg/outbox"
	"github.com/mesafast/mesafast-backend/pkg/pagination"
)

// vatRate is the VAT-equivalent applied to the items subtotal. Tax is
// computed once at creation and never recomputed.
var vatRate = decimal.NewFromFloat(0.19)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines order-level operations beyond repository reads.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID, actorID uuid.UUID, role enums.ActorRole) (*models.Order, error)
	ListCustomerOrders(ctx context.Context, customerID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error)
	ListMerchantOrders(ctx context.Context, merchantID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error)
	ListUnassignedReadyOrders(ctx context.Context, params pagination.Params) (*OrderList, error)
	ListCourierOrders(ctx context.Context, courierID uuid.UUID, params pagination.Params, filters CourierOrderFilters) (*OrderList, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error)
	Cancel(ctx context.Context, orderID, actorID uuid.UUID, role enums.ActorRole, reason string) (*models.Order, error)
	Assign(ctx context.Context, orderID, courierID uuid.UUID) (*models.Order, error)
	AddReview(ctx context.Context, input ReviewInput) (*models.Order, error)
	ExpireStalePending(ctx context.Context, cutoff time.Time) (int, error)
}

type service struct {
	repo               Repository
	catalog            catalog.Service
	tx                 txRunner
	outbox             outboxPublisher
	defaultDeliveryFee int
}

// OrderCreatedEvent is emitted when a new order commits.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID           `json:"order_id"`
	OrderNumber string              `json:"order_number"`
	CustomerID  uuid.UUID           `json:"customer_id"`
	MerchantID  uuid.UUID           `json:"merchant_id"`
	TotalCents  int                 `json:"total_cents"`
	ItemCount   int                 `json:"item_count"`
	Payment     enums.PaymentMethod `json:"payment_method"`
}

// OrderStatusChangedEvent is emitted on every lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	MerchantID uuid.UUID         `json:"merchant_id"`
	CustomerID uuid.UUID         `json:"customer_id"`
	From       enums.OrderStatus `json:"from"`
	To         enums.OrderStatus `json:"to"`
	Notes      *string           `json:"notes,omitempty"`
}

// OrderAssignedEvent is emitted when a courier wins the claim.
type OrderAssignedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	CourierID  uuid.UUID `json:"courier_id"`
	MerchantID uuid.UUID `json:"merchant_id"`
	CustomerID uuid.UUID `json:"customer_id"`
}

// NewService builds an orders service with the required dependencies.
func NewService(repo Repository, catalogSvc catalog.Service, tx txRunner, outboxSvc outboxPublisher, defaultDeliveryFee int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if catalogSvc == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if defaultDeliveryFee < 0 {
		return nil, fmt.Errorf("default delivery fee must not be negative")
	}
	return &service{
		repo:               repo,
		catalog:            catalogSvc,
		tx:                 tx,
		outbox:             outboxSvc,
		defaultDeliveryFee: defaultDeliveryFee,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	if input.MerchantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant id required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart must not be empty")
	}
	if strings.TrimSpace(input.DeliveryAddress) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}
	if strings.TrimSpace(input.DeliveryPhone) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery phone required")
	}
	for _, item := range input.Items {
		if item.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a positive integer")
		}
	}

	payment := input.PaymentMethod
	if payment == "" {
		payment = enums.PaymentMethodCash
	}
	if !payment.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	ids := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
		ids = append(ids, item.MenuItemID)
	}
	resolved, err := s.catalog.ResolveItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, item := range input.Items {
		entry, ok := resolved[item.MenuItemID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeItemResolution, "unknown menu item").
				WithDetails(map[string]any{"item_id": item.MenuItemID.String()})
		}
		if entry.MerchantID != input.MerchantID {
			return nil, pkgerrors.New(pkgerrors.CodeItemResolution, "item belongs to a different merchant").
				WithDetails(map[string]any{"item_id": item.MenuItemID.String()})
		}
		if !entry.Available {
			return nil, pkgerrors.New(pkgerrors.CodeItemResolution, "item is not available").
				WithDetails(map[string]any{"item_id": item.MenuItemID.String()})
		}
	}

	deliveryFee, err := s.catalog.DeliveryFeeCents(ctx, input.MerchantID, s.defaultDeliveryFee)
	if err != nil {
		return nil, err
	}

	subtotal := 0
	lineItems := make([]models.OrderLineItem, 0, len(input.Items))
	for _, item := range input.Items {
		entry := resolved[item.MenuItemID]
		lineTotal := entry.PriceCents * item.Qty
		subtotal += lineTotal
		lineItems = append(lineItems, models.OrderLineItem{
			MenuItemID:     entry.ID,
			Name:           entry.Name,
			UnitPriceCents: entry.PriceCents,
			Qty:            item.Qty,
			TotalCents:     lineTotal,
			Notes:          item.SpecialInstructions,
		})
	}

	tax := taxCents(subtotal)
	discount := 0
	total := subtotal + deliveryFee + tax - discount

	now := time.Now().UTC()
	order := &models.Order{
		OrderNumber:      generateOrderNumber(now),
		CustomerID:       input.CustomerID,
		MerchantID:       input.MerchantID,
		Status:           enums.OrderStatusPending,
		SubtotalCents:    subtotal,
		DeliveryFeeCents: deliveryFee,
		DiscountCents:    discount,
		TaxCents:         tax,
		TotalCents:       total,
		PaymentMethod:    payment,
		DeliveryAddress:  input.DeliveryAddress,
		DeliveryPhone:    input.DeliveryPhone,
		DeliveryNotes:    input.DeliveryNotes,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		created, err := repo.CreateOrder(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		order = created

		for i := range lineItems {
			lineItems[i].OrderID = order.ID
		}
		if err := repo.CreateOrderLineItems(ctx, lineItems); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create line items")
		}

		entry := &models.OrderStatusHistory{
			OrderID:   order.ID,
			Status:    enums.OrderStatusPending,
			ChangedBy: input.CustomerID,
		}
		if err := repo.CreateStatusHistory(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(input.CustomerID, enums.ActorRoleCustomer),
			Data: OrderCreatedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerID:  order.CustomerID,
				MerchantID:  order.MerchantID,
				TotalCents:  order.TotalCents,
				ItemCount:   len(lineItems),
				Payment:     order.PaymentMethod,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	order.Items = lineItems
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, actorID uuid.UUID, role enums.ActorRole) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrderDetail(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !canView(order, actorID, role) {
		// Hide existence from actors without rights to the order.
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListCustomerOrders(ctx context.Context, customerID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	list, err := s.repo.ListCustomerOrders(ctx, customerID, params, filters)
	if err != nil {
		return nil, wrapStoreErr(err, "list customer orders")
	}
	return list, nil
}

func (s *service) ListMerchantOrders(ctx context.Context, merchantID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	if merchantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "merchant identity missing")
	}
	list, err := s.repo.ListMerchantOrders(ctx, merchantID, params, filters)
	if err != nil {
		return nil, wrapStoreErr(err, "list merchant orders")
	}
	return list, nil
}

func (s *service) ListUnassignedReadyOrders(ctx context.Context, params pagination.Params) (*OrderList, error) {
	list, err := s.repo.ListUnassignedReadyOrders(ctx, params)
	if err != nil {
		return nil, wrapStoreErr(err, "list available orders")
	}
	return list, nil
}

func (s *service) ListCourierOrders(ctx context.Context, courierID uuid.UUID, params pagination.Params, filters CourierOrderFilters) (*OrderList, error) {
	if courierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "courier identity missing")
	}
	list, err := s.repo.ListCourierOrders(ctx, courierID, params, filters)
	if err != nil {
		return nil, wrapStoreErr(err, "list courier orders")
	}
	return list, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.NewStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if !order.Status.CanTransitionTo(input.NewStatus) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot transition from %s to %s", order.Status, input.NewStatus))
		}

		now := time.Now().UTC()
		updates := map[string]any{"status": input.NewStatus}
		if column := timestampColumn(input.NewStatus); column != "" {
			updates[column] = now
		}
		affected, err := repo.TransitionOrder(ctx, order.ID, order.Status, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if affected == 0 {
			// Another writer moved the order between our read and write.
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}

		entry := &models.OrderStatusHistory{
			OrderID:   order.ID,
			Status:    input.NewStatus,
			ChangedBy: input.ActorID,
			Notes:     input.Notes,
		}
		if err := repo.CreateStatusHistory(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		from := order.Status
		order.Status = input.NewStatus
		stampStatusTime(order, input.NewStatus, now)
		updated = order

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(input.ActorID, input.ActorRole),
			Data: OrderStatusChangedEvent{
				OrderID:    order.ID,
				MerchantID: order.MerchantID,
				CustomerID: order.CustomerID,
				From:       from,
				To:         input.NewStatus,
				Notes:      input.Notes,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Cancel(ctx context.Context, orderID, actorID uuid.UUID, role enums.ActorRole, reason string) (*models.Order, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason required")
	}
	return s.UpdateStatus(ctx, UpdateStatusInput{
		OrderID:   orderID,
		NewStatus: enums.OrderStatusCancelled,
		ActorID:   actorID,
		ActorRole: role,
		Notes:     &reason,
	})
}

func (s *service) Assign(ctx context.Context, orderID, courierID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if courierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "courier identity missing")
	}

	var claimed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		now := time.Now().UTC()
		affected, err := repo.ClaimForCourier(ctx, orderID, courierID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim order")
		}
		if affected == 0 {
			// Lost the race, or the order is not ready/unassigned.
			return pkgerrors.New(pkgerrors.CodeAssignmentConflict, "order not found or not ready to be assigned")
		}

		note := "courier assigned"
		entry := &models.OrderStatusHistory{
			OrderID:   orderID,
			Status:    enums.OrderStatusEnRoute,
			ChangedBy: courierID,
			Notes:     &note,
		}
		if err := repo.CreateStatusHistory(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		claimed = order

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderAssigned,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Version:       1,
			Actor:         buildActor(courierID, enums.ActorRoleCourier),
			Data: OrderAssignedEvent{
				OrderID:    orderID,
				CourierID:  courierID,
				MerchantID: order.MerchantID,
				CustomerID: order.CustomerID,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// AddReview records a post-delivery rating. A nil order with nil error means
// the order was not eligible (wrong customer, not delivered, or missing);
// callers turn that into a client error rather than a fault.
func (s *service) AddReview(ctx context.Context, input ReviewInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}

	affected, err := s.repo.UpdateReview(ctx, input.OrderID, input.CustomerID, input.Rating, input.Review, time.Now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update review")
	}
	if affected == 0 {
		return nil, nil
	}

	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	return order, nil
}

// ExpireStalePending cancels pending orders created before the cutoff. Used
// by the cron worker; each expiry runs in its own transaction so one bad
// order does not block the sweep.
func (s *service) ExpireStalePending(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.repo.FindPendingOrdersBefore(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find stale pending orders")
	}

	expired := 0
	for _, order := range stale {
		skipped := false
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)

			now := time.Now().UTC()
			updates := map[string]any{
				"status":       enums.OrderStatusCancelled,
				"cancelled_at": now,
			}
			affected, err := repo.TransitionOrder(ctx, order.ID, enums.OrderStatusPending, updates)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire order")
			}
			if affected == 0 {
				// The order moved on since the sweep query ran.
				skipped = true
				return nil
			}

			note := "expired: merchant did not confirm in time"
			entry := &models.OrderStatusHistory{
				OrderID:   order.ID,
				Status:    enums.OrderStatusCancelled,
				ChangedBy: order.CustomerID,
				Notes:     &note,
			}
			if err := repo.CreateStatusHistory(ctx, entry); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
			}

			event := outbox.DomainEvent{
				EventType:     enums.EventOrderExpired,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Data: OrderStatusChangedEvent{
					OrderID:    order.ID,
					MerchantID: order.MerchantID,
					CustomerID: order.CustomerID,
					From:       enums.OrderStatusPending,
					To:         enums.OrderStatusCancelled,
					Notes:      &note,
				},
			}
			return s.outbox.Emit(ctx, tx, event)
		})
		if err != nil {
			return expired, err
		}
		if !skipped {
			expired++
		}
	}
	return expired, nil
}

// wrapStoreErr keeps already-typed errors intact and reports everything else
// as a dependency fault.
func wrapStoreErr(err error, message string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

// taxCents applies the VAT rate to the subtotal, rounded to the minor unit
// so no fractional cents are ever persisted.
func taxCents(subtotalCents int) int {
	return int(decimal.NewFromInt(int64(subtotalCents)).Mul(vatRate).Round(0).IntPart())
}

// generateOrderNumber builds the human-readable display code. The random
// suffix is not collision-proof; uniqueness lives on the surrogate id.
func generateOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%04d", now.Format("20060102"), rand.Intn(10000))
}

func timestampColumn(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusConfirmed:
		return "confirmed_at"
	case enums.OrderStatusPreparing:
		return "preparing_at"
	case enums.OrderStatusReady:
		return "ready_at"
	case enums.OrderStatusEnRoute:
		return "picked_up_at"
	case enums.OrderStatusDelivered:
		return "delivered_at"
	case enums.OrderStatusCancelled:
		return "cancelled_at"
	default:
		return ""
	}
}

func stampStatusTime(order *models.Order, status enums.OrderStatus, now time.Time) {
	switch status {
	case enums.OrderStatusConfirmed:
		order.ConfirmedAt = &now
	case enums.OrderStatusPreparing:
		order.PreparingAt = &now
	case enums.OrderStatusReady:
		order.ReadyAt = &now
	case enums.OrderStatusEnRoute:
		order.PickedUpAt = &now
	case enums.OrderStatusDelivered:
		order.DeliveredAt = &now
	case enums.OrderStatusCancelled:
		order.CancelledAt = &now
	}
}

func canView(order *models.Order, actorID uuid.UUID, role enums.ActorRole) bool {
	switch role {
	case enums.ActorRoleAdmin:
		return true
	case enums.ActorRoleCustomer:
		return order.CustomerID == actorID
	case enums.ActorRoleMerchant:
		return order.MerchantID == actorID
	case enums.ActorRoleCourier:
		return order.CourierID != nil && *order.CourierID == actorID
	default:
		return false
	}
}

func buildActor(userID uuid.UUID, role enums.ActorRole) *outbox.ActorRef {
	return &outbox.ActorRef{
		UserID: userID,
		Role:   string(role),
	}
}
