package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mesafast/mesafast-backend/internal/catalog"
	"github.com/mesafast/mesafast-backend/pkg/db/models"
	"github.com/mesafast/mesafast-backend/pkg/enums"
	pkgerrors "github.com/mesafast/mesafast-backend/pkg/errors"
	"github.com/mesafast/mesafast-backend/pkg/outbox"
	"github.com/mesafast/mesafast-backend/pkg/pagination"
)

type stubOrdersRepo struct {
	mu sync.Mutex

	order     *models.Order
	created   *models.Order
	lineItems []models.OrderLineItem
	history   []models.OrderStatusHistory
	updates   map[string]any
	pending   []models.Order

	createOrderErr error
	lineItemsErr   error
	historyErr     error
	reviewAffected int64
	transitionMiss bool
	listErr        error
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubOrdersRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if s.createOrderErr != nil {
		return nil, s.createOrderErr
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.created = order
	return order, nil
}

func (s *stubOrdersRepo) CreateOrderLineItems(ctx context.Context, items []models.OrderLineItem) error {
	if s.lineItemsErr != nil {
		return s.lineItemsErr
	}
	s.lineItems = append(s.lineItems, items...)
	return nil
}

func (s *stubOrdersRepo) CreateStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	if s.historyErr != nil {
		return s.historyErr
	}
	s.history = append(s.history, *entry)
	return nil
}

func (s *stubOrdersRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubOrdersRepo) FindOrderDetail(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.FindOrder(ctx, orderID)
}

func (s *stubOrdersRepo) ListCustomerOrders(ctx context.Context, customerID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return &OrderList{}, nil
}

func (s *stubOrdersRepo) ListMerchantOrders(ctx context.Context, merchantID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) ListUnassignedReadyOrders(ctx context.Context, params pagination.Params) (*OrderList, error) {
	return &OrderList{}, nil
}

func (s *stubOrdersRepo) ListCourierOrders(ctx context.Context, courierID uuid.UUID, params pagination.Params, filters CourierOrderFilters) (*OrderList, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) TransitionOrder(ctx context.Context, orderID uuid.UUID, from enums.OrderStatus, updates map[string]any) (int64, error) {
	if s.transitionMiss {
		return 0, nil
	}
	if s.order == nil || s.order.ID != orderID || s.order.Status != from {
		return 0, nil
	}
	s.updates = updates
	if v, ok := updates["status"].(enums.OrderStatus); ok {
		s.order.Status = v
	}
	return 1, nil
}

func (s *stubOrdersRepo) ClaimForCourier(ctx context.Context, orderID, courierID uuid.UUID, pickedUpAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order == nil || s.order.ID != orderID {
		return 0, nil
	}
	if s.order.Status != enums.OrderStatusReady || s.order.CourierID != nil {
		return 0, nil
	}
	courier := courierID
	s.order.CourierID = &courier
	s.order.Status = enums.OrderStatusEnRoute
	s.order.PickedUpAt = &pickedUpAt
	return 1, nil
}

func (s *stubOrdersRepo) UpdateReview(ctx context.Context, orderID, customerID uuid.UUID, rating int, review *string, reviewedAt time.Time) (int64, error) {
	if s.reviewAffected == 0 {
		return 0, nil
	}
	if s.order != nil {
		s.order.Rating = &rating
		s.order.Review = review
		s.order.ReviewedAt = &reviewedAt
	}
	return s.reviewAffected, nil
}

func (s *stubOrdersRepo) FindPendingOrdersBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	return s.pending, nil
}

type stubCatalog struct {
	items map[uuid.UUID]catalog.ResolvedItem
	fee   int
	err   error
}

func (s *stubCatalog) ResolveItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.ResolvedItem, error) {
	if s.err != nil {
		return nil, s.err
	}
	resolved := make(map[uuid.UUID]catalog.ResolvedItem)
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			resolved[id] = item
		}
	}
	return resolved, nil
}

func (s *stubCatalog) DeliveryFeeCents(ctx context.Context, merchantID uuid.UUID, platformDefault int) (int, error) {
	if s.fee > 0 {
		return s.fee, nil
	}
	return platformDefault, nil
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
	err    error
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestService(t *testing.T, repo *stubOrdersRepo, cat *stubCatalog, pub *stubOutboxPublisher) Service {
	t.Helper()
	svc, err := NewService(repo, cat, stubTxRunner{}, pub, 3000)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc
}

func menuItem(merchantID uuid.UUID, name string, price int) catalog.ResolvedItem {
	return catalog.ResolvedItem{
		ID:         uuid.New(),
		MerchantID: merchantID,
		Name:       name,
		PriceCents: price,
		Available:  true,
	}
}

func expectCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error with code %s, got %v", code, err)
	}
	if typed.Code() != code {
		t.Fatalf("expected code %s, got %s", code, typed.Code())
	}
}

func TestCreateOrderPricing(t *testing.T) {
	merchantID := uuid.New()
	customerID := uuid.New()
	pizza := menuItem(merchantID, "Pizza", 20000)

	repo := &stubOrdersRepo{}
	cat := &stubCatalog{items: map[uuid.UUID]catalog.ResolvedItem{pizza.ID: pizza}}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, cat, pub)

	order, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerID:      customerID,
		MerchantID:      merchantID,
		Items:           []CartItemInput{{MenuItemID: pizza.ID, Qty: 2}},
		DeliveryAddress: "Calle 1 #2-3",
		DeliveryPhone:   "3001234567",
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}

	if order.SubtotalCents != 40000 {
		t.Fatalf("expected subtotal 40000 got %d", order.SubtotalCents)
	}
	if order.DeliveryFeeCents != 3000 {
		t.Fatalf("expected delivery fee 3000 got %d", order.DeliveryFeeCents)
	}
	if order.TaxCents != 7600 {
		t.Fatalf("expected tax 7600 got %d", order.TaxCents)
	}
	if order.TotalCents != 50600 {
		t.Fatalf("expected total 50600 got %d", order.TotalCents)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending status got %s", order.Status)
	}
	if order.PaymentMethod != enums.PaymentMethodCash {
		t.Fatalf("expected default cash payment got %s", order.PaymentMethod)
	}

	// Line items carry the resolved catalog snapshot, not client input.
	if len(repo.lineItems) != 1 {
		t.Fatalf("expected 1 line item got %d", len(repo.lineItems))
	}
	item := repo.lineItems[0]
	if item.Name != "Pizza" || item.UnitPriceCents != 20000 || item.TotalCents != 40000 {
		t.Fatalf("unexpected line item snapshot %+v", item)
	}

	sum := 0
	for _, li := range repo.lineItems {
		sum += li.TotalCents
	}
	if sum != order.SubtotalCents {
		t.Fatalf("line item totals %d do not equal subtotal %d", sum, order.SubtotalCents)
	}

	if len(repo.history) != 1 || repo.history[0].Status != enums.OrderStatusPending {
		t.Fatalf("expected one pending history entry got %+v", repo.history)
	}
	if repo.history[0].ChangedBy != customerID {
		t.Fatalf("history changed_by should be the customer")
	}

	if len(pub.events) != 1 || pub.events[0].EventType != enums.EventOrderCreated {
		t.Fatalf("expected order.created event got %+v", pub.events)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	merchantID := uuid.New()
	pizza := menuItem(merchantID, "Pizza", 20000)
	cat := &stubCatalog{items: map[uuid.UUID]catalog.ResolvedItem{pizza.ID: pizza}}

	valid := CreateOrderInput{
		CustomerID:      uuid.New(),
		MerchantID:      merchantID,
		Items:           []CartItemInput{{MenuItemID: pizza.ID, Qty: 1}},
		DeliveryAddress: "Calle 1",
		DeliveryPhone:   "3000000000",
	}

	cases := []struct {
		name   string
		mutate func(input *CreateOrderInput)
	}{
		{"empty cart", func(in *CreateOrderInput) { in.Items = nil }},
		{"missing address", func(in *CreateOrderInput) { in.DeliveryAddress = "  " }},
		{"missing phone", func(in *CreateOrderInput) { in.DeliveryPhone = "" }},
		{"zero quantity", func(in *CreateOrderInput) { in.Items = []CartItemInput{{MenuItemID: pizza.ID, Qty: 0}} }},
		{"negative quantity", func(in *CreateOrderInput) { in.Items = []CartItemInput{{MenuItemID: pizza.ID, Qty: -1}} }},
		{"bad payment method", func(in *CreateOrderInput) { in.PaymentMethod = "crypto" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &stubOrdersRepo{}
			svc := newTestService(t, repo, cat, &stubOutboxPublisher{})

			input := valid
			tc.mutate(&input)
			_, err := svc.Create(context.Background(), input)
			expectCode(t, err, pkgerrors.CodeValidation)
			if repo.created != nil {
				t.Fatal("no write should happen on validation failure")
			}
		})
	}
}

func TestCreateOrderItemResolution(t *testing.T) {
	merchantID := uuid.New()
	otherMerchant := uuid.New()
	pizza := menuItem(merchantID, "Pizza", 20000)
	foreign := menuItem(otherMerchant, "Sushi", 30000)
	soldOut := menuItem(merchantID, "Burger", 15000)
	soldOut.Available = false

	cat := &stubCatalog{items: map[uuid.UUID]catalog.ResolvedItem{
		pizza.ID:   pizza,
		foreign.ID: foreign,
		soldOut.ID: soldOut,
	}}

	cases := []struct {
		name  string
		items []CartItemInput
	}{
		{"unknown item", []CartItemInput{{MenuItemID: uuid.New(), Qty: 1}}},
		{"mixed merchants", []CartItemInput{{MenuItemID: pizza.ID, Qty: 1}, {MenuItemID: foreign.ID, Qty: 1}}},
		{"unavailable item", []CartItemInput{{MenuItemID: pizza.ID, Qty: 1}, {MenuItemID: soldOut.ID, Qty: 1}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &stubOrdersRepo{}
			svc := newTestService(t, repo, cat, &stubOutboxPublisher{})

			_, err := svc.Create(context.Background(), CreateOrderInput{
				CustomerID:      uuid.New(),
				MerchantID:      merchantID,
				Items:           tc.items,
				DeliveryAddress: "Calle 1",
				DeliveryPhone:   "3000000000",
			})
			expectCode(t, err, pkgerrors.CodeItemResolution)
			if repo.created != nil {
				t.Fatal("no write should happen on resolution failure")
			}
		})
	}
}

func TestCreateOrderMerchantFeeOverride(t *testing.T) {
	merchantID := uuid.New()
	pizza := menuItem(merchantID, "Pizza", 10000)
	cat := &stubCatalog{
		items: map[uuid.UUID]catalog.ResolvedItem{pizza.ID: pizza},
		fee:   5000,
	}
	svc := newTestService(t, &stubOrdersRepo{}, cat, &stubOutboxPublisher{})

	order, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerID:      uuid.New(),
		MerchantID:      merchantID,
		Items:           []CartItemInput{{MenuItemID: pizza.ID, Qty: 1}},
		DeliveryAddress: "Calle 1",
		DeliveryPhone:   "3000000000",
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.DeliveryFeeCents != 5000 {
		t.Fatalf("expected merchant fee 5000 got %d", order.DeliveryFeeCents)
	}
	if order.TotalCents != 10000+5000+1900 {
		t.Fatalf("unexpected total %d", order.TotalCents)
	}
}

func TestListCustomerOrdersErrorMapping(t *testing.T) {
	// A typed validation error from the store, such as a malformed cursor,
	// must survive as-is; untyped store failures become dependency faults.
	repo := &stubOrdersRepo{listErr: pkgerrors.New(pkgerrors.CodeValidation, "invalid pagination cursor")}
	svc := newTestService(t, repo, &stubCatalog{}, &stubOutboxPublisher{})

	_, err := svc.ListCustomerOrders(context.Background(), uuid.New(), pagination.Params{Cursor: "junk"}, OrderFilters{})
	expectCode(t, err, pkgerrors.CodeValidation)

	repo.listErr = gorm.ErrInvalidDB
	_, err = svc.ListCustomerOrders(context.Background(), uuid.New(), pagination.Params{}, OrderFilters{})
	expectCode(t, err, pkgerrors.CodeDependency)
}

func TestUpdateStatusTransition(t *testing.T) {
	orderID := uuid.New()
	actorID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{
			ID:         orderID,
			CustomerID: uuid.New(),
			MerchantID: uuid.New(),
			Status:     enums.OrderStatusPending,
		},
	}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, &stubCatalog{}, pub)

	order, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:   orderID,
		NewStatus: enums.OrderStatusConfirmed,
		ActorID:   actorID,
		ActorRole: enums.ActorRoleMerchant,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed got %s", order.Status)
	}
	if order.ConfirmedAt == nil {
		t.Fatal("confirmed_at should be stamped")
	}
	if ts, ok := repo.updates["confirmed_at"]; !ok || ts == nil {
		t.Fatal("update should stamp confirmed_at")
	}
	if len(repo.history) != 1 || repo.history[0].Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected one confirmed history entry got %+v", repo.history)
	}
	if len(pub.events) != 1 || pub.events[0].EventType != enums.EventOrderStatusChanged {
		t.Fatalf("expected order.status_changed event got %+v", pub.events)
	}
}

func TestUpdateStatusRejectsInvalidEdges(t *testing.T) {
	cases := []struct {
		name string
		from enums.OrderStatus
		to   enums.OrderStatus
	}{
		{"skip ahead", enums.OrderStatusPending, enums.OrderStatusReady},
		{"backwards", enums.OrderStatusReady, enums.OrderStatusPreparing},
		{"same status", enums.OrderStatusConfirmed, enums.OrderStatusConfirmed},
		{"out of delivered", enums.OrderStatusDelivered, enums.OrderStatusEnRoute},
		{"out of cancelled", enums.OrderStatusCancelled, enums.OrderStatusConfirmed},
		{"cancel after pickup", enums.OrderStatusEnRoute, enums.OrderStatusCancelled},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orderID := uuid.New()
			repo := &stubOrdersRepo{
				order: &models.Order{ID: orderID, Status: tc.from},
			}
			svc := newTestService(t, repo, &stubCatalog{}, &stubOutboxPublisher{})

			_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
				OrderID:   orderID,
				NewStatus: tc.to,
				ActorID:   uuid.New(),
				ActorRole: enums.ActorRoleAdmin,
			})
			expectCode(t, err, pkgerrors.CodeStateConflict)
			if len(repo.history) != 0 {
				t.Fatal("rejected transition must not append history")
			}
		})
	}
}

func TestUpdateStatusDetectsConcurrentTransition(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{
		order:          &models.Order{ID: orderID, Status: enums.OrderStatusReady},
		transitionMiss: true,
	}
	svc := newTestService(t, repo, &stubCatalog{}, &stubOutboxPublisher{})

	// The guarded update matches zero rows when another writer, such as the
	// assignment claim, moved the order between our read and write.
	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:   orderID,
		NewStatus: enums.OrderStatusCancelled,
		ActorID:   uuid.New(),
		ActorRole: enums.ActorRoleMerchant,
	})
	expectCode(t, err, pkgerrors.CodeStateConflict)
	if len(repo.history) != 0 {
		t.Fatal("lost race must not append history")
	}
}

func TestUpdateStatusOrderNotFound(t *testing.T) {
	repo := &stubOrdersRepo{}
	svc := newTestService(t, repo, &stubCatalog{}, &stubOutboxPublisher{})

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:   uuid.New(),
		NewStatus: enums.OrderStatusConfirmed,
		ActorID:   uuid.New(),
		ActorRole: enums.ActorRoleMerchant,
	})
	expectCode(t, err, pkgerrors.CodeNotFound)
}

func TestCancelRequiresReason(t *testing.T) {
	svc := newTestService(t, &stubOrdersRepo{}, &stubCatalog{}, &stubOutboxPublisher{})

	_, err := svc.Cancel(context.Background(), uuid.New(), uuid.New(), enums.ActorRoleCustomer, "  ")
	expectCode(t, err, pkgerrors.CodeValidation)
}

func TestCancelAppendsReasonNote(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{ID: orderID, Status: enums.OrderStatusPending},
	}
	svc := newTestService(t, repo, &stubCatalog{}, &stubOutboxPublisher{})

	order, err := svc.Cancel(context.Background(), orderID, uuid.New(), enums.ActorRoleCustomer, "changed my mind")
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled got %s", order.Status)
	}
	if len(repo.history) != 1 || repo.history[0].Notes == nil || *repo.history[0].Notes != "changed my mind" {
		t.Fatalf("expected history entry carrying the reason got %+v", repo.history)
	}
}

func TestAssignClaimsReadyOrder(t *testing.T) {
	orderID := uuid.New()
	courierID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{
			ID:         orderID,
			CustomerID: uuid.New(),
			MerchantID: uuid.New(),
			Status:     enums.OrderStatusReady,
		},
	}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, &stubCatalog{}, pub)

	order, err := svc.Assign(context.Background(), orderID, courierID)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.Status != enums.OrderStatusEnRoute {
		t.Fatalf("expected en_route got %s", order.Status)
	}
	if order.CourierID == nil || *order.CourierID != courierID {
		t.Fatal("courier id should be set")
	}
	if order.PickedUpAt == nil {
		t.Fatal("picked_up_at should be stamped")
	}
	if len(repo.history) != 1 || repo.history[0].ChangedBy != courierID {
		t.Fatalf("expected courier history entry got %+v", repo.history)
	}
	if len(pub.events) != 1 || pub.events[0].EventType != enums.EventOrderAssigned {
		t.Fatalf("expected order.assigned event got %+v", pub.events)
	}
}

func TestAssignConflictWhenNotReady(t *testing.T) {
	cases := []struct {
		name  string
		order *models.Order
	}{
		{"missing order", nil},
		{"still preparing", &models.Order{Status: enums.OrderStatusPreparing}},
		{"already assigned", func() *models.Order {
			courier := uuid.New()
			return &models.Order{Status: enums.OrderStatusReady, CourierID: &courier}
		}()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orderID := uuid.New()
			if tc.order != nil {
				tc.order.ID = orderID
			}
			repo := &stubOrdersRepo{order: tc.order}
			svc := newTestService(t, repo, &stubCatalog{}, &stubOutboxPublisher{})

			_, err := svc.Assign(context.Background(), orderID, uuid.New())
			expectCode(t, err, pkgerrors.CodeAssignmentConflict)
		})
	}
}

func TestAssignConcurrentSingleWinner(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{
			ID:         orderID,
			CustomerID: uuid.New(),
			MerchantID: uuid.New(),
			Status:     enums.OrderStatusReady,
		},
	}
	svc := newTestService(t, repo, &stubCatalog{}, &stubOutboxPublisher{})

	courierA := uuid.New()
	courierB := uuid.New()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, courier := range []uuid.UUID{courierA, courierB} {
		wg.Add(1)
		go func(slot int, courierID uuid.UUID) {
			defer wg.Done()
			_, errs[slot] = svc.Assign(context.Background(), orderID, courierID)
		}(i, courier)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		expectCode(t, err, pkgerrors.CodeAssignmentConflict)
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner got %d", winners)
	}
	if repo.order.CourierID == nil {
		t.Fatal("order should end assigned")
	}
	if got := *repo.order.CourierID; got != courierA && got != courierB {
		t.Fatalf("unexpected courier %s", got)
	}
}

func TestAddReviewValidation(t *testing.T) {
	svc := newTestService(t, &stubOrdersRepo{}, &stubCatalog{}, &stubOutboxPublisher{})

	for _, rating := range []int{0, -1, 6} {
		_, err := svc.AddReview(context.Background(), ReviewInput{
			OrderID:    uuid.New(),
			CustomerID: uuid.New(),
			Rating:     rating,
		})
		expectCode(t, err, pkgerrors.CodeValidation)
	}
}

func TestAddReviewNotEligible(t *testing.T) {
	repo := &stubOrdersRepo{reviewAffected: 0}
	svc := newTestService(t, repo, &stubCatalog{}, &stubOutboxPublisher{})

	order, err := svc.AddReview(context.Background(), ReviewInput{
		OrderID:    uuid.New(),
		CustomerID: uuid.New(),
		Rating:     5,
	})
	if err != nil {
		t.Fatalf("ineligible review should not error, got %v", err)
	}
	if order != nil {
		t.Fatal("ineligible review should return nil order")
	}
}

func TestAddReviewDeliveredOrder(t *testing.T) {
	orderID := uuid.New()
	customerID := uuid.New()
	repo := &stubOrdersRepo{
		reviewAffected: 1,
		order: &models.Order{
			ID:         orderID,
			CustomerID: customerID,
			Status:     enums.OrderStatusDelivered,
		},
	}
	svc := newTestService(t, repo, &stubCatalog{}, &stubOutboxPublisher{})

	text := "great pizza"
	order, err := svc.AddReview(context.Background(), ReviewInput{
		OrderID:    orderID,
		CustomerID: customerID,
		Rating:     5,
		Review:     &text,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order == nil {
		t.Fatal("expected the reviewed order back")
	}
	if order.Rating == nil || *order.Rating != 5 {
		t.Fatal("rating should be persisted")
	}
	if order.ReviewedAt == nil {
		t.Fatal("reviewed_at should be stamped")
	}
}

func TestExpireStalePending(t *testing.T) {
	stale := models.Order{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		MerchantID: uuid.New(),
		Status:     enums.OrderStatusPending,
	}
	repo := &stubOrdersRepo{
		order:   &stale,
		pending: []models.Order{stale},
	}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, &stubCatalog{}, pub)

	expired, err := svc.ExpireStalePending(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired order got %d", expired)
	}
	if repo.order.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled got %s", repo.order.Status)
	}
	if len(repo.history) != 1 || repo.history[0].Notes == nil {
		t.Fatalf("expected expiry history entry got %+v", repo.history)
	}
	if len(pub.events) != 1 || pub.events[0].EventType != enums.EventOrderExpired {
		t.Fatalf("expected order.expired event got %+v", pub.events)
	}
}

func TestTaxRounding(t *testing.T) {
	cases := []struct {
		subtotal int
		want     int
	}{
		{40000, 7600},
		{100, 19},
		{1, 0},   // 0.19 rounds down
		{3, 1},   // 0.57 rounds up
		{10, 2},  // 1.9 rounds up
		{50, 10}, // 9.5 rounds half away from zero
	}
	for _, tc := range cases {
		if got := taxCents(tc.subtotal); got != tc.want {
			t.Errorf("taxCents(%d) = %d, want %d", tc.subtotal, got, tc.want)
		}
	}
}

func TestGenerateOrderNumberFormat(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	number := generateOrderNumber(now)
	if len(number) != len("ORD-20260315-0000") {
		t.Fatalf("unexpected length for %q", number)
	}
	if number[:13] != "ORD-20260315-" {
		t.Fatalf("unexpected prefix for %q", number)
	}
}
