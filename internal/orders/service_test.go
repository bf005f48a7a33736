package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mwangikariuki/shopkit-backend/pkg/db/models"
	"github.com/mwangikariuki/shopkit-backend/pkg/enums"
	pkgerrors "github.com/mwangikariuki/shopkit-backend/pkg/errors"
	"github.com/mwangikariuki/shopkit-backend/pkg/outbox"
	"github.com/mwangikariuki/shopkit-backend/pkg/outbox/payloads"
	"github.com/mwangikariuki/shopkit-backend/pkg/pagination"
)

type stubOrdersRepo struct {
	orders map[uuid.UUID]*models.Order
}

func newStubOrdersRepo() *stubOrdersRepo {
	return &stubOrdersRepo{orders: map[uuid.UUID]*models.Order{}}
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Items {
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
		order.Items[i].OrderID = order.ID
	}
	s.orders[order.ID] = order
	return nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (s *stubOrdersRepo) List(ctx context.Context, customerID *uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	out := []models.Order{}
	for _, order := range s.orders {
		if customerID != nil && order.CustomerID != *customerID {
			continue
		}
		out = append(out, *order)
	}
	return out, "", nil
}

func (s *stubOrdersRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	order, ok := s.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	order.Status = status
	return nil
}

func (s *stubOrdersRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.orders[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(s.orders, id)
	return nil
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

type stubCustomerResolver struct {
	customersByUser map[uuid.UUID]*models.Customer
}

func (s *stubCustomerResolver) FindCustomerByUserID(ctx context.Context, userID uuid.UUID) (*models.Customer, error) {
	customer, ok := s.customersByUser[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return customer, nil
}

type stubProductsByID struct {
	products map[uuid.UUID]*models.Product
}

func (s *stubProductsByID) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	out := []models.Product{}
	for _, id := range ids {
		if product, ok := s.products[id]; ok {
			out = append(out, *product)
		}
	}
	return out, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type ordersFixture struct {
	svc       Service
	repo      *stubOrdersRepo
	outbox    *stubOutboxPublisher
	customers *stubCustomerResolver
	products  *stubProductsByID
}

func newOrdersFixture(t *testing.T) *ordersFixture {
	t.Helper()
	repo := newStubOrdersRepo()
	outboxStub := &stubOutboxPublisher{}
	customers := &stubCustomerResolver{customersByUser: map[uuid.UUID]*models.Customer{}}
	products := &stubProductsByID{products: map[uuid.UUID]*models.Product{}}
	svc, err := NewService(repo, stubTxRunner{}, outboxStub, customers, products)
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return &ordersFixture{svc: svc, repo: repo, outbox: outboxStub, customers: customers, products: products}
}

func (f *ordersFixture) seedOrder(status enums.OrderStatus, customerID uuid.UUID) *models.Order {
	order := &models.Order{
		ID:              uuid.New(),
		CustomerID:      customerID,
		Status:          status,
		ShippingAddress: "12 Biashara St, Nairobi",
		Total:           decimal.NewFromFloat(25.00),
	}
	f.repo.orders[order.ID] = order
	return order
}

func staffActor() ActorContext {
	return ActorContext{UserID: uuid.New(), IsStaff: true}
}

func (f *ordersFixture) customerActor(customerID uuid.UUID) ActorContext {
	userID := uuid.New()
	f.customers.customersByUser[userID] = &models.Customer{ID: customerID, UserID: userID}
	return ActorContext{UserID: userID}
}

func TestUpdateStatusWalksForwardChain(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seedOrder(enums.OrderStatusPending, uuid.New())
	actor := staffActor()

	for _, target := range []enums.OrderStatus{
		enums.OrderStatusConfirmed,
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered,
	} {
		dto, err := f.svc.UpdateStatus(context.Background(), actor, order.ID, UpdateStatusRequest{Status: target})
		if err != nil {
			t.Fatalf("transition to %s failed: %v", target, err)
		}
		if dto.Status != target {
			t.Fatalf("expected status %s got %s", target, dto.Status)
		}
	}
	if len(f.outbox.events) != 3 {
		t.Fatalf("expected 3 status events got %d", len(f.outbox.events))
	}
	last, ok := f.outbox.events[2].Data.(payloads.OrderStatusChangedEvent)
	if !ok {
		t.Fatalf("unexpected event payload %T", f.outbox.events[2].Data)
	}
	if last.PreviousStatus != enums.OrderStatusShipped || last.Status != enums.OrderStatusDelivered {
		t.Fatalf("unexpected event transition %s -> %s", last.PreviousStatus, last.Status)
	}
}

func TestUpdateStatusRejectsSkippedStep(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seedOrder(enums.OrderStatusPending, uuid.New())

	_, err := f.svc.UpdateStatus(context.Background(), staffActor(), order.ID, UpdateStatusRequest{Status: enums.OrderStatusShipped})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
	if len(f.outbox.events) != 0 {
		t.Fatal("no event expected for rejected transition")
	}
}

func TestUpdateStatusRejectsBackwardMove(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seedOrder(enums.OrderStatusShipped, uuid.New())

	_, err := f.svc.UpdateStatus(context.Background(), staffActor(), order.ID, UpdateStatusRequest{Status: enums.OrderStatusConfirmed})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
}

func TestUpdateStatusCancelFromNonTerminal(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seedOrder(enums.OrderStatusShipped, uuid.New())

	dto, err := f.svc.UpdateStatus(context.Background(), staffActor(), order.ID, UpdateStatusRequest{Status: enums.OrderStatusCancelled})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if dto.Status != enums.OrderStatusCancelled {
		t.Fatalf("unexpected status %s", dto.Status)
	}
}

func TestUpdateStatusTerminalStatesFrozen(t *testing.T) {
	f := newOrdersFixture(t)
	delivered := f.seedOrder(enums.OrderStatusDelivered, uuid.New())
	cancelled := f.seedOrder(enums.OrderStatusCancelled, uuid.New())

	for _, tc := range []struct {
		order  *models.Order
		target enums.OrderStatus
	}{
		{delivered, enums.OrderStatusCancelled},
		{cancelled, enums.OrderStatusPending},
		{cancelled, enums.OrderStatusConfirmed},
	} {
		_, err := f.svc.UpdateStatus(context.Background(), staffActor(), tc.order.ID, UpdateStatusRequest{Status: tc.target})
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
			t.Fatalf("expected state conflict for %s -> %s got %v", tc.order.Status, tc.target, err)
		}
	}
}

func TestCustomerCanCancelOwnOrder(t *testing.T) {
	f := newOrdersFixture(t)
	customerID := uuid.New()
	order := f.seedOrder(enums.OrderStatusPending, customerID)
	actor := f.customerActor(customerID)

	dto, err := f.svc.UpdateStatus(context.Background(), actor, order.ID, UpdateStatusRequest{Status: enums.OrderStatusCancelled})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if dto.Status != enums.OrderStatusCancelled {
		t.Fatalf("unexpected status %s", dto.Status)
	}
}

func TestCustomerCanCancelShippedOrder(t *testing.T) {
	f := newOrdersFixture(t)
	customerID := uuid.New()
	order := f.seedOrder(enums.OrderStatusShipped, customerID)
	actor := f.customerActor(customerID)

	dto, err := f.svc.UpdateStatus(context.Background(), actor, order.ID, UpdateStatusRequest{Status: enums.OrderStatusCancelled})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if dto.Status != enums.OrderStatusCancelled {
		t.Fatalf("unexpected status %s", dto.Status)
	}
}

func TestCustomerCannotConfirmOrder(t *testing.T) {
	f := newOrdersFixture(t)
	customerID := uuid.New()
	order := f.seedOrder(enums.OrderStatusPending, customerID)
	actor := f.customerActor(customerID)

	_, err := f.svc.UpdateStatus(context.Background(), actor, order.ID, UpdateStatusRequest{Status: enums.OrderStatusConfirmed})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden got %v", err)
	}
}

func TestCustomerCannotCancelForeignOrder(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seedOrder(enums.OrderStatusPending, uuid.New())
	actor := f.customerActor(uuid.New())

	_, err := f.svc.UpdateStatus(context.Background(), actor, order.ID, UpdateStatusRequest{Status: enums.OrderStatusCancelled})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden got %v", err)
	}
}

func TestCreateSnapshotsCatalogPrices(t *testing.T) {
	f := newOrdersFixture(t)
	mug := &models.Product{ID: uuid.New(), Name: "Mug", Price: decimal.NewFromFloat(10.00)}
	tee := &models.Product{ID: uuid.New(), Name: "Tee", Price: decimal.NewFromFloat(2.50)}
	f.products.products[mug.ID] = mug
	f.products.products[tee.ID] = tee

	dto, err := f.svc.Create(context.Background(), staffActor(), CreateOrderRequest{
		CustomerID:      uuid.New(),
		ShippingAddress: "12 Biashara St, Nairobi",
		Items: []CreateOrderItemRequest{
			{ProductID: mug.ID, Quantity: 2},
			{ProductID: tee.ID, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if !dto.Total.Equal(decimal.NewFromFloat(25.00)) {
		t.Fatalf("expected total 25.00 got %s", dto.Total)
	}
	if len(dto.Items) != 2 {
		t.Fatalf("expected 2 items got %d", len(dto.Items))
	}
	if !dto.Items[0].LineTotal.Equal(decimal.NewFromFloat(20.00)) {
		t.Fatalf("unexpected line total %s", dto.Items[0].LineTotal)
	}

	if len(f.outbox.events) != 1 {
		t.Fatalf("expected one created event got %d", len(f.outbox.events))
	}
	if f.outbox.events[0].EventType != enums.EventOrderCreated {
		t.Fatalf("unexpected event type %s", f.outbox.events[0].EventType)
	}

	// Later price changes never touch the frozen snapshot.
	mug.Price = decimal.NewFromFloat(99.00)
	reloaded, err := f.svc.Get(context.Background(), staffActor(), dto.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if !reloaded.Total.Equal(decimal.NewFromFloat(25.00)) {
		t.Fatalf("snapshot total changed: %s", reloaded.Total)
	}
}

func TestCreateRequiresStaff(t *testing.T) {
	f := newOrdersFixture(t)
	_, err := f.svc.Create(context.Background(), ActorContext{UserID: uuid.New()}, CreateOrderRequest{})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden got %v", err)
	}
}

func TestCreateRejectsUnknownProduct(t *testing.T) {
	f := newOrdersFixture(t)
	_, err := f.svc.Create(context.Background(), staffActor(), CreateOrderRequest{
		CustomerID:      uuid.New(),
		ShippingAddress: "12 Biashara St",
		Items:           []CreateOrderItemRequest{{ProductID: uuid.New(), Quantity: 1}},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestListScopesToOwnOrders(t *testing.T) {
	f := newOrdersFixture(t)
	customerID := uuid.New()
	f.seedOrder(enums.OrderStatusPending, customerID)
	f.seedOrder(enums.OrderStatusPending, uuid.New())
	actor := f.customerActor(customerID)

	list, err := f.svc.List(context.Background(), actor, pagination.Params{})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(list.Orders) != 1 {
		t.Fatalf("expected 1 own order got %d", len(list.Orders))
	}

	staffList, err := f.svc.List(context.Background(), staffActor(), pagination.Params{})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(staffList.Orders) != 2 {
		t.Fatalf("expected 2 orders for staff got %d", len(staffList.Orders))
	}
}

func TestListWithoutCustomerProfile(t *testing.T) {
	f := newOrdersFixture(t)
	f.seedOrder(enums.OrderStatusPending, uuid.New())

	list, err := f.svc.List(context.Background(), ActorContext{UserID: uuid.New()}, pagination.Params{})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(list.Orders) != 0 {
		t.Fatalf("expected empty list got %d", len(list.Orders))
	}
}

func TestDeleteRequiresStaff(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seedOrder(enums.OrderStatusPending, uuid.New())

	err := f.svc.Delete(context.Background(), ActorContext{UserID: uuid.New()}, order.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden got %v", err)
	}

	if err := f.svc.Delete(context.Background(), staffActor(), order.ID); err != nil {
		t.Fatalf("expected success got %v", err)
	}
}
