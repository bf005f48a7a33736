package checkout

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mwangikariuki/shopkit-backend/internal/cart"
	"github.com/mwangikariuki/shopkit-backend/internal/orders"
	"github.com/mwangikariuki/shopkit-backend/pkg/db/models"
	"github.com/mwangikariuki/shopkit-backend/pkg/enums"
	pkgerrors "github.com/mwangikariuki/shopkit-backend/pkg/errors"
	"github.com/mwangikariuki/shopkit-backend/pkg/outbox"
	"github.com/mwangikariuki/shopkit-backend/pkg/outbox/payloads"
	"github.com/mwangikariuki/shopkit-backend/pkg/pagination"
)

type stubCheckoutCartRepo struct {
	cart        *models.Cart
	versionBump int
}

func (s *stubCheckoutCartRepo) WithTx(tx *gorm.DB) cart.Repository { return s }

func (s *stubCheckoutCartRepo) GetOrCreate(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	return s.LockByCustomer(ctx, customerID)
}

func (s *stubCheckoutCartRepo) FindByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	return s.LockByCustomer(ctx, customerID)
}

func (s *stubCheckoutCartRepo) LockByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	if s.cart == nil || s.cart.CustomerID != customerID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.cart, nil
}

func (s *stubCheckoutCartRepo) FindItem(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCheckoutCartRepo) FindItemByID(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCheckoutCartRepo) CreateItem(ctx context.Context, item *models.CartItem) error {
	return nil
}

func (s *stubCheckoutCartRepo) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	return nil
}

func (s *stubCheckoutCartRepo) DeleteItem(ctx context.Context, itemID uuid.UUID) error { return nil }

func (s *stubCheckoutCartRepo) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	s.cart.Items = nil
	return nil
}

func (s *stubCheckoutCartRepo) BumpVersion(ctx context.Context, cartID uuid.UUID) error {
	s.versionBump++
	s.cart.Version++
	return nil
}

type stubCheckoutOrdersRepo struct {
	created *models.Order
}

func (s *stubCheckoutOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubCheckoutOrdersRepo) Create(ctx context.Context, order *models.Order) error {
	order.ID = uuid.New()
	s.created = order
	return nil
}

func (s *stubCheckoutOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.created == nil || s.created.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.created, nil
}

func (s *stubCheckoutOrdersRepo) List(ctx context.Context, customerID *uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	return nil, "", nil
}

func (s *stubCheckoutOrdersRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	return nil
}

func (s *stubCheckoutOrdersRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

type stubCheckoutOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubCheckoutOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubCheckoutCustomers struct {
	customer *models.Customer
}

func (s *stubCheckoutCustomers) FindCustomerByUserID(ctx context.Context, userID uuid.UUID) (*models.Customer, error) {
	if s.customer == nil || s.customer.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.customer, nil
}

type stubCheckoutTx struct{}

func (stubCheckoutTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type checkoutFixture struct {
	svc      Service
	carts    *stubCheckoutCartRepo
	orders   *stubCheckoutOrdersRepo
	outbox   *stubCheckoutOutbox
	userID   uuid.UUID
	customer *models.Customer
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	userID := uuid.New()
	customer := &models.Customer{ID: uuid.New(), UserID: userID}
	carts := &stubCheckoutCartRepo{}
	ordersRepo := &stubCheckoutOrdersRepo{}
	outboxStub := &stubCheckoutOutbox{}

	svc, err := NewService(stubCheckoutTx{}, carts, ordersRepo, outboxStub, &stubCheckoutCustomers{customer: customer})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return &checkoutFixture{
		svc:      svc,
		carts:    carts,
		orders:   ordersRepo,
		outbox:   outboxStub,
		userID:   userID,
		customer: customer,
	}
}

func (f *checkoutFixture) seedCart(items ...models.CartItem) {
	cartID := uuid.New()
	for i := range items {
		items[i].ID = uuid.New()
		items[i].CartID = cartID
	}
	f.carts.cart = &models.Cart{ID: cartID, CustomerID: f.customer.ID, Items: items}
}

func cartLine(name string, price string, quantity int, available bool) models.CartItem {
	product := &models.Product{
		ID:        uuid.New(),
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Available: available,
	}
	return models.CartItem{ProductID: product.ID, Product: product, Quantity: quantity}
}

func TestCheckoutCreatesOrderAndDrainsCart(t *testing.T) {
	f := newCheckoutFixture(t)
	f.seedCart(
		cartLine("Mug", "10.00", 2, true),
		cartLine("Tee", "2.50", 2, true),
	)

	dto, err := f.svc.Checkout(context.Background(), f.userID, CheckoutRequest{ShippingAddress: "12 Biashara St"})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if dto.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending order got %s", dto.Status)
	}
	if !dto.Total.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("expected total 25.00 got %s", dto.Total)
	}
	if len(dto.Items) != 2 {
		t.Fatalf("expected 2 items got %d", len(dto.Items))
	}
	if !dto.Items[0].LineTotal.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("unexpected line total %s", dto.Items[0].LineTotal)
	}

	if len(f.carts.cart.Items) != 0 {
		t.Fatalf("cart not drained, %d items left", len(f.carts.cart.Items))
	}
	if f.carts.versionBump != 1 {
		t.Fatalf("expected one version bump got %d", f.carts.versionBump)
	}

	if len(f.outbox.events) != 1 {
		t.Fatalf("expected one event got %d", len(f.outbox.events))
	}
	event := f.outbox.events[0]
	if event.EventType != enums.EventOrderCreated {
		t.Fatalf("unexpected event type %s", event.EventType)
	}
	payload, ok := event.Data.(payloads.OrderCreatedEvent)
	if !ok {
		t.Fatalf("unexpected payload %T", event.Data)
	}
	if len(payload.Items) != 2 || !payload.Total.Equal(dto.Total) {
		t.Fatalf("event payload does not match order")
	}
}

func TestCheckoutSnapshotSurvivesPriceChange(t *testing.T) {
	f := newCheckoutFixture(t)
	line := cartLine("Mug", "10.00", 1, true)
	f.seedCart(line)

	dto, err := f.svc.Checkout(context.Background(), f.userID, CheckoutRequest{ShippingAddress: "12 Biashara St"})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}

	line.Product.Price = decimal.RequireFromString("99.00")
	if !f.orders.created.Total.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("snapshot total changed: %s", f.orders.created.Total)
	}
	if !dto.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("snapshot unit price changed: %s", dto.Items[0].UnitPrice)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newCheckoutFixture(t)
	f.seedCart()

	_, err := f.svc.Checkout(context.Background(), f.userID, CheckoutRequest{ShippingAddress: "12 Biashara St"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestCheckoutWithoutCustomerProfile(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.svc.Checkout(context.Background(), uuid.New(), CheckoutRequest{ShippingAddress: "12 Biashara St"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestCheckoutRejectsUnavailableProduct(t *testing.T) {
	f := newCheckoutFixture(t)
	f.seedCart(
		cartLine("Mug", "10.00", 1, true),
		cartLine("Discontinued", "5.00", 1, false),
	)

	_, err := f.svc.Checkout(context.Background(), f.userID, CheckoutRequest{ShippingAddress: "12 Biashara St"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
	if f.orders.created != nil {
		t.Fatal("no order expected")
	}
	if len(f.carts.cart.Items) != 2 {
		t.Fatal("cart must stay intact on rejected checkout")
	}
}

func TestCheckoutRequiresShippingAddress(t *testing.T) {
	f := newCheckoutFixture(t)
	f.seedCart(cartLine("Mug", "10.00", 1, true))

	_, err := f.svc.Checkout(context.Background(), f.userID, CheckoutRequest{ShippingAddress: "  "})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestCheckoutTwiceDrainsOnce(t *testing.T) {
	f := newCheckoutFixture(t)
	f.seedCart(cartLine("Mug", "10.00", 1, true))

	if _, err := f.svc.Checkout(context.Background(), f.userID, CheckoutRequest{ShippingAddress: "12 Biashara St"}); err != nil {
		t.Fatalf("first checkout failed: %v", err)
	}

	_, err := f.svc.Checkout(context.Background(), f.userID, CheckoutRequest{ShippingAddress: "12 Biashara St"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected empty-cart rejection got %v", err)
	}
	if f.carts.versionBump != 1 {
		t.Fatalf("expected a single drain got %d", f.carts.versionBump)
	}
}
