package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type customerResolver interface {
	FindCustomerByUserID(ctx context.Context, userID uuid.UUID) (*models.Customer, error)
}

type productFinder interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

// Service defines order-level operations beyond repository reads.
type Service interface {
	Create(ctx context.Context, actor ActorContext, req CreateOrderRequest) (*OrderDTO, error)
	Get(ctx context.Context, actor ActorContext, id uuid.UUID) (*OrderDTO, error)
	List(ctx context.Context, actor ActorContext, params pagination.Params) (*OrderList, error)
	UpdateStatus(ctx context.Context, actor ActorContext, id uuid.UUID, req UpdateStatusRequest) (*OrderDTO, error)
	Delete(ctx context.Context, actor ActorContext, id uuid.UUID) error
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	customers customerResolver
	products  productFinder
}

// NewService builds an orders service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, customers customerResolver, products productFinder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if customers == nil {
		return nil, fmt.Errorf("customer resolver required")
	}
	if products == nil {
		return nil, fmt.Errorf("product finder required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    outboxSvc,
		customers: customers,
		products:  products,
	}, nil
}

// Create builds an order directly from a staff request. Each line is
// priced from the catalog at creation time, same as checkout.
func (s *service) Create(ctx context.Context, actor ActorContext, req CreateOrderRequest) (*OrderDTO, error) {
	if !actor.IsStaff {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff access required")
	}
	if strings.TrimSpace(req.ShippingAddress) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}

	ids := make([]uuid.UUID, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
		}
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	order := &models.Order{
		CustomerID:      req.CustomerID,
		Status:          enums.OrderStatusPending,
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
		Total:           decimal.Zero,
	}
	for _, line := range req.Items {
		product, ok := byID[line.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "one or more products do not exist")
		}
		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		order.Items = append(order.Items, models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   product.Price,
			LineTotal:   lineTotal,
		})
		order.Total = order.Total.Add(lineTotal)
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return s.emitCreated(ctx, tx, actor, order)
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, order.ID)
}

func (s *service) Get(ctx context.Context, actor ActorContext, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwnership(ctx, actor, order); err != nil {
		return nil, err
	}
	return FromModel(order), nil
}

// List returns every order for staff and only the caller's own otherwise.
func (s *service) List(ctx context.Context, actor ActorContext, params pagination.Params) (*OrderList, error) {
	var customerID *uuid.UUID
	if !actor.IsStaff {
		customer, err := s.customers.FindCustomerByUserID(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &OrderList{Orders: []OrderDTO{}}, nil
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve customer")
		}
		customerID = &customer.ID
	}

	orders, nextCursor, err := s.repo.List(ctx, customerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	dtos := make([]OrderDTO, 0, len(orders))
	for i := range orders {
		dtos = append(dtos, *FromModel(&orders[i]))
	}
	return &OrderList{Orders: dtos, NextCursor: nextCursor}, nil
}

// UpdateStatus applies one step of the lifecycle. Staff may take any legal
// transition; customers may only cancel their own order.
func (s *service) UpdateStatus(ctx context.Context, actor ActorContext, id uuid.UUID, req UpdateStatusRequest) (*OrderDTO, error) {
	if !req.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if !actor.IsStaff {
			if req.Status != enums.OrderStatusCancelled {
				return pkgerrors.New(pkgerrors.CodeForbidden, "staff access required")
			}
			if err := s.checkOwnership(ctx, actor, order); err != nil {
				return err
			}
		}

		previous := order.Status
		if !canTransition(previous, req.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot transition order from %s to %s", previous, req.Status))
		}

		if err := repo.UpdateStatus(ctx, order.ID, req.Status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         actorRef(actor),
			Data: payloads.OrderStatusChangedEvent{
				OrderID:        order.ID,
				CustomerID:     order.CustomerID,
				PreviousStatus: previous,
				Status:         req.Status,
				ChangedAt:      time.Now().UTC(),
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, id)
}

func (s *service) Delete(ctx context.Context, actor ActorContext, id uuid.UUID) error {
	if !actor.IsStaff {
		return pkgerrors.New(pkgerrors.CodeForbidden, "staff access required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
	}
	return nil
}

func (s *service) emitCreated(ctx context.Context, tx *gorm.DB, actor ActorContext, order *models.Order) error {
	lines := make([]payloads.OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, payloads.OrderLine{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
		})
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actorRef(actor),
		Data: payloads.OrderCreatedEvent{
			OrderID:         order.ID,
			CustomerID:      order.CustomerID,
			Status:          order.Status.String(),
			Total:           order.Total,
			ShippingAddress: order.ShippingAddress,
			Items:           lines,
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}

func (s *service) checkOwnership(ctx context.Context, actor ActorContext, order *models.Order) error {
	if actor.IsStaff {
		return nil
	}
	customer, err := s.customers.FindCustomerByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve customer")
	}
	if order.CustomerID != customer.ID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
	}
	return nil
}

func (s *service) loadOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) reload(ctx context.Context, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromModel(order), nil
}

// canTransition encodes the order lifecycle: the forward chain moves one
// step at a time and cancellation is allowed from any non-terminal state.
func canTransition(from, to enums.OrderStatus) bool {
	if to == enums.OrderStatusCancelled {
		return !from.IsTerminal()
	}
	switch {
	case from == enums.OrderStatusPending && to == enums.OrderStatusConfirmed:
		return true
	case from == enums.OrderStatusConfirmed && to == enums.OrderStatusShipped:
		return true
	case from == enums.OrderStatusShipped && to == enums.OrderStatusDelivered:
		return true
	}
	return false
}

func actorRef(actor ActorContext) *outbox.ActorRef {
	role := "customer"
	if actor.IsStaff {
		role = "staff"
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: role}
}
