package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

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
)

// CheckoutRequest carries the only input checkout needs beyond the cart
// itself.
type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address" validate:"required"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type customerResolver interface {
	FindCustomerByUserID(ctx context.Context, userID uuid.UUID) (*models.Customer, error)
}

// Service converts a customer's cart into an immutable order.
type Service interface {
	Checkout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*orders.OrderDTO, error)
}

type service struct {
	tx        txRunner
	carts     cart.Repository
	orders    orders.Repository
	outbox    outboxPublisher
	customers customerResolver
}

// NewService builds a checkout service with the required dependencies.
func NewService(tx txRunner, carts cart.Repository, ordersRepo orders.Repository, outboxSvc outboxPublisher, customers customerResolver) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if customers == nil {
		return nil, fmt.Errorf("customer resolver required")
	}
	return &service{
		tx:        tx,
		carts:     carts,
		orders:    ordersRepo,
		outbox:    outboxSvc,
		customers: customers,
	}, nil
}

// Checkout snapshots the cart into a new pending order and drains the
// cart, all in one transaction. The cart row is locked for the duration
// so two concurrent checkouts of the same cart cannot both succeed: the
// second finds the cart already drained and fails with an empty-cart
// error.
func (s *service) Checkout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*orders.OrderDTO, error) {
	address := strings.TrimSpace(req.ShippingAddress)
	if address == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}

	customer, err := s.customers.FindCustomerByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve customer")
	}

	var orderID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)

		locked, err := carts.LockByCustomer(ctx, customer.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
		}
		if len(locked.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		order, err := buildOrder(customer.ID, address, locked.Items)
		if err != nil {
			return err
		}
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		if err := carts.ClearItems(ctx, locked.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		if err := carts.BumpVersion(ctx, locked.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bump cart version")
		}

		orderID = order.ID
		return s.emitCreated(ctx, tx, userID, order)
	})
	if err != nil {
		return nil, err
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return orders.FromModel(order), nil
}

// buildOrder freezes each cart line at the catalog price in effect right
// now. Lines whose product vanished or went unavailable abort the whole
// checkout.
func buildOrder(customerID uuid.UUID, address string, items []models.CartItem) (*models.Order, error) {
	order := &models.Order{
		CustomerID:      customerID,
		Status:          enums.OrderStatusPending,
		ShippingAddress: address,
		Total:           decimal.Zero,
	}
	for _, item := range items {
		if item.Product == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "a cart item references a product that no longer exists")
		}
		if !item.Product.Available {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("product %q is no longer available", item.Product.Name))
		}
		lineTotal := item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		order.Items = append(order.Items, models.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.Product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   item.Product.Price,
			LineTotal:   lineTotal,
		})
		order.Total = order.Total.Add(lineTotal)
	}
	return order, nil
}

func (s *service) emitCreated(ctx context.Context, tx *gorm.DB, userID uuid.UUID, order *models.Order) error {
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
		Actor:         &outbox.ActorRef{UserID: userID, Role: "customer"},
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
