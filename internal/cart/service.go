package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mwangikariuki/shopkit-backend/pkg/db/models"
	pkgerrors "github.com/mwangikariuki/shopkit-backend/pkg/errors"
)

// Service exposes the cart operations for the authenticated customer.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	AddItem(ctx context.Context, userID uuid.UUID, req AddItemRequest) (*CartDTO, error)
	SetQuantity(ctx context.Context, userID uuid.UUID, itemID uuid.UUID, req SetQuantityRequest) (*CartDTO, error)
	RemoveItem(ctx context.Context, userID uuid.UUID, itemID uuid.UUID) (*CartDTO, error)
}

type productFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type customerEnsurer interface {
	EnsureCustomer(ctx context.Context, userID uuid.UUID) (*models.Customer, error)
}

type service struct {
	repo      Repository
	products  productFinder
	customers customerEnsurer
}

// NewService builds the cart service with the required dependencies.
func NewService(repo Repository, products productFinder, customers customerEnsurer) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository is required")
	}
	if products == nil {
		return nil, fmt.Errorf("product finder is required")
	}
	if customers == nil {
		return nil, fmt.Errorf("customer ensurer is required")
	}
	return &service{repo: repo, products: products, customers: customers}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return fromModel(cart), nil
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, req AddItemRequest) (*CartDTO, error) {
	if req.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	product, err := s.products.FindByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.Available {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}

	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindItem(ctx, cart.ID, product.ID)
	switch {
	case err == nil:
		if err := s.repo.UpdateItemQuantity(ctx, existing.ID, existing.Quantity+req.Quantity); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update quantity")
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		item := &models.CartItem{
			CartID:    cart.ID,
			ProductID: product.ID,
			Quantity:  req.Quantity,
		}
		if err := s.repo.CreateItem(ctx, item); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add item")
		}
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing item")
	}

	return s.Get(ctx, userID)
}

func (s *service) SetQuantity(ctx context.Context, userID uuid.UUID, itemID uuid.UUID, req SetQuantityRequest) (*CartDTO, error) {
	if req.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	item, err := s.ownedItem(ctx, cart.ID, itemID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateItemQuantity(ctx, item.ID, req.Quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set quantity")
	}
	return s.Get(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID uuid.UUID, itemID uuid.UUID) (*CartDTO, error) {
	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	item, err := s.ownedItem(ctx, cart.ID, itemID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.DeleteItem(ctx, item.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove item")
	}
	return s.Get(ctx, userID)
}

func (s *service) loadCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	customer, err := s.customers.EnsureCustomer(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve customer")
	}
	cart, err := s.repo.GetOrCreate(ctx, customer.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func (s *service) ownedItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	item, err := s.repo.FindItemByID(ctx, cartID, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	return item, nil
}
