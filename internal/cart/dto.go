package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mwangikariuki/shopkit-backend/pkg/db/models"
)

// CartItemDTO is one line of the cart with live pricing attached.
type CartItemDTO struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// CartDTO is the full cart view. Total is computed from current catalog
// prices on every read; nothing here is a committed snapshot.
type CartDTO struct {
	ID         uuid.UUID       `json:"id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Version    int             `json:"version"`
	Items      []CartItemDTO   `json:"items"`
	Total      decimal.Decimal `json:"total"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// AddItemRequest adds quantity of a product, accumulating onto any
// existing line for the same product.
type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gte=1"`
}

// SetQuantityRequest overwrites the quantity of an existing line.
type SetQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

func fromModel(cart *models.Cart) *CartDTO {
	if cart == nil {
		return nil
	}
	dto := &CartDTO{
		ID:         cart.ID,
		CustomerID: cart.CustomerID,
		Version:    cart.Version,
		Items:      []CartItemDTO{},
		Total:      decimal.Zero,
		UpdatedAt:  cart.UpdatedAt,
	}
	for i := range cart.Items {
		item := &cart.Items[i]
		line := CartItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
		if item.Product != nil {
			line.ProductName = item.Product.Name
			line.UnitPrice = item.Product.Price
			line.LineTotal = item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		}
		dto.Items = append(dto.Items, line)
		dto.Total = dto.Total.Add(line.LineTotal)
	}
	return dto
}
