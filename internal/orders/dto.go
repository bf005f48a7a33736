package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mwangikariuki/shopkit-backend/pkg/db/models"
	"github.com/mwangikariuki/shopkit-backend/pkg/enums"
)

// OrderItemDTO is one frozen line of an order.
type OrderItemDTO struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// OrderDTO is the transport shape for an order.
type OrderDTO struct {
	ID              uuid.UUID         `json:"id"`
	CustomerID      uuid.UUID         `json:"customer_id"`
	Status          enums.OrderStatus `json:"status"`
	ShippingAddress string            `json:"shipping_address"`
	Total           decimal.Decimal   `json:"total"`
	Items           []OrderItemDTO    `json:"items"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// OrderList is one page of orders plus the cursor for the next.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// CreateOrderItemRequest is one requested line for a staff-created order.
type CreateOrderItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gte=1"`
}

// CreateOrderRequest is the staff payload for creating an order directly,
// bypassing a cart. Prices are still snapshotted from the catalog.
type CreateOrderRequest struct {
	CustomerID      uuid.UUID                `json:"customer_id" validate:"required"`
	ShippingAddress string                   `json:"shipping_address" validate:"required"`
	Items           []CreateOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// UpdateStatusRequest carries the requested transition target.
type UpdateStatusRequest struct {
	Status enums.OrderStatus `json:"status" validate:"required"`
}

// ActorContext identifies the caller for ownership checks.
type ActorContext struct {
	UserID  uuid.UUID
	IsStaff bool
}

// FromModel maps a persisted order to its transport shape.
func FromModel(order *models.Order) *OrderDTO {
	if order == nil {
		return nil
	}
	dto := &OrderDTO{
		ID:              order.ID,
		CustomerID:      order.CustomerID,
		Status:          order.Status,
		ShippingAddress: order.ShippingAddress,
		Total:           order.Total,
		Items:           make([]OrderItemDTO, 0, len(order.Items)),
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
		})
	}
	return dto
}
