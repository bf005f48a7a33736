package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mwangikariuki/shopkit-backend/pkg/enums"
)

// OrderLine is the per-item snapshot carried inside order events.
type OrderLine struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// OrderCreatedEvent is emitted when checkout commits a new order.
type OrderCreatedEvent struct {
	OrderID         uuid.UUID       `json:"order_id"`
	CustomerID      uuid.UUID       `json:"customer_id"`
	Status          string          `json:"status"`
	Total           decimal.Decimal `json:"total"`
	ShippingAddress string          `json:"shipping_address"`
	Items           []OrderLine     `json:"items"`
}

// OrderStatusChangedEvent is emitted on every accepted status transition.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	CustomerID     uuid.UUID         `json:"customer_id"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	Status         enums.OrderStatus `json:"status"`
	ChangedAt      time.Time         `json:"changed_at"`
}

// UserRegisteredEvent triggers the welcome message for new accounts.
type UserRegisteredEvent struct {
	UserID    uuid.UUID          `json:"user_id"`
	Email     string             `json:"email"`
	FirstName string             `json:"first_name"`
	Provider  enums.AuthProvider `json:"provider"`
}
