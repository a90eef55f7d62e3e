package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/glowhaus/storefront-backend/pkg/enums"
)

// OrderLine is one purchased line as published to downstream consumers.
type OrderLine struct {
	ProductID    string          `json:"product_id"`
	VariantLabel *string         `json:"variant_label,omitempty"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

// OrderPlacedEvent is emitted in the same transaction that writes the order.
type OrderPlacedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	UserID        *uuid.UUID          `json:"user_id,omitempty"`
	CustomerEmail string              `json:"customer_email"`
	Region        string              `json:"region"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Status        enums.OrderStatus   `json:"status"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	ShippingCost  decimal.Decimal     `json:"shipping_cost"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	Currency      string              `json:"currency"`
	Lines         []OrderLine         `json:"lines"`
	PlacedAt      time.Time           `json:"placed_at"`
}

// OrderStatusChangedEvent records a fulfillment transition.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
	ChangedAt   time.Time         `json:"changed_at"`
}

// UserRegisteredEvent announces a new shopper account.
type UserRegisteredEvent struct {
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
}
