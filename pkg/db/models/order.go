package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/glowhaus/storefront-backend/pkg/enums"
	"github.com/glowhaus/storefront-backend/pkg/types"
)

// Order is the immutable record written at checkout submission. Status is the
// only column advanced afterwards, by fulfillment.
type Order struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderSeq         int64                 `gorm:"column:order_seq;not null;uniqueIndex"`
	OrderNumber      string                `gorm:"column:order_number;not null;uniqueIndex"`
	IdempotencyKey   string                `gorm:"column:idempotency_key;not null;uniqueIndex"`
	UserID           *uuid.UUID            `gorm:"column:user_id;type:uuid;index"`
	SessionID        string                `gorm:"column:session_id;not null"`
	CustomerEmail    string                `gorm:"column:customer_email;not null"`
	CustomerDetails  types.DeliveryAddress `gorm:"column:customer_details;type:jsonb;not null"`
	Items            types.LineItems       `gorm:"column:items;type:jsonb;not null"`
	Subtotal         decimal.Decimal       `gorm:"column:subtotal;type:numeric(12,2);not null"`
	ShippingCost     decimal.Decimal       `gorm:"column:shipping_cost;type:numeric(12,2);not null"`
	TotalAmount      decimal.Decimal       `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency         string                `gorm:"column:currency;not null;default:'PHP'"`
	PaymentMethod    enums.PaymentMethod   `gorm:"column:payment_method;type:text;not null"`
	PaymentProvider  *string               `gorm:"column:payment_provider"`
	PaymentReference *string               `gorm:"column:payment_reference"`
	Status           enums.OrderStatus     `gorm:"column:status;type:text;not null"`
	PaidAt           *time.Time            `gorm:"column:paid_at"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
