package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartLine persists one line of a server-side cart. VariantLabel is stored as
// an empty string for the standard variant so the unique index covers it.
type CartLine struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Owner        string          `gorm:"column:owner;not null;uniqueIndex:ux_cart_lines_owner_product_variant"`
	ProductID    string          `gorm:"column:product_id;not null;uniqueIndex:ux_cart_lines_owner_product_variant"`
	VariantLabel string          `gorm:"column:variant_label;not null;default:'';uniqueIndex:ux_cart_lines_owner_product_variant"`
	Name         string          `gorm:"column:name;not null"`
	UnitPrice    decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	ImageRef     string          `gorm:"column:image_ref;not null;default:''"`
	Quantity     int             `gorm:"column:quantity;not null"`
	Position     int             `gorm:"column:position;not null;default:0"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
