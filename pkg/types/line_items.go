package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// LineItem is the immutable snapshot of a cart line stored on an order.
type LineItem struct {
	ProductID    string          `json:"productId"`
	VariantLabel *string         `json:"variantLabel,omitempty"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	ImageRef     string          `json:"imageRef"`
	Quantity     int             `json:"quantity"`
}

// LineTotal returns unit price times quantity.
func (l LineItem) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LineItems is persisted as a JSONB array.
type LineItems []LineItem

// Subtotal sums every line total.
func (l LineItems) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range l {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Count sums quantities.
func (l LineItems) Count() int {
	count := 0
	for _, item := range l {
		count += item.Quantity
	}
	return count
}

// Value marshals the items into JSON.
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	buf, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes a JSON array column.
func (l *LineItems) Scan(value interface{}) error {
	if value == nil {
		*l = LineItems{}
		return nil
	}
	raw, ok := toBytes(value)
	if !ok {
		return fmt.Errorf("line items: unsupported scan type %T", value)
	}
	var decoded LineItems
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("line items: %w", err)
	}
	*l = decoded
	return nil
}
