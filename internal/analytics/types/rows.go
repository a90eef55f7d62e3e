package types

import (
	"math/big"
	"strconv"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// OrderSalesRow mirrors the order_sales BigQuery schema. One row is written
// per purchased line; order-level amounts repeat on every line of the order.
type OrderSalesRow struct {
	EventID       string               `bigquery:"event_id"`
	OrderID       string               `bigquery:"order_id"`
	OrderNumber   string               `bigquery:"order_number"`
	PlacedAt      time.Time            `bigquery:"placed_at"`
	LineIndex     int64                `bigquery:"line_index"`
	ProductID     string               `bigquery:"product_id"`
	VariantLabel  cbigquery.NullString `bigquery:"variant_label"`
	ProductName   string               `bigquery:"product_name"`
	Quantity      int64                `bigquery:"quantity"`
	UnitPrice     *big.Rat             `bigquery:"unit_price"`
	LineTotal     *big.Rat             `bigquery:"line_total"`
	OrderSubtotal *big.Rat             `bigquery:"order_subtotal"`
	ShippingCost  *big.Rat             `bigquery:"shipping_cost"`
	OrderTotal    *big.Rat             `bigquery:"order_total"`
	Currency      string               `bigquery:"currency"`
	Region        string               `bigquery:"region"`
	PaymentMethod string               `bigquery:"payment_method"`
	Status        string               `bigquery:"status"`
	IsGuest       bool                 `bigquery:"is_guest"`
	UserID        cbigquery.NullString `bigquery:"user_id"`
	Payload       cbigquery.NullJSON   `bigquery:"payload"`
}

// InsertID lets BigQuery drop duplicate streaming inserts of the same line.
func (r OrderSalesRow) InsertID() string {
	return r.EventID + ":" + strconv.FormatInt(r.LineIndex, 10)
}
