package square

import (
	"strings"

	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"
)

const defaultCurrency = "PHP"

// PaymentCreateParams is one card charge. SourceID is the token produced by
// the Web Payments SDK in the browser; it never reaches the logs.
type PaymentCreateParams struct {
	AmountCents    int64
	Currency       string
	LocationID     string
	CustomerID     string
	SourceID       string
	IdempotencyKey string
	Note           string
	ReferenceID    string
	BuyerEmail     string
}

// AmountCentsFor converts pesos to centavos, rounding half away from zero.
func AmountCentsFor(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func (p PaymentCreateParams) toSquareRequest(idempotencyKey string) *sq.CreatePaymentRequest {
	req := &sq.CreatePaymentRequest{
		IdempotencyKey:    idempotencyKey,
		SourceID:          p.SourceID,
		LocationID:        optional(p.LocationID),
		CustomerID:        optional(p.CustomerID),
		Note:              optional(p.Note),
		ReferenceID:       optional(p.ReferenceID),
		BuyerEmailAddress: optional(p.BuyerEmail),
	}
	if p.AmountCents > 0 {
		currency := strings.ToUpper(strings.TrimSpace(p.Currency))
		if currency == "" {
			currency = defaultCurrency
		}
		req.AmountMoney = &sq.Money{
			Amount:   ptr(p.AmountCents),
			Currency: ptr(sq.Currency(currency)),
		}
	}
	return req
}

// optional trims value and maps blank to an absent field.
func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return ptr(value)
}

func ptr[T any](v T) *T { return &v }
