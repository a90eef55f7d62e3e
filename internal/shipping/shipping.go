// Package shipping prices delivery by destination region.
package shipping

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Tier groups regions that share a flat shipping rate.
type Tier string

const (
	TierUndetermined Tier = ""
	TierMetro        Tier = "metro"
	TierNear         Tier = "near"
	TierFar          Tier = "far"
)

// MetroRegion is the only region eligible for free shipping.
const MetroRegion = "NCR"

var (
	// FreeShippingThreshold must be strictly exceeded for free metro shipping.
	FreeShippingThreshold = decimal.NewFromInt(1500)

	metroFee = decimal.NewFromInt(100)
	nearFee  = decimal.NewFromInt(150)
	farFee   = decimal.NewFromInt(250)
)

// nearRegions are the Luzon regions outside Metro Manila.
var nearRegions = map[string]struct{}{
	"CAR":  {},
	"I":    {},
	"II":   {},
	"III":  {},
	"IV-A": {},
	"IV-B": {},
	"V":    {},
}

// TierFor classifies a region code. An empty code is undetermined.
func TierFor(region string) Tier {
	code := normalize(region)
	switch {
	case code == "":
		return TierUndetermined
	case code == MetroRegion:
		return TierMetro
	}
	if _, ok := nearRegions[code]; ok {
		return TierNear
	}
	return TierFar
}

// ComputeShipping returns the shipping fee for a region and cart subtotal, or
// nil when no region has been chosen yet.
func ComputeShipping(region string, subtotal decimal.Decimal) *decimal.Decimal {
	var fee decimal.Decimal
	switch TierFor(region) {
	case TierUndetermined:
		return nil
	case TierMetro:
		if subtotal.GreaterThan(FreeShippingThreshold) {
			fee = decimal.Zero
		} else {
			fee = metroFee
		}
	case TierNear:
		fee = nearFee
	default:
		fee = farFee
	}
	return &fee
}

// Quote bundles the shipping figures shown next to the cart.
type Quote struct {
	Region   string           `json:"region"`
	Tier     Tier             `json:"tier"`
	Subtotal decimal.Decimal  `json:"subtotal"`
	Shipping *decimal.Decimal `json:"shipping"`
	Total    *decimal.Decimal `json:"total"`
	// FreeShippingGap is how much more a metro cart needs to ship free.
	FreeShippingGap *decimal.Decimal `json:"freeShippingGap,omitempty"`
}

// NewQuote computes a Quote. Shipping and Total stay nil until a region is set.
func NewQuote(region string, subtotal decimal.Decimal) Quote {
	q := Quote{
		Region:   normalize(region),
		Tier:     TierFor(region),
		Subtotal: subtotal,
		Shipping: ComputeShipping(region, subtotal),
	}
	if q.Shipping != nil {
		total := subtotal.Add(*q.Shipping)
		q.Total = &total
	}
	if q.Tier == TierMetro && !subtotal.GreaterThan(FreeShippingThreshold) {
		gap := FreeShippingThreshold.Sub(subtotal).Add(decimal.NewFromInt(1))
		q.FreeShippingGap = &gap
	}
	return q
}

func normalize(region string) string {
	return strings.ToUpper(strings.TrimSpace(region))
}
