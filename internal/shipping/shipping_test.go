package shipping

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeShippingNilWithoutRegion(t *testing.T) {
	for _, region := range []string{"", "   "} {
		if fee := ComputeShipping(region, decimal.NewFromInt(5000)); fee != nil {
			t.Fatalf("expected nil fee for region %q, got %s", region, fee)
		}
	}
}

func TestComputeShippingMetroThresholdIsStrict(t *testing.T) {
	atThreshold := ComputeShipping("NCR", decimal.NewFromInt(1500))
	if atThreshold == nil || !atThreshold.IsPositive() {
		t.Fatalf("expected positive fee at threshold, got %v", atThreshold)
	}
	if !atThreshold.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected metro flat fee 100, got %s", atThreshold)
	}

	above := ComputeShipping("NCR", decimal.NewFromInt(1501))
	if above == nil || !above.IsZero() {
		t.Fatalf("expected free shipping above threshold, got %v", above)
	}

	fraction := ComputeShipping("ncr", decimal.RequireFromString("1500.01"))
	if fraction == nil || !fraction.IsZero() {
		t.Fatalf("expected free shipping for 1500.01, got %v", fraction)
	}
}

func TestComputeShippingTiers(t *testing.T) {
	cases := []struct {
		region string
		want   int64
		tier   Tier
	}{
		{region: "IV-A", want: 150, tier: TierNear},
		{region: "iii", want: 150, tier: TierNear},
		{region: "CAR", want: 150, tier: TierNear},
		{region: "VII", want: 250, tier: TierFar},
		{region: "BARMM", want: 250, tier: TierFar},
		{region: "atlantis", want: 250, tier: TierFar},
	}
	for _, tc := range cases {
		// near and far tiers ignore the subtotal entirely
		fee := ComputeShipping(tc.region, decimal.NewFromInt(99999))
		if fee == nil || !fee.Equal(decimal.NewFromInt(tc.want)) {
			t.Fatalf("region %s expected %d got %v", tc.region, tc.want, fee)
		}
		if got := TierFor(tc.region); got != tc.tier {
			t.Fatalf("region %s expected tier %s got %s", tc.region, tc.tier, got)
		}
	}
}

func TestComputeShippingIsDeterministic(t *testing.T) {
	subtotal := decimal.RequireFromString("742.50")
	first := ComputeShipping("V", subtotal)
	for i := 0; i < 10; i++ {
		again := ComputeShipping("V", subtotal)
		if again == nil || !again.Equal(*first) {
			t.Fatalf("expected identical output, got %v vs %v", again, first)
		}
	}
}

func TestNewQuote(t *testing.T) {
	q := NewQuote("NCR", decimal.NewFromInt(1200))
	if q.Total == nil || !q.Total.Equal(decimal.NewFromInt(1300)) {
		t.Fatalf("expected total 1300, got %v", q.Total)
	}
	if q.FreeShippingGap == nil || !q.FreeShippingGap.Equal(decimal.NewFromInt(301)) {
		t.Fatalf("expected gap 301, got %v", q.FreeShippingGap)
	}

	empty := NewQuote("", decimal.NewFromInt(1200))
	if empty.Shipping != nil || empty.Total != nil {
		t.Fatalf("expected undetermined quote, got %+v", empty)
	}
	if empty.Tier != TierUndetermined {
		t.Fatalf("expected undetermined tier, got %q", empty.Tier)
	}
}
