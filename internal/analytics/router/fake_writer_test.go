package router

import (
	"context"

	"github.com/glowhaus/storefront-backend/internal/analytics/types"
)

type fakeWriter struct {
	inserted []types.OrderSalesRow
	err      error
}

func (f *fakeWriter) InsertOrderSales(_ context.Context, rows []types.OrderSalesRow) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, rows...)
	return nil
}
