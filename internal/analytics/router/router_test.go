package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowhaus/storefront-backend/internal/analytics/types"
	"github.com/glowhaus/storefront-backend/pkg/enums"
	"github.com/glowhaus/storefront-backend/pkg/logger"
	"github.com/glowhaus/storefront-backend/pkg/outbox/payloads"
	"github.com/glowhaus/storefront-backend/pkg/outbox/registry"
)

func TestRouterUnsupportedEvent(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	env := types.Envelope{
		EventType: enums.OutboxEventType("coupon_redeemed"),
		Payload:   []byte(`{"foo":"bar"}`),
	}
	err := router.Handle(context.Background(), env)
	require.ErrorIs(t, err, ErrUnsupportedEventType)
}

func TestRouterIgnoresStatusChanges(t *testing.T) {
	router, writer := newTestRouter(t, nil)
	env := types.Envelope{
		EventType: enums.EventOrderStatusChanged,
		Payload:   []byte(`{"to":"shipped"}`),
	}
	require.NoError(t, router.Handle(context.Background(), env))
	assert.Empty(t, writer.inserted)
}

func TestRouterRoutesToOverride(t *testing.T) {
	handler := &stubHandler{}
	router, _ := newTestRouter(t, map[enums.OutboxEventType]Handler{
		enums.EventOrderPlaced: handler,
	})
	data, _ := json.Marshal(payloads.OrderPlacedEvent{OrderID: uuid.New(), OrderNumber: "ORD-00003"})
	env := types.Envelope{EventType: enums.EventOrderPlaced, Payload: data}

	require.NoError(t, router.Handle(context.Background(), env))
	assert.True(t, handler.called)
}

func TestRouterRejectsEmptyPayload(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	err := router.Handle(context.Background(), types.Envelope{EventType: enums.EventOrderPlaced})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnsupportedEventType))
}

func TestRouterLeavesUnknownVersionForRedelivery(t *testing.T) {
	router, writer := newTestRouter(t, nil)
	data, _ := json.Marshal(payloads.OrderPlacedEvent{OrderID: uuid.New(), OrderNumber: "ORD-00004"})
	err := router.Handle(context.Background(), types.Envelope{EventType: enums.EventOrderPlaced, Version: 3, Payload: data})

	require.ErrorIs(t, err, registry.ErrUnknownVersion)
	assert.False(t, errors.Is(err, ErrUnsupportedEventType))
	assert.Empty(t, writer.inserted)
}

func TestOrderPlacedWritesOneRowPerLine(t *testing.T) {
	router, writer := newTestRouter(t, nil)
	userID := uuid.New()
	shade := "Rosewood"
	event := payloads.OrderPlacedEvent{
		OrderID:       uuid.New(),
		OrderNumber:   "ORD-00012",
		UserID:        &userID,
		CustomerEmail: "ana@example.com",
		Region:        "NCR",
		PaymentMethod: enums.PaymentMethodCard,
		Status:        enums.OrderStatusPaid,
		Subtotal:      decimal.RequireFromString("1197.00"),
		ShippingCost:  decimal.Zero,
		TotalAmount:   decimal.RequireFromString("1197.00"),
		Currency:      "PHP",
		Lines: []payloads.OrderLine{
			{ProductID: "lip-velvet", VariantLabel: &shade, Name: "Velvet Lipstick", UnitPrice: decimal.NewFromInt(399), Quantity: 2, LineTotal: decimal.NewFromInt(798)},
			{ProductID: "blush-peach", Name: "Peach Blush", UnitPrice: decimal.NewFromInt(399), Quantity: 1, LineTotal: decimal.NewFromInt(399)},
		},
		PlacedAt: time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
	}
	data, err := json.Marshal(event)
	require.NoError(t, err)

	env := types.Envelope{
		EventID:    "evt-42",
		EventType:  enums.EventOrderPlaced,
		OccurredAt: time.Now(),
		Payload:    data,
	}
	require.NoError(t, router.Handle(context.Background(), env))

	require.Len(t, writer.inserted, 2)
	first, second := writer.inserted[0], writer.inserted[1]
	assert.Equal(t, "evt-42:0", first.InsertID())
	assert.Equal(t, "evt-42:1", second.InsertID())
	assert.Equal(t, "ORD-00012", first.OrderNumber)
	assert.Equal(t, event.PlacedAt, first.PlacedAt)
	assert.True(t, first.VariantLabel.Valid)
	assert.Equal(t, "Rosewood", first.VariantLabel.StringVal)
	assert.False(t, second.VariantLabel.Valid)
	assert.Equal(t, 0, first.LineTotal.Cmp(big.NewRat(798, 1)))
	assert.Equal(t, 0, second.OrderTotal.Cmp(big.NewRat(1197, 1)))
	assert.Equal(t, "card", first.PaymentMethod)
	assert.False(t, first.IsGuest)
	assert.Equal(t, userID.String(), first.UserID.StringVal)
}

func TestOrderPlacedGuestFallsBackToOccurredAt(t *testing.T) {
	occurred := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	rows, err := buildOrderSalesRows(types.Envelope{EventID: "evt-7", OccurredAt: occurred}, &payloads.OrderPlacedEvent{
		OrderNumber: "ORD-00013",
		Lines:       []payloads.OrderLine{{ProductID: "mascara", Quantity: 1}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsGuest)
	assert.False(t, rows[0].UserID.Valid)
	assert.Equal(t, occurred, rows[0].PlacedAt)
}

func TestOrderPlacedWithoutLinesFails(t *testing.T) {
	_, err := buildOrderSalesRows(types.Envelope{}, &payloads.OrderPlacedEvent{OrderNumber: "ORD-00014"})
	require.Error(t, err)
}

func TestOrderPlacedPropagatesWriterError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("bigquery unavailable")}
	router, err := NewRouter(writer, testLogger(), nil)
	require.NoError(t, err)
	data, _ := json.Marshal(payloads.OrderPlacedEvent{
		OrderNumber: "ORD-00015",
		Lines:       []payloads.OrderLine{{ProductID: "toner", Quantity: 1}},
	})
	err = router.Handle(context.Background(), types.Envelope{EventID: "evt-9", EventType: enums.EventOrderPlaced, Payload: data})
	require.Error(t, err)
}

func newTestRouter(t *testing.T, overrides map[enums.OutboxEventType]Handler) (*Router, *fakeWriter) {
	t.Helper()
	writer := &fakeWriter{}
	router, err := NewRouter(writer, testLogger(), overrides)
	if err != nil {
		t.Fatalf("construct router: %v", err)
	}
	return router, writer
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
}

type stubHandler struct {
	called bool
}

func (s *stubHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	s.called = true
	return nil
}
