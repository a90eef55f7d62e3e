package router

import (
	"context"
	"fmt"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/glowhaus/storefront-backend/internal/analytics/types"
	analyticswriter "github.com/glowhaus/storefront-backend/internal/analytics/writer"
	"github.com/glowhaus/storefront-backend/pkg/logger"
	outboxpayloads "github.com/glowhaus/storefront-backend/pkg/outbox/payloads"
)

type orderPlacedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newOrderPlacedHandler(writer Writer, logg *logger.Logger) Handler {
	return &orderPlacedHandler{writer: writer, logg: logg}
}

func (h *orderPlacedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*outboxpayloads.OrderPlacedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_placed")
	}

	logCtx := h.logg.WithFields(ctx, map[string]any{
		"order_id":     event.OrderID.String(),
		"order_number": event.OrderNumber,
		"lines":        len(event.Lines),
	})

	rows, err := buildOrderSalesRows(envelope, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build order sales rows", err)
		return err
	}
	if err := h.writer.InsertOrderSales(logCtx, rows); err != nil {
		h.logg.Error(logCtx, "failed to insert order sales rows", err)
		return err
	}

	h.logg.Info(logCtx, "order_placed handler inserted order sales rows")
	return nil
}

func buildOrderSalesRows(envelope types.Envelope, event *outboxpayloads.OrderPlacedEvent) ([]types.OrderSalesRow, error) {
	if len(event.Lines) == 0 {
		return nil, fmt.Errorf("order %s has no lines", event.OrderNumber)
	}
	payloadJSON, err := analyticswriter.EncodeJSON(envelope.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload json: %w", err)
	}

	placedAt := event.PlacedAt.UTC()
	if event.PlacedAt.IsZero() {
		placedAt = envelope.OccurredAt.UTC()
	}

	var userID cbigquery.NullString
	if event.UserID != nil {
		userID = cbigquery.NullString{StringVal: event.UserID.String(), Valid: true}
	}

	rows := make([]types.OrderSalesRow, 0, len(event.Lines))
	for i, line := range event.Lines {
		var variant cbigquery.NullString
		if line.VariantLabel != nil && *line.VariantLabel != "" {
			variant = cbigquery.NullString{StringVal: *line.VariantLabel, Valid: true}
		}
		rows = append(rows, types.OrderSalesRow{
			EventID:       envelope.EventID,
			OrderID:       event.OrderID.String(),
			OrderNumber:   event.OrderNumber,
			PlacedAt:      placedAt,
			LineIndex:     int64(i),
			ProductID:     line.ProductID,
			VariantLabel:  variant,
			ProductName:   line.Name,
			Quantity:      int64(line.Quantity),
			UnitPrice:     line.UnitPrice.Rat(),
			LineTotal:     line.LineTotal.Rat(),
			OrderSubtotal: event.Subtotal.Rat(),
			ShippingCost:  event.ShippingCost.Rat(),
			OrderTotal:    event.TotalAmount.Rat(),
			Currency:      event.Currency,
			Region:        event.Region,
			PaymentMethod: string(event.PaymentMethod),
			Status:        string(event.Status),
			IsGuest:       event.UserID == nil,
			UserID:        userID,
			Payload:       payloadJSON,
		})
	}
	return rows, nil
}
