package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/glowhaus/storefront-backend/internal/analytics/types"
	"github.com/glowhaus/storefront-backend/pkg/enums"
	"github.com/glowhaus/storefront-backend/pkg/logger"
	"github.com/glowhaus/storefront-backend/pkg/outbox/registry"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by analytics handlers.
type Writer interface {
	InsertOrderSales(ctx context.Context, rows []types.OrderSalesRow) error
}

// Handler receives an envelope plus a decoded event payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

// Router dispatches analytics envelopes to the configured handler per event type.
type Router struct {
	handlers map[enums.OutboxEventType]Handler
	ignored  map[enums.OutboxEventType]struct{}
	decoders *registry.DecoderRegistry
	logg     *logger.Logger
}

// NewRouter wires the default handlers and allows overrides for specific events.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	handlers := map[enums.OutboxEventType]Handler{
		enums.EventOrderPlaced: newOrderPlacedHandler(writer, logg),
	}
	for event, custom := range overrides {
		if _, ok := handlers[event]; ok && custom != nil {
			handlers[event] = custom
		}
	}

	return &Router{
		handlers: handlers,
		decoders: registry.DefaultDecoders(),
		// Fulfillment transitions share the orders topic but carry no sales.
		ignored: map[enums.OutboxEventType]struct{}{
			enums.EventOrderStatusChanged: {},
		},
		logg: logg,
	}, nil
}

// Handle decodes the envelope payload at its version and dispatches it.
// A payload version this build does not know is returned as an ordinary
// error so the message is redelivered once a newer worker is deployed.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	if _, skip := r.ignored[envelope.EventType]; skip {
		r.logg.Debug(ctx, "analytics event ignored")
		return nil
	}
	handler, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	payload, err := r.decoders.Decode(envelope.EventType, envelope.Version, envelope.Payload)
	if err != nil {
		return err
	}
	return handler.Handle(ctx, envelope, payload)
}
