package worker

import (
	"context"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/glowhaus/storefront-backend/internal/analytics/router"
	"github.com/glowhaus/storefront-backend/internal/analytics/types"
	"github.com/glowhaus/storefront-backend/pkg/logger"
	"github.com/glowhaus/storefront-backend/pkg/metrics"
	"github.com/glowhaus/storefront-backend/pkg/outbox/idempotency"
)

const consumerName = "order-sales-writer"

// Handler writes one decoded event.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type HandlerFunc func(ctx context.Context, envelope types.Envelope) error

func (fn HandlerFunc) Handle(ctx context.Context, envelope types.Envelope) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, envelope)
}

// receiver is satisfied by *gcppubsub.Subscriber.
type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type claimStore interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (idempotency.Claim, error)
	Complete(ctx context.Context, consumer string, eventID uuid.UUID) error
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type outcomeRecorder interface {
	ObserveBatch(worker string, elapsed time.Duration)
	IncOutcome(worker, outcome string)
}

// Service feeds order events from the analytics subscription into the
// handler, at most once per event id.
type Service struct {
	subscription receiver
	handler      Handler
	claims       claimStore
	metrics      outcomeRecorder
	logg         *logger.Logger
}

// NewService wires the consumer. metrics may be nil.
func NewService(subscription receiver, handler Handler, claims claimStore, metrics outcomeRecorder, logg *logger.Logger) (*Service, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case claims == nil:
		return nil, errors.New("idempotency manager is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{
		subscription: subscription,
		handler:      handler,
		claims:       claims,
		metrics:      metrics,
		logg:         logg,
	}, nil
}

// Run blocks until ctx is cancelled or the subscription fails.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		started := time.Now()
		outcome := s.process(msgCtx, msg)
		s.record(time.Since(started), outcome)
		if outcome == metrics.OutcomeRedelivered {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// process returns the worker outcome for msg. Only OutcomeRedelivered asks
// Pub/Sub for another delivery; everything else is acked.
func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) string {
	ctx = s.logg.WithField(ctx, "message_id", msg.ID)

	env, err := decodeMessage(msg)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "analytics.invalid_envelope")
		return metrics.OutcomeDropped
	}
	ctx = s.logg.WithFields(ctx, envelopeFields(env))

	eventID, err := uuid.Parse(env.EventID)
	if err != nil {
		s.logg.Warn(ctx, "analytics.invalid_event_id")
		return metrics.OutcomeDropped
	}

	claim, err := s.claims.Claim(ctx, consumerName, eventID)
	if err != nil {
		s.logg.Error(ctx, "analytics.claim_failed", err)
		return metrics.OutcomeRedelivered
	}
	switch claim {
	case idempotency.ClaimDone:
		s.logg.Info(ctx, "analytics.duplicate")
		return metrics.OutcomeDuplicate
	case idempotency.ClaimInFlight:
		s.logg.Info(ctx, "analytics.in_flight")
		return metrics.OutcomeRedelivered
	}

	err = s.handler.Handle(ctx, env)
	switch {
	case errors.Is(err, router.ErrUnsupportedEventType):
		s.logg.Warn(ctx, "analytics.unsupported_event")
		s.complete(ctx, eventID)
		return metrics.OutcomeDropped
	case err != nil:
		s.logg.Error(ctx, "analytics.handler_failed", err)
		if relErr := s.claims.Release(ctx, consumerName, eventID); relErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", relErr.Error()), "analytics.release_failed")
		}
		return metrics.OutcomeRedelivered
	}

	s.complete(ctx, eventID)
	s.logg.Info(ctx, "analytics.processed")
	return metrics.OutcomeProcessed
}

// complete failures are logged only: the rows are stored, and insert ids
// make a later duplicate write harmless.
func (s *Service) complete(ctx context.Context, eventID uuid.UUID) {
	if err := s.claims.Complete(ctx, consumerName, eventID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "analytics.complete_failed")
	}
}

func (s *Service) record(elapsed time.Duration, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveBatch(consumerName, elapsed)
	s.metrics.IncOutcome(consumerName, outcome)
}
