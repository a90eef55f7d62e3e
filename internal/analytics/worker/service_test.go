package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowhaus/storefront-backend/internal/analytics/router"
	"github.com/glowhaus/storefront-backend/internal/analytics/types"
	"github.com/glowhaus/storefront-backend/pkg/enums"
	"github.com/glowhaus/storefront-backend/pkg/logger"
	"github.com/glowhaus/storefront-backend/pkg/metrics"
	"github.com/glowhaus/storefront-backend/pkg/outbox"
	"github.com/glowhaus/storefront-backend/pkg/outbox/idempotency"
)

func TestDecodeMessagePrefersEnvelope(t *testing.T) {
	eventID := uuid.NewString()
	placed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := orderMessage(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: placed,
		Data:       json.RawMessage(`{"order_number":"ORD-00001"}`),
	}, map[string]string{"event_id": uuid.NewString()})

	env, err := decodeMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, eventID, env.EventID)
	assert.Equal(t, enums.EventOrderPlaced, env.EventType)
	assert.Equal(t, enums.AggregateOrder, env.AggregateType)
	assert.Equal(t, "ord-1", env.AggregateID)
	assert.Equal(t, placed, env.OccurredAt)
	assert.Equal(t, 1, env.Version)
	assert.JSONEq(t, `{"order_number":"ORD-00001"}`, string(env.Payload))
}

func TestDecodeMessageFallsBackToAttributes(t *testing.T) {
	eventID := uuid.NewString()
	msg := orderMessage(outbox.PayloadEnvelope{Data: json.RawMessage(`{}`)}, map[string]string{
		"event_id":   eventID,
		"created_at": "2026-02-10T08:30:00Z",
	})

	env, err := decodeMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, eventID, env.EventID)
	assert.Equal(t, time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC), env.OccurredAt)
}

func TestDecodeMessageRejects(t *testing.T) {
	cases := map[string]*gcppubsub.Message{
		"bad json":       {Data: []byte("not json")},
		"unknown type":   orderMessage(outbox.PayloadEnvelope{EventID: uuid.NewString()}, map[string]string{"event_type": "cart_abandoned"}),
		"no aggregate":   orderMessage(outbox.PayloadEnvelope{EventID: uuid.NewString()}, map[string]string{"aggregate_id": " "}),
		"no event id":    orderMessage(outbox.PayloadEnvelope{}, nil),
		"bad aggregates": orderMessage(outbox.PayloadEnvelope{EventID: uuid.NewString()}, map[string]string{"aggregate_type": "basket"}),
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decodeMessage(msg)
			assert.Error(t, err)
		})
	}
	_, err := decodeMessage(orderMessage(outbox.PayloadEnvelope{}, nil))
	assert.ErrorIs(t, err, errMissingEventID)
}

func TestProcessOutcomes(t *testing.T) {
	cases := []struct {
		name       string
		claim      idempotency.Claim
		claimErr   error
		handlerErr error
		want       string
		handled    bool
		completed  int
		released   int
	}{
		{name: "processed", want: metrics.OutcomeProcessed, handled: true, completed: 1},
		{name: "duplicate", claim: idempotency.ClaimDone, want: metrics.OutcomeDuplicate},
		{name: "in flight", claim: idempotency.ClaimInFlight, want: metrics.OutcomeRedelivered},
		{name: "claim store down", claimErr: errors.New("redis down"), want: metrics.OutcomeRedelivered},
		{name: "handler failure", handlerErr: errors.New("bigquery 503"), want: metrics.OutcomeRedelivered, handled: true, released: 1},
		{name: "unsupported", handlerErr: router.ErrUnsupportedEventType, want: metrics.OutcomeDropped, handled: true, completed: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			claims := &stubClaims{claim: tc.claim, claimErr: tc.claimErr}
			handler := &stubHandler{err: tc.handlerErr}
			svc := newTestService(t, handler, claims)

			got := svc.process(context.Background(), validMessage())
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.handled, handler.called)
			assert.Len(t, claims.claimed, 1)
			assert.Len(t, claims.completed, tc.completed)
			assert.Len(t, claims.released, tc.released)
		})
	}
}

func TestProcessDropsUndecodableMessage(t *testing.T) {
	claims := &stubClaims{}
	handler := &stubHandler{}
	svc := newTestService(t, handler, claims)

	assert.Equal(t, metrics.OutcomeDropped, svc.process(context.Background(), &gcppubsub.Message{Data: []byte("{")}))

	nonUUID := orderMessage(outbox.PayloadEnvelope{EventID: "evt-1"}, nil)
	assert.Equal(t, metrics.OutcomeDropped, svc.process(context.Background(), nonUUID))

	assert.False(t, handler.called)
	assert.Empty(t, claims.claimed)
}

func TestProcessPassesEnvelopeToHandler(t *testing.T) {
	handler := &stubHandler{}
	svc := newTestService(t, handler, &stubClaims{})
	msg := validMessage()

	svc.process(context.Background(), msg)
	require.True(t, handler.called)
	assert.Equal(t, "ord-1", handler.envelope.AggregateID)
	assert.Equal(t, enums.EventOrderPlaced, handler.envelope.EventType)
}

func TestRecordOutcome(t *testing.T) {
	recorder := &stubRecorder{outcomes: map[string]int{}}
	svc := &Service{metrics: recorder}

	svc.record(time.Millisecond, metrics.OutcomeProcessed)
	svc.record(time.Millisecond, metrics.OutcomeRedelivered)
	assert.Equal(t, 2, recorder.observed)
	assert.Equal(t, map[string]int{metrics.OutcomeProcessed: 1, metrics.OutcomeRedelivered: 1}, recorder.outcomes)

	assert.NotPanics(t, func() { (&Service{}).record(time.Millisecond, metrics.OutcomeDropped) })
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "analytics-test", Output: io.Discard})
	_, err := NewService(nil, &stubHandler{}, &stubClaims{}, nil, logg)
	assert.Error(t, err)

	svc, err := NewService(stubReceiver{}, &stubHandler{}, &stubClaims{}, nil, logg)
	require.NoError(t, err)
	assert.NoError(t, svc.Run(context.Background()))
}

func validMessage() *gcppubsub.Message {
	return orderMessage(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{"order_number":"ORD-00007"}`),
	}, nil)
}

// orderMessage builds an order_placed message; overrides replace or add
// attributes.
func orderMessage(payload outbox.PayloadEnvelope, overrides map[string]string) *gcppubsub.Message {
	attrs := map[string]string{
		"event_type":     "order_placed",
		"aggregate_type": "order",
		"aggregate_id":   "ord-1",
	}
	for k, v := range overrides {
		attrs[k] = v
	}
	data, _ := json.Marshal(payload)
	return &gcppubsub.Message{ID: "msg-1", Data: data, Attributes: attrs}
}

func newTestService(t *testing.T, handler Handler, claims claimStore) *Service {
	t.Helper()
	return &Service{
		handler: handler,
		claims:  claims,
		logg:    logger.New(logger.Options{ServiceName: "analytics-test", Output: io.Discard}),
	}
}

type stubReceiver struct{}

func (stubReceiver) Receive(context.Context, func(context.Context, *gcppubsub.Message)) error {
	return nil
}

type stubHandler struct {
	called   bool
	envelope types.Envelope
	err      error
}

func (h *stubHandler) Handle(_ context.Context, envelope types.Envelope) error {
	h.called = true
	h.envelope = envelope
	return h.err
}

type stubClaims struct {
	claim     idempotency.Claim
	claimErr  error
	claimed   []uuid.UUID
	completed []uuid.UUID
	released  []uuid.UUID
}

func (s *stubClaims) Claim(_ context.Context, _ string, eventID uuid.UUID) (idempotency.Claim, error) {
	s.claimed = append(s.claimed, eventID)
	return s.claim, s.claimErr
}

func (s *stubClaims) Complete(_ context.Context, _ string, eventID uuid.UUID) error {
	s.completed = append(s.completed, eventID)
	return nil
}

func (s *stubClaims) Release(_ context.Context, _ string, eventID uuid.UUID) error {
	s.released = append(s.released, eventID)
	return nil
}

type stubRecorder struct {
	observed int
	outcomes map[string]int
}

func (r *stubRecorder) ObserveBatch(string, time.Duration) { r.observed++ }

func (r *stubRecorder) IncOutcome(_, outcome string) { r.outcomes[outcome]++ }
