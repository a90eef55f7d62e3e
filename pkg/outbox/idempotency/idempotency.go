// Package idempotency lets Pub/Sub consumers process each outbox event once.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/glowhaus/storefront-backend/pkg/redis"
)

const (
	stateProcessing = "processing"
	stateDone       = "done"
)

// Claim is the outcome of trying to take an event for processing.
type Claim int

const (
	// ClaimAcquired means the caller owns the event until it completes or
	// releases it, or the lease runs out.
	ClaimAcquired Claim = iota
	// ClaimDone means the event was already processed.
	ClaimDone
	// ClaimInFlight means another delivery holds the lease.
	ClaimInFlight
)

func (c Claim) String() string {
	switch c {
	case ClaimAcquired:
		return "acquired"
	case ClaimDone:
		return "done"
	default:
		return "in_flight"
	}
}

// Store is the subset of the Redis client the manager needs.
type Store interface {
	redis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Manager records consumer progress under
// gh:idempotency:evt:processed:<consumer>:<event_id>. A claim holds a short
// lease; Complete replaces it with a marker that lives for the full TTL.
type Manager struct {
	store Store
	ttl   time.Duration
	lease time.Duration
}

func NewManager(store Store, ttl, lease time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 || lease < 0 {
		return nil, errors.New("ttl and lease must be non-negative")
	}
	if lease == 0 || (ttl > 0 && lease > ttl) {
		lease = ttl
	}
	return &Manager{store: store, ttl: ttl, lease: lease}, nil
}

// Claim tries to take eventID for consumer.
func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (Claim, error) {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return ClaimInFlight, err
	}
	set, err := m.store.SetNX(ctx, key, stateProcessing, m.lease)
	if err != nil {
		return ClaimInFlight, err
	}
	if set {
		return ClaimAcquired, nil
	}
	state, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		// lease expired between SETNX and GET; let the redelivery retry
		return ClaimInFlight, nil
	case err != nil:
		return ClaimInFlight, err
	case state == stateDone:
		return ClaimDone, nil
	default:
		return ClaimInFlight, nil
	}
}

// Complete marks eventID processed for the full TTL.
func (m *Manager) Complete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, key, stateDone, m.ttl)
}

// Release drops a claim so the next delivery can process the event.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) processedKey(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey(fmt.Sprintf("evt:processed:%s", consumer), eventID.String()), nil
}
