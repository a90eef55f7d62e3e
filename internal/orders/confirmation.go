package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glowhaus/storefront-backend/pkg/logger"
	"github.com/glowhaus/storefront-backend/pkg/redis"
)

// RedisConfirmationStore keeps the placed order snapshot for the confirmation
// page, keyed by session and order number.
type RedisConfirmationStore struct {
	kv   redis.KeyValueStore
	ttl  time.Duration
	logg *logger.Logger
}

func NewRedisConfirmationStore(kv redis.KeyValueStore, ttl time.Duration, logg *logger.Logger) (*RedisConfirmationStore, error) {
	if kv == nil {
		return nil, fmt.Errorf("key value store required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &RedisConfirmationStore{kv: kv, ttl: ttl, logg: logg}, nil
}

func (s *RedisConfirmationStore) Save(ctx context.Context, sessionID string, view OrderView) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("encode confirmation: %w", err)
	}
	if err := s.kv.Set(ctx, redis.ConfirmationKey(sessionID, view.OrderNumber), string(payload), s.ttl); err != nil {
		return fmt.Errorf("save confirmation: %w", err)
	}
	return nil
}

// Load returns nil when the snapshot expired or cannot be decoded.
func (s *RedisConfirmationStore) Load(ctx context.Context, sessionID, orderNumber string) (*OrderView, error) {
	key := redis.ConfirmationKey(sessionID, orderNumber)
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load confirmation: %w", err)
	}
	var view OrderView
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"key": key, "error": err.Error()})
		s.logg.Warn(logCtx, "orders.corrupt_confirmation_discarded")
		return nil, nil
	}
	return &view, nil
}
