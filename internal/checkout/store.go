package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glowhaus/storefront-backend/pkg/logger"
	"github.com/glowhaus/storefront-backend/pkg/redis"
)

// DraftStore persists drafts per browser session, independent of sign-in.
type DraftStore interface {
	Load(ctx context.Context, sessionID string) (*Draft, error)
	Save(ctx context.Context, sessionID string, draft Draft) error
	Clear(ctx context.Context, sessionID string) error
}

// RedisDraftStore keeps the serialized draft under the session's draft key.
type RedisDraftStore struct {
	kv   redis.KeyValueStore
	ttl  time.Duration
	logg *logger.Logger
}

// NewRedisDraftStore builds a draft store over the key-value store.
func NewRedisDraftStore(kv redis.KeyValueStore, ttl time.Duration, logg *logger.Logger) (*RedisDraftStore, error) {
	if kv == nil {
		return nil, fmt.Errorf("key value store required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &RedisDraftStore{kv: kv, ttl: ttl, logg: logg}, nil
}

// Load returns nil when nothing usable is stored.
func (s *RedisDraftStore) Load(ctx context.Context, sessionID string) (*Draft, error) {
	key := redis.DraftKey(sessionID)
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load draft: %w", err)
	}
	var draft Draft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"key": key, "error": err.Error()})
		s.logg.Warn(logCtx, "checkout.corrupt_draft_discarded")
		return nil, nil
	}
	return &draft, nil
}

func (s *RedisDraftStore) Save(ctx context.Context, sessionID string, draft Draft) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.kv.Set(ctx, redis.DraftKey(sessionID), string(payload), s.ttl); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (s *RedisDraftStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.kv.Del(ctx, redis.DraftKey(sessionID)); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}
