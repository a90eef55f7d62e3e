package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/glowhaus/storefront-backend/pkg/logger"
	"github.com/glowhaus/storefront-backend/pkg/redis"
)

// Owner identifies whose cart is addressed: a browser session or a user.
type Owner string

// SessionOwner scopes a cart to an anonymous browser session.
func SessionOwner(sessionID string) Owner {
	return Owner("session:" + strings.TrimSpace(sessionID))
}

// UserOwner scopes a cart to an authenticated user.
func UserOwner(userID uuid.UUID) Owner {
	return Owner("user:" + userID.String())
}

// OwnerFor picks the user cart when authenticated, else the session cart.
func OwnerFor(userID *uuid.UUID, sessionID string) Owner {
	if userID != nil && *userID != uuid.Nil {
		return UserOwner(*userID)
	}
	return SessionOwner(sessionID)
}

// Valid reports whether the owner carries an identifier.
func (o Owner) Valid() bool {
	_, id, ok := strings.Cut(string(o), ":")
	return ok && id != ""
}

// Repository is the persistence boundary for cart lines.
type Repository interface {
	Load(ctx context.Context, owner Owner) ([]Line, error)
	Save(ctx context.Context, owner Owner, lines []Line) error
	Clear(ctx context.Context, owner Owner) error
}

// RedisRepository stores the serialized line list per owner, mirroring the
// browser-local storage the storefront originally relied on.
type RedisRepository struct {
	kv   redis.KeyValueStore
	ttl  time.Duration
	logg *logger.Logger
}

// NewRedisRepository builds a repository over the key-value store.
func NewRedisRepository(kv redis.KeyValueStore, ttl time.Duration, logg *logger.Logger) (*RedisRepository, error) {
	if kv == nil {
		return nil, fmt.Errorf("key value store required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &RedisRepository{kv: kv, ttl: ttl, logg: logg}, nil
}

// Load returns the stored lines. Missing or unparsable data yields an empty
// cart; only transport errors are returned.
func (r *RedisRepository) Load(ctx context.Context, owner Owner) ([]Line, error) {
	key := redis.CartKey(string(owner))
	raw, err := r.kv.Get(ctx, key)
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load cart: %w", err)
	}

	var lines []Line
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		logCtx := r.logg.WithFields(ctx, map[string]any{"key": key, "error": err.Error()})
		r.logg.Warn(logCtx, "cart.corrupt_payload_discarded")
		return nil, nil
	}
	return lines, nil
}

// Save overwrites the stored lines. An empty cart deletes the key.
func (r *RedisRepository) Save(ctx context.Context, owner Owner, lines []Line) error {
	if len(lines) == 0 {
		return r.Clear(ctx, owner)
	}
	payload, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := r.kv.Set(ctx, redis.CartKey(string(owner)), string(payload), r.ttl); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// Clear removes the stored cart.
func (r *RedisRepository) Clear(ctx context.Context, owner Owner) error {
	if err := r.kv.Del(ctx, redis.CartKey(string(owner))); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
