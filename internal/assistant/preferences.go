package assistant

import (
	"context"
	"encoding/json"
	"time"

	"github.com/glowhaus/storefront-backend/pkg/redis"
)

// Profile is the last quiz outcome for a browser session.
type Profile struct {
	SkinType  string    `json:"skinType"`
	Concern   string    `json:"concern"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type PreferenceStore interface {
	Load(ctx context.Context, sessionID string) (*Profile, error)
	Save(ctx context.Context, sessionID string, profile Profile) error
}

// RedisPreferenceStore keeps profiles under the session's preference key.
type RedisPreferenceStore struct {
	kv  redis.KeyValueStore
	ttl time.Duration
}

func NewRedisPreferenceStore(kv redis.KeyValueStore, ttl time.Duration) *RedisPreferenceStore {
	return &RedisPreferenceStore{kv: kv, ttl: ttl}
}

func (s *RedisPreferenceStore) Load(ctx context.Context, sessionID string) (*Profile, error) {
	raw, err := s.kv.Get(ctx, redis.PreferenceKey(sessionID))
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, err
	}
	var profile Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *RedisPreferenceStore) Save(ctx context.Context, sessionID string, profile Profile) error {
	payload, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, redis.PreferenceKey(sessionID), string(payload), s.ttl)
}

// recall and remember never fail a turn; the profile is a convenience.
func (e *Engine) recall(ctx context.Context, sessionID string) *Profile {
	if e.prefs == nil || sessionID == "" {
		return nil
	}
	profile, err := e.prefs.Load(ctx, sessionID)
	if err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "assistant.profile_load_failed")
		return nil
	}
	if profile == nil || profile.SkinType == "" {
		return nil
	}
	return profile
}

func (e *Engine) remember(ctx context.Context, sessionID string, profile Profile) {
	if e.prefs == nil || sessionID == "" {
		return
	}
	profile.UpdatedAt = time.Now().UTC()
	if err := e.prefs.Save(ctx, sessionID, profile); err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "assistant.profile_save_failed")
	}
}
