package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/glowhaus/storefront-backend/pkg/config"
	"github.com/glowhaus/storefront-backend/pkg/redis"
)

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	errAccessIDRequired    = errors.New("access id is required")
)

type store interface {
	redis.KeyValueStore
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker is what the auth middleware needs to reject tokens
// whose session was revoked.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// entry is stored per access id. The refresh token itself is never kept,
// only its sha256.
type entry struct {
	UserID   uuid.UUID `json:"user_id"`
	Digest   []byte    `json:"token_hash"`
	IssuedAt time.Time `json:"issued_at"`
}

// Manager keeps one refresh session per access token. Refreshing rotates
// both: the old access id stops working and a new pair is issued.
type Manager struct {
	kv  store
	ttl time.Duration
	now func() time.Time
}

func NewManager(client *redis.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	refreshTTL := cfg.RefreshTokenTTL()
	accessTTL := time.Duration(cfg.ExpirationMinutes) * time.Minute
	switch {
	case refreshTTL <= 0:
		return nil, errors.New("refresh token ttl must be positive")
	case refreshTTL <= accessTTL:
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", refreshTTL, accessTTL)
	}
	return newManager(client, refreshTTL), nil
}

func newManager(kv store, ttl time.Duration) *Manager {
	return &Manager{kv: kv, ttl: ttl, now: time.Now}
}

// NewAccessID returns a fresh jti.
func NewAccessID() string {
	return uuid.NewString()
}

// Generate opens a session for userID under accessID and returns the
// opaque refresh token.
func (m *Manager) Generate(ctx context.Context, userID uuid.UUID, accessID string) (string, error) {
	if blank(accessID) {
		return "", errAccessIDRequired
	}
	if userID == uuid.Nil {
		return "", errors.New("user id is required")
	}
	return m.open(ctx, accessID, userID)
}

// Rotate trades a refresh token for a new access id and refresh token. The
// old session is closed only after the new one is stored, so a failed
// write leaves the shopper signed in.
func (m *Manager) Rotate(ctx context.Context, oldAccessID string, userID uuid.UUID, refreshToken string) (string, string, error) {
	if blank(oldAccessID) || blank(refreshToken) {
		return "", "", ErrInvalidRefreshToken
	}
	current, err := m.lookup(ctx, oldAccessID)
	if err != nil {
		return "", "", err
	}
	if current == nil || current.UserID != userID || !current.matches(refreshToken) {
		return "", "", ErrInvalidRefreshToken
	}

	nextAccessID := NewAccessID()
	nextToken, err := m.open(ctx, nextAccessID, userID)
	if err != nil {
		return "", "", err
	}
	if err := m.kv.Del(ctx, m.kv.AccessSessionKey(oldAccessID)); err != nil {
		return "", "", fmt.Errorf("close session: %w", err)
	}
	return nextAccessID, nextToken, nil
}

// Revoke closes the session; the access token stops working at once.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if blank(accessID) {
		return errAccessIDRequired
	}
	return m.kv.Del(ctx, m.kv.AccessSessionKey(accessID))
}

func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if blank(accessID) {
		return false, errAccessIDRequired
	}
	_, err := m.kv.Get(ctx, m.kv.AccessSessionKey(accessID))
	switch {
	case err == nil:
		return true, nil
	case redis.IsNil(err):
		return false, nil
	default:
		return false, err
	}
}

func (m *Manager) open(ctx context.Context, accessID string, userID uuid.UUID) (string, error) {
	token, err := newRefreshToken()
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(entry{UserID: userID, Digest: digest(token), IssuedAt: m.now().UTC()})
	if err != nil {
		return "", err
	}
	if err := m.kv.Set(ctx, m.kv.AccessSessionKey(accessID), string(raw), m.ttl); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// lookup returns nil without error when there is no readable session.
func (m *Manager) lookup(ctx context.Context, accessID string) (*entry, error) {
	raw, err := m.kv.Get(ctx, m.kv.AccessSessionKey(accessID))
	if redis.IsNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var e entry
	if json.Unmarshal([]byte(raw), &e) != nil {
		return nil, nil
	}
	return &e, nil
}

func (e *entry) matches(token string) bool {
	return subtle.ConstantTimeCompare(e.Digest, digest(token)) == 1
}

func digest(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}

func newRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
