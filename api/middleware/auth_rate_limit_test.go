package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
)

func loginAttempt(body, remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.RemoteAddr = remoteAddr
	return req
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestAuthRateLimitKeepsBodyForHandler(t *testing.T) {
	limiter := newCountingLimiter()
	var seen string
	handler := AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 2, 2), limiter, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			seen = string(raw)
		}))

	body := `{"email":"tester@example.com","password":"secret"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginAttempt(body, "1.2.3.4:5678"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, seen)
	assert.Len(t, limiter.counts, 2, "counted by ip and by email")
}

func TestAuthRateLimitBlocksPerDimension(t *testing.T) {
	cases := []struct {
		name    string
		policy  AuthRateLimitPolicy
		request func(i int) *http.Request
		allowed int
	}{
		{
			name:   "same email from many addresses",
			policy: NewAuthRateLimitPolicy("login", time.Minute, 0, 2),
			request: func(i int) *http.Request {
				return loginAttempt(`{"email":"blocked@example.com"}`, fmt.Sprintf("10.0.0.%d:80", i+1))
			},
			allowed: 2,
		},
		{
			name:   "many emails from one address",
			policy: NewAuthRateLimitPolicy("register", time.Minute, 1, 0),
			request: func(i int) *http.Request {
				return loginAttempt(fmt.Sprintf(`{"email":"user%d@example.com"}`, i), "5.6.7.8:1234")
			},
			allowed: 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := AuthRateLimit(tc.policy, newCountingLimiter(), nil)(okHandler())
			for i := 0; i < tc.allowed+1; i++ {
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, tc.request(i))
				if i < tc.allowed {
					require.Equal(t, http.StatusOK, rec.Code, "attempt %d", i+1)
					continue
				}
				assert.Equal(t, http.StatusTooManyRequests, rec.Code)
				assert.Equal(t, string(pkgerrors.CodeRateLimit), decodeErrorCode(t, rec))
			}
		})
	}
}

func TestAuthRateLimitHashesEmailScope(t *testing.T) {
	limiter := newCountingLimiter()
	handler := AuthRateLimit(NewAuthRateLimitPolicy(" Login ", time.Minute, 0, 5), limiter, nil)(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), loginAttempt(`{"email":" Ana@Example.com ","password":"x"}`, "1.1.1.1:1"))

	assert.Equal(t, int64(1), limiter.counts["login:email:"+hashValue("ana@example.com")])
	for scope := range limiter.counts {
		assert.NotContains(t, scope, "example.com")
	}
}

func TestAuthRateLimitUsesForwardedForAndSetsRetryAfter(t *testing.T) {
	limiter := newCountingLimiter()
	handler := AuthRateLimit(NewAuthRateLimitPolicy("register", 30*time.Second, 1, 0), limiter, nil)(okHandler())

	var rec *httptest.ResponseRecorder
	for range 2 {
		req := loginAttempt(`{}`, "10.0.0.1:443")
		req.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
	}
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Contains(t, limiter.counts, "register:ip:9.9.9.9")
}

func TestAuthRateLimitStoreFailureIsRetryable(t *testing.T) {
	limiter := newCountingLimiter()
	limiter.err = errors.New("redis down")
	handler := AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 5, 5), limiter, nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginAttempt(`{"email":"a@b.c"}`, "1.1.1.1:1"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	limiter := newCountingLimiter()
	handler := AuthRateLimit(NewAuthRateLimitPolicy("login", 0, 5, 5), limiter, nil)(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), loginAttempt(`{"email":"a@b.c"}`, "1.1.1.1:1"))
	assert.Empty(t, limiter.counts)
}

type countingLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newCountingLimiter() *countingLimiter {
	return &countingLimiter{counts: map[string]int64{}}
}

func (f *countingLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, 0, f.err
	}
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}
