package middleware

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/glowhaus/storefront-backend/pkg/logger"
)

const (
	// SessionCookieName carries the browser session across requests.
	SessionCookieName = "gh_session"
	// SessionHeader lets non-browser clients pin a session explicitly.
	SessionHeader = "X-Session-Id"

	sessionCookieMaxAge = 30 * 24 * time.Hour
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// GuestSession resolves the browser session id that scopes guest carts,
// checkout drafts and order confirmations. A missing or malformed id is
// replaced by a fresh one and returned as a cookie.
func GuestSession(secureCookie bool, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := requestSessionID(r)
			if sessionID == "" {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   int(sessionCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secureCookie,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(SessionHeader, sessionID)

			ctx := WithSessionID(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestSessionID(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(SessionHeader)); sessionIDPattern.MatchString(v) {
		return v
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		if v := strings.TrimSpace(c.Value); sessionIDPattern.MatchString(v) {
			return v
		}
	}
	return ""
}
