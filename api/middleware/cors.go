package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS allows the configured storefront origins to call the API with
// credentials. Blank entries are ignored; an empty list falls back to
// localhost so local development still works.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			allowed = append(allowed, origin)
		}
	}
	if len(allowed) == 0 {
		allowed = []string{"http://localhost:3000"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-GH-Token", SessionHeader, idempotencyHeader, requestIDHeader},
		ExposedHeaders:   []string{"X-GH-Token", SessionHeader, requestIDHeader, "Idempotent-Replay", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
