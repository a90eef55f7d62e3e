package validators

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
)

// ParseQueryInt reads an integer query parameter bounded by [min, max].
// A missing value yields defaultVal.
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").
			WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").
			WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// QueryOneOf reads a case-insensitive enumerated query parameter.
func QueryOneOf(r *http.Request, key, defaultVal string, allowed ...string) (string, error) {
	raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(key)))
	if raw == "" {
		return defaultVal, nil
	}
	if !slices.Contains(allowed, raw) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unsupported query parameter value").
			WithDetails(map[string]any{"field": key, "allowed": allowed})
	}
	return raw, nil
}

// OptionalQuery returns a pointer to the trimmed query value, nil when absent.
func OptionalQuery(r *http.Request, key string) *string {
	if !r.URL.Query().Has(key) {
		return nil
	}
	value := strings.TrimSpace(r.URL.Query().Get(key))
	return &value
}
