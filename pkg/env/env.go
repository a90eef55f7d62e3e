package env

import (
	"os"
	"strings"
)

// Prefix namespaces the service's own variables.
const Prefix = "GLOWHAUS_"

// Get reads GLOWHAUS_<key>, then the bare key, then falls back. Blank
// values count as unset.
func Get(key, fallback string) string {
	for _, name := range []string{Prefix + key, key} {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			return val
		}
	}
	return fallback
}
