package logger

import "strings"

const redacted = "[redacted]"

// Credentials and customer contact details never reach a log sink
// verbatim. Emails keep enough to tell two customers apart.
var secretKeys = map[string]struct{}{
	"password":      {},
	"token":         {},
	"access_token":  {},
	"refresh_token": {},
	"payment_token": {},
	"phone":         {},
}

func redactAll(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = redactValue(k, v)
	}
	return out
}

func redactValue(key string, value any) any {
	key = strings.ToLower(key)
	if _, secret := secretKeys[key]; secret {
		return redacted
	}
	if key == "email" || strings.HasSuffix(key, "_email") {
		if s, ok := value.(string); ok {
			return maskEmail(s)
		}
	}
	return value
}

// maskEmail turns "ana@example.com" into "a***@example.com".
func maskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return redacted
	}
	return email[:1] + "***" + email[at:]
}
