package redis

import "strings"

// Every key lives under the gh namespace so the storefront can share a
// Redis instance.
const namespace = "gh"

func key(parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// IdempotencyKey namespaces HTTP and consumer idempotency records.
func (c *Client) IdempotencyKey(scope, id string) string {
	return key("idempotency", scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return key("rate_limit", scope)
}

// AccessSessionKey holds the refresh session bound to one access token id.
func (c *Client) AccessSessionKey(accessID string) string {
	return key("session", "access", accessID)
}

// CartKey holds the serialized cart for an owner ("session:<id>" or
// "user:<id>").
func CartKey(owner string) string { return key("cart", owner) }

func DraftKey(sessionID string) string { return key("checkout_draft", sessionID) }

// ConfirmationKey holds the snapshot shown on the order confirmation page.
func ConfirmationKey(sessionID, orderNumber string) string {
	return key("order_confirmation", sessionID, orderNumber)
}

func PreferenceKey(sessionID string) string { return key("assistant_pref", sessionID) }

// CatalogKey caches a parsed catalog source.
func CatalogKey(source string) string { return key("catalog", source) }
