package redis

import (
	"strconv"
	"strings"
)

// every key lives under tb:<kind>:...
const keyNamespace = "tb"

const (
	kindIdempotency = "idempotency"
	kindRateLimit   = "rate_limit"
	kindCart        = "cart"
	kindLock        = "lock"
)

func buildKey(kind string, parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	b.WriteByte(':')
	b.WriteString(kind)
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

func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey(kindIdempotency, scope, id)
}

// RateLimitKey names the counter for one fixed window of scope.
func (c *Client) RateLimitKey(scope string, windowStart int64) string {
	return buildKey(kindRateLimit, scope, strconv.FormatInt(windowStart, 10))
}

func (c *Client) CartSnapshotKey(sessionID string) string {
	return buildKey(kindCart, sessionID)
}

// LockKey returns a namespaced key for distributed job locks.
func (c *Client) LockKey(name string) string {
	return buildKey(kindLock, name)
}
