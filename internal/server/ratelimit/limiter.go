// Package ratelimit bounds reset-token issuance per user and per source IP.
// Two interchangeable backends exist: a Redis counter and a window count
// query over the tokens already stored in PostgreSQL.
package ratelimit

import (
	"context"
	"time"
)

// Limiter answers whether one more request under the given key is allowed
// within the window. Keys are namespaced, e.g. "user:<id>" or "ip:<addr>".
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// UserKey and IPKey build the conventional limiter keys.
func UserKey(userID string) string { return "user:" + userID }
func IPKey(ip string) string       { return "ip:" + ip }
