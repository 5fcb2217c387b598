package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/metabot/lockr/internal/server/repositories/resettokens"
)

// StoreLimiter implements a sliding window over the reset tokens already
// persisted in PostgreSQL: a request is allowed while fewer than limit
// tokens were issued for the key in the trailing window. Used when no
// Redis address is configured.
type StoreLimiter struct {
	repo resettokens.Repository

	// now is swappable for tests.
	now func() time.Time
}

func NewStoreLimiter(repo resettokens.Repository) *StoreLimiter {
	return &StoreLimiter{repo: repo, now: time.Now}
}

func (l *StoreLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	kind, id, ok := strings.Cut(key, ":")
	if !ok {
		return false, fmt.Errorf("malformed limiter key: %q", key)
	}

	since := l.now().Add(-window)

	var (
		n   int
		err error
	)
	switch kind {
	case "user":
		n, err = l.repo.CountIssuedSince(ctx, id, since)
	case "ip":
		n, err = l.repo.CountIssuedSinceByIP(ctx, id, since)
	default:
		return false, fmt.Errorf("unknown limiter key kind: %q", kind)
	}
	if err != nil {
		return false, err
	}
	return n < limit, nil
}
