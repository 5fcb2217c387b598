package resettokens

import (
	"context"
	"time"

	"github.com/metabot/lockr/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, token *models.ResetToken) (*models.ResetToken, error)
	FindByHash(ctx context.Context, hash []byte) (*models.ResetToken, error)

	// MarkRedeemed flips used → true and records the wipe audit fields
	// (data_wiped, wiped_at, entries_count) in one guarded UPDATE. It
	// returns common.ErrTokenInvalid when the token was already used or
	// has expired, so a token can be redeemed at most once, and only
	// within its TTL, even under concurrent requests.
	MarkRedeemed(ctx context.Context, id string, entriesCount int) error

	// CountIssuedSince / CountIssuedSinceByIP are the sliding-window
	// queries behind the relational rate limiter.
	CountIssuedSince(ctx context.Context, userID string, since time.Time) (int, error)
	CountIssuedSinceByIP(ctx context.Context, ip string, since time.Time) (int, error)

	// DeleteExpired sweeps tokens past their TTL. Safe to run repeatedly.
	DeleteExpired(ctx context.Context) (int64, error)
}
