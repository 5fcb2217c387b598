package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/metabot/lockr/internal/common"
	"github.com/metabot/lockr/internal/dbx"
	"github.com/metabot/lockr/internal/server/config"
	"github.com/metabot/lockr/internal/server/models"
	"github.com/metabot/lockr/internal/server/ratelimit"
	"github.com/metabot/lockr/internal/server/repositories/repomanager"
	"github.com/metabot/lockr/internal/server/sessions"
)

// resetTokenBytes is the entropy of a reset token before hex encoding.
const resetTokenBytes = 32

// ResetService implements the master-password reset flow: a user who has
// forgotten the master password can request a short-lived single-use token
// and redeem it to wipe the vault. No key means no plaintext, so "reset"
// necessarily means "start over" — the wipe and the token redemption
// commit in one transaction.
type ResetService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	sessions    *sessions.Manager
	limiter     ratelimit.Limiter
	tokenTTL    time.Duration
	window      time.Duration
	maxPerUser  int
	maxPerIP    int

	// now is swappable for tests.
	now func() time.Time
}

// NewResetService constructs a ResetService using repositories, the
// session store, a rate limiter and server config.
func NewResetService(db *sql.DB, m repomanager.RepositoryManager, sm *sessions.Manager, limiter ratelimit.Limiter, cfg *config.Config) *ResetService {
	return &ResetService{
		db:          db,
		repomanager: m,
		sessions:    sm,
		limiter:     limiter,
		tokenTTL:    cfg.ResetTokenTTL,
		window:      cfg.ResetWindow,
		maxPerUser:  cfg.ResetMaxPerUser,
		maxPerIP:    cfg.ResetMaxPerIP,
		now:         time.Now,
	}
}

// RequestReset issues a new reset token after passing the per-user and
// per-IP sliding-window limits. Only the SHA-256 hash of the token is
// stored; the plaintext is returned to the caller exactly once. Earlier
// unredeemed tokens for the same user stay valid.
func (s *ResetService) RequestReset(ctx context.Context, userID, ip, userAgent string) (string, error) {
	for _, check := range []struct {
		key   string
		limit int
	}{
		{ratelimit.UserKey(userID), s.maxPerUser},
		{ratelimit.IPKey(ip), s.maxPerIP},
	} {
		allowed, err := s.limiter.Allow(ctx, check.key, check.limit, s.window)
		if err != nil {
			return "", common.ErrorInternal
		}
		if !allowed {
			return "", common.ErrRateLimitExceeded
		}
	}

	plain, err := common.MakeRandHexString(resetTokenBytes)
	if err != nil {
		return "", common.ErrorInternal
	}
	hash := hashToken(plain)

	token := &models.ResetToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: s.now().Add(s.tokenTTL),
		IPAddress: ip,
		UserAgent: userAgent,
	}

	repo := s.repomanager.ResetTokens(s.db)
	if _, err := repo.Create(ctx, token); err != nil {
		return "", common.ErrorInternal
	}

	return plain, nil
}

// ValidateToken resolves a plaintext token to its stored record. Unknown,
// already-used and expired tokens all yield the same ErrTokenInvalid so
// the error reveals nothing to a token-guessing caller.
func (s *ResetService) ValidateToken(ctx context.Context, plainToken string) (*models.ResetToken, error) {
	hash := hashToken(plainToken)

	repo := s.repomanager.ResetTokens(s.db)
	token, err := repo.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTokenInvalid
		}
		return nil, common.ErrorInternal
	}

	if subtle.ConstantTimeCompare(token.TokenHash, hash) != 1 {
		return nil, common.ErrTokenInvalid
	}
	if token.Used || token.Expired(s.now()) {
		return nil, common.ErrTokenInvalid
	}

	return token, nil
}

// RedeemAndWipe deletes the user's whole vault and marks the token used
// and wiped (with the deleted-entry count for audit) in one transaction.
// If anything fails the transaction rolls back: the token stays unused
// and the vault stays intact — fail safe, not fail wiped. On success any
// live session for the user is locked, since its key no longer matches
// anything.
func (s *ResetService) RedeemAndWipe(ctx context.Context, tokenID, userID string) (int, error) {
	var wiped int
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		entriesTx := s.repomanager.Entries(tx)
		n, err := entriesTx.DeleteAllForUser(ctx, userID)
		if err != nil {
			return err
		}

		tokensTx := s.repomanager.ResetTokens(tx)
		if err := tokensTx.MarkRedeemed(ctx, tokenID, n); err != nil {
			return err
		}

		wiped = n
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrTokenInvalid) {
			return 0, common.ErrTokenInvalid
		}
		return 0, fmt.Errorf("wipe transaction failed: %w", err)
	}

	s.sessions.Lock(userID)

	return wiped, nil
}

// CleanupExpiredTokens sweeps tokens past their TTL. Safe to run
// repeatedly; returns the number of rows removed.
func (s *ResetService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	repo := s.repomanager.ResetTokens(s.db)
	return repo.DeleteExpired(ctx)
}

func hashToken(plain string) []byte {
	sum := sha256.Sum256([]byte(plain))
	return sum[:]
}
