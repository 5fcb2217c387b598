package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metabot/lockr/internal/common"
	"github.com/metabot/lockr/internal/server/models"
	"github.com/metabot/lockr/internal/server/repositories/resettokens"
	"github.com/metabot/lockr/internal/server/sessions"
)

type fakeTokensRepo struct {
	resettokens.Repository
	createFn        func(ctx context.Context, token *models.ResetToken) (*models.ResetToken, error)
	findByHashFn    func(ctx context.Context, hash []byte) (*models.ResetToken, error)
	markRedeemedFn  func(ctx context.Context, id string, entriesCount int) error
	deleteExpiredFn func(ctx context.Context) (int64, error)
}

func (f *fakeTokensRepo) Create(ctx context.Context, token *models.ResetToken) (*models.ResetToken, error) {
	return f.createFn(ctx, token)
}

func (f *fakeTokensRepo) FindByHash(ctx context.Context, hash []byte) (*models.ResetToken, error) {
	return f.findByHashFn(ctx, hash)
}

func (f *fakeTokensRepo) MarkRedeemed(ctx context.Context, id string, entriesCount int) error {
	return f.markRedeemedFn(ctx, id, entriesCount)
}

func (f *fakeTokensRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return f.deleteExpiredFn(ctx)
}

type fakeLimiter struct {
	allowFn func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

func (f *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return f.allowFn(ctx, key, limit, window)
}

func allowAll(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return true, nil
}

func TestResetService_RequestReset(t *testing.T) {
	cfg := testConfig()

	var stored *models.ResetToken
	m := &fakeRepoManager{
		tokens: &fakeTokensRepo{
			createFn: func(ctx context.Context, token *models.ResetToken) (*models.ResetToken, error) {
				stored = token
				return token, nil
			},
		},
	}
	sm := sessions.NewManager(cfg.SessionTTL)
	svc := NewResetService(nil, m, sm, &fakeLimiter{allowFn: allowAll}, cfg)

	issuedAt := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issuedAt }

	plain, err := svc.RequestReset(context.Background(), "user1", "203.0.113.7", "test-agent")
	require.NoError(t, err)

	// 32 random bytes hex-encoded
	assert.Len(t, plain, 64)
	_, err = hex.DecodeString(plain)
	assert.NoError(t, err)

	require.NotNil(t, stored)
	sum := sha256.Sum256([]byte(plain))
	assert.Equal(t, sum[:], stored.TokenHash)
	assert.Equal(t, "user1", stored.UserID)
	assert.Equal(t, "203.0.113.7", stored.IPAddress)
	assert.Equal(t, "test-agent", stored.UserAgent)
	assert.Equal(t, issuedAt.Add(cfg.ResetTokenTTL), stored.ExpiresAt)
	assert.False(t, stored.Used)
}

func TestResetService_RequestReset_ChecksBothLimits(t *testing.T) {
	cfg := testConfig()

	var keys []string
	var limits []int
	limiter := &fakeLimiter{
		allowFn: func(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
			keys = append(keys, key)
			limits = append(limits, limit)
			assert.Equal(t, cfg.ResetWindow, window)
			return true, nil
		},
	}

	m := &fakeRepoManager{
		tokens: &fakeTokensRepo{
			createFn: func(ctx context.Context, token *models.ResetToken) (*models.ResetToken, error) {
				return token, nil
			},
		},
	}
	svc := NewResetService(nil, m, sessions.NewManager(cfg.SessionTTL), limiter, cfg)

	_, err := svc.RequestReset(context.Background(), "user1", "203.0.113.7", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"user:user1", "ip:203.0.113.7"}, keys)
	assert.Equal(t, []int{cfg.ResetMaxPerUser, cfg.ResetMaxPerIP}, limits)
}

func TestResetService_RequestReset_RateLimited(t *testing.T) {
	cfg := testConfig()

	limiter := &fakeLimiter{
		allowFn: func(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
			return false, nil
		},
	}
	m := &fakeRepoManager{
		tokens: &fakeTokensRepo{
			createFn: func(ctx context.Context, token *models.ResetToken) (*models.ResetToken, error) {
				t.Fatal("no token must be issued past the limit")
				return nil, nil
			},
		},
	}
	svc := NewResetService(nil, m, sessions.NewManager(cfg.SessionTTL), limiter, cfg)

	_, err := svc.RequestReset(context.Background(), "user1", "203.0.113.7", "")
	assert.ErrorIs(t, err, common.ErrRateLimitExceeded)
}

func TestResetService_RequestReset_LimiterError(t *testing.T) {
	cfg := testConfig()

	limiter := &fakeLimiter{
		allowFn: func(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
			return false, assert.AnError
		},
	}
	svc := NewResetService(nil, &fakeRepoManager{}, sessions.NewManager(cfg.SessionTTL), limiter, cfg)

	_, err := svc.RequestReset(context.Background(), "user1", "203.0.113.7", "")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestResetService_ValidateToken(t *testing.T) {
	cfg := testConfig()
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	plain := "aaaabbbbccccddddeeeeffff0000111122223333444455556666777788889999"
	sum := sha256.Sum256([]byte(plain))

	tests := []struct {
		name    string
		token   *models.ResetToken
		findErr error
		wantErr error
	}{
		{
			name:  "valid",
			token: &models.ResetToken{ID: "t1", UserID: "user1", TokenHash: sum[:], ExpiresAt: now.Add(time.Minute)},
		},
		{
			name:    "unknown",
			findErr: common.ErrorNotFound,
			wantErr: common.ErrTokenInvalid,
		},
		{
			name:    "already used",
			token:   &models.ResetToken{ID: "t1", UserID: "user1", TokenHash: sum[:], ExpiresAt: now.Add(time.Minute), Used: true},
			wantErr: common.ErrTokenInvalid,
		},
		{
			name:    "expired",
			token:   &models.ResetToken{ID: "t1", UserID: "user1", TokenHash: sum[:], ExpiresAt: now.Add(-time.Second)},
			wantErr: common.ErrTokenInvalid,
		},
		{
			name:    "repository failure",
			findErr: assert.AnError,
			wantErr: common.ErrorInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeRepoManager{
				tokens: &fakeTokensRepo{
					findByHashFn: func(ctx context.Context, hash []byte) (*models.ResetToken, error) {
						assert.Equal(t, sum[:], hash)
						if tt.findErr != nil {
							return nil, tt.findErr
						}
						return tt.token, nil
					},
				},
			}
			svc := NewResetService(nil, m, sessions.NewManager(cfg.SessionTTL), &fakeLimiter{allowFn: allowAll}, cfg)
			svc.now = func() time.Time { return now }

			got, err := svc.ValidateToken(context.Background(), plain)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.token.ID, got.ID)
		})
	}
}

func TestResetService_RedeemAndWipe(t *testing.T) {
	cfg := testConfig()

	var deletedUser string
	var redeemedID string
	var redeemedCount int
	m := &fakeRepoManager{
		entries: &fakeEntriesRepo{
			deleteAllFn: func(ctx context.Context, userID string) (int, error) {
				deletedUser = userID
				return 4, nil
			},
		},
		tokens: &fakeTokensRepo{
			markRedeemedFn: func(ctx context.Context, id string, entriesCount int) error {
				redeemedID = id
				redeemedCount = entriesCount
				return nil
			},
		},
	}

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	sm := sessions.NewManager(cfg.SessionTTL)
	sm.Unlock("user1", common.GenerateRandByteArray(32))
	svc := NewResetService(db, m, sm, &fakeLimiter{allowFn: allowAll}, cfg)

	wiped, err := svc.RedeemAndWipe(context.Background(), "t1", "user1")
	require.NoError(t, err)
	assert.Equal(t, 4, wiped)
	assert.Equal(t, "user1", deletedUser)
	assert.Equal(t, "t1", redeemedID)
	assert.Equal(t, 4, redeemedCount)
	assert.NoError(t, mock.ExpectationsWereMet())

	// any live session for the user is gone
	_, err = sm.GetKey("user1")
	assert.ErrorIs(t, err, common.ErrSessionExpired)
}

func TestResetService_RedeemAndWipe_AlreadyUsed(t *testing.T) {
	cfg := testConfig()

	m := &fakeRepoManager{
		entries: &fakeEntriesRepo{
			deleteAllFn: func(ctx context.Context, userID string) (int, error) {
				return 4, nil
			},
		},
		tokens: &fakeTokensRepo{
			markRedeemedFn: func(ctx context.Context, id string, entriesCount int) error {
				return common.ErrTokenInvalid
			},
		},
	}

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	svc := NewResetService(db, m, sessions.NewManager(cfg.SessionTTL), &fakeLimiter{allowFn: allowAll}, cfg)

	_, err = svc.RedeemAndWipe(context.Background(), "t1", "user1")
	assert.ErrorIs(t, err, common.ErrTokenInvalid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetService_RedeemAndWipe_DeleteFailureKeepsSession(t *testing.T) {
	cfg := testConfig()

	m := &fakeRepoManager{
		entries: &fakeEntriesRepo{
			deleteAllFn: func(ctx context.Context, userID string) (int, error) {
				return 0, assert.AnError
			},
		},
		tokens: &fakeTokensRepo{
			markRedeemedFn: func(ctx context.Context, id string, entriesCount int) error {
				t.Fatal("token must stay unused when the wipe fails")
				return nil
			},
		},
	}

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	sm := sessions.NewManager(cfg.SessionTTL)
	sm.Unlock("user1", common.GenerateRandByteArray(32))
	svc := NewResetService(db, m, sm, &fakeLimiter{allowFn: allowAll}, cfg)

	_, err = svc.RedeemAndWipe(context.Background(), "t1", "user1")
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = sm.GetKey("user1")
	assert.NoError(t, err)
}

func TestResetService_CleanupExpiredTokens(t *testing.T) {
	cfg := testConfig()

	m := &fakeRepoManager{
		tokens: &fakeTokensRepo{
			deleteExpiredFn: func(ctx context.Context) (int64, error) {
				return 7, nil
			},
		},
	}
	svc := NewResetService(nil, m, sessions.NewManager(cfg.SessionTTL), &fakeLimiter{allowFn: allowAll}, cfg)

	n, err := svc.CleanupExpiredTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}
