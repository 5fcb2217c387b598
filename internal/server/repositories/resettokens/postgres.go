// Package resettokens provides the PostgreSQL-backed repository for
// master-password reset tokens and their audit trail.
package resettokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/metabot/lockr/internal/common"
	"github.com/metabot/lockr/internal/dbx"
	"github.com/metabot/lockr/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, token *models.ResetToken) (*models.ResetToken, error) {
	query := `
		INSERT INTO master_password_reset_tokens (id, user_id, token_hash, expires_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.IPAddress, token.UserAgent).
		Scan(&token.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

func (r *PostgresRepository) FindByHash(ctx context.Context, hash []byte) (*models.ResetToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, used, used_at, ip_address, user_agent,
		       data_wiped, wiped_at, entries_count, created_at
		FROM master_password_reset_tokens
		WHERE token_hash = $1
	`
	token := &models.ResetToken{}
	var usedAt, wipedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, hash).Scan(
		&token.ID, &token.UserID, &token.TokenHash, &token.ExpiresAt, &token.Used, &usedAt,
		&token.IPAddress, &token.UserAgent, &token.DataWiped, &wipedAt, &token.EntriesCount, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if usedAt.Valid {
		token.UsedAt = &usedAt.Time
	}
	if wipedAt.Valid {
		token.WipedAt = &wipedAt.Time
	}
	return token, nil
}

func (r *PostgresRepository) MarkRedeemed(ctx context.Context, id string, entriesCount int) error {
	// The predicate makes redemption single-use and TTL-bound at the
	// database level: a second attempt or an expired token updates zero
	// rows, so the surrounding wipe transaction rolls back.
	query := `
		UPDATE master_password_reset_tokens
		SET used = TRUE, used_at = now(), data_wiped = TRUE, wiped_at = now(),
		    entries_count = $2, updated_at = now()
		WHERE id = $1 AND used = FALSE AND expires_at > now()
	`
	res, err := r.db.ExecContext(ctx, query, id, entriesCount)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrTokenInvalid
	}
	return nil
}

func (r *PostgresRepository) CountIssuedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM master_password_reset_tokens WHERE user_id = $1 AND created_at > $2`,
		userID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) CountIssuedSinceByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM master_password_reset_tokens WHERE ip_address = $1 AND created_at > $2`,
		ip, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM master_password_reset_tokens WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
