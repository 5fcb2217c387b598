// Package entries provides the PostgreSQL-backed repository for encrypted
// vault entries, including the batch re-encryption and vault-wipe paths.
package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/metabot/lockr/internal/common"
	"github.com/metabot/lockr/internal/dbx"
	"github.com/metabot/lockr/internal/server/models"
)

// PostgresRepository implements entry storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, entry *models.VaultEntry) (*models.VaultEntry, error) {
	query := `
		INSERT INTO vault_entries (id, user_id, name, username, url, category, encrypted_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		entry.ID, entry.UserID, entry.Name, entry.Username, entry.URL, entry.Category, entry.EncryptedData).
		Scan(&entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entry, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, userID, id string) (*models.VaultEntry, error) {
	query := `
		SELECT id, user_id, name, username, url, category, encrypted_data, created_at, updated_at
		FROM vault_entries
		WHERE user_id = $1 AND id = $2
	`
	entry := &models.VaultEntry{}
	err := r.db.QueryRowContext(ctx, query, userID, id).Scan(
		&entry.ID, &entry.UserID, &entry.Name, &entry.Username, &entry.URL,
		&entry.Category, &entry.EncryptedData, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entry, nil
}

func (r *PostgresRepository) Update(ctx context.Context, entry *models.VaultEntry) error {
	query := `
		UPDATE vault_entries
		SET name = $3, username = $4, url = $5, category = $6, encrypted_data = $7, updated_at = now()
		WHERE user_id = $1 AND id = $2
	`
	res, err := r.db.ExecContext(ctx, query,
		entry.UserID, entry.ID, entry.Name, entry.Username, entry.URL, entry.Category, entry.EncryptedData)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM vault_entries WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, userID string, f Filter) ([]*models.VaultEntry, error) {
	query := `
		SELECT id, user_id, name, username, url, category, encrypted_data, created_at, updated_at
		FROM vault_entries
		WHERE user_id = $1
		  AND ($2 = '' OR category = $2)
		  AND ($3 = '' OR name ILIKE '%' || $3 || '%' OR username ILIKE '%' || $3 || '%' OR url ILIKE '%' || $3 || '%')
		ORDER BY updated_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, f.Category, f.Search)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetAllForReencryption orders by (created_at, id) so that two runs over
// the same vault always see the same sequence.
func (r *PostgresRepository) GetAllForReencryption(ctx context.Context, userID string) ([]*models.VaultEntry, error) {
	query := `
		SELECT id, user_id, name, username, url, category, encrypted_data, created_at, updated_at
		FROM vault_entries
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (r *PostgresRepository) BatchUpdate(ctx context.Context, entries []*models.VaultEntry) (int, error) {
	query := `
		UPDATE vault_entries
		SET encrypted_data = $3, updated_at = now()
		WHERE user_id = $1 AND id = $2
	`
	updated := 0
	for _, entry := range entries {
		res, err := r.db.ExecContext(ctx, query, entry.UserID, entry.ID, entry.EncryptedData)
		if err != nil {
			return updated, fmt.Errorf("db error: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return updated, fmt.Errorf("rows affected error: %w", err)
		}
		if n != 1 {
			return updated, fmt.Errorf("entry %s: unexpected rows affected: %d", entry.ID, n)
		}
		updated++
	}
	return updated, nil
}

func (r *PostgresRepository) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vault_entries WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return int(n), nil
}

func (r *PostgresRepository) CountForUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vault_entries WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func scanEntries(rows *sql.Rows) ([]*models.VaultEntry, error) {
	var result []*models.VaultEntry
	for rows.Next() {
		var item models.VaultEntry
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.Name, &item.Username, &item.URL,
			&item.Category, &item.EncryptedData, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
