package entries

import (
	"context"

	"github.com/metabot/lockr/internal/server/models"
)

// Filter narrows List results. Empty fields match everything.
type Filter struct {
	// Category matches exactly when non-empty.
	Category string
	// Search is a case-insensitive substring match against name, username
	// and url.
	Search string
}

type Repository interface {
	Create(ctx context.Context, entry *models.VaultEntry) (*models.VaultEntry, error)
	GetByID(ctx context.Context, userID, id string) (*models.VaultEntry, error)
	Update(ctx context.Context, entry *models.VaultEntry) error
	Delete(ctx context.Context, userID, id string) error
	List(ctx context.Context, userID string, f Filter) ([]*models.VaultEntry, error)

	// GetAllForReencryption returns every entry of the user in stable
	// creation order, so a retried master-password change walks the rows
	// deterministically.
	GetAllForReencryption(ctx context.Context, userID string) ([]*models.VaultEntry, error)

	// BatchUpdate replaces the ciphertext of all given entries. Callers
	// must invoke it on a transactional handle: any row that fails to
	// update returns an error so the surrounding transaction rolls back
	// and no partial re-encryption is ever observable.
	BatchUpdate(ctx context.Context, entries []*models.VaultEntry) (int, error)

	// DeleteAllForUser removes the user's whole vault and returns the
	// number of rows deleted, for the wipe audit record.
	DeleteAllForUser(ctx context.Context, userID string) (int, error)

	CountForUser(ctx context.Context, userID string) (int, error)
}
