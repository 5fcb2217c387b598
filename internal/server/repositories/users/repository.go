package users

import (
	"context"

	"github.com/metabot/lockr/internal/server/models"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)

	// UpdateVerifier re-keys the user's stored salt and master-key
	// verifier. Called inside the master-password-change transaction so
	// the verifier never disagrees with the entry ciphertexts.
	UpdateVerifier(ctx context.Context, id string, salt, verifier []byte) error
}
