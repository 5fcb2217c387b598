// Package services contains the vault core's business logic. This file
// implements VaultService: unlocking and locking vault sessions, encrypted
// entry CRUD, and the atomic master-password change.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/metabot/lockr/internal/common"
	"github.com/metabot/lockr/internal/cryptox"
	"github.com/metabot/lockr/internal/dbx"
	"github.com/metabot/lockr/internal/server/auth"
	"github.com/metabot/lockr/internal/server/config"
	"github.com/metabot/lockr/internal/server/models"
	"github.com/metabot/lockr/internal/server/repositories/entries"
	"github.com/metabot/lockr/internal/server/repositories/repomanager"
	"github.com/metabot/lockr/internal/server/sessions"
)

// UnlockResult is returned by a successful unlock: the signed session
// token plus the session's lifetime. The derived key itself never leaves
// the session manager.
type UnlockResult struct {
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// VaultService provides the vault operations gated by an unlocked session:
// - Unlock / Lock: derive and hold (or drop) the per-user encryption key
// - CreateEntry / GetEntry / RevealEntry / ListEntries / UpdateEntry / DeleteEntry
// - ChangeMasterPassword: re-encrypt the whole vault under a new key
type VaultService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	sessions    *sessions.Manager
	jwtSecret   []byte
	sessionTTL  time.Duration
	kdfParams   cryptox.Params
}

// NewVaultService constructs a VaultService using repositories, the
// session store and server config.
func NewVaultService(db *sql.DB, m repomanager.RepositoryManager, sm *sessions.Manager, cfg *config.Config) *VaultService {
	return &VaultService{
		db:          db,
		repomanager: m,
		sessions:    sm,
		jwtSecret:   []byte(cfg.SecretKey),
		sessionTTL:  cfg.SessionTTL,
		kdfParams: cryptox.Params{
			Time:    uint32(cfg.ArgonTime),
			MemoryK: uint32(cfg.ArgonMemoryK),
			Threads: uint8(cfg.ArgonThreads),
		},
	}
}

// Unlock derives the encryption key from the master password and the
// user's salt, checks it against the stored verifier, and opens a session.
// A wrong password yields ErrInvalidCredentials; a prior session for the
// user is silently replaced.
func (s *VaultService) Unlock(ctx context.Context, userID string, masterPassword []byte) (*UnlockResult, error) {
	userRepo := s.repomanager.Users(s.db)
	user, err := userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, common.ErrorInternal
	}

	key, err := cryptox.DeriveKey(masterPassword, user.Salt, s.kdfParams)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	if !s.checkVerifier(user.Verifier, cryptox.MakeVerifier(key)) {
		return nil, common.ErrInvalidCredentials
	}

	createdAt, expiresAt := s.sessions.Unlock(userID, key)

	token, err := auth.GenerateToken(userID, s.jwtSecret, s.sessionTTL)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return &UnlockResult{Token: token, CreatedAt: createdAt, ExpiresAt: expiresAt}, nil
}

// Lock drops the user's session. Locking an already-locked vault is a no-op.
func (s *VaultService) Lock(userID string) {
	s.sessions.Lock(userID)
}

// CreateEntry encrypts secret under the session key and stores a new entry.
func (s *VaultService) CreateEntry(ctx context.Context, userID, name, username, url, category string, secret []byte) (*models.VaultEntry, error) {
	key, err := s.sessions.GetKey(userID)
	if err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty secret", common.ErrInvalidInput)
	}

	blob, err := cryptox.Encrypt(secret, key)
	if err != nil {
		return nil, err
	}

	entry := &models.VaultEntry{
		ID:            uuid.NewString(),
		UserID:        userID,
		Name:          name,
		Username:      username,
		URL:           url,
		Category:      category,
		EncryptedData: blob,
	}

	repo := s.repomanager.Entries(s.db)
	created, err := repo.Create(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("error creating entry: %w", err)
	}
	return created, nil
}

// GetEntry returns an entry's metadata and ciphertext without decrypting.
// Like every vault operation it still requires an active session.
func (s *VaultService) GetEntry(ctx context.Context, userID, id string) (*models.VaultEntry, error) {
	if _, err := s.sessions.GetKey(userID); err != nil {
		return nil, err
	}
	return s.repomanager.Entries(s.db).GetByID(ctx, userID, id)
}

// RevealEntry decrypts an entry's payload with the session key.
func (s *VaultService) RevealEntry(ctx context.Context, userID, id string) ([]byte, error) {
	key, err := s.sessions.GetKey(userID)
	if err != nil {
		return nil, err
	}
	entry, err := s.repomanager.Entries(s.db).GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return cryptox.Decrypt(entry.EncryptedData, key)
}

// ListEntries returns the user's entries, optionally filtered by category
// and a name/username/url substring.
func (s *VaultService) ListEntries(ctx context.Context, userID, category, search string) ([]*models.VaultEntry, error) {
	if _, err := s.sessions.GetKey(userID); err != nil {
		return nil, err
	}
	repo := s.repomanager.Entries(s.db)
	return repo.List(ctx, userID, entries.Filter{Category: category, Search: search})
}

// UpdateEntry replaces an entry's metadata and re-encrypts the new secret
// under the session key.
func (s *VaultService) UpdateEntry(ctx context.Context, userID, id, name, username, url, category string, secret []byte) error {
	key, err := s.sessions.GetKey(userID)
	if err != nil {
		return err
	}
	if len(secret) == 0 {
		return fmt.Errorf("%w: empty secret", common.ErrInvalidInput)
	}

	blob, err := cryptox.Encrypt(secret, key)
	if err != nil {
		return err
	}

	entry := &models.VaultEntry{
		ID:            id,
		UserID:        userID,
		Name:          name,
		Username:      username,
		URL:           url,
		Category:      category,
		EncryptedData: blob,
	}
	return s.repomanager.Entries(s.db).Update(ctx, entry)
}

// DeleteEntry removes one entry.
func (s *VaultService) DeleteEntry(ctx context.Context, userID, id string) error {
	if _, err := s.sessions.GetKey(userID); err != nil {
		return err
	}
	return s.repomanager.Entries(s.db).Delete(ctx, userID, id)
}

// ChangeMasterPassword re-encrypts the user's whole vault from the old
// master password to the new one and rotates the stored salt/verifier,
// all inside one transaction. On any decryption or database failure the
// vault remains entirely under the old key. Returns the number of
// re-encrypted entries.
func (s *VaultService) ChangeMasterPassword(ctx context.Context, userID string, oldPassword, newPassword []byte) (int, error) {
	userRepo := s.repomanager.Users(s.db)
	user, err := userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return 0, common.ErrInvalidCredentials
		}
		return 0, common.ErrorInternal
	}

	oldKey, err := cryptox.DeriveKey(oldPassword, user.Salt, s.kdfParams)
	if err != nil {
		return 0, err
	}
	defer common.WipeByteArray(oldKey)

	if !s.checkVerifier(user.Verifier, cryptox.MakeVerifier(oldKey)) {
		return 0, common.ErrInvalidCredentials
	}

	all, err := s.repomanager.Entries(s.db).GetAllForReencryption(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("error loading entries: %w", err)
	}

	// The old key must prove itself against real ciphertext before anything
	// is rewritten. With an empty vault the verifier check above suffices.
	if len(all) > 0 {
		if _, err := cryptox.Decrypt(all[0].EncryptedData, oldKey); err != nil {
			if errors.Is(err, common.ErrAuthentication) {
				return 0, common.ErrInvalidCredentials
			}
			return 0, err
		}
	}

	newSalt := common.GenerateRandByteArray(32)
	newKey, err := cryptox.DeriveKey(newPassword, newSalt, s.kdfParams)
	if err != nil {
		return 0, err
	}
	defer common.WipeByteArray(newKey)

	// Decrypt and re-encrypt everything up front: a single undecryptable
	// entry aborts the whole change before any write happens.
	reencrypted := make([]*models.VaultEntry, 0, len(all))
	for _, entry := range all {
		plaintext, err := cryptox.Decrypt(entry.EncryptedData, oldKey)
		if err != nil {
			return 0, fmt.Errorf("entry %s: %w", entry.ID, err)
		}
		blob, err := cryptox.Encrypt(plaintext, newKey)
		common.WipeByteArray(plaintext)
		if err != nil {
			return 0, err
		}
		reencrypted = append(reencrypted, &models.VaultEntry{
			ID:            entry.ID,
			UserID:        entry.UserID,
			EncryptedData: blob,
		})
	}

	newVerifier := cryptox.MakeVerifier(newKey)

	var updated int
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		entriesTx := s.repomanager.Entries(tx)
		n, err := entriesTx.BatchUpdate(ctx, reencrypted)
		if err != nil {
			return err
		}
		updated = n

		usersTx := s.repomanager.Users(tx)
		return usersTx.UpdateVerifier(ctx, userID, newSalt, newVerifier)
	})
	if err != nil {
		return 0, err
	}

	// The vault is now under the new key; re-key a live session in place
	// so the user is not forced to re-unlock. A locked vault stays locked.
	s.sessions.Rekey(userID, newKey)

	return updated, nil
}

func (s *VaultService) checkVerifier(stored, candidate []byte) bool {
	return subtle.ConstantTimeCompare(stored, candidate) == 1
}
