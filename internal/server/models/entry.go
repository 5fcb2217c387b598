// Package models defines server-side data models persisted in the database.
package models

import "time"

// VaultEntry is one encrypted credential record. EncryptedData carries the
// nonce, ciphertext and authentication tag packed into a single opaque blob
// and is never empty; only the owning user's active session key yields a
// meaningful plaintext from it.
type VaultEntry struct {
	ID            string
	UserID        string
	Name          string
	Username      string
	URL           string
	Category      string
	EncryptedData []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
