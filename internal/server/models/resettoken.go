package models

import "time"

// ResetToken is a single-use master-password reset token. Only the SHA-256
// hash of the token is stored; the plaintext is handed to the caller once
// at issuance and never persisted. Used flips false → true exactly once,
// and DataWiped is set only inside the same transaction that deletes the
// user's vault entries.
type ResetToken struct {
	ID           string
	UserID       string
	TokenHash    []byte
	ExpiresAt    time.Time
	Used         bool
	UsedAt       *time.Time
	IPAddress    string
	UserAgent    string
	DataWiped    bool
	WipedAt      *time.Time
	EntriesCount int
	CreatedAt    time.Time
}

// Expired reports whether the token's TTL has lapsed at the given instant.
func (t *ResetToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
