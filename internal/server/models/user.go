package models

import "time"

// User is the vault core's view of an account row. Salt feeds key
// derivation; Verifier is the one-way fingerprint of the derived master
// key used to check unlock attempts. Account lifecycle itself is handled
// elsewhere.
type User struct {
	ID        string
	Email     string
	Role      string
	Salt      []byte
	Verifier  []byte
	CreatedAt time.Time
}
