// Package sessions holds the per-process map of unlocked vaults: user
// identity → derived encryption key with a fixed TTL. Sessions are never
// persisted; a process restart locks every vault.
package sessions

import (
	"sync"
	"time"

	"github.com/metabot/lockr/internal/common"
)

type session struct {
	key       []byte
	createdAt time.Time
	expiresAt time.Time
}

// Manager is the session store. It is constructed once and passed to the
// services that need it; all methods are safe for concurrent use. Expiry
// is evaluated lazily on lookup, so no background sweep is needed.
type Manager struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*session

	// now is swappable for tests.
	now func() time.Time
}

// NewManager creates a session store with the given TTL.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		ttl:      ttl,
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// Unlock stores a session for userID and returns its creation and expiry
// timestamps. Any prior session for the same user is silently replaced and
// its key wiped: last unlock wins. The manager keeps its own copy of the
// key, so the caller remains free to wipe its buffer.
func (m *Manager) Unlock(userID string, key []byte) (createdAt, expiresAt time.Time) {
	keyCopy := make([]byte, len(key))
	copy(keyCopy, key)

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.sessions[userID]; ok {
		common.WipeByteArray(prev.key)
	}

	now := m.now()
	s := &session{key: keyCopy, createdAt: now, expiresAt: now.Add(m.ttl)}
	m.sessions[userID] = s
	return s.createdAt, s.expiresAt
}

// GetKey returns a copy of the session key for userID, so a later Lock,
// replacement or expiry cannot zero a key the caller is still encrypting
// with. A missing or lapsed session yields common.ErrSessionExpired; a
// lapsed one is evicted on the spot. This lookup gates every vault
// operation performed for the user.
func (m *Manager) GetKey(userID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return nil, common.ErrSessionExpired
	}
	if m.now().After(s.expiresAt) {
		common.WipeByteArray(s.key)
		delete(m.sessions, userID)
		return nil, common.ErrSessionExpired
	}

	keyCopy := make([]byte, len(s.key))
	copy(keyCopy, s.key)
	return keyCopy, nil
}

// Rekey swaps the key of an existing live session in place, keeping its
// creation and expiry timestamps. It reports whether a session was
// present; a locked or lapsed vault is left untouched, never unlocked.
func (m *Manager) Rekey(userID string, key []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok || m.now().After(s.expiresAt) {
		return false
	}

	common.WipeByteArray(s.key)
	keyCopy := make([]byte, len(key))
	copy(keyCopy, key)
	s.key = keyCopy
	return true
}

// Lock evicts the user's session and wipes its key. Locking an
// already-locked vault is not an error.
func (m *Manager) Lock(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		common.WipeByteArray(s.key)
		delete(m.sessions, userID)
	}
}

// Len reports the number of stored sessions, including not-yet-evicted
// expired ones.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
