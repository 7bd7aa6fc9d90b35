// Package credstore persists the session's credentials between runs.
package credstore

import (
	"errors"
	"sync"
)

// Persisted keys. Nothing else is ever written.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyExpiresAt    = "expires_at"
	KeyUser         = "user"
)

// Keys is every key the session writes, in the order they are erased.
var Keys = []string{KeyAccessToken, KeyRefreshToken, KeyExpiresAt, KeyUser}

// ErrCorrupt is returned by Open when the file exists but cannot be parsed.
var ErrCorrupt = errors.New("credstore: corrupt credentials file")

// Store is durable key/value storage for credentials. Set writes the given
// pairs and drops the keys in remove as one step, so a crash never pairs a
// new access token with the refresh token of an earlier session.
type Store interface {
	Get(key string) (string, bool)
	Set(values map[string]string, remove ...string) error
	Delete(keys ...string) error
}

// MemStore is an in-memory Store.
type MemStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMem returns an empty MemStore, optionally seeded.
func NewMem(seed map[string]string) *MemStore {
	m := &MemStore{data: make(map[string]string, len(seed))}
	for k, v := range seed {
		m.data[k] = v
	}
	return m
}

func (m *MemStore) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *MemStore) Set(values map[string]string, remove ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range remove {
		delete(m.data, k)
	}
	for k, v := range values {
		m.data[k] = v
	}
	return nil
}

func (m *MemStore) Delete(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// Len reports how many keys are stored.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
