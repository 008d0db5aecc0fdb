package store

import (
	"context"
	"sync"
)

// MemoryStore keeps the credential in process memory only.
type MemoryStore struct {
	mu   sync.RWMutex
	cred Credential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) (Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred, nil
}

func (m *MemoryStore) Save(_ context.Context, cred Credential) error {
	if cred.IsZero() {
		return ErrEmptyCredential
	}
	m.mu.Lock()
	m.cred = cred
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.cred = Credential{}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
