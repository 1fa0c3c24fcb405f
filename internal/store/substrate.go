// internal/store/substrate.go
package store

import (
	"errors"
	"sync"
)

// ErrKeyNotFound is returned by substrates for missing keys.
var ErrKeyNotFound = errors.New("key not found")

// Substrate is the synchronous key/value persistence layer backing the local
// store and the session credential store across process restarts.
type Substrate interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// MemorySubstrate is a goroutine-safe in-memory substrate for tests and
// throwaway environments.
type MemorySubstrate struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemorySubstrate() *MemorySubstrate {
	return &MemorySubstrate{data: make(map[string][]byte)}
}

func (m *MemorySubstrate) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (m *MemorySubstrate) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[key] = cp
	return nil
}

func (m *MemorySubstrate) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemorySubstrate) Close() error { return nil }
