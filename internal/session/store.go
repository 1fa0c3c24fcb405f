// internal/session/store.go
package session

import (
	"encoding/json"
	"sync"
	"time"

	"collectsync-service/internal/domain/staff"
	"collectsync-service/internal/store"

	"go.uber.org/zap"
)

const (
	keyRole = "session:role"
	keyUser = "session:user"
)

// Credentials is the signed-in state read by route guards, the validator and
// the presence tracker. Injectable so every component can be tested against a
// fake session.
type Credentials struct {
	SessionID string        `json:"session_id"`
	Role      staff.Role    `json:"role"`
	Staff     staff.Account `json:"staff"`
	IssuedAt  time.Time     `json:"issued_at"`
}

// Store persists the current credentials under two substrate keys (role and
// user record) and caches them for synchronous reads.
type Store struct {
	substrate store.Substrate
	logger    *zap.Logger

	mu     sync.RWMutex
	cached *Credentials
}

func NewStore(substrate store.Substrate, logger *zap.Logger) *Store {
	s := &Store{substrate: substrate, logger: logger}
	s.load()
	return s
}

// Set installs new credentials, replacing any prior session.
func (s *Store) Set(creds Credentials) error {
	userRaw, err := json.Marshal(creds)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.substrate.Set(keyRole, []byte(creds.Role)); err != nil {
		return err
	}
	if err := s.substrate.Set(keyUser, userRaw); err != nil {
		return err
	}
	cp := creds
	s.cached = &cp
	return nil
}

// Current returns the signed-in credentials, if any.
func (s *Store) Current() (Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cached == nil {
		return Credentials{}, false
	}
	return *s.cached, true
}

// Clear wipes the credentials. Idempotent.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.substrate.Delete(keyRole); err != nil {
		s.logger.Warn("failed to clear role key", zap.Error(err))
	}
	if err := s.substrate.Delete(keyUser); err != nil {
		s.logger.Warn("failed to clear user key", zap.Error(err))
	}
	s.cached = nil
}

// load restores credentials at startup; a corrupt entry is treated as logged
// out rather than crashing.
func (s *Store) load() {
	raw, err := s.substrate.Get(keyUser)
	if err != nil {
		return
	}
	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		s.logger.Warn("discarding corrupt session credentials", zap.Error(err))
		return
	}
	s.cached = &creds
}
