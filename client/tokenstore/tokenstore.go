// Package tokenstore keeps the short-lived access token for the current
// session in memory. Nothing is written to disk.
package tokenstore

import (
	"sync"
	"time"
)

type Store struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func New() *Store {
	return &Store{now: time.Now}
}

// Get returns the stored token, or "" once it has expired.
func (s *Store) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return ""
	}
	if !s.expiresAt.IsZero() && !s.now().Before(s.expiresAt) {
		return ""
	}
	return s.token
}

// Set replaces the token. A zero expiresAt never expires.
func (s *Store) Set(token string, expiresAt time.Time) {
	s.mu.Lock()
	s.token = token
	s.expiresAt = expiresAt
	s.mu.Unlock()
}

func (s *Store) Clear() {
	s.Set("", time.Time{})
}
