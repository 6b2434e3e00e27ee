// Package session stores bearer-token sessions.
//
// Authentication itself (credential checks, OTP delivery) is an external
// concern; this package only maps opaque tokens to the resolved identity the
// rest of the application consumes as a models.Session value. Two backends
// implement TokenStore: Redis for deployments with more than one process,
// and an in-process map for tests and local development.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/imkrishn/notex/pkg/models"
)

// DefaultTTL is the session lifetime applied when callers pass a zero TTL.
const DefaultTTL = 24 * time.Hour

// TokenStore maps bearer tokens to sessions. Get returns (nil, nil) for
// unknown or expired tokens.
type TokenStore interface {
	Save(ctx context.Context, token string, sess models.Session, ttl time.Duration) error
	Get(ctx context.Context, token string) (*models.Session, error)
	Delete(ctx context.Context, token string) error
	Close() error
}

// NewToken creates a 32-byte random token encoded as hex, suitable for HTTP
// bearer authentication.
func NewToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// MemoryStore is an in-process TokenStore used by tests and single-process
// development runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	sess      models.Session
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-process token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Save(ctx context.Context, token string, sess models.Session, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.mu.Lock()
	s.sessions[token] = memoryEntry{sess: sess, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, token string) (*models.Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return nil, nil
	}
	sess := entry.sess
	return &sess, nil
}

func (s *MemoryStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }
