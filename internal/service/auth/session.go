package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is a server-side login record referenced by a token's jti.
type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s Session) expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// SessionStore keeps login sessions so tokens can be revoked before they expire.
type SessionStore interface {
	Create(ctx context.Context, username string, ttl time.Duration) (Session, error)
	Get(ctx context.Context, id string) (Session, error)
	Revoke(ctx context.Context, id string) error
	Valid(ctx context.Context, id string) bool
}

// MemorySessionStore keeps sessions in process memory.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

// Create provisions a session for username that lasts ttl.
func (s *MemorySessionStore) Create(_ context.Context, username string, ttl time.Duration) (Session, error) {
	now := s.now().UTC()
	session := Session{
		ID:        uuid.NewString(),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.pruneLocked(now)
	s.mu.Unlock()

	return session, nil
}

// Get retrieves a live session by identifier.
func (s *MemorySessionStore) Get(_ context.Context, id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok || session.expired(s.now()) {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *MemorySessionStore) Revoke(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *MemorySessionStore) Valid(ctx context.Context, id string) bool {
	_, err := s.Get(ctx, id)
	return err == nil
}

func (s *MemorySessionStore) pruneLocked(now time.Time) {
	for id, session := range s.sessions {
		if session.expired(now) {
			delete(s.sessions, id)
		}
	}
}
