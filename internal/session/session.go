package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNoSession is returned when a protected operation runs without a token.
var ErrNoSession = errors.New("not logged in")

// Session is one operator's login against the search backend.
type Session struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	CreatedAt time.Time `json:"created_at"`

	mu    sync.RWMutex
	token string
}

// Token returns the backend bearer token, or "" when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Clear forgets the token.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// Active reports whether the session holds a token.
func (s *Session) Active() bool {
	return s.Token() != ""
}

// Store is an in-memory thread-safe store for sessions.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create adds a new logged-out session for user, assigning it a UUID.
func (s *Store) Create(user string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &Session{
		ID:        uuid.New().String(),
		User:      user,
		CreatedAt: time.Now(),
	}
	s.sessions[sess.ID] = sess
	return sess
}

// Get returns a session by ID, or nil if not found.
func (s *Store) Get(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// List returns all sessions.
func (s *Store) List() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		result = append(result, sess)
	}
	return result
}

// Delete removes a session by ID.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Guard gates protected pages on an active session.
type Guard struct {
	LoginPath string
}

// Check returns ErrNoSession if s is missing or logged out.
func (g Guard) Check(s *Session) error {
	if s == nil || !s.Active() {
		return ErrNoSession
	}
	return nil
}

// IsActive reports whether viewLocation is the current path. Used to mark the
// active navigation entry.
func IsActive(viewLocation, path string) bool {
	return viewLocation == path
}
