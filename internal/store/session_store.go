package store

import (
	"fmt"
	"path/filepath"
	"sync"

	"peerlink/internal/domain"
)

const sessionsFilename = "sessions.json"

// SessionFileStore caches bearer sessions issued by one server so that
// short-lived CLI invocations can skip the login round trip.
type SessionFileStore struct {
	dir       string
	serverURL string
	mu        sync.Mutex
}

// NewSessionFileStore returns a SessionFileStore rooted at dir for sessions
// issued by serverURL.
func NewSessionFileStore(dir, serverURL string) *SessionFileStore {
	return &SessionFileStore{dir: dir, serverURL: serverURL}
}

// SaveSession records session under its username.
func (s *SessionFileStore) SaveSession(session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return err
	}
	sessions[accountKey(s.serverURL, session.Username)] = session
	return writeJSON(s.path(), sessions, 0o600)
}

// LoadSession retrieves the cached session for username.
func (s *SessionFileStore) LoadSession(username domain.Username) (domain.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return domain.Session{}, false, err
	}
	session, ok := sessions[accountKey(s.serverURL, username)]
	return session, ok, nil
}

// DeleteSession forgets the cached session for username.
func (s *SessionFileStore) DeleteSession(username domain.Username) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return err
	}
	key := accountKey(s.serverURL, username)
	if _, ok := sessions[key]; !ok {
		return nil
	}
	delete(sessions, key)
	return writeJSON(s.path(), sessions, 0o600)
}

func (s *SessionFileStore) path() string { return filepath.Join(s.dir, sessionsFilename) }

func (s *SessionFileStore) load() (map[string]domain.Session, error) {
	sessions := make(map[string]domain.Session)
	if err := readJSON(s.path(), &sessions); err != nil {
		return nil, fmt.Errorf("read sessions: %w", err)
	}
	return sessions, nil
}

// Compile-time assertion that SessionFileStore implements domain.SessionStore.
var _ domain.SessionStore = (*SessionFileStore)(nil)
