package store

import (
	"path/filepath"
	"sync"

	domain "github.com/itechstro/lime/internal/domain"
)

const sessionsFilename = "sessions.json"

func sessionKey(peer domain.Username, draining bool) string {
	if draining {
		return peer.String() + "|draining"
	}
	return peer.String() + "|active"
}

// SessionFileStore persists established X3DH sessions to disk, keeping the
// active session for a peer separate from its superseded, draining one
// (spec.md §3/§4.F).
type SessionFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewSessionFileStore returns a SessionFileStore rooted at dir.
func NewSessionFileStore(dir string) *SessionFileStore {
	return &SessionFileStore{dir: dir}
}

// SaveSession writes a session record for peer, in its active or draining
// slot according to session.Draining.
func (s *SessionFileStore) SaveSession(peer domain.Username, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, sessionsFilename)
	sessions := map[string]domain.Session{}
	if err := readJSON(path, &sessions); err != nil {
		return err
	}
	sessions[sessionKey(peer, session.Draining)] = session
	return writeJSON(path, sessions, 0o600)
}

// LoadActiveSession retrieves the currently active session for peer, if any.
func (s *SessionFileStore) LoadActiveSession(peer domain.Username) (domain.Session, bool, error) {
	return s.load(sessionKey(peer, false))
}

// LoadDrainingSession retrieves the draining (superseded) session for peer, if any.
func (s *SessionFileStore) LoadDrainingSession(peer domain.Username) (domain.Session, bool, error) {
	return s.load(sessionKey(peer, true))
}

func (s *SessionFileStore) load(key string) (domain.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, sessionsFilename)
	sessions := map[string]domain.Session{}
	if err := readJSON(path, &sessions); err != nil {
		return domain.Session{}, false, err
	}
	session, ok := sessions[key]
	return session, ok, nil
}

// DeleteSession removes the active or draining session record for peer.
func (s *SessionFileStore) DeleteSession(peer domain.Username, draining bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, sessionsFilename)
	sessions := map[string]domain.Session{}
	if err := readJSON(path, &sessions); err != nil {
		return err
	}
	delete(sessions, sessionKey(peer, draining))
	return writeJSON(path, sessions, 0o600)
}

// Compile-time assertion that SessionFileStore implements domain.SessionStore.
var _ domain.SessionStore = (*SessionFileStore)(nil)
