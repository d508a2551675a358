package pgstore

import (
	"github.com/jackc/pgx"

	domain "github.com/itechstro/lime/internal/domain"
)

// SaveSession writes a session record for peer, in its active or draining
// slot according to session.Draining.
func (s *Store) SaveSession(peer domain.Username, session domain.Session) error {
	body, err := marshal(session)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(tagUpsertSession, peer.String(), session.Draining, body)
	return err
}

// LoadActiveSession retrieves the currently active session for peer, if any.
func (s *Store) LoadActiveSession(peer domain.Username) (domain.Session, bool, error) {
	return s.loadSession(peer, false)
}

// LoadDrainingSession retrieves the draining (superseded) session for peer, if any.
func (s *Store) LoadDrainingSession(peer domain.Username) (domain.Session, bool, error) {
	return s.loadSession(peer, true)
}

func (s *Store) loadSession(peer domain.Username, draining bool) (domain.Session, bool, error) {
	var body []byte
	err := s.pool.QueryRow(tagLoadSession, peer.String(), draining).Scan(&body)
	if err == pgx.ErrNoRows {
		return domain.Session{}, false, nil
	}
	if err != nil {
		return domain.Session{}, false, err
	}
	var session domain.Session
	if err := unmarshal(body, &session); err != nil {
		return domain.Session{}, false, err
	}
	return session, true, nil
}

// DeleteSession removes the active or draining session record for peer.
func (s *Store) DeleteSession(peer domain.Username, draining bool) error {
	_, err := s.pool.Exec(tagDeleteSession, peer.String(), draining)
	return err
}
