package pgstore

import (
	"github.com/jackc/pgx"

	domain "github.com/itechstro/lime/internal/domain"
)

// SaveConversation writes the Conversation for peer.
func (s *Store) SaveConversation(peer domain.ConversationID, conv domain.Conversation) error {
	body, err := marshal(conv)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(tagUpsertConversation, peer.String(), body)
	return err
}

// LoadConversation retrieves the Conversation for peer.
func (s *Store) LoadConversation(peer domain.ConversationID) (domain.Conversation, bool, error) {
	var body []byte
	err := s.pool.QueryRow(tagLoadConversation, peer.String()).Scan(&body)
	if err == pgx.ErrNoRows {
		return domain.Conversation{}, false, nil
	}
	if err != nil {
		return domain.Conversation{}, false, err
	}
	var conv domain.Conversation
	if err := unmarshal(body, &conv); err != nil {
		return domain.Conversation{}, false, err
	}
	return conv, true, nil
}

// DeleteConversation removes the Conversation for peer.
func (s *Store) DeleteConversation(peer domain.ConversationID) error {
	_, err := s.pool.Exec(tagDeleteConversation, peer.String())
	return err
}
