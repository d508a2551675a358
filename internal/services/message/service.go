package message

import (
	"context"

	domain "github.com/itechstro/lime/internal/domain"
)

// Service is the CLI-facing façade over the session orchestrator
// (internal/engine.Service) plus the relay transport: it turns
// SendMessage/ReceiveMessages calls into Engine.Encrypt/Decrypt calls
// wrapped with the wire send/fetch/ack round-trip (spec.md §4.F/§6).
type Service struct {
	engine domain.Engine
	relay  domain.RelayClient
}

// New returns a message service backed by engine and relay.
func New(engine domain.Engine, relay domain.RelayClient) *Service {
	return &Service{engine: engine, relay: relay}
}

// SendMessage encrypts plaintext to "to" and posts the resulting envelope
// to the relay.
func (s *Service) SendMessage(ctx context.Context, from, to domain.Username, plaintext []byte) error {
	env, err := s.engine.Encrypt(ctx, to, plaintext)
	if err != nil {
		return err
	}
	env.From = from
	return s.relay.SendMessage(ctx, env)
}

// ReceiveMessages fetches up to limit queued envelopes for me, decrypts
// each in order, and acknowledges only the prefix that decrypted
// successfully — a message that fails to decrypt (and every message
// behind it) is left on the server for the next call, preserving delivery
// order (spec.md §4.F / §5 ordering guarantees).
func (s *Service) ReceiveMessages(ctx context.Context, me domain.Username, limit int) ([]domain.DecryptedMessage, error) {
	envs, err := s.relay.FetchMessages(ctx, me, limit)
	if err != nil {
		return nil, err
	}

	out := make([]domain.DecryptedMessage, 0, len(envs))
	processed := 0
	var firstErr error
	for _, env := range envs {
		msg, err := s.engine.Decrypt(ctx, env)
		if err != nil {
			firstErr = err
			break
		}
		out = append(out, msg)
		processed++
	}

	if processed > 0 {
		if ackErr := s.relay.AckMessages(ctx, me, processed); ackErr != nil {
			return out, ackErr
		}
	}
	if firstErr != nil && processed == 0 {
		return out, firstErr
	}
	return out, nil
}

// Compile-time assertion that Service implements domain.MessageService.
var _ domain.MessageService = (*Service)(nil)
