package engine

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/itechstro/lime/internal/apperr"
	"github.com/itechstro/lime/internal/cryptosuite"
	domain "github.com/itechstro/lime/internal/domain"
	domaintypes "github.com/itechstro/lime/internal/domain/types"
	"github.com/itechstro/lime/internal/protocol/ratchet"
	"github.com/itechstro/lime/internal/protocol/x3dh"
)

// defaultDrainingGrace is the fallback for Config.DrainingGrace, matching
// spec.md §6's session_draining_grace default (24 hours; scenario 4 erases
// a draining session 25 hours after it is superseded).
const defaultDrainingGrace = 24 * time.Hour

// Config wires a Service to one local identity and its supporting stores.
type Config struct {
	Suite        cryptosuite.Suite
	SelfDeviceID domaintypes.Username
	Identity     domaintypes.Identity

	PreKeys  domain.PreKeyStore
	Peers    domain.PeerDeviceStore
	Sessions domain.SessionStore
	Ratchets domain.RatchetStore
	Relay    domain.RelayClient

	// DrainingGrace sets a superseded session's DrainUntilUTC (demotion
	// time plus this grace). Service records that deadline but does not
	// erase a draining session once it has passed. Zero uses the default.
	DrainingGrace time.Duration
	Logger        *slog.Logger
}

// fetchCall is a bundle fetch shared by every Encrypt caller waiting on the
// same peer, so a cancellation propagates to all of them at once.
type fetchCall struct {
	done   chan struct{}
	bundle domaintypes.PreKeyBundle
	err    error
}

// Service is the session orchestrator of spec.md §4.F.
type Service struct {
	suite        cryptosuite.Suite
	selfDeviceID domaintypes.Username
	identity     domaintypes.Identity

	prekeys  domain.PreKeyStore
	peers    domain.PeerDeviceStore
	sessions domain.SessionStore
	ratchets domain.RatchetStore
	relay    domain.RelayClient

	drainingGrace time.Duration
	logger        *slog.Logger

	mu        sync.Mutex
	peerLocks map[domaintypes.Username]*sync.Mutex
	pending   map[domaintypes.Username]*fetchCall
}

var _ domain.Engine = (*Service)(nil)

// New builds a Service from cfg, defaulting DrainingGrace and Logger.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	grace := cfg.DrainingGrace
	if grace <= 0 {
		grace = defaultDrainingGrace
	}
	return &Service{
		suite:         cfg.Suite,
		selfDeviceID:  cfg.SelfDeviceID,
		identity:      cfg.Identity,
		prekeys:       cfg.PreKeys,
		peers:         cfg.Peers,
		sessions:      cfg.Sessions,
		ratchets:      cfg.Ratchets,
		relay:         cfg.Relay,
		drainingGrace: grace,
		logger:        logger,
		peerLocks:     make(map[domaintypes.Username]*sync.Mutex),
		pending:       make(map[domaintypes.Username]*fetchCall),
	}
}

func (s *Service) now() int64 { return time.Now().Unix() }

func activeKey(peer domaintypes.Username) domaintypes.ConversationID {
	return domaintypes.ConversationID(peer.String() + "|active")
}

func drainingKey(peer domaintypes.Username) domaintypes.ConversationID {
	return domaintypes.ConversationID(peer.String() + "|draining")
}

func (s *Service) peerLock(peer domaintypes.Username) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lk, ok := s.peerLocks[peer]
	if !ok {
		lk = &sync.Mutex{}
		s.peerLocks[peer] = lk
	}
	return lk
}

// fetchBundle dedups concurrent Encrypt calls to the same peer behind a
// single RelayClient.FetchPeerBundle call. If the initiating call's context
// is cancelled, every waiter observes Cancelled (spec.md §4.F/§5).
func (s *Service) fetchBundle(ctx context.Context, peer domaintypes.Username) (domaintypes.PreKeyBundle, error) {
	s.mu.Lock()
	if call, ok := s.pending[peer]; ok {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.bundle, call.err
		case <-ctx.Done():
			return domaintypes.PreKeyBundle{}, fmt.Errorf("engine: %w", apperr.ErrCancelled)
		}
	}
	call := &fetchCall{done: make(chan struct{})}
	s.pending[peer] = call
	s.mu.Unlock()

	call.bundle, call.err = s.relay.FetchPeerBundle(ctx, peer)
	if call.err != nil {
		if ctx.Err() != nil {
			call.err = fmt.Errorf("engine: %w", apperr.ErrCancelled)
		} else {
			call.err = fmt.Errorf("engine: %w: %v", apperr.ErrTransport, call.err)
		}
	}
	close(call.done)

	s.mu.Lock()
	delete(s.pending, peer)
	s.mu.Unlock()

	return call.bundle, call.err
}

// Encrypt implements domain.Engine.
func (s *Service) Encrypt(ctx context.Context, peer domaintypes.Username, plaintext []byte) (domaintypes.Envelope, error) {
	if _, ok, err := s.ratchets.LoadConversation(activeKey(peer)); err != nil {
		return domaintypes.Envelope{}, fmt.Errorf("engine: %w: load conversation: %v", apperr.ErrStorage, err)
	} else if !ok {
		bundle, err := s.fetchBundle(ctx, peer)
		if err != nil {
			return domaintypes.Envelope{}, err
		}
		if err := s.ensureSenderSession(peer, bundle); err != nil {
			return domaintypes.Envelope{}, err
		}
	}

	lock := s.peerLock(peer)
	lock.Lock()
	defer lock.Unlock()

	conv, ok, err := s.ratchets.LoadConversation(activeKey(peer))
	if err != nil {
		return domaintypes.Envelope{}, fmt.Errorf("engine: %w: load conversation: %v", apperr.ErrStorage, err)
	}
	if !ok {
		return domaintypes.Envelope{}, fmt.Errorf("engine: %w: active session not found", apperr.ErrStorage)
	}

	state := conv.State
	header, ciphertext, initHeader, err := ratchet.Encrypt(s.suite, rand.Reader, &state, plaintext)
	if err != nil {
		return domaintypes.Envelope{}, fmt.Errorf("engine: %w", err)
	}

	conv.State = state
	if err := s.ratchets.SaveConversation(activeKey(peer), conv); err != nil {
		return domaintypes.Envelope{}, fmt.Errorf("engine: %w: save conversation: %v", apperr.ErrStorage, err)
	}

	env := domaintypes.Envelope{From: s.selfDeviceID, To: peer, Header: header, Cipher: ciphertext, Timestamp: s.now()}
	if initHeader != nil {
		parsed, err := x3dh.ParseInitHeader(s.suite, initHeader)
		if err != nil {
			return domaintypes.Envelope{}, fmt.Errorf("engine: %w", err)
		}
		env.PreKey = &domaintypes.PreKeyMessage{
			InitiatorIdentityKey: domaintypes.NewDHPublicKey(s.suite.ID(), parsed.SenderIdentityKey),
			EphemeralKey:         domaintypes.NewDHPublicKey(s.suite.ID(), parsed.SenderEphemeralKey),
			SignedPreKeyID:       parsed.SignedPreKeyID,
			OneTimePreKeyID:      parsed.OneTimePreKeyID,
			HasOneTimePreKey:     parsed.HasOneTimePreKey,
		}
	}
	return env, nil
}

// ensureSenderSession establishes a fresh X3DH sender session against
// bundle unless another caller already did so while this one was fetching.
func (s *Service) ensureSenderSession(peer domaintypes.Username, bundle domaintypes.PreKeyBundle) error {
	lock := s.peerLock(peer)
	lock.Lock()
	defer lock.Unlock()

	if _, ok, err := s.ratchets.LoadConversation(activeKey(peer)); err != nil {
		return fmt.Errorf("engine: %w: load conversation: %v", apperr.ErrStorage, err)
	} else if ok {
		return nil
	}
	return s.establishFromBundle(peer, bundle)
}

func (s *Service) establishFromBundle(peer domaintypes.Username, bundle domaintypes.PreKeyBundle) error {
	if bundle.Curve != s.suite.ID() {
		return fmt.Errorf("engine: %w: peer bundle curve mismatch", apperr.ErrProtocolFormat)
	}
	if !x3dh.VerifySignedPreKey(s.suite, bundle) {
		return fmt.Errorf("engine: %w", apperr.ErrSignatureInvalid)
	}

	if _, mismatch, err := s.peers.PinPeerDevice(peer, bundle.IdentityKey); err != nil {
		return fmt.Errorf("engine: %w: pin peer: %v", apperr.ErrStorage, err)
	} else if mismatch {
		return fmt.Errorf("engine: %w", apperr.ErrPeerIdentityMismatch)
	}

	result, err := x3dh.EstablishAsSender(s.suite, rand.Reader, s.identity.DHPriv, s.identity.DHPub, bundle, s.selfDeviceID, peer)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	parsed, err := x3dh.ParseInitHeader(s.suite, result.InitHeader)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	state := ratchet.InitAsSender(s.suite.ID(), result.RootKey, result.AssociatedData, result.RemoteDH, result.InitHeader)

	sess := domaintypes.Session{
		Curve:                 s.suite.ID(),
		PeerDeviceID:          peer,
		RootKey:               result.RootKey,
		AssociatedData:        result.AssociatedData,
		PeerSignedPreKey:      result.RemoteDH,
		PeerIdentityKey:       bundle.IdentityKey,
		CreatedUTC:            s.now(),
		SignedPreKeyID:        result.SignedPreKeyID,
		OneTimePreKeyID:       result.OneTimePreKeyID,
		HasOneTimePreKey:      result.HasOneTimePreKey,
		InitiatorEphemeralKey: domaintypes.NewDHPublicKey(s.suite.ID(), parsed.SenderEphemeralKey),
	}
	if err := s.sessions.SaveSession(peer, sess); err != nil {
		return fmt.Errorf("engine: %w: save session: %v", apperr.ErrStorage, err)
	}
	if err := s.ratchets.SaveConversation(activeKey(peer), domaintypes.Conversation{Peer: activeKey(peer), State: state}); err != nil {
		return fmt.Errorf("engine: %w: save conversation: %v", apperr.ErrStorage, err)
	}
	return nil
}

// Decrypt implements domain.Engine. It tries the active session, then any
// draining one, and finally runs the X3DH receiver path if env carries a
// pre-key header and neither session accepts the message.
func (s *Service) Decrypt(ctx context.Context, env domaintypes.Envelope) (domaintypes.DecryptedMessage, error) {
	peer := env.From

	lock := s.peerLock(peer)
	lock.Lock()
	defer lock.Unlock()

	if dm, tried, err := s.tryDecryptSlot(env, activeKey(peer), false); tried {
		if err == nil {
			s.resolveCrossedEstablishment(peer)
			return dm, nil
		}
		if !errors.Is(err, apperr.ErrAuthenticationFailed) && !errors.Is(err, apperr.ErrOutOfOrderOrReplay) {
			return domaintypes.DecryptedMessage{}, err
		}
	}

	if dm, tried, err := s.tryDecryptSlot(env, drainingKey(peer), true); tried {
		if err == nil {
			s.resolveCrossedEstablishment(peer)
			return dm, nil
		}
		if !errors.Is(err, apperr.ErrAuthenticationFailed) && !errors.Is(err, apperr.ErrOutOfOrderOrReplay) {
			return domaintypes.DecryptedMessage{}, err
		}
	}

	if env.PreKey == nil {
		return domaintypes.DecryptedMessage{}, fmt.Errorf("engine: %w: no matching session and no pre-key header", apperr.ErrOutOfOrderOrReplay)
	}
	return s.establishReceiverAndDecrypt(peer, env)
}

// tryDecryptSlot attempts a decrypt against the conversation stored at key.
// tried is false when no conversation exists there at all.
func (s *Service) tryDecryptSlot(env domaintypes.Envelope, key domaintypes.ConversationID, draining bool) (domaintypes.DecryptedMessage, bool, error) {
	conv, ok, err := s.ratchets.LoadConversation(key)
	if err != nil {
		return domaintypes.DecryptedMessage{}, true, fmt.Errorf("engine: %w: load conversation: %v", apperr.ErrStorage, err)
	}
	if !ok {
		return domaintypes.DecryptedMessage{}, false, nil
	}

	state := conv.State
	pt, err := ratchet.Decrypt(s.suite, rand.Reader, &state, env.Header, env.Cipher)
	if err != nil {
		return domaintypes.DecryptedMessage{}, true, err
	}

	state.LastDecryptUTC = s.now()
	conv.State = state
	if err := s.ratchets.SaveConversation(key, conv); err != nil {
		return domaintypes.DecryptedMessage{}, true, fmt.Errorf("engine: %w: save conversation: %v", apperr.ErrStorage, err)
	}
	return domaintypes.DecryptedMessage{From: env.From, To: env.To, Plaintext: pt, Timestamp: env.Timestamp}, true, nil
}

func (s *Service) establishReceiverAndDecrypt(peer domaintypes.Username, env domaintypes.Envelope) (domaintypes.DecryptedMessage, error) {
	hdr := &x3dh.ParsedInitHeader{
		SenderIdentityKey:  env.PreKey.InitiatorIdentityKey.Slice(),
		SenderEphemeralKey: env.PreKey.EphemeralKey.Slice(),
		SignedPreKeyID:     env.PreKey.SignedPreKeyID,
		OneTimePreKeyID:    env.PreKey.OneTimePreKeyID,
		HasOneTimePreKey:   env.PreKey.HasOneTimePreKey,
	}

	spk, ok, err := s.prekeys.LoadSignedPreKey(hdr.SignedPreKeyID)
	if err != nil {
		return domaintypes.DecryptedMessage{}, fmt.Errorf("engine: %w: load signed prekey: %v", apperr.ErrStorage, err)
	}
	if !ok {
		return domaintypes.DecryptedMessage{}, fmt.Errorf("engine: %w", apperr.ErrUnknownPreKey)
	}

	var opk *domaintypes.OneTimePreKeyPair
	if hdr.HasOneTimePreKey {
		pair, found, err := s.prekeys.ConsumeOneTimePreKey(hdr.OneTimePreKeyID)
		if err != nil {
			return domaintypes.DecryptedMessage{}, fmt.Errorf("engine: %w: consume one-time prekey: %v", apperr.ErrStorage, err)
		}
		if !found {
			return domaintypes.DecryptedMessage{}, fmt.Errorf("engine: %w", apperr.ErrUnknownPreKey)
		}
		opk = &pair
	}

	result, err := x3dh.EstablishAsReceiver(s.suite, s.identity.DHPriv, s.identity.DHPub, spk, opk, hdr, peer, s.selfDeviceID)
	if err != nil {
		return domaintypes.DecryptedMessage{}, fmt.Errorf("engine: %w", err)
	}

	if _, mismatch, err := s.peers.PinPeerDevice(peer, result.SenderIdentityKey); err != nil {
		return domaintypes.DecryptedMessage{}, fmt.Errorf("engine: %w: pin peer: %v", apperr.ErrStorage, err)
	} else if mismatch {
		return domaintypes.DecryptedMessage{}, fmt.Errorf("engine: %w", apperr.ErrPeerIdentityMismatch)
	}

	state := ratchet.InitAsReceiver(s.suite.ID(), result.RootKey, result.AssociatedData, result.LocalDHPriv, result.LocalDHPub)
	pt, err := ratchet.Decrypt(s.suite, rand.Reader, &state, env.Header, env.Cipher)
	if err != nil {
		return domaintypes.DecryptedMessage{}, err
	}
	state.LastDecryptUTC = s.now()

	if err := s.demoteActiveIfPresent(peer); err != nil {
		return domaintypes.DecryptedMessage{}, err
	}

	sess := domaintypes.Session{
		Curve:                 s.suite.ID(),
		PeerDeviceID:          peer,
		RootKey:               result.RootKey,
		AssociatedData:        result.AssociatedData,
		PeerSignedPreKey:      state.PeerDHPub,
		PeerIdentityKey:       result.SenderIdentityKey,
		CreatedUTC:            s.now(),
		SignedPreKeyID:        result.SignedPreKeyID,
		OneTimePreKeyID:       result.OneTimePreKeyID,
		HasOneTimePreKey:      result.ConsumedOneTimePreKey,
		InitiatorEphemeralKey: result.SenderEphemeralKey,
	}
	if err := s.sessions.SaveSession(peer, sess); err != nil {
		return domaintypes.DecryptedMessage{}, fmt.Errorf("engine: %w: save session: %v", apperr.ErrStorage, err)
	}
	if err := s.ratchets.SaveConversation(activeKey(peer), domaintypes.Conversation{Peer: activeKey(peer), State: state}); err != nil {
		return domaintypes.DecryptedMessage{}, fmt.Errorf("engine: %w: save conversation: %v", apperr.ErrStorage, err)
	}

	return domaintypes.DecryptedMessage{From: env.From, To: env.To, Plaintext: pt, Timestamp: env.Timestamp}, nil
}

// demoteActiveIfPresent moves the current active session (if any) into the
// draining slot before a fresh receiver-path establishment takes over as
// active, per spec.md §4.F's session lifecycle.
func (s *Service) demoteActiveIfPresent(peer domaintypes.Username) error {
	sess, ok, err := s.sessions.LoadActiveSession(peer)
	if err != nil {
		return fmt.Errorf("engine: %w: load session: %v", apperr.ErrStorage, err)
	}
	if !ok {
		return nil
	}

	sess.Draining = true
	sess.DrainUntilUTC = s.now() + int64(s.drainingGrace.Seconds())
	if err := s.sessions.SaveSession(peer, sess); err != nil {
		return fmt.Errorf("engine: %w: save session: %v", apperr.ErrStorage, err)
	}
	if err := s.sessions.DeleteSession(peer, false); err != nil {
		return fmt.Errorf("engine: %w: delete active session: %v", apperr.ErrStorage, err)
	}

	conv, ok, err := s.ratchets.LoadConversation(activeKey(peer))
	if err != nil {
		return fmt.Errorf("engine: %w: load conversation: %v", apperr.ErrStorage, err)
	}
	if !ok {
		return nil
	}
	conv.State.Active = false
	conv.Peer = drainingKey(peer)
	if err := s.ratchets.SaveConversation(drainingKey(peer), conv); err != nil {
		return fmt.Errorf("engine: %w: save conversation: %v", apperr.ErrStorage, err)
	}
	if err := s.ratchets.DeleteConversation(activeKey(peer)); err != nil {
		return fmt.Errorf("engine: %w: delete conversation: %v", apperr.ErrStorage, err)
	}
	return nil
}

// resolveCrossedEstablishment handles the case where both peers established
// sessions toward each other at once: once the draining session's most
// recent successful decrypt is newer than the active one's, their roles are
// swapped (spec.md §4.F).
func (s *Service) resolveCrossedEstablishment(peer domaintypes.Username) {
	activeSess, hasActiveSess, err := s.sessions.LoadActiveSession(peer)
	if err != nil {
		s.logger.Warn("engine: load active session for crossed-establishment check failed", "peer", peer, "error", err)
		return
	}
	drainSess, hasDrainSess, err := s.sessions.LoadDrainingSession(peer)
	if err != nil {
		s.logger.Warn("engine: load draining session for crossed-establishment check failed", "peer", peer, "error", err)
		return
	}
	activeConv, hasActiveConv, err := s.ratchets.LoadConversation(activeKey(peer))
	if err != nil {
		s.logger.Warn("engine: load active conversation for crossed-establishment check failed", "peer", peer, "error", err)
		return
	}
	drainConv, hasDrainConv, err := s.ratchets.LoadConversation(drainingKey(peer))
	if err != nil {
		s.logger.Warn("engine: load draining conversation for crossed-establishment check failed", "peer", peer, "error", err)
		return
	}
	if !hasActiveSess || !hasDrainSess || !hasActiveConv || !hasDrainConv {
		return
	}
	if drainConv.State.LastDecryptUTC <= activeConv.State.LastDecryptUTC {
		return
	}

	activeSess.Draining, drainSess.Draining = true, false
	activeConv.State.Active, drainConv.State.Active = false, true
	activeConv.Peer, drainConv.Peer = drainingKey(peer), activeKey(peer)

	if err := s.sessions.SaveSession(peer, drainSess); err != nil {
		s.logger.Warn("engine: promote draining session failed", "peer", peer, "error", err)
		return
	}
	if err := s.sessions.SaveSession(peer, activeSess); err != nil {
		s.logger.Warn("engine: demote active session failed", "peer", peer, "error", err)
		return
	}
	if err := s.ratchets.SaveConversation(activeKey(peer), drainConv); err != nil {
		s.logger.Warn("engine: promote draining conversation failed", "peer", peer, "error", err)
		return
	}
	if err := s.ratchets.SaveConversation(drainingKey(peer), activeConv); err != nil {
		s.logger.Warn("engine: demote active conversation failed", "peer", peer, "error", err)
	}
}

// StorePeerDevice implements domain.Engine: pins deviceID's identity key on
// first encounter, or checks it against the pinned record.
func (s *Service) StorePeerDevice(deviceID domaintypes.Username, identityKey domaintypes.DHPublicKey) (int64, error) {
	rowID, mismatch, err := s.peers.PinPeerDevice(deviceID, identityKey)
	if err != nil {
		return 0, fmt.Errorf("engine: %w: %v", apperr.ErrStorage, err)
	}
	if mismatch {
		return rowID, fmt.Errorf("engine: %w", apperr.ErrPeerIdentityMismatch)
	}
	return rowID, nil
}
