// Package relayserver implements the store-and-forward key-distribution
// and mailbox service that internal/relay.HTTP talks to: it accepts
// published identity/pre-key material, serves peer bundles (consuming one
// one-time pre-key per fetch), and queues/delivers encrypted envelopes
// (spec.md §6 EXTERNAL INTERFACES).
package relayserver

import (
	"sync"

	"github.com/itechstro/lime/internal/cryptosuite"
	domaintypes "github.com/itechstro/lime/internal/domain/types"
)

type signedPreKey struct {
	id  uint32
	pub []byte
	sig []byte
}

type oneTimePreKey struct {
	id  uint32
	pub []byte
}

type account struct {
	curve       cryptosuite.CurveID
	identityKey []byte
	spk         signedPreKey
	opks        []oneTimePreKey
}

// Store is an in-memory registry of published identities/pre-keys and
// per-device mailboxes, grounded on the teacher's mutex-guarded map
// (cmd/relay's original memoryStore), extended to the full account and
// message-queue shape spec.md §6 requires.
type Store struct {
	mu       sync.Mutex
	accounts map[domaintypes.Username]*account
	mailbox  map[domaintypes.Username][]domaintypes.Envelope
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[domaintypes.Username]*account),
		mailbox:  make(map[domaintypes.Username][]domaintypes.Envelope),
	}
}

func (s *Store) get(deviceID domaintypes.Username) *account {
	a, ok := s.accounts[deviceID]
	if !ok {
		a = &account{}
		s.accounts[deviceID] = a
	}
	return a
}

// RegisterUser records deviceID's identity key under curve.
func (s *Store) RegisterUser(deviceID domaintypes.Username, curve cryptosuite.CurveID, identityKey []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.get(deviceID)
	a.curve = curve
	a.identityKey = identityKey
}

// DeleteUser removes deviceID's account and mailbox entirely.
func (s *Store) DeleteUser(deviceID domaintypes.Username) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, deviceID)
	delete(s.mailbox, deviceID)
}

// PostSignedPreKey replaces deviceID's current signed pre-key.
func (s *Store) PostSignedPreKey(deviceID domaintypes.Username, id uint32, pub, sig []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(deviceID).spk = signedPreKey{id: id, pub: pub, sig: sig}
}

// PostOneTimePreKeys appends to deviceID's one-time pre-key stock.
func (s *Store) PostOneTimePreKeys(deviceID domaintypes.Username, entries []struct {
	ID  uint32
	Pub []byte
}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.get(deviceID)
	for _, e := range entries {
		a.opks = append(a.opks, oneTimePreKey{id: e.ID, pub: e.Pub})
	}
}

// Bundle is the server's view of a device's public key material, with at
// most one one-time pre-key consumed from stock.
type Bundle struct {
	Curve       cryptosuite.CurveID
	IdentityKey []byte
	HasSPK      bool
	SPKID       uint32
	SPKPub      []byte
	SPKSig      []byte
	HasOPK      bool
	OPKID       uint32
	OPKPub      []byte
	Found       bool
}

// FetchBundle returns deviceID's current bundle, consuming one one-time
// pre-key from stock if any remain (spec.md §3: OPKs are single-use).
func (s *Store) FetchBundle(deviceID domaintypes.Username) Bundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[deviceID]
	if !ok {
		return Bundle{}
	}
	b := Bundle{
		Curve:       a.curve,
		IdentityKey: a.identityKey,
		HasSPK:      a.spk.pub != nil,
		SPKID:       a.spk.id,
		SPKPub:      a.spk.pub,
		SPKSig:      a.spk.sig,
		Found:       true,
	}
	if len(a.opks) > 0 {
		opk := a.opks[0]
		a.opks = a.opks[1:]
		b.HasOPK = true
		b.OPKID = opk.id
		b.OPKPub = opk.pub
	}
	return b
}

// Enqueue appends env to env.To's mailbox.
func (s *Store) Enqueue(env domaintypes.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mailbox[env.To] = append(s.mailbox[env.To], env)
}

// Fetch returns up to limit queued envelopes for deviceID, oldest first.
// limit <= 0 means no cap.
func (s *Store) Fetch(deviceID domaintypes.Username, limit int) []domaintypes.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.mailbox[deviceID]
	if limit > 0 && len(q) > limit {
		q = q[:limit]
	}
	out := make([]domaintypes.Envelope, len(q))
	copy(out, q)
	return out
}

// Ack removes the first count queued envelopes for deviceID.
func (s *Store) Ack(deviceID domaintypes.Username, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.mailbox[deviceID]
	if count >= len(q) {
		delete(s.mailbox, deviceID)
		return
	}
	s.mailbox[deviceID] = q[count:]
}
