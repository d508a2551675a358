package engine_test

import (
	"context"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/itechstro/lime/internal/apperr"
	"github.com/itechstro/lime/internal/cryptosuite"
	domaintypes "github.com/itechstro/lime/internal/domain/types"
	"github.com/itechstro/lime/internal/engine"
)

// memStores is an in-memory fake satisfying the engine's store interfaces,
// one instance per simulated device.
type memStores struct {
	mu sync.Mutex

	signedPreKeys map[domaintypes.SignedPreKeyID]domaintypes.SignedPreKeyPair
	oneTimeKeys   map[domaintypes.OneTimePreKeyID]domaintypes.OneTimePreKeyPair
	currentSPKID  domaintypes.SignedPreKeyID
	hasCurrentSPK bool

	peers map[domaintypes.Username]domaintypes.PeerDevice

	activeSessions   map[domaintypes.Username]domaintypes.Session
	drainingSessions map[domaintypes.Username]domaintypes.Session

	conversations map[domaintypes.ConversationID]domaintypes.Conversation
}

func newMemStores() *memStores {
	return &memStores{
		signedPreKeys:    make(map[domaintypes.SignedPreKeyID]domaintypes.SignedPreKeyPair),
		oneTimeKeys:      make(map[domaintypes.OneTimePreKeyID]domaintypes.OneTimePreKeyPair),
		peers:            make(map[domaintypes.Username]domaintypes.PeerDevice),
		activeSessions:   make(map[domaintypes.Username]domaintypes.Session),
		drainingSessions: make(map[domaintypes.Username]domaintypes.Session),
		conversations:    make(map[domaintypes.ConversationID]domaintypes.Conversation),
	}
}

func (m *memStores) SaveSignedPreKey(pair domaintypes.SignedPreKeyPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signedPreKeys[pair.ID] = pair
	return nil
}

func (m *memStores) LoadSignedPreKey(id domaintypes.SignedPreKeyID) (domaintypes.SignedPreKeyPair, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.signedPreKeys[id]
	return p, ok, nil
}

func (m *memStores) ListSignedPreKeys() ([]domaintypes.SignedPreKeyPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domaintypes.SignedPreKeyPair, 0, len(m.signedPreKeys))
	for _, p := range m.signedPreKeys {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStores) DeleteSignedPreKey(id domaintypes.SignedPreKeyID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.signedPreKeys, id)
	return nil
}

func (m *memStores) SaveOneTimePreKeys(pairs []domaintypes.OneTimePreKeyPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range pairs {
		m.oneTimeKeys[p.ID] = p
	}
	return nil
}

func (m *memStores) ConsumeOneTimePreKey(id domaintypes.OneTimePreKeyID) (domaintypes.OneTimePreKeyPair, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.oneTimeKeys[id]
	if ok {
		delete(m.oneTimeKeys, id)
	}
	return p, ok, nil
}

func (m *memStores) ListOneTimePreKeyPublics() ([]domaintypes.OneTimePreKeyPublic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domaintypes.OneTimePreKeyPublic, 0, len(m.oneTimeKeys))
	for _, p := range m.oneTimeKeys {
		out = append(out, domaintypes.OneTimePreKeyPublic{ID: p.ID, Pub: p.Pub})
	}
	return out, nil
}

func (m *memStores) CountOneTimePreKeys() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.oneTimeKeys), nil
}

func (m *memStores) SetCurrentSignedPreKeyID(id domaintypes.SignedPreKeyID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentSPKID, m.hasCurrentSPK = id, true
	return nil
}

func (m *memStores) CurrentSignedPreKeyID() (domaintypes.SignedPreKeyID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentSPKID, m.hasCurrentSPK, nil
}

func (m *memStores) PinPeerDevice(deviceID domaintypes.Username, identityKey domaintypes.DHPublicKey) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.peers[deviceID]
	if !ok {
		m.peers[deviceID] = domaintypes.PeerDevice{RowID: int64(len(m.peers) + 1), DeviceID: deviceID, IdentityKey: identityKey, Status: domaintypes.PeerTrusted}
		return m.peers[deviceID].RowID, false, nil
	}
	if string(existing.IdentityKey.Slice()) != string(identityKey.Slice()) {
		existing.Status = domaintypes.PeerUntrustedMismatch
		m.peers[deviceID] = existing
		return existing.RowID, true, nil
	}
	return existing.RowID, false, nil
}

func (m *memStores) LoadPeerDevice(deviceID domaintypes.Username) (domaintypes.PeerDevice, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peers[deviceID]
	return p, ok, nil
}

func (m *memStores) DeletePeerDevice(deviceID domaintypes.Username) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.peers, deviceID)
	return nil
}

func (m *memStores) SaveSession(peer domaintypes.Username, session domaintypes.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session.Draining {
		m.drainingSessions[peer] = session
	} else {
		m.activeSessions[peer] = session
	}
	return nil
}

func (m *memStores) LoadActiveSession(peer domaintypes.Username) (domaintypes.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.activeSessions[peer]
	return s, ok, nil
}

func (m *memStores) LoadDrainingSession(peer domaintypes.Username) (domaintypes.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.drainingSessions[peer]
	return s, ok, nil
}

func (m *memStores) DeleteSession(peer domaintypes.Username, draining bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if draining {
		delete(m.drainingSessions, peer)
	} else {
		delete(m.activeSessions, peer)
	}
	return nil
}

func (m *memStores) SaveConversation(peer domaintypes.ConversationID, conversation domaintypes.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[peer] = conversation
	return nil
}

func (m *memStores) LoadConversation(peer domaintypes.ConversationID) (domaintypes.Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[peer]
	return c, ok, nil
}

func (m *memStores) DeleteConversation(peer domaintypes.ConversationID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conversations, peer)
	return nil
}

// fakeRelay serves FetchPeerBundle from a directory of registered bundles,
// and implements the rest of domain.RelayClient with no-ops the engine
// tests never exercise.
type fakeRelay struct {
	mu      sync.Mutex
	bundles map[domaintypes.Username]domaintypes.PreKeyBundle
	delay   time.Duration
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{bundles: make(map[domaintypes.Username]domaintypes.PreKeyBundle)}
}

func (r *fakeRelay) register(deviceID domaintypes.Username, bundle domaintypes.PreKeyBundle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bundles[deviceID] = bundle
}

func (r *fakeRelay) RegisterPreKeyBundle(ctx context.Context, bundle domaintypes.PreKeyBundle) error {
	r.register(bundle.DeviceID, bundle)
	return nil
}
func (r *fakeRelay) DeleteUser(ctx context.Context, deviceID domaintypes.Username) error { return nil }
func (r *fakeRelay) PostSignedPreKey(ctx context.Context, deviceID domaintypes.Username, pair domaintypes.SignedPreKeyPair) error {
	return nil
}
func (r *fakeRelay) PostOneTimePreKeys(ctx context.Context, deviceID domaintypes.Username, pubs []domaintypes.OneTimePreKeyPublic) error {
	return nil
}

func (r *fakeRelay) FetchPeerBundle(ctx context.Context, deviceID domaintypes.Username) (domaintypes.PreKeyBundle, error) {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return domaintypes.PreKeyBundle{}, ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bundles[deviceID]
	if !ok {
		return domaintypes.PreKeyBundle{}, apperr.ErrUnknownPreKey
	}
	return b, nil
}

func (r *fakeRelay) SendMessage(ctx context.Context, envelope domaintypes.Envelope) error { return nil }
func (r *fakeRelay) FetchMessages(ctx context.Context, deviceID domaintypes.Username, limit int) ([]domaintypes.Envelope, error) {
	return nil, nil
}
func (r *fakeRelay) AckMessages(ctx context.Context, deviceID domaintypes.Username, count int) error {
	return nil
}

// harness bundles one simulated device: its identity, stores, and engine.
type harness struct {
	deviceID domaintypes.Username
	identity domaintypes.Identity
	stores   *memStores
	svc      *engine.Service
}

func newHarness(t *testing.T, suite cryptosuite.Suite, deviceID domaintypes.Username, relay *fakeRelay) *harness {
	t.Helper()
	signingPriv, signingPub, err := suite.GenerateSigningKeyPair(rand.Reader)
	require.NoError(t, err)
	dhPriv, dhPub, err := suite.ConvertSigningToDH(signingPriv, signingPub)
	require.NoError(t, err)

	identity := domaintypes.Identity{
		Curve:       suite.ID(),
		SigningPub:  domaintypes.NewSigningPublicKey(suite.ID(), signingPub),
		SigningPriv: domaintypes.NewSigningPrivateKey(suite.ID(), signingPriv),
		DHPub:       domaintypes.NewDHPublicKey(suite.ID(), dhPub),
		DHPriv:      domaintypes.NewDHPrivateKey(suite.ID(), dhPriv),
	}

	stores := newMemStores()
	svc := engine.New(engine.Config{
		Suite:        suite,
		SelfDeviceID: deviceID,
		Identity:     identity,
		PreKeys:      stores,
		Peers:        stores,
		Sessions:     stores,
		Ratchets:     stores,
		Relay:        relay,
	})
	return &harness{deviceID: deviceID, identity: identity, stores: stores, svc: svc}
}

// publishBundle generates a signed pre-key (and one one-time pre-key) for h
// and registers the resulting bundle with relay.
func (h *harness) publishBundle(t *testing.T, suite cryptosuite.Suite, relay *fakeRelay, withOPK bool) {
	t.Helper()
	spkPriv, spkPub, err := suite.GenerateDHKeyPair(rand.Reader)
	require.NoError(t, err)
	spkSig := suite.Sign(h.identity.SigningPriv.Slice(), spkPub)
	spkPair := domaintypes.SignedPreKeyPair{ID: 1, Priv: domaintypes.NewDHPrivateKey(suite.ID(), spkPriv), Pub: domaintypes.NewDHPublicKey(suite.ID(), spkPub), Signature: spkSig}
	require.NoError(t, h.stores.SaveSignedPreKey(spkPair))
	require.NoError(t, h.stores.SetCurrentSignedPreKeyID(spkPair.ID))

	bundle := domaintypes.PreKeyBundle{
		Curve:           suite.ID(),
		DeviceID:        h.deviceID,
		IdentityKey:     h.identity.DHPub,
		SigningKey:      h.identity.SigningPub,
		SignedPreKeyID:  spkPair.ID,
		SignedPreKey:    spkPair.Pub,
		SignedPreKeySig: spkPair.Signature,
	}
	if withOPK {
		opkPriv, opkPub, err := suite.GenerateDHKeyPair(rand.Reader)
		require.NoError(t, err)
		opkPair := domaintypes.OneTimePreKeyPair{ID: 50, Priv: domaintypes.NewDHPrivateKey(suite.ID(), opkPriv), Pub: domaintypes.NewDHPublicKey(suite.ID(), opkPub)}
		require.NoError(t, h.stores.SaveOneTimePreKeys([]domaintypes.OneTimePreKeyPair{opkPair}))
		bundle.OneTimePreKey = &domaintypes.OneTimePreKeyPublic{ID: opkPair.ID, Pub: opkPair.Pub}
	}
	relay.register(h.deviceID, bundle)
}

func TestEncryptDecryptEstablishesSessionAndRoundTrips(t *testing.T) {
	suite, err := cryptosuite.ForCurve(cryptosuite.Curve255)
	require.NoError(t, err)

	relay := newFakeRelay()
	alice := newHarness(t, suite, "alice-phone", relay)
	bob := newHarness(t, suite, "bob-laptop", relay)
	bob.publishBundle(t, suite, relay, true)

	ctx := context.Background()
	env, err := alice.svc.Encrypt(ctx, "bob-laptop", []byte("hello bob"))
	require.NoError(t, err)
	require.NotNil(t, env.PreKey)

	dm, err := bob.svc.Decrypt(ctx, env)
	require.NoError(t, err)
	require.Equal(t, "hello bob", string(dm.Plaintext))

	// Bob replies; no pre-key header this time since the session is live.
	reply, err := bob.svc.Encrypt(ctx, "alice-phone", []byte("hi alice"))
	require.NoError(t, err)
	require.Nil(t, reply.PreKey)

	dm2, err := alice.svc.Decrypt(ctx, reply)
	require.NoError(t, err)
	require.Equal(t, "hi alice", string(dm2.Plaintext))

	// A second message from Alice reuses the established session (no fetch).
	env2, err := alice.svc.Encrypt(ctx, "bob-laptop", []byte("second message"))
	require.NoError(t, err)
	require.Nil(t, env2.PreKey)
	dm3, err := bob.svc.Decrypt(ctx, env2)
	require.NoError(t, err)
	require.Equal(t, "second message", string(dm3.Plaintext))
}

func TestEncryptRejectsMismatchedPinnedIdentity(t *testing.T) {
	suite, err := cryptosuite.ForCurve(cryptosuite.Curve255)
	require.NoError(t, err)

	relay := newFakeRelay()
	alice := newHarness(t, suite, "alice-phone", relay)
	bob := newHarness(t, suite, "bob-laptop", relay)
	bob.publishBundle(t, suite, relay, false)

	ctx := context.Background()
	_, err = alice.svc.Encrypt(ctx, "bob-laptop", []byte("first"))
	require.NoError(t, err)

	// Bob reinstalls with a new identity key; the relay now serves a bundle
	// under a changed identity key while alice has already pinned the old one.
	evil := newHarness(t, suite, "bob-laptop-evil", relay)

	_, spkPub, err := suite.GenerateDHKeyPair(rand.Reader)
	require.NoError(t, err)
	spkSig := suite.Sign(evil.identity.SigningPriv.Slice(), spkPub)
	relay.register("bob-laptop", domaintypes.PreKeyBundle{
		Curve:           suite.ID(),
		DeviceID:        "bob-laptop",
		IdentityKey:     evil.identity.DHPub,
		SigningKey:      evil.identity.SigningPub,
		SignedPreKeyID:  2,
		SignedPreKey:    domaintypes.NewDHPublicKey(suite.ID(), spkPub),
		SignedPreKeySig: spkSig,
	})

	// Force re-establishment by dropping alice's cached session.
	require.NoError(t, alice.stores.DeleteConversation(domaintypes.ConversationID("bob-laptop|active")))
	require.NoError(t, alice.stores.DeleteSession("bob-laptop", false))

	_, err = alice.svc.Encrypt(ctx, "bob-laptop", []byte("should fail"))
	require.ErrorIs(t, err, apperr.ErrPeerIdentityMismatch)
}

func TestEncryptFetchCancellationFailsWaiters(t *testing.T) {
	suite, err := cryptosuite.ForCurve(cryptosuite.Curve255)
	require.NoError(t, err)

	relay := newFakeRelay()
	relay.delay = 200 * time.Millisecond
	alice := newHarness(t, suite, "alice-phone", relay)
	bob := newHarness(t, suite, "bob-laptop", relay)
	bob.publishBundle(t, suite, relay, false)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = alice.svc.Encrypt(ctx, "bob-laptop", []byte("a"))
	}()
	time.Sleep(20 * time.Millisecond)
	go func() {
		defer wg.Done()
		_, errs[1] = alice.svc.Encrypt(ctx, "bob-laptop", []byte("b"))
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	wg.Wait()

	require.ErrorIs(t, errs[0], apperr.ErrCancelled)
	require.ErrorIs(t, errs[1], apperr.ErrCancelled)
}

func TestDecryptWithoutSessionOrPreKeyFails(t *testing.T) {
	suite, err := cryptosuite.ForCurve(cryptosuite.Curve255)
	require.NoError(t, err)

	relay := newFakeRelay()
	bob := newHarness(t, suite, "bob-laptop", relay)

	env := domaintypes.Envelope{From: "nobody", To: "bob-laptop", Header: domaintypes.RatchetHeader{Curve: suite.ID()}, Cipher: []byte("x")}
	_, err = bob.svc.Decrypt(context.Background(), env)
	require.ErrorIs(t, err, apperr.ErrOutOfOrderOrReplay)
}
