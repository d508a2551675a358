package interfaces

import domaintypes "github.com/itechstro/lime/internal/domain/types"

// IdentityStore persists the local long-term identity keys.
type IdentityStore interface {
	SaveIdentity(passphrase string, id domaintypes.Identity) error
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
}

// PreKeyStore manages signed and one-time pre-keys on disk.
type PreKeyStore interface {
	SaveSignedPreKey(pair domaintypes.SignedPreKeyPair) error
	LoadSignedPreKey(id domaintypes.SignedPreKeyID) (domaintypes.SignedPreKeyPair, bool, error)
	ListSignedPreKeys() ([]domaintypes.SignedPreKeyPair, error)
	DeleteSignedPreKey(id domaintypes.SignedPreKeyID) error

	SaveOneTimePreKeys(pairs []domaintypes.OneTimePreKeyPair) error
	ConsumeOneTimePreKey(id domaintypes.OneTimePreKeyID) (domaintypes.OneTimePreKeyPair, bool, error)
	ListOneTimePreKeyPublics() ([]domaintypes.OneTimePreKeyPublic, error)
	CountOneTimePreKeys() (int, error)

	SetCurrentSignedPreKeyID(id domaintypes.SignedPreKeyID) error
	CurrentSignedPreKeyID() (domaintypes.SignedPreKeyID, bool, error)
}

// PreKeyBundleStore caches the last bundle registered with the transport.
type PreKeyBundleStore interface {
	SavePreKeyBundle(bundle domaintypes.PreKeyBundle) error
	LoadPreKeyBundle(deviceID domaintypes.Username) (domaintypes.PreKeyBundle, bool, error)
}

// PeerDeviceStore pins peer identities on first encounter (spec.md §3).
type PeerDeviceStore interface {
	// PinPeerDevice inserts the peer record on first encounter, or checks
	// the pinned identity key against the stored one on subsequent calls.
	// It returns the stable row id and whether a mismatch was detected.
	PinPeerDevice(deviceID domaintypes.Username, identityKey domaintypes.DHPublicKey) (rowID int64, mismatch bool, err error)
	LoadPeerDevice(deviceID domaintypes.Username) (domaintypes.PeerDevice, bool, error)
	DeletePeerDevice(deviceID domaintypes.Username) error
}

// SessionStore persists established X3DH sessions, including draining ones.
type SessionStore interface {
	SaveSession(peer domaintypes.Username, session domaintypes.Session) error
	LoadActiveSession(peer domaintypes.Username) (domaintypes.Session, bool, error)
	LoadDrainingSession(peer domaintypes.Username) (domaintypes.Session, bool, error)
	DeleteSession(peer domaintypes.Username, draining bool) error
}

// RatchetStore keeps per-peer Double Ratchet state, one entry per session
// (active or draining), keyed the same way as SessionStore.
type RatchetStore interface {
	SaveConversation(peer domaintypes.ConversationID, conversation domaintypes.Conversation) error
	LoadConversation(peer domaintypes.ConversationID) (domaintypes.Conversation, bool, error)
	DeleteConversation(peer domaintypes.ConversationID) error
}
