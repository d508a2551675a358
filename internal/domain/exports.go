package domain

import (
	interfaces "github.com/itechstro/lime/internal/domain/interfaces"
	types "github.com/itechstro/lime/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	CurveID             = types.CurveID
	Username            = types.Username
	Fingerprint         = types.Fingerprint
	ConversationID      = types.ConversationID
	SignedPreKeyID      = types.SignedPreKeyID
	OneTimePreKeyID     = types.OneTimePreKeyID
	Identity            = types.Identity
	DHPublicKey         = types.DHPublicKey
	DHPrivateKey        = types.DHPrivateKey
	SigningPublicKey    = types.SigningPublicKey
	SigningPrivateKey   = types.SigningPrivateKey
	SignedPreKeyPair    = types.SignedPreKeyPair
	OneTimePreKeyPair   = types.OneTimePreKeyPair
	OneTimePreKeyPublic = types.OneTimePreKeyPublic
	PreKeyBundle        = types.PreKeyBundle
	PreKeyMessage       = types.PreKeyMessage
	Envelope            = types.Envelope
	DecryptedMessage    = types.DecryptedMessage
	RatchetHeader       = types.RatchetHeader
	RatchetState        = types.RatchetState
	SkippedChain        = types.SkippedChain
	SkippedMessageKey   = types.SkippedMessageKey
	Conversation        = types.Conversation
	Session             = types.Session
	PeerDevice          = types.PeerDevice
	PeerDeviceStatus    = types.PeerDeviceStatus
	AccountProfile      = types.AccountProfile
)

const (
	Curve255 = types.Curve255
	Curve448 = types.Curve448

	PeerUntrusted         = types.PeerUntrusted
	PeerTrusted           = types.PeerTrusted
	PeerUntrustedMismatch = types.PeerUntrustedMismatch
)

// Constructors re-exported for compact call sites outside internal/domain.
var (
	NewDHPublicKey       = types.NewDHPublicKey
	NewDHPrivateKey      = types.NewDHPrivateKey
	NewSigningPublicKey  = types.NewSigningPublicKey
	NewSigningPrivateKey = types.NewSigningPrivateKey
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityService   = interfaces.IdentityService
	PreKeyService     = interfaces.PreKeyService
	Engine            = interfaces.Engine
	MessageService    = interfaces.MessageService
	RelayClient       = interfaces.RelayClient
	IdentityStore     = interfaces.IdentityStore
	PreKeyStore       = interfaces.PreKeyStore
	PreKeyBundleStore = interfaces.PreKeyBundleStore
	PeerDeviceStore   = interfaces.PeerDeviceStore
	SessionStore      = interfaces.SessionStore
	RatchetStore      = interfaces.RatchetStore
	AccountStore      = interfaces.AccountStore
)
