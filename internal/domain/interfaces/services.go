package interfaces

import (
	"context"

	domaintypes "github.com/itechstro/lime/internal/domain/types"
)

// IdentityService creates, retrieves, and inspects long-term identity keys.
type IdentityService interface {
	GenerateIdentity(passphrase string, curve domaintypes.CurveID) (
		domaintypes.Identity,
		domaintypes.Fingerprint,
		error,
	)
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
	FingerprintIdentity(passphrase string) (domaintypes.Fingerprint, error)
}

// PreKeyService generates, rotates, and assembles pre-key bundles.
type PreKeyService interface {
	GenerateAndStorePreKeys(passphrase string, count int) (
		domaintypes.DHPublicKey,
		[]domaintypes.OneTimePreKeyPublic,
		error,
	)
	LoadPreKeyBundle(passphrase string, deviceID domaintypes.Username) (
		domaintypes.PreKeyBundle,
		error,
	)
	// RotateSignedPreKey issues a fresh signed pre-key, keeping the previous
	// one available until its grace period elapses (spec.md §6 spk_lifetime).
	RotateSignedPreKey(passphrase string) (domaintypes.SignedPreKeyPair, error)
	// PruneExpiredSignedPreKeys erases signed pre-keys created before
	// olderThanUTC, other than the current one; the caller computes that
	// cutoff (for example from spk_lifetime+spk_grace).
	PruneExpiredSignedPreKeys(olderThanUTC int64) error
	// ReplenishOneTimePreKeys generates and stores a fresh batch of local
	// one-time pre-keys. It does not compare remainingOnServer against
	// opk_server_low_limit; the caller decides when to call it.
	ReplenishOneTimePreKeys(passphrase string, remainingOnServer int) ([]domaintypes.OneTimePreKeyPublic, error)
}

// Engine establishes X3DH sessions and drives the Double Ratchet, per
// spec.md §4.F's session orchestrator.
type Engine interface {
	Encrypt(ctx context.Context, peerDeviceID domaintypes.Username, plaintext []byte) (domaintypes.Envelope, error)
	Decrypt(ctx context.Context, env domaintypes.Envelope) (domaintypes.DecryptedMessage, error)
	StorePeerDevice(deviceID domaintypes.Username, identityKey domaintypes.DHPublicKey) (int64, error)
}

// MessageService is the CLI-facing façade over the Engine plus transport.
type MessageService interface {
	SendMessage(ctx context.Context, from, to domaintypes.Username, plaintext []byte) error
	ReceiveMessages(ctx context.Context, me domaintypes.Username, limit int) ([]domaintypes.DecryptedMessage, error)
}
