package interfaces

import (
	"context"

	domaintypes "github.com/itechstro/lime/internal/domain/types"
)

// RelayClient is the transport to the key-distribution server: request/
// response over an HTTP-like channel posting the x3dhcodec wire messages
// of spec.md §4.C (spec.md §6 EXTERNAL INTERFACES).
type RelayClient interface {
	RegisterPreKeyBundle(ctx context.Context, bundle domaintypes.PreKeyBundle) error
	DeleteUser(ctx context.Context, deviceID domaintypes.Username) error
	PostSignedPreKey(ctx context.Context, deviceID domaintypes.Username, pair domaintypes.SignedPreKeyPair) error
	PostOneTimePreKeys(ctx context.Context, deviceID domaintypes.Username, pubs []domaintypes.OneTimePreKeyPublic) error

	// FetchPeerBundle may be cancelled via ctx; a cancelled in-flight fetch
	// surfaces Cancelled to any request queued behind it (spec.md §5).
	FetchPeerBundle(ctx context.Context, deviceID domaintypes.Username) (domaintypes.PreKeyBundle, error)

	SendMessage(ctx context.Context, envelope domaintypes.Envelope) error
	FetchMessages(ctx context.Context, deviceID domaintypes.Username, limit int) ([]domaintypes.Envelope, error)
	AckMessages(ctx context.Context, deviceID domaintypes.Username, count int) error
}
