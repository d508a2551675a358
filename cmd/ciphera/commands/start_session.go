package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itechstro/lime/internal/cryptosuite"
	domaintypes "github.com/itechstro/lime/internal/domain/types"
)

// startSessionCmd fetches a peer's prekey bundle and pins its identity key,
// so a first send-triggered X3DH handshake (spec.md §4.D) has a trusted
// identity to authenticate against. The ratchet itself is established
// lazily on the first Encrypt call, not here.
func startSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start-session <peer>",
		Short: "Pin a peer's identity key ahead of the first message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer := domaintypes.Username(args[0])

			appCtx, err := unlock()
			if err != nil {
				return err
			}

			bundle, err := appCtx.Relay.FetchPeerBundle(context.Background(), peer)
			if err != nil {
				return fmt.Errorf("fetching bundle for %q: %w", peer, err)
			}

			rowID, err := appCtx.Engine.StorePeerDevice(peer, bundle.IdentityKey)
			if err != nil {
				return fmt.Errorf("pinning %q: %w", peer, err)
			}

			fmt.Printf("Pinned %s (row %d). Fingerprint=%s\n", peer, rowID, cryptosuite.Fingerprint(bundle.IdentityKey.Slice()))
			return nil
		},
	}
}
