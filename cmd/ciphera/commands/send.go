package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	domaintypes "github.com/itechstro/lime/internal/domain/types"
)

// send <peer> <message>: encrypt and send a message to <peer>.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer> <message>",
		Short: "Encrypt and send a message to a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, err := unlock()
			if err != nil {
				return err
			}
			peer := domaintypes.Username(args[0])
			msg := []byte(args[1])

			if err := appCtx.Messages.SendMessage(context.Background(), appCtx.SelfDeviceID, peer, msg); err != nil {
				return err
			}
			fmt.Println("sent")
			return nil
		},
	}
}
