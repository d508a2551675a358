package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// recv: fetch and decrypt queued messages for --username.
func recvCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Fetch and decrypt your queued messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, err := unlock()
			if err != nil {
				return err
			}

			msgs, err := appCtx.Messages.ReceiveMessages(context.Background(), appCtx.SelfDeviceID, limit)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				fmt.Printf("[%s] %s\n", m.From, string(m.Plaintext))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of messages to fetch (0 = server default)")
	return cmd
}
