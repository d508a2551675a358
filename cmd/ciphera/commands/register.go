package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Publish your prekey bundle to the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, err := unlock()
			if err != nil {
				return err
			}

			// Generate a signed pre-key and a batch of one-time pre-keys.
			if _, _, err := appCtx.Prekey.GenerateAndStorePreKeys(passphrase, wire.Config.OPKBatchSize); err != nil {
				return err
			}

			// Assemble the public bundle and cache it.
			bundle, err := appCtx.Prekey.LoadPreKeyBundle(passphrase, deviceID())
			if err != nil {
				return err
			}

			if err := appCtx.Relay.RegisterPreKeyBundle(context.Background(), bundle); err != nil {
				return err
			}

			fmt.Println("Registered prekeys with relay")
			return nil
		},
	}
	return cmd
}
