package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate identity keys and store them securely",
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			_, fp, err := wire.IDs.GenerateIdentity(passphrase, wire.Config.Curve)
			if err != nil {
				return err
			}
			fmt.Printf("Identity created (%s).\nFingerprint: %s\n", wire.Config.Curve, fp)
			return nil
		},
	}
}
