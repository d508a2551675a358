package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/itechstro/lime/internal/app"
	"github.com/itechstro/lime/internal/cryptosuite"
	domaintypes "github.com/itechstro/lime/internal/domain/types"
	"github.com/itechstro/lime/internal/logging"
)

var (
	configFile string
	home       string
	relayURL   string
	curveFlag  string
	logLevel   string

	passphrase string
	username   string

	wire *app.Wire
)

// deviceID returns the local device identifier for the active command,
// which for this single-device CLI is just --username.
func deviceID() domaintypes.Username { return domaintypes.Username(username) }

// unlock loads the local identity and returns an App ready to encrypt,
// decrypt, and talk to the relay. Commands that don't need an unlocked App
// (init and fingerprint) skip this.
func unlock() (*app.App, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase required (-p)")
	}
	if username == "" {
		return nil, fmt.Errorf("--username required")
	}
	return wire.Unlock(passphrase, deviceID())
}

func Execute() error {
	root := &cobra.Command{
		Use:   "lime",
		Short: "X3DH + Double Ratchet end-to-end encrypted chat CLI",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(configFile)
			if err != nil {
				return err
			}
			if home != "" {
				cfg.Home = home
			} else if cfg.Home == "" || cfg.Home == "$HOME/.lime" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				cfg.Home = filepath.Join(dir, ".lime")
			}
			if relayURL != "" {
				cfg.RelayURL = relayURL
			}
			if curveFlag != "" {
				switch curveFlag {
				case "curve448":
					cfg.Curve = cryptosuite.Curve448
				default:
					cfg.Curve = cryptosuite.Curve255
				}
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
				return err
			}

			logger := logging.New(os.Stderr, logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
			wire = app.NewWire(cfg, logger)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.lime)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase to protect keys")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay base URL (e.g. http://127.0.0.1:8080)")
	root.PersistentFlags().StringVar(&curveFlag, "curve", "", "curve suite: curve255 (default) or curve448")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&username, "username", "", "your device identifier (same as you registered with)")

	root.AddCommand(initCmd(), fingerprintCmd(), registerCmd(), startSessionCmd(), sendCmd(), recvCmd())
	return root.Execute()
}
