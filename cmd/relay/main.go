package main

import (
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/itechstro/lime/internal/logging"
	"github.com/itechstro/lime/internal/relayserver"
)

func main() {
	var addr, logLevel, logFormat string

	root := &cobra.Command{
		Use:   "lime-relay",
		Short: "Store-and-forward key-distribution and mailbox relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New(os.Stderr, logging.ParseLevel(logLevel), logFormat)
			store := relayserver.NewStore()
			handler := relayserver.New(store, logger)
			logger.Info("relay listening", "addr", addr)
			return http.ListenAndServe(addr, handler)
		},
	}

	root.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.Flags().StringVar(&logFormat, "log-format", "console", "log format: console or json")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
