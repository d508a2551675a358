package main

import (
	"os"

	"github.com/itechstro/lime/cmd/ciphera/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
