package main

import (
	"fmt"
	"os"

	"github.com/datatone/tonewire/cmd"
	"github.com/datatone/tonewire/internal/conf"
	"github.com/datatone/tonewire/internal/logging"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	logging.Init()

	// Load configuration before building the command tree; flag defaults
	// come from viper.
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	settings.Version = version

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
