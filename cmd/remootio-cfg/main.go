// Remootio-cfg adds, inspects and removes Remootio devices.
//
// It discovers devices over mDNS, validates the API keys against the live
// device and stores one config entry per device serial number. A running
// remootio-bridge picks the changes up on reload.
//
// Usage:
//
//	remootio-cfg [command] [flags]
//
// Running without arguments launches the interactive wizard.
// See 'remootio-cfg --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/remootio/internal/logging"
	"github.com/muurk/remootio/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "remootio-cfg",
	Short: "Remootio Device Configuration Utility",
	Long: `A utility for onboarding Remootio garage door and gate controllers.

Finds devices on the local network, checks the API keys against the device
and stores a config entry that remootio-bridge uses to connect.

If no command is specified, the interactive wizard will launch automatically.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: run wizard when no subcommand provided
		return runWizard(cmd, args)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: OS config dir/remootio/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error; default: $"+logging.LogLevelEnvVar+" or silent)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("remootio-cfg %s\n", version.Full())
		fmt.Printf("  %s\n", version.Platform())
	},
}
