// Remootio-bridge keeps a session open to every configured Remootio device.
//
// It reads the config entries written by remootio-cfg, reconnects dropped
// sessions with backoff, publishes door state over MQTT when configured and
// serves an HTTP API with the onboarding flow, entry status and Prometheus
// metrics.
//
// Usage:
//
//	remootio-bridge run [flags]
//
// See 'remootio-bridge run --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/remootio/internal/server"
	"github.com/muurk/remootio/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "remootio-bridge",
	Short: "Remootio Bridge",
	Long: `A long-running bridge between Remootio devices and the rest of the network.

Every config entry gets its own device session. State changes are published
over MQTT when preferences.bridge.mqtt is set, and the HTTP API exposes the
onboarding flow, entry status, a reload endpoint and Prometheus metrics.

Note: For adding devices interactively, use the separate 'remootio-cfg' utility.`,
	Version:      version.Version,
	SilenceUsage: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

// Run command and flags
var (
	configPath string
	listenAddr string
	logLevel   string
	noMQTT     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bridge",
	Long: `Start the bridge and supervise every configured device.

The config file is shared with remootio-cfg. After editing it, send SIGHUP or
POST /api/reload to apply the changes without a restart.`,
	Example: `  # Start with the default config file and listen address
  remootio-bridge run

  # Custom listen address and debug logging
  remootio-bridge run --listen 127.0.0.1:9480 --log-level debug

  # Keep MQTT off even when configured
  remootio-bridge run --no-mqtt`,
	RunE: runBridge,
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Config file (default: OS config dir/remootio/config.yaml)")
	runCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (default: preferences.bridge.listen_addr)")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&noMQTT, "no-mqtt", false, "Do not publish to MQTT even when configured")
}

func runBridge(cmd *cobra.Command, args []string) error {
	srv, err := server.New(&server.Config{
		ConfigPath: configPath,
		ListenAddr: listenAddr,
		LogLevel:   logLevel,
		NoMQTT:     noMQTT,
	})
	if err != nil {
		return fmt.Errorf("failed to create bridge: %w", err)
	}

	return srv.Start()
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("remootio-bridge %s\n", version.Full())
		fmt.Printf("  %s\n", version.Platform())
	},
}
