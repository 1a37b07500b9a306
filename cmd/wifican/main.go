// Wifican is a diagnostic client for WiFi CAN gateways.
//
// It connects to a CAN-over-TCP gateway, transmits CAN frames on fixed
// periods, and prints whatever the gateway sends back. It is meant for
// bench-testing a gateway without a real CAN bus attached.
//
// Usage:
//
//	wifican [command] [flags]
//
// Running without a command starts a session ("wifican run").
// See 'wifican --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wifican/internal/logging"
	"github.com/muurk/wifican/internal/version"
)

func main() {
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
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
	Use:   "wifican",
	Short: "WiFi CAN gateway diagnostic client",
	Long: `A diagnostic client for CAN-over-TCP gateways.

Connects to the gateway (default 192.168.42.1:10001), sends each configured
CAN frame on its own period, and prints every chunk the gateway sends back.

Frames use the gateway's text format, for example:
  :S456N0806040200;      standard id 0x456, 5 data bytes
  :X56789AN05030709;     extended id 0x56789A, 4 data bytes

If no command is specified, a session is started ("wifican run").`,
	Version:       version.Get().Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
	RunE: runSession,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: OS config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); empty = "+logging.LogLevelEnvVar+" or silent")

	addSessionFlags(rootCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(emulateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Get())
	},
}
