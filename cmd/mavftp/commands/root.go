// Package commands implements the mavftp CLI commands.
package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
	target  string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mavftp",
	Short: "MAVLink FTP client",
	Long: `mavftp browses and transfers files on the filesystem of a MAVLink
vehicle (flight controller, companion computer) over its telemetry link,
speaking the MAVLink File Transfer Protocol.

The link is resilient to dropped, duplicated and reordered packets;
downloads use burst mode when the vehicle supports it and fall back to
chunked reads when it does not.

Use "mavftp [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM,
// so a stuck transfer can be interrupted cleanly.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/mavftp/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&target, "target", "", "vehicle link, e.g. udpout:127.0.0.1:14550 (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(rmdirCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(truncateCmd)
	rootCmd.AddCommand(crcCmd)
	rootCmd.AddCommand(resetCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
