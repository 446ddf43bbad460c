package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/patrickelectric/mavftp-cli/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `Write a configuration file populated with defaults, ready to edit.

Examples:
  # Create the config at the default location
  mavftp init

  # Create it somewhere else
  mavftp init --config ./mavftp.yaml`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	cfg := config.Default()
	if target != "" {
		cfg.Target = target
	}
	if err := config.Save(cfg, path); err != nil {
		return err
	}

	fmt.Printf("Configuration file created at: %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the file to point at your vehicle link")
	fmt.Println("  2. List the vehicle root with: mavftp list /")
	return nil
}
