package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var truncateCmd = &cobra.Command{
	Use:   "truncate <path> <size>",
	Short: "Truncate a file on the vehicle",
	Long:  `Shrink or zero-extend a file on the vehicle filesystem to the given size in bytes.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		size, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid size %q: %w", args[1], err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := connect(cmd.Context(), cfg, nil)
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.Truncate(cmd.Context(), args[0], uint32(size)); err != nil {
			return err
		}
		fmt.Printf("Truncated %s to %d bytes\n", args[0], size)
		return nil
	},
}
