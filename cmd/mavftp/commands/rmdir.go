package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rmdirCmd = &cobra.Command{
	Use:   "rmdir <path>",
	Short: "Remove an empty directory on the vehicle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := connect(cmd.Context(), cfg, nil)
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.Rmdir(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed directory %s\n", args[0])
		return nil
	},
}
