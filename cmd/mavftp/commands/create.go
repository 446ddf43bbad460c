package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create <path>",
	Short: "Create an empty file on the vehicle",
	Long:  `Create an empty file on the vehicle filesystem, truncating it if it exists.`,
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

		if err := client.Create(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Created %s\n", args[0])
		return nil
	},
}
