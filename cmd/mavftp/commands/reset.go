package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset all FTP sessions on the vehicle",
	Long: `Instruct the vehicle to discard all FTP session state. Useful when a
previous client crashed mid-transfer and the vehicle refuses to open new
sessions.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// connect already resets sessions as part of its handshake; reaching
		// this point means the reset went through.
		client, err := connect(cmd.Context(), cfg, nil)
		if err != nil {
			return err
		}
		defer client.Close()

		fmt.Println("Vehicle sessions reset")
		return nil
	},
}
