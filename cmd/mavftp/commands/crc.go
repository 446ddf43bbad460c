package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var crcCmd = &cobra.Command{
	Use:   "crc <path>",
	Short: "Ask the vehicle for a file checksum",
	Long: `Ask the vehicle to compute the CRC-32 of a file and print it.

The variant matches what flight controllers compute on board (zero seed,
no final inversion), so it can be compared against "mavftp read --verify"
or recomputed locally with the same parameters.`,
	Args: cobra.ExactArgs(1),
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

		crc, err := client.Crc32(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%08x  %s\n", crc, args[0])
		return nil
	},
}
