package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/patrickelectric/mavftp-cli/internal/bytesize"
	"github.com/patrickelectric/mavftp-cli/internal/protocol/ftp"
)

var readVerify bool

var readCmd = &cobra.Command{
	Use:   "read <remote> [local]",
	Short: "Download a file from the vehicle",
	Long: `Download a file from the vehicle filesystem. Without a local path the
file is written to the current directory under its remote name; "-" writes
it to stdout.

Examples:
  mavftp read /fs/microsd/log/flight1.ulg
  mavftp read /fs/microsd/params.txt ./backup/params.txt
  mavftp read /etc/version --verify`,
	Aliases: []string{"get", "download"},
	Args:    cobra.RangeArgs(1, 2),
	RunE:    runRead,
}

func init() {
	readCmd.Flags().BoolVar(&readVerify, "verify", false, "compare checksums with the vehicle after the download")
}

func runRead(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	remote := args[0]
	local := filepath.Base(remote)
	if len(args) == 2 {
		local = args[1]
	}
	toStdout := local == "-"

	progress := consoleProgress
	if toStdout {
		progress = nil
	}

	client, err := connect(cmd.Context(), cfg, progress)
	if err != nil {
		return err
	}
	defer client.Close()

	data, err := client.Read(cmd.Context(), remote)
	if progress != nil {
		finishProgress()
	}
	if err != nil {
		return err
	}

	if readVerify {
		want, err := client.Crc32(cmd.Context(), remote)
		if err != nil {
			return fmt.Errorf("checksum verification failed: %w", err)
		}
		if got := ftp.Checksum(data); got != want {
			return fmt.Errorf("checksum mismatch: vehicle reports %08x, downloaded data is %08x", want, got)
		}
	}

	if toStdout {
		_, err := os.Stdout.Write(data)
		return err
	}

	if err := os.WriteFile(local, data, 0644); err != nil {
		return err
	}
	fmt.Printf("Downloaded %s (%s) to %s\n", remote, bytesize.ByteSize(len(data)), local)
	return nil
}
