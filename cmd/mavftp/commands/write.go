package commands

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/patrickelectric/mavftp-cli/internal/bytesize"
	"github.com/patrickelectric/mavftp-cli/internal/protocol/ftp"
)

var writeVerify bool

var writeCmd = &cobra.Command{
	Use:   "write <local> [remote]",
	Short: "Upload a file to the vehicle",
	Long: `Upload a local file to the vehicle filesystem, creating or replacing
the remote file. Without a remote path the file lands in the vehicle root
under its local name.

Examples:
  mavftp write ./params.txt /fs/microsd/params.txt
  mavftp write firmware.bin /fs/microsd/firmware.bin --verify`,
	Aliases: []string{"put", "upload"},
	Args:    cobra.RangeArgs(1, 2),
	RunE:    runWrite,
}

func init() {
	writeCmd.Flags().BoolVar(&writeVerify, "verify", false, "compare checksums with the vehicle after the upload")
}

func runWrite(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	local := args[0]
	remote := "/" + filepath.Base(local)
	if len(args) == 2 {
		remote = args[1]
	}
	remote = path.Clean(remote)

	data, err := os.ReadFile(local)
	if err != nil {
		return err
	}

	client, err := connect(cmd.Context(), cfg, consoleProgress)
	if err != nil {
		return err
	}
	defer client.Close()

	err = client.Write(cmd.Context(), remote, data)
	finishProgress()
	if err != nil {
		return err
	}

	if writeVerify {
		got, err := client.Crc32(cmd.Context(), remote)
		if err != nil {
			return fmt.Errorf("checksum verification failed: %w", err)
		}
		if want := ftp.Checksum(data); got != want {
			return fmt.Errorf("checksum mismatch: vehicle reports %08x, uploaded data is %08x", got, want)
		}
	}

	fmt.Printf("Uploaded %s (%s) to %s\n", local, bytesize.ByteSize(len(data)), remote)
	return nil
}
