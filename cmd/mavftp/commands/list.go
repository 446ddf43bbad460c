package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/patrickelectric/mavftp-cli/internal/bytesize"
	"github.com/patrickelectric/mavftp-cli/internal/cli/output"
	"github.com/patrickelectric/mavftp-cli/internal/protocol/ftp"
)

var listOutput string

var listCmd = &cobra.Command{
	Use:   "list <path>",
	Short: "List a directory on the vehicle",
	Long: `List the entries of a directory on the vehicle filesystem.

Examples:
  mavftp list /
  mavftp list /fs/microsd/log
  mavftp list /fs/microsd/log --output json`,
	Aliases: []string{"ls"},
	Args:    cobra.ExactArgs(1),
	RunE:    runList,
}

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// entryTable renders directory entries as a table.
type entryTable []ftp.Entry

func (e entryTable) Headers() []string {
	return []string{"Name", "Type", "Size"}
}

func (e entryTable) Rows() [][]string {
	rows := make([][]string, 0, len(e))
	for _, entry := range e {
		size := "-"
		if entry.Kind == ftp.KindFile {
			size = bytesize.ByteSize(entry.Size).String()
		}
		rows = append(rows, []string{entry.Name, entry.Kind.String(), size})
	}
	return rows
}

// entryView is the machine-readable shape of a directory entry.
type entryView struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
	Size uint32 `json:"size" yaml:"size"`
}

func entryViews(entries []ftp.Entry) []entryView {
	views := make([]entryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, entryView{
			Name: entry.Name,
			Type: entry.Kind.String(),
			Size: entry.Size,
		})
	}
	return views
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(listOutput)
	if err != nil {
		return err
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

	entries, err := client.List(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, entryViews(entries))
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, entryViews(entries))
	default:
		if len(entries) == 0 {
			fmt.Printf("%s is empty\n", args[0])
			return nil
		}
		return output.PrintTable(os.Stdout, entryTable(entries))
	}
}
