package gen

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/luma/cask/internal/meta"
)

var (
	manDir string
)

var ManPagesCmd = &cobra.Command{
	Use:   "man",
	Short: "Generate man pages for cask",
	Long: `Generate a man page for every visible cask command, client and server
alike, into --dir. Hidden commands such as gen itself are left out.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Root().DisableAutoGenTag = true

		return WriteManPages(cmd.Root(), manDir, cmd.OutOrStdout())
	},
}

func init() {
	flags := ManPagesCmd.PersistentFlags()

	flags.StringVar(&manDir, "dir", "man", "the directory to write the man pages.")

	// For bash-completion
	if err := flags.SetAnnotation("dir", cobra.BashCompSubdirsInDir, []string{}); err != nil {
		panic(err)
	}
}

// WriteManPages renders section 1 pages for root and its subcommands into
// dir, creating it if needed. Progress goes to out.
func WriteManPages(root *cobra.Command, dir string, out io.Writer) error {
	dir = filepath.Clean(dir)

	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("Failed to create man page directory %s: %w", dir, err)
	}

	header := &doc.GenManHeader{
		Section: "1",
		Manual:  "cask Manual",
		Source:  fmt.Sprintf("cask %s", meta.Version),
	}

	fmt.Fprintln(out, "Generating cask man pages in", dir)

	if err := doc.GenManTree(root, header, dir); err != nil {
		return fmt.Errorf("Failed to generate man pages: %w", err)
	}

	return nil
}
