package gen

import (
	"github.com/spf13/cobra"
)

// RootCmd groups generators for files that ship alongside the cask binary.
var RootCmd = &cobra.Command{
	Use:    "gen",
	Short:  "Generate documentation for cask",
	Long:   `Generate documentation for cask, such as man pages`,
	Hidden: true,
}

func init() {
	RootCmd.AddCommand(ManPagesCmd)
}
