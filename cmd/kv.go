package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luma/cask/client"
)

var SetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a value under a key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(clientConfig(conf), log)
		return c.Set(cmd.Context(), args[0], []byte(args[1]))
	},
}

var GetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the value stored under a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(clientConfig(conf), log)

		value, err := c.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(value))
		return nil
	},
}

var DeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Remove a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(clientConfig(conf), log)
		return c.Delete(cmd.Context(), args[0])
	},
}

var MergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Ask the server to compact its data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(clientConfig(conf), log)
		return c.Merge(cmd.Context())
	},
}
