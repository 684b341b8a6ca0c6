package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/cask/client"
	"github.com/luma/cask/cmd/gen"
	"github.com/luma/cask/internal/env"
)

var (
	// The host of the Bitcask server
	host string

	// The port of the Bitcask server
	port int

	// Bounds a whole request, from connecting to reading the reply
	timeout time.Duration

	// Whether replies are length prefixed rather than ended by the server closing
	framed bool

	logLevel string

	// conf is loaded from the environment before any command runs. Flags that
	// were set explicitly take precedence over it.
	conf *env.Config
	log  *zap.Logger
)

var RootCmd = &cobra.Command{
	Use:   "cask",
	Short: "Client and reference server for the Bitcask wire protocol",
	Long: `Client and reference server for the Bitcask wire protocol

Usage
	cask set <key> <value>
	cask get <key>
	cask serve

`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		conf, err = env.LoadConfig(cmd.Context())
		if err != nil {
			return err
		}

		applyFlags(cmd, conf)

		log, err = env.MakeLogger(conf.LogLevel)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	flags := RootCmd.PersistentFlags()

	flags.StringVar(&host, "host", "127.0.0.1", "The host of the Bitcask server")
	flags.IntVarP(&port, "port", "p", 6969, "The port of the Bitcask server")
	flags.DurationVar(&timeout, "timeout", 5*time.Second, "Timeout for a whole request")
	flags.BoolVar(&framed, "framed", false, "Replies are length prefixed instead of ended by the server closing")
	flags.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	RootCmd.AddCommand(SetCmd, GetCmd, DeleteCmd, MergeCmd, ServeCmd, VersionCmd, gen.RootCmd)
}

func Execute() {
	if err := RootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func applyFlags(cmd *cobra.Command, conf *env.Config) {
	flags := cmd.Flags()

	if flags.Changed("host") {
		conf.Host = host
	}
	if flags.Changed("port") {
		conf.Port = port
	}
	if flags.Changed("timeout") {
		conf.Timeout = timeout
	}
	if flags.Changed("framed") {
		conf.FramedReplies = framed
	}
	if flags.Changed("log-level") {
		conf.LogLevel = logLevel
	}
}

// clientConfig turns the loaded configuration into the explicit value the
// client package expects.
func clientConfig(conf *env.Config) client.Config {
	var reader client.ResponseReader = client.UntilClose{Limit: conf.ReadBudget}
	if conf.FramedReplies {
		reader = client.Framed{}
	}

	return client.Config{
		Host:           conf.Host,
		Port:           conf.Port,
		Timeout:        conf.Timeout,
		ResponseReader: reader,
	}
}
