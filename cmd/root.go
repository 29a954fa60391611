package cmd

import (
	"fmt"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath      string
	logLevel        string
	metricsTextfile string
}

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "sp",
		Short:         "Storacha profile CLI (sp): accounts, spaces and profiles",
		Long:          "sp logs in to Storacha accounts by email, keeps several accounts side by side, resolves each account's space, manages uploads, and stores a participant profile in the space.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := logging.SetLogLevel("*", opts.logLevel); err != nil {
				return fmt.Errorf("set log level: %w", err)
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (default ~/.storacha/config.toml)")
	flags.StringVar(&opts.logLevel, "log-level", "error", "Log level for every subsystem (debug, info, warn, error)")
	flags.StringVar(&opts.metricsTextfile, "metrics-textfile", "", "Write operation metrics to this file after the command")

	rootCmd.AddCommand(
		newVersionCmd(),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newAccountCmd(opts),
		newSpaceCmd(opts),
		newContentCmd(opts),
		newProfileCmd(opts),
		newStatusCmd(opts),
		newResetCmd(opts),
		newDevCmd(opts),
	)

	return rootCmd
}
