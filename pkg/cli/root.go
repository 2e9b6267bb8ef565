// Package cli wires configuration, storage, notification and transport into
// the contactsheet command.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/navarrastar/contactsheet/pkg/config"
	"github.com/navarrastar/contactsheet/pkg/logging"
)

type rootOptions struct {
	configFile string
	cfg        *config.Config
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "contactsheet",
		Short: "Collect contact form submissions into a numbered table",
		Long: `contactsheet receives contact form submissions over HTTP, validates them,
appends each one as a numbered row to a table (sqlite, Airtable or memory)
and optionally notifies someone by email or SMS.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(opts.configFile)
			if err != nil {
				return err
			}
			logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))
			opts.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "optional config file (yaml, json or toml)")

	root.AddCommand(
		newServeCommand(opts),
		newInitCommand(opts),
		newSubmitCommand(opts),
		newShowCommand(opts),
	)
	return root
}

// Execute runs the root command and exits non-zero on error.
func Execute(ctx context.Context) {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
