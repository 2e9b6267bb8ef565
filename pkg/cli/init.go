package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the table and write its header row",
		Long: `Create the configured table if needed and write the header row with its
formatting. Existing rows are never touched, so running it twice is harmless.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.Init(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Table %q initialized (%s backend)\n", a.store.Name(), opts.cfg.TableBackend)
			return nil
		},
	}
}
