package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/navarrastar/contactsheet/pkg/sheet"
)

func newShowCommand(opts *rootOptions) *cobra.Command {
	var row int

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print one persisted row",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.store.Read(cmd.Context(), row)
			if errors.Is(err, sheet.ErrRowNotFound) {
				return fmt.Errorf("row %d not found in %q", row, a.store.Name())
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Row\t%d\n", r.Number)
			values := []string{
				r.Timestamp,
				r.Submission.FullName,
				r.Submission.Email,
				r.Submission.Phone,
				r.Submission.StreetAddress,
				r.Submission.City,
				r.Submission.Postcode,
				r.Submission.Comments,
			}
			for i, h := range sheet.Header {
				fmt.Fprintf(w, "%s\t%s\n", h, values[i])
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&row, "row", 2, "row number to print (data starts at 2)")
	return cmd
}
