package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/navarrastar/contactsheet/pkg/client"
	"github.com/navarrastar/contactsheet/pkg/validation"
)

func newSubmitCommand(opts *rootOptions) *cobra.Command {
	values := make(map[validation.Field]*string, len(validation.Fields))
	var url string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Validate and send one submission to a running server",
		Long: `Validate the given fields locally, then post them once to the server.
A timed-out request is reported as probably saved and is never retried.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			form := validation.NewForm()
			for _, f := range validation.Fields {
				form.Edit(f, *values[f])
			}
			if !form.Submit() {
				for _, f := range validation.Fields {
					if msg, ok := form.Error(f); ok {
						fmt.Fprintf(out, "  %s: %s\n", validation.Label(f), msg)
					}
				}
				fmt.Fprintln(out, client.StatusMessage(true, nil, nil))
				return errors.New("submission has invalid fields")
			}

			target := opts.cfg.SubmitURL
			if url != "" {
				target = url
			}
			c := client.NewClient(target, opts.cfg.SubmitTimeout)
			res, err := c.Submit(cmd.Context(), form.Values())
			fmt.Fprintln(out, client.StatusMessage(false, res, err))

			switch res.Outcome {
			case client.Confirmed, client.Ambiguous:
				return nil
			case client.Rejected:
				return errors.New("submission rejected by server")
			default:
				return err
			}
		},
	}

	for _, f := range validation.Fields {
		values[f] = cmd.Flags().String(string(f), "", validation.Label(f))
	}
	cmd.Flags().StringVar(&url, "url", "", "submit endpoint (overrides SUBMIT_URL)")
	return cmd
}
