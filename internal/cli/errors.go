package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ppcbatch/internal/app"
)

func newErrorsCommand() *cobra.Command {
	var hours int
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Show errors logged today within a time window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				records, err := a.RecentErrors(time.Duration(hours) * time.Hour)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no recent errors")
					return nil
				}
				for _, r := range records {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  [%s/%s]  %s\n",
						r.Timestamp.Format(time.RFC3339), r.Category, r.Severity, r.Message)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d error(s)\n", len(records))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&hours, "hours", 24, "look-back window in hours")
	return cmd
}
