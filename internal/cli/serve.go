package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ppcbatch/internal/app"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the status server and the maintenance schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Serve(ctx)
			})
		},
	}
}

func newPruneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove error logs and checkpoints past the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				a.RunMaintenance()
				fmt.Fprintln(cmd.OutOrStdout(), "done")
				return nil
			})
		},
	}
}
