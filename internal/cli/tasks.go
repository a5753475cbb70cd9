package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ppcbatch/internal/app"
)

func newTasksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage research checkpoints",
	}
	cmd.AddCommand(newTasksListCommand(), newTasksClearCommand())
	return cmd
}

func newTasksListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved checkpoints, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				tasks := a.Tasks()
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no checkpoints")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TASK\tUPDATED\tPROGRESS")
				for _, t := range tasks {
					progress := "-"
					if t.Completed != nil && t.Total != nil {
						progress = fmt.Sprintf("%d/%d (%.1f%%)", *t.Completed, *t.Total, t.Percentage)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", t.TaskID, t.Timestamp.Format(time.RFC3339), progress)
				}
				return tw.Flush()
			})
		},
	}
}

func newTasksClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear TASK_ID",
		Short: "Remove the checkpoint for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.ClearTask(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", args[0])
				return nil
			})
		},
	}
}
