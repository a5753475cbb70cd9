// Package cli defines the ppcbatch command tree.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"ppcbatch/internal/app"
)

// NewRootCommand builds the root command with all subcommands attached.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ppcbatch",
		Short:         "Batch keyword research with checkpointed resume",
		Long:          "ppcbatch fetches advertising metrics for keyword lists in batches, retries transient API failures, and resumes interrupted runs from checkpoints.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		newResearchCommand(),
		newTasksCommand(),
		newErrorsCommand(),
		newExportCommand(),
		newServeCommand(),
		newPruneCommand(),
	)
	return cmd
}

// withApp assembles the application, runs fn, and releases resources.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	a, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
