package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ppcbatch/internal/app"
	"ppcbatch/internal/shared"
)

func newExportCommand() *cobra.Command {
	var (
		out       string
		minVolume int64
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export cached keyword metrics to CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				w := cmd.OutOrStdout()
				if out != "" {
					f, err := os.Create(out)
					if err != nil {
						return shared.New("create export file: "+err.Error(), shared.CategoryFile)
					}
					defer f.Close()
					w = f
				}
				n, err := a.ExportCSV(ctx, w, minVolume)
				if err != nil {
					return err
				}
				if out != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "wrote %d row(s) to %s\n", n, out)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().Int64Var(&minVolume, "min-volume", -1, "minimum search volume (default from config)")
	return cmd
}
