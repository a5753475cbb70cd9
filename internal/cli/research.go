package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ppcbatch/internal/app"
	"ppcbatch/internal/shared"
)

func newResearchCommand() *cobra.Command {
	var (
		taskID       string
		file         string
		locationCode int
		languageCode string
	)
	cmd := &cobra.Command{
		Use:   "research [KEYWORD...]",
		Short: "Fetch search volume metrics for keywords",
		Long:  "Fetches advertising metrics for the given keywords in batches. Keywords come from arguments or from a file (one per line). Interrupted runs resume from the last checkpoint when re-run with the same task id.",
		RunE: func(cmd *cobra.Command, args []string) error {
			keywords := args
			if file != "" {
				fromFile, err := readKeywordFile(file)
				if err != nil {
					return err
				}
				keywords = append(keywords, fromFile...)
			}
			if len(keywords) == 0 {
				return shared.NewValidation("no keywords given: pass arguments or --file")
			}
			if taskID == "" {
				return shared.NewValidation("--task is required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				sum, err := a.Research(ctx, taskID, keywords, locationCode, languageCode)
				if err != nil {
					return err
				}
				if sum.Resumed {
					fmt.Fprintln(cmd.OutOrStdout(), "resumed from checkpoint")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "keywords: %d  completed: %d  stored: %d  failed batches: %d\n",
					sum.TotalKeywords, sum.Completed, sum.Fetched, sum.FailedBatches)
				if sum.FailedBatches > 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "re-run with the same --task to retry failed batches")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "task id used for checkpointing (required)")
	cmd.Flags().StringVar(&file, "file", "", "file with one keyword per line")
	cmd.Flags().IntVar(&locationCode, "location", 2840, "location code")
	cmd.Flags().StringVar(&languageCode, "language", "en", "language code")
	return cmd
}

func readKeywordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, shared.New("open keyword file: "+err.Error(), shared.CategoryFile)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, shared.New("read keyword file: "+err.Error(), shared.CategoryFile)
	}
	return out, nil
}
