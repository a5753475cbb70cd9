// Package export writes keyword metrics to CSV.
package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"ppcbatch/internal/shared"
	"ppcbatch/internal/store"
)

// MetricsSource lists stored keyword metrics above a volume floor.
type MetricsSource interface {
	ByMinVolume(ctx context.Context, minVolume int64) ([]store.KeywordMetrics, error)
}

var header = []string{"keyword", "search_volume", "cpc", "competition", "category", "source", "fetched_at"}

// CSV writes metrics with search volume >= minVolume to w, header row first.
// It returns the number of data rows written.
func CSV(ctx context.Context, src MetricsSource, w io.Writer, minVolume int64) (int, error) {
	metrics, err := src.ByMinVolume(ctx, minVolume)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return 0, shared.New("write csv header: "+err.Error(), shared.CategoryFile)
	}
	for _, m := range metrics {
		row := []string{
			m.Keyword,
			strconv.FormatInt(m.SearchVolume, 10),
			strconv.FormatFloat(m.CPC, 'f', 2, 64),
			strconv.FormatFloat(m.Competition, 'f', 2, 64),
			m.Category,
			m.Source,
			m.FetchedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return 0, shared.New("write csv row: "+err.Error(), shared.CategoryFile)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, shared.New("flush csv: "+err.Error(), shared.CategoryFile)
	}
	return len(metrics), nil
}
