// Package processor runs batched keyword research with checkpointed resume.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ppcbatch/internal/api/dataforseo"
	"ppcbatch/internal/platform/errlog"
	"ppcbatch/internal/platform/progress"
	"ppcbatch/internal/store"
)

// VolumeFetcher fetches advertising metrics for a batch of keywords.
type VolumeFetcher interface {
	SearchVolume(ctx context.Context, keywords []string, locationCode int, languageCode string) ([]dataforseo.Metrics, error)
}

// MetricsSink persists fetched metrics.
type MetricsSink interface {
	UpsertBatch(ctx context.Context, metrics []store.KeywordMetrics) error
}

// KeywordProcessor chunks a keyword list into batches, fetches metrics for
// each, and checkpoints after every completed batch so an interrupted run
// resumes without refetching.
type KeywordProcessor struct {
	fetcher       VolumeFetcher
	sink          MetricsSink
	tracker       *progress.Tracker
	errs          *errlog.Logger
	log           *slog.Logger
	batchSize     int
	maxConcurrent int
	source        string
}

// Options configures a KeywordProcessor.
type Options struct {
	BatchSize     int    // keywords per API call (default 100)
	MaxConcurrent int    // parallel batch fetches (default 5)
	Source        string // platform label stored with metrics (default google_ads)
}

// New creates a KeywordProcessor.
func New(fetcher VolumeFetcher, sink MetricsSink, tracker *progress.Tracker, errs *errlog.Logger, log *slog.Logger, opts Options) *KeywordProcessor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 5
	}
	if opts.Source == "" {
		opts.Source = "google_ads"
	}
	if log == nil {
		log = slog.Default()
	}
	return &KeywordProcessor{
		fetcher:       fetcher,
		sink:          sink,
		tracker:       tracker,
		errs:          errs,
		log:           log,
		batchSize:     opts.BatchSize,
		maxConcurrent: opts.MaxConcurrent,
		source:        opts.Source,
	}
}

// Summary reports the outcome of a research run.
type Summary struct {
	TaskID        string
	TotalKeywords int
	Completed     int // keywords in successfully fetched batches
	Fetched       int // metric rows stored
	FailedBatches int
	Resumed       bool
}

// Research fetches metrics for keywords in batches under taskID. Previously
// completed batches (from a checkpoint) are skipped. Failed batches are
// recorded in the error log and left for the next run; the checkpoint is
// cleared only when every batch has completed.
func (p *KeywordProcessor) Research(ctx context.Context, taskID string, keywords []string, locationCode int, languageCode string) (Summary, error) {
	keywords = dedupe(keywords)
	if len(keywords) == 0 {
		return Summary{TaskID: taskID}, nil
	}
	batches := chunk(keywords, p.batchSize)
	sum := Summary{TaskID: taskID, TotalKeywords: len(keywords)}

	// resumed is read-only once the workers start; they mark progress in their
	// own copy so the dispatch loop below never races with them.
	resumed := p.completedBatches(taskID, len(batches))
	if len(resumed) > 0 {
		sum.Resumed = true
		p.log.Info("resuming research run",
			slog.String("task_id", taskID),
			slog.Int("completed_batches", len(resumed)),
			slog.Int("total_batches", len(batches)),
		)
	}
	done := make(map[int]bool, len(batches))
	for i, batch := range batches {
		if resumed[i] {
			done[i] = true
			sum.Completed += len(batch)
		}
	}

	var mu sync.Mutex
	var failed int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrent)

	for i, batch := range batches {
		if resumed[i] {
			continue
		}
		i, batch := i, batch
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			metrics, err := p.fetcher.SearchVolume(gctx, batch, locationCode, languageCode)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.errs.Log(err, map[string]any{
					"task_id":     taskID,
					"batch_index": i,
					"batch_size":  len(batch),
				}, fmt.Sprintf("keyword batch %d/%d failed", i+1, len(batches)))
				mu.Lock()
				failed++
				mu.Unlock()
				return nil // other batches proceed; this one retries on the next run
			}

			rows := make([]store.KeywordMetrics, 0, len(metrics))
			now := time.Now()
			for _, m := range metrics {
				rows = append(rows, store.KeywordMetrics{
					Keyword:      m.Keyword,
					SearchVolume: m.SearchVolume,
					CPC:          m.CPC,
					Competition:  m.Competition,
					Source:       p.source,
					FetchedAt:    now,
				})
			}
			if err := p.sink.UpsertBatch(gctx, rows); err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			done[i] = true
			sum.Completed += len(batch)
			sum.Fetched += len(rows)
			return p.checkpoint(taskID, done, len(keywords), sum.Completed)
		})
	}

	if err := g.Wait(); err != nil {
		return sum, err
	}
	sum.FailedBatches = failed

	if failed == 0 {
		if err := p.tracker.Clear(taskID); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

// checkpoint persists the set of completed batch indices. Called with mu held.
func (p *KeywordProcessor) checkpoint(taskID string, completed map[int]bool, totalItems, completedItems int) error {
	indices := make([]int, 0, len(completed))
	for i, done := range completed {
		if done {
			indices = append(indices, i)
		}
	}
	sort.Ints(indices)
	return p.tracker.SaveCounts(taskID, map[string]any{
		"completed_batches": indices,
		"batch_size":        p.batchSize,
	}, completedItems, totalItems)
}

// completedBatches restores the completed set from a checkpoint. A checkpoint
// written with a different batch size is ignored; its indices would address
// different keyword ranges.
func (p *KeywordProcessor) completedBatches(taskID string, totalBatches int) map[int]bool {
	out := make(map[int]bool)
	cp, ok := p.tracker.Load(taskID)
	if !ok {
		return out
	}
	if size := asInt(cp.Progress["batch_size"]); size != p.batchSize {
		p.log.Warn("checkpoint batch size mismatch, restarting",
			slog.String("task_id", taskID),
			slog.Int("checkpoint", size),
			slog.Int("current", p.batchSize),
		)
		return out
	}
	raw, _ := cp.Progress["completed_batches"].([]any)
	for _, v := range raw {
		if i := asInt(v); i >= 0 && i < totalBatches {
			out[i] = true
		}
	}
	return out
}

// asInt tolerates the float64 produced by a JSON round-trip.
func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return -1
	}
}

func dedupe(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, kw)
	}
	return out
}

func chunk(keywords []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(keywords); start += size {
		end := start + size
		if end > len(keywords) {
			end = len(keywords)
		}
		out = append(out, keywords[start:end])
	}
	return out
}
