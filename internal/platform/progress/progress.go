// Package progress persists per-task checkpoints so interrupted batch jobs
// resume without reprocessing completed items.
//
// One checkpoint per task id, stored as <dir>/<task_id>.json; saving
// overwrites any prior value (last write wins, no history). A single process
// owns the state directory.
package progress

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ppcbatch/internal/shared"
)

// Checkpoint is the persisted snapshot of a task's progress.
type Checkpoint struct {
	TaskID         string         `json:"task_id"`
	Timestamp      time.Time      `json:"timestamp"`
	Progress       map[string]any `json:"progress"`
	TotalItems     *int           `json:"total_items"`
	CompletedItems *int           `json:"completed_items"`
	Percentage     float64        `json:"percentage"`
}

// Summary is the projection returned by List.
type Summary struct {
	TaskID     string    `json:"task_id"`
	Timestamp  time.Time `json:"timestamp"`
	Percentage float64   `json:"percentage"`
	Completed  *int      `json:"completed"`
	Total      *int      `json:"total"`
}

// Tracker owns a state directory of checkpoints.
type Tracker struct {
	dir string
	log *slog.Logger
	now func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a Tracker owning dir, creating it if needed.
func NewTracker(dir string, log *slog.Logger, opts ...Option) (*Tracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, shared.Wrap(err, "create state dir")
	}
	if log == nil {
		log = slog.Default()
	}
	t := &Tracker{dir: dir, log: log, now: time.Now}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

func (t *Tracker) file(taskID string) string {
	return filepath.Join(t.dir, taskID+".json")
}

// Save writes a checkpoint without item counts; percentage is 0.
func (t *Tracker) Save(taskID string, progressData map[string]any) error {
	return t.write(taskID, progressData, nil, nil)
}

// SaveCounts writes a checkpoint with item counts. Percentage is
// completed/total*100, or 0 when total is zero.
func (t *Tracker) SaveCounts(taskID string, progressData map[string]any, completed, total int) error {
	return t.write(taskID, progressData, &completed, &total)
}

func (t *Tracker) write(taskID string, progressData map[string]any, completed, total *int) error {
	pct := 0.0
	if total != nil && *total > 0 && completed != nil {
		pct = float64(*completed) / float64(*total) * 100
	}
	cp := Checkpoint{
		TaskID:         taskID,
		Timestamp:      t.now(),
		Progress:       progressData,
		TotalItems:     total,
		CompletedItems: completed,
		Percentage:     pct,
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return shared.Wrapf(err, "marshal checkpoint %s", taskID)
	}
	if err := os.WriteFile(t.file(taskID), data, 0o644); err != nil {
		return shared.Wrapf(err, "write checkpoint %s", taskID)
	}
	t.log.Info("progress saved",
		slog.String("task_id", taskID),
		slog.Float64("percentage", pct),
	)
	return nil
}

// Load returns the checkpoint for taskID. A missing, unreadable, or corrupt
// checkpoint is reported as not found; the resuming job restarts from scratch
// rather than aborting.
func (t *Tracker) Load(taskID string) (*Checkpoint, bool) {
	data, err := os.ReadFile(t.file(taskID))
	if err != nil {
		if !os.IsNotExist(err) {
			t.log.Error("checkpoint unreadable", slog.String("task_id", taskID), slog.Any("error", err))
		}
		return nil, false
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		t.log.Error("checkpoint corrupt", slog.String("task_id", taskID), slog.Any("error", err))
		return nil, false
	}
	t.log.Info("resuming task",
		slog.String("task_id", taskID),
		slog.Float64("percentage", cp.Percentage),
	)
	return &cp, true
}

// Clear removes the checkpoint for taskID. Clearing an absent checkpoint is
// a no-op.
func (t *Tracker) Clear(taskID string) error {
	err := os.Remove(t.file(taskID))
	if err != nil && !os.IsNotExist(err) {
		return shared.Wrapf(err, "clear checkpoint %s", taskID)
	}
	if err == nil {
		t.log.Info("progress cleared", slog.String("task_id", taskID))
	}
	return nil
}

// List enumerates all checkpoints sorted by timestamp descending. Unparsable
// files are skipped.
func (t *Tracker) List() []Summary {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		t.log.Error("state dir unreadable", slog.Any("error", err))
		return nil
	}
	var out []Summary
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(t.dir, e.Name()))
		if err != nil {
			continue
		}
		var cp Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil || cp.TaskID == "" {
			continue
		}
		out = append(out, Summary{
			TaskID:     cp.TaskID,
			Timestamp:  cp.Timestamp,
			Percentage: cp.Percentage,
			Completed:  cp.CompletedItems,
			Total:      cp.TotalItems,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// PruneOlderThan removes checkpoints whose timestamp is older than maxAge.
// Used by scheduled maintenance; normal completion clears its own checkpoint.
func (t *Tracker) PruneOlderThan(maxAge time.Duration) (int, error) {
	cutoff := t.now().Add(-maxAge)
	removed := 0
	for _, s := range t.List() {
		if s.Timestamp.Before(cutoff) {
			if err := t.Clear(s.TaskID); err != nil {
				t.log.Warn("checkpoint prune failed", slog.String("task_id", s.TaskID), slog.Any("error", err))
				continue
			}
			removed++
		}
	}
	return removed, nil
}
