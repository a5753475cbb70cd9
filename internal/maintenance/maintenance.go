// Package maintenance prunes aged error logs and checkpoints on a schedule.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner removes records older than maxAge.
type Pruner interface {
	Prune(maxAge time.Duration) error
}

// PrunerFunc adapts a function to the Pruner interface.
type PrunerFunc func(maxAge time.Duration) error

func (f PrunerFunc) Prune(maxAge time.Duration) error { return f(maxAge) }

type target struct {
	name   string
	pruner Pruner
}

// Janitor runs registered pruners on a cron schedule.
type Janitor struct {
	cron      *cron.Cron
	log       *slog.Logger
	retention time.Duration
	targets   []target
}

// New creates a Janitor. retention is how long records are kept.
func New(log *slog.Logger, retention time.Duration) *Janitor {
	if log == nil {
		log = slog.Default()
	}
	return &Janitor{
		cron: cron.New(
			cron.WithLogger(cronLogger{log: log.With(slog.String("component", "cron"))}),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{log: log})),
		),
		log:       log,
		retention: retention,
	}
}

// Register adds a named pruner to run on each tick.
func (j *Janitor) Register(name string, p Pruner) {
	j.targets = append(j.targets, target{name: name, pruner: p})
}

// Start schedules the pruning job and starts the cron loop. The schedule is
// in standard five-field cron syntax.
func (j *Janitor) Start(schedule string) error {
	if _, err := j.cron.AddFunc(schedule, j.runOnce); err != nil {
		return err
	}
	j.cron.Start()
	j.log.Info("maintenance scheduled",
		slog.String("schedule", schedule),
		slog.Duration("retention", j.retention),
	)
	return nil
}

// RunNow executes one pruning pass immediately.
func (j *Janitor) RunNow() { j.runOnce() }

// Stop stops the cron loop and waits for a running pass to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

func (j *Janitor) runOnce() {
	for _, t := range j.targets {
		start := time.Now()
		if err := t.pruner.Prune(j.retention); err != nil {
			j.log.Error("prune failed",
				slog.String("target", t.name),
				slog.Any("err", err),
			)
			continue
		}
		j.log.Info("prune completed",
			slog.String("target", t.name),
			slog.Duration("took", time.Since(start)),
		)
	}
}

// cronLogger bridges the cron logger interface to slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.LogAttrs(context.Background(), slog.LevelDebug, msg, attrs(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	kv := append([]slog.Attr{slog.Any("err", err)}, attrs(keysAndValues)...)
	l.log.LogAttrs(context.Background(), slog.LevelError, msg, kv...)
}

func attrs(keysAndValues []any) []slog.Attr {
	out := make([]slog.Attr, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		out = append(out, slog.Any(key, keysAndValues[i+1]))
	}
	return out
}
