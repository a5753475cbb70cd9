// Package app wires application components.
package app

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"ppcbatch/internal/api/dataforseo"
	"ppcbatch/internal/api/firecrawl"
	"ppcbatch/internal/api/serper"
	"ppcbatch/internal/config"
	"ppcbatch/internal/export"
	"ppcbatch/internal/maintenance"
	"ppcbatch/internal/notify"
	"ppcbatch/internal/platform/errlog"
	"ppcbatch/internal/platform/httpclient"
	"ppcbatch/internal/platform/logger"
	"ppcbatch/internal/platform/progress"
	"ppcbatch/internal/platform/sqlite"
	"ppcbatch/internal/processor"
	"ppcbatch/internal/status"
	"ppcbatch/internal/store"
)

// App holds the assembled components of the batch tool.
type App struct {
	cfg     config.Config
	log     *slog.Logger
	db      *sql.DB
	store   *store.KeywordStore
	errs    *errlog.Logger
	tracker *progress.Tracker

	DataForSEO *dataforseo.Client
	Serper     *serper.Client
	Firecrawl  *firecrawl.Client
}

// New loads configuration and assembles all components.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		File:         cfg.Log.File,
		App:          "ppcbatch",
	})

	var elOpts []errlog.Option
	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, log)
		if err != nil {
			return nil, err
		}
		elOpts = append(elOpts, errlog.WithNotifier(tg))
	}
	errs, err := errlog.New(cfg.Paths.ErrorLogDir, log, elOpts...)
	if err != nil {
		return nil, err
	}

	tracker, err := progress.NewTracker(cfg.Paths.StateDir, log)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.Open(cfg.Paths.DBFile, sqlite.DefaultOptions())
	if err != nil {
		return nil, err
	}
	kwStore, err := store.NewKeywordStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	hc := httpclient.New(
		httpclient.WithTimeout(cfg.HTTP.Timeout),
		httpclient.WithLogger(log),
	)
	policy := cfg.RetryPolicy()

	return &App{
		cfg:     cfg,
		log:     log,
		db:      db,
		store:   kwStore,
		errs:    errs,
		tracker: tracker,
		DataForSEO: dataforseo.New(hc, cfg,
			dataforseo.WithPolicy(policy), dataforseo.WithLogger(log)),
		Serper: serper.New(hc, cfg,
			serper.WithPolicy(policy), serper.WithLogger(log)),
		Firecrawl: firecrawl.New(hc, cfg,
			firecrawl.WithPolicy(policy), firecrawl.WithLogger(log)),
	}, nil
}

// Close releases held resources.
func (a *App) Close() error {
	return a.db.Close()
}

// Log returns the application logger.
func (a *App) Log() *slog.Logger { return a.log }

// Research runs a checkpointed keyword research task.
func (a *App) Research(ctx context.Context, taskID string, keywords []string, locationCode int, languageCode string) (processor.Summary, error) {
	p := processor.New(a.DataForSEO, a.store, a.tracker, a.errs, a.log, processor.Options{
		BatchSize:     a.cfg.Batch.Size,
		MaxConcurrent: a.cfg.Batch.MaxConcurrent,
	})
	return p.Research(ctx, taskID, keywords, locationCode, languageCode)
}

// ExportCSV writes cached metrics at or above minVolume to w. A negative
// minVolume uses the configured floor.
func (a *App) ExportCSV(ctx context.Context, w io.Writer, minVolume int64) (int, error) {
	if minVolume < 0 {
		minVolume = int64(a.cfg.Batch.MinSearchVolume)
	}
	return export.CSV(ctx, a.store, w, minVolume)
}

// RecentErrors returns error records logged within window on the current day.
func (a *App) RecentErrors(window time.Duration) ([]errlog.Record, error) {
	return a.errs.Recent(window)
}

// Tasks lists saved checkpoints, most recent first.
func (a *App) Tasks() []progress.Summary {
	return a.tracker.List()
}

// ClearTask removes the checkpoint for taskID.
func (a *App) ClearTask(taskID string) error {
	return a.tracker.Clear(taskID)
}

// janitor builds the maintenance job over the error log and state dir.
func (a *App) janitor() *maintenance.Janitor {
	j := maintenance.New(a.log, a.cfg.Maintenance.Retention)
	j.Register("error_log", maintenance.PrunerFunc(func(maxAge time.Duration) error {
		_, err := a.errs.Prune(maxAge)
		return err
	}))
	j.Register("checkpoints", maintenance.PrunerFunc(func(maxAge time.Duration) error {
		_, err := a.tracker.PruneOlderThan(maxAge)
		return err
	}))
	return j
}

// RunMaintenance executes one pruning pass immediately.
func (a *App) RunMaintenance() {
	a.janitor().RunNow()
}

// Serve runs the status HTTP server and the maintenance schedule until ctx
// is cancelled.
func (a *App) Serve(ctx context.Context) error {
	j := a.janitor()
	if err := j.Start(a.cfg.Maintenance.Schedule); err != nil {
		return err
	}
	defer j.Stop()

	addr := a.cfg.HTTP.StatusAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := status.New(addr, a.errs, a.tracker, a.log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	return g.Wait()
}
