// Package sqlite opens the single-file database used for keyword caching.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // sqlite driver
)

// Options tunes the database connection.
type Options struct {
	// BusyTimeout is the wait before SQLITE_BUSY is returned.
	BusyTimeout time.Duration
	// WALMode enables write-ahead logging.
	WALMode bool
	// ForeignKeys enables foreign key enforcement.
	ForeignKeys bool
	// PingTimeout bounds the connectivity check during Open.
	PingTimeout time.Duration
}

// DefaultOptions returns options suitable for a single-process batch tool.
func DefaultOptions() Options {
	return Options{
		BusyTimeout: 5 * time.Second,
		WALMode:     true,
		ForeignKeys: true,
		PingTimeout: 5 * time.Second,
	}
}

// DSN builds the driver connection string for path.
func DSN(path string, opts Options) string {
	q := url.Values{}
	if opts.BusyTimeout > 0 {
		q.Set("_busy_timeout", fmt.Sprintf("%d", opts.BusyTimeout.Milliseconds()))
	}
	if opts.WALMode {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	if opts.ForeignKeys {
		q.Add("_pragma", "foreign_keys(1)")
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// Open creates the parent directory if needed, opens the database, and
// verifies connectivity. The pool is capped at one writer; sqlite serializes
// writes anyway and a bounded pool avoids SQLITE_BUSY churn.
func Open(path string, opts Options) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", DSN(path, opts))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}
