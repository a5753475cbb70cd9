// Package store persists fetched keyword metrics so repeated research runs
// reuse prior results instead of burning API quota.
package store

import (
	"context"
	"database/sql"
	"time"

	"ppcbatch/internal/shared"
)

// KeywordMetrics is one enriched keyword row.
type KeywordMetrics struct {
	Keyword      string
	SearchVolume int64
	CPC          float64
	Competition  float64
	Category     string
	Source       string // upstream platform, e.g. google_ads
	FetchedAt    time.Time
}

// KeywordStore is a sqlite-backed repository of keyword metrics.
type KeywordStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS keyword_metrics (
	keyword        TEXT NOT NULL,
	source         TEXT NOT NULL,
	search_volume  INTEGER NOT NULL DEFAULT 0,
	cpc            REAL NOT NULL DEFAULT 0,
	competition    REAL NOT NULL DEFAULT 0,
	category       TEXT NOT NULL DEFAULT '',
	fetched_at     TIMESTAMP NOT NULL,
	PRIMARY KEY (keyword, source)
);
CREATE INDEX IF NOT EXISTS idx_keyword_metrics_volume ON keyword_metrics (search_volume);
`

// NewKeywordStore creates the schema if needed and returns the repository.
func NewKeywordStore(ctx context.Context, db *sql.DB) (*KeywordStore, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, shared.Wrap(err, "create keyword schema")
	}
	return &KeywordStore{db: db}, nil
}

// Upsert inserts or replaces metrics for (keyword, source).
func (s *KeywordStore) Upsert(ctx context.Context, m KeywordMetrics) error {
	const q = `
INSERT INTO keyword_metrics (keyword, source, search_volume, cpc, competition, category, fetched_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (keyword, source) DO UPDATE SET
	search_volume = excluded.search_volume,
	cpc           = excluded.cpc,
	competition   = excluded.competition,
	category      = excluded.category,
	fetched_at    = excluded.fetched_at`
	_, err := s.db.ExecContext(ctx, q,
		m.Keyword, m.Source, m.SearchVolume, m.CPC, m.Competition, m.Category, m.FetchedAt.UTC())
	return shared.Wrapf(err, "upsert keyword %q", m.Keyword)
}

// UpsertBatch stores a batch atomically.
func (s *KeywordStore) UpsertBatch(ctx context.Context, metrics []KeywordMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return shared.Wrap(err, "begin batch upsert")
	}
	defer tx.Rollback()

	const q = `
INSERT INTO keyword_metrics (keyword, source, search_volume, cpc, competition, category, fetched_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (keyword, source) DO UPDATE SET
	search_volume = excluded.search_volume,
	cpc           = excluded.cpc,
	competition   = excluded.competition,
	category      = excluded.category,
	fetched_at    = excluded.fetched_at`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return shared.Wrap(err, "prepare batch upsert")
	}
	defer stmt.Close()
	for _, m := range metrics {
		if _, err := stmt.ExecContext(ctx,
			m.Keyword, m.Source, m.SearchVolume, m.CPC, m.Competition, m.Category, m.FetchedAt.UTC()); err != nil {
			return shared.Wrapf(err, "upsert keyword %q", m.Keyword)
		}
	}
	return tx.Commit()
}

// ByMinVolume returns metrics with at least the given search volume, highest
// volume first.
func (s *KeywordStore) ByMinVolume(ctx context.Context, minVolume int64) ([]KeywordMetrics, error) {
	const q = `
SELECT keyword, source, search_volume, cpc, competition, category, fetched_at
FROM keyword_metrics
WHERE search_volume >= ?
ORDER BY search_volume DESC, keyword`
	rows, err := s.db.QueryContext(ctx, q, minVolume)
	if err != nil {
		return nil, shared.Wrap(err, "query keyword metrics")
	}
	defer rows.Close()

	var out []KeywordMetrics
	for rows.Next() {
		var m KeywordMetrics
		if err := rows.Scan(&m.Keyword, &m.Source, &m.SearchVolume, &m.CPC, &m.Competition, &m.Category, &m.FetchedAt); err != nil {
			return nil, shared.Wrap(err, "scan keyword metrics")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Known reports which of the given keywords already have metrics for source.
func (s *KeywordStore) Known(ctx context.Context, source string, keywords []string) (map[string]bool, error) {
	known := make(map[string]bool, len(keywords))
	const q = `SELECT 1 FROM keyword_metrics WHERE keyword = ? AND source = ?`
	for _, kw := range keywords {
		var one int
		err := s.db.QueryRowContext(ctx, q, kw, source).Scan(&one)
		switch {
		case err == sql.ErrNoRows:
			continue
		case err != nil:
			return nil, shared.Wrapf(err, "lookup keyword %q", kw)
		default:
			known[kw] = true
		}
	}
	return known, nil
}

// Count returns the number of stored rows.
func (s *KeywordStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM keyword_metrics`).Scan(&n)
	return n, shared.Wrap(err, "count keyword metrics")
}
