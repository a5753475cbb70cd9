package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ppcbatch/internal/platform/sqlite"
	"ppcbatch/internal/store"
)

func newStore(t *testing.T) *store.KeywordStore {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), sqlite.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := store.NewKeywordStore(context.Background(), db)
	require.NoError(t, err)
	return s
}

func metric(keyword string, volume int64) store.KeywordMetrics {
	return store.KeywordMetrics{
		Keyword:      keyword,
		SearchVolume: volume,
		CPC:          1.25,
		Competition:  0.5,
		Source:       "google_ads",
		FetchedAt:    time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestUpsertAndCount(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, metric("running shoes", 74000)))
	require.NoError(t, s.Upsert(ctx, metric("trail shoes", 9900)))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestUpsertReplacesOnConflict(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, metric("running shoes", 100)))
	updated := metric("running shoes", 74000)
	updated.CPC = 2.5
	require.NoError(t, s.Upsert(ctx, updated))

	rows, err := s.ByMinVolume(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(74000), rows[0].SearchVolume)
	assert.InDelta(t, 2.5, rows[0].CPC, 0.001)
}

func TestUpsertDistinctSources(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	m := metric("running shoes", 100)
	require.NoError(t, s.Upsert(ctx, m))
	m.Source = "bing_ads"
	require.NoError(t, s.Upsert(ctx, m))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestUpsertBatch(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	batch := []store.KeywordMetrics{
		metric("a", 10),
		metric("b", 20),
		metric("c", 30),
	}
	require.NoError(t, s.UpsertBatch(ctx, batch))
	require.NoError(t, s.UpsertBatch(ctx, nil)) // empty batch is a no-op

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestByMinVolume(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertBatch(ctx, []store.KeywordMetrics{
		metric("low", 5),
		metric("mid", 50),
		metric("high", 500),
	}))

	rows, err := s.ByMinVolume(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// highest volume first
	assert.Equal(t, "high", rows[0].Keyword)
	assert.Equal(t, "mid", rows[1].Keyword)
}

func TestKnown(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, metric("known", 10)))

	known, err := s.Known(ctx, "google_ads", []string{"known", "unknown"})
	require.NoError(t, err)
	assert.True(t, known["known"])
	assert.False(t, known["unknown"])

	known, err = s.Known(ctx, "bing_ads", []string{"known"})
	require.NoError(t, err)
	assert.Empty(t, known)
}
