package firecrawl_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ppcbatch/internal/api/firecrawl"
	"ppcbatch/internal/platform/httpclient"
	"ppcbatch/internal/shared"
	"ppcbatch/pkg/retry"
)

type staticHeaders map[string]string

func (h staticHeaders) APIHeaders(service string) (map[string]string, error) {
	return h, nil
}

func newClient(t *testing.T, handler http.Handler) *firecrawl.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return firecrawl.New(httpclient.New(), staticHeaders{"Authorization": "Bearer fk"},
		firecrawl.WithBaseURL(srv.URL),
		firecrawl.WithPolicy(retry.Policy{
			MaxAttempts:     1,
			InitialDelay:    time.Millisecond,
			MaxDelay:        time.Millisecond,
			ExponentialBase: 2.0,
		}),
	)
}

func TestScrape(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"markdown": "# Landing page", "metadata": map[string]any{"title": "Shop"}},
		})
	}))

	out, err := c.Scrape(context.Background(), "https://example.com/landing")
	require.NoError(t, err)

	assert.Equal(t, "/scrape", gotPath)
	assert.Equal(t, "Bearer fk", gotAuth)
	assert.Equal(t, "https://example.com/landing", gotBody["url"])
	assert.Equal(t, "# Landing page", out["markdown"])
}

func TestScrapeEmptyURL(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))

	_, err := c.Scrape(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, shared.CategoryValidation, shared.CategoryOf(err))
}

func TestScrapePayloadError(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": "BLOCKED", "message": "target refused"},
		})
	}))

	_, err := c.Scrape(context.Background(), "https://example.com")
	require.Error(t, err)
	assert.Equal(t, shared.CategoryAPI, shared.CategoryOf(err))
}

func TestScrapeUnexpectedShape(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []any{"not", "a", "map"}})
	}))

	_, err := c.Scrape(context.Background(), "https://example.com")
	require.Error(t, err)
	assert.Equal(t, shared.CategoryParsing, shared.CategoryOf(err))
}
