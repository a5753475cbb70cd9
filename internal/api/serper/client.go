// Package serper implements the Serper search API used for competitor
// research.
package serper

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ppcbatch/internal/platform/httpclient"
	"ppcbatch/internal/shared"
	"ppcbatch/pkg/retry"
)

// BaseURL is the production API root.
const BaseURL = "https://google.serper.dev"

const serviceName = "serper"

// HeaderSource supplies authentication headers per service.
type HeaderSource interface {
	APIHeaders(service string) (map[string]string, error)
}

// Query is one search request.
type Query struct {
	Q        string
	Location string
	GL       string // country code
	HL       string // language code
	Num      int
	Page     int
}

func (q Query) payload() map[string]any {
	p := map[string]any{"q": q.Q}
	if q.Location != "" {
		p["location"] = q.Location
	}
	if q.GL != "" {
		p["gl"] = q.GL
	}
	if q.HL != "" {
		p["hl"] = q.HL
	}
	if q.Num > 0 {
		p["num"] = q.Num
	}
	if q.Page > 0 {
		p["page"] = q.Page
	}
	return p
}

// Client calls Serper with retry on transient failures.
type Client struct {
	http    *httpclient.Client
	base    string
	headers HeaderSource
	policy  retry.Policy
	log     *slog.Logger
}

// Option configures Client.
type Option func(*Client)

// WithBaseURL overrides the API root, for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.base = strings.TrimRight(u, "/") }
}

// WithPolicy overrides the retry policy.
func WithPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a Client.
func New(hc *httpclient.Client, headers HeaderSource, opts ...Option) *Client {
	c := &Client{
		http:    hc,
		base:    BaseURL,
		headers: headers,
		policy:  retry.DefaultPolicy(),
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var retryable = shared.RetryableCategories(shared.CategoryNetwork, shared.CategoryRateLimit)

// Search runs a Google search query and returns the interpreted payload.
func (c *Client) Search(ctx context.Context, q Query) (map[string]any, error) {
	if q.Q == "" {
		return nil, shared.NewValidation("empty search query")
	}
	return c.call(ctx, "/search", q.payload())
}

// News runs a news search query.
func (c *Client) News(ctx context.Context, q Query) (map[string]any, error) {
	if q.Q == "" {
		return nil, shared.NewValidation("empty search query")
	}
	return c.call(ctx, "/news", q.payload())
}

func (c *Client) call(ctx context.Context, path string, payload map[string]any) (map[string]any, error) {
	headers, err := c.headers.APIHeaders(serviceName)
	if err != nil {
		return nil, err
	}
	url := c.base + path
	resp, err := retry.Do(ctx, c.policy, func(ctx context.Context) (map[string]any, error) {
		return c.http.PostJSON(ctx, url, payload, headers)
	}, retry.Options{
		Retryable: retryable,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			c.log.Warn("serper request retry",
				slog.String("path", path),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.Any("error", err),
			)
		},
	})
	if err != nil {
		return nil, err
	}
	data, err := shared.Interpret(resp, true)
	if err != nil {
		return nil, err
	}
	if m, ok := data.(map[string]any); ok {
		return m, nil
	}
	return nil, shared.New("unexpected response shape", shared.CategoryParsing)
}
