// Package firecrawl implements the Firecrawl scraping API used for landing
// page analysis.
package firecrawl

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
const BaseURL = "https://api.firecrawl.dev/v0"

const serviceName = "firecrawl"

// HeaderSource supplies authentication headers per service.
type HeaderSource interface {
	APIHeaders(service string) (map[string]string, error)
}

// Client calls Firecrawl with retry on transient failures.
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

// Scrape fetches a single URL and returns the interpreted scrape result.
func (c *Client) Scrape(ctx context.Context, pageURL string) (map[string]any, error) {
	if pageURL == "" {
		return nil, shared.NewValidation("empty page url")
	}
	headers, err := c.headers.APIHeaders(serviceName)
	if err != nil {
		return nil, err
	}
	url := c.base + "/scrape"
	resp, err := retry.Do(ctx, c.policy, func(ctx context.Context) (map[string]any, error) {
		return c.http.PostJSON(ctx, url, map[string]any{"url": pageURL}, headers)
	}, retry.Options{
		Retryable: retryable,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			c.log.Warn("firecrawl request retry",
				slog.String("url", pageURL),
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
