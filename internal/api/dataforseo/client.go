// Package dataforseo implements the DataForSEO v3 live endpoints used for
// keyword research.
package dataforseo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ppcbatch/internal/platform/httpclient"
	"ppcbatch/internal/shared"
	"ppcbatch/pkg/retry"
)

// BaseURL is the production API root.
const BaseURL = "https://api.dataforseo.com/v3"

const serviceName = "dataforseo"

// statusOK is DataForSEO's success code at both envelope and task level.
const statusOK = 20000

// HeaderSource supplies authentication headers per service. Credentials live
// with the caller, never in this client.
type HeaderSource interface {
	APIHeaders(service string) (map[string]string, error)
}

// Metrics is one keyword with its advertising metrics.
type Metrics struct {
	Keyword      string
	SearchVolume int64
	CPC          float64
	Competition  float64
}

// Location is a targetable location.
type Location struct {
	Code    int64
	Name    string
	Country string
	Type    string
}

// Client calls DataForSEO with retry on transient failures.
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

// transient failures worth another attempt; everything else propagates
var retryable = shared.RetryableCategories(shared.CategoryNetwork, shared.CategoryRateLimit)

// post sends the task list to endpoint and returns the decoded envelope.
func (c *Client) post(ctx context.Context, endpoint string, tasks []map[string]any) (map[string]any, error) {
	headers, err := c.headers.APIHeaders(serviceName)
	if err != nil {
		return nil, err
	}
	url := c.base + "/" + endpoint
	return retry.Do(ctx, c.policy, func(ctx context.Context) (map[string]any, error) {
		return c.http.PostJSON(ctx, url, tasks, headers)
	}, retry.Options{
		Retryable: retryable,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			c.log.Warn("dataforseo request retry",
				slog.String("endpoint", endpoint),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.Any("error", err),
			)
		},
	})
}

func (c *Client) get(ctx context.Context, endpoint string) (map[string]any, error) {
	headers, err := c.headers.APIHeaders(serviceName)
	if err != nil {
		return nil, err
	}
	url := c.base + "/" + endpoint
	return retry.Do(ctx, c.policy, func(ctx context.Context) (map[string]any, error) {
		return c.http.GetJSON(ctx, url, headers)
	}, retry.Options{
		Retryable: retryable,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			c.log.Warn("dataforseo request retry",
				slog.String("endpoint", endpoint),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.Any("error", err),
			)
		},
	})
}

// taskPayload builds the standard DataForSEO task object. Zero location falls
// back to the United States, empty language to English.
func taskPayload(keywords []string, locationCode int, languageCode string) map[string]any {
	if locationCode == 0 {
		locationCode = 2840
	}
	if languageCode == "" {
		languageCode = "en"
	}
	return map[string]any{
		"keywords":      keywords,
		"location_code": locationCode,
		"language_code": languageCode,
	}
}

// result extracts tasks[0].result from a DataForSEO envelope, translating
// failures into classified errors.
func result(resp map[string]any) ([]any, error) {
	if code := numField(resp, "status_code"); code != statusOK {
		msg, _ := resp["status_message"].(string)
		if msg == "" {
			msg = "Request failed"
		}
		return nil, shared.NewAPI(msg).WithContext("status_code", code)
	}
	tasks, _ := resp["tasks"].([]any)
	if len(tasks) == 0 {
		return nil, shared.NewAPI("No tasks in response")
	}
	task, _ := tasks[0].(map[string]any)
	if task == nil {
		return nil, shared.New("malformed task entry", shared.CategoryParsing)
	}
	if code := numField(task, "status_code"); code != statusOK {
		msg, _ := task["status_message"].(string)
		if msg == "" {
			msg = "Task failed"
		}
		return nil, shared.NewAPI(msg).WithContext("status_code", code)
	}
	items, _ := task["result"].([]any)
	return items, nil
}

// SearchVolume returns advertising metrics for up to 1000 keywords via the
// google_ads/search_volume live endpoint.
func (c *Client) SearchVolume(ctx context.Context, keywords []string, locationCode int, languageCode string) ([]Metrics, error) {
	if len(keywords) == 0 {
		return nil, shared.NewValidation("no keywords given")
	}
	resp, err := c.post(ctx, "keywords_data/google_ads/search_volume/live",
		[]map[string]any{taskPayload(keywords, locationCode, languageCode)})
	if err != nil {
		return nil, err
	}
	items, err := result(resp)
	if err != nil {
		return nil, err
	}
	return parseMetrics(items), nil
}

// KeywordsForKeywords expands seed keywords into related suggestions with
// metrics via the google_ads/keywords_for_keywords live endpoint.
func (c *Client) KeywordsForKeywords(ctx context.Context, seeds []string, locationCode int, languageCode string) ([]Metrics, error) {
	if len(seeds) == 0 {
		return nil, shared.NewValidation("no seed keywords given")
	}
	resp, err := c.post(ctx, "keywords_data/google_ads/keywords_for_keywords/live",
		[]map[string]any{taskPayload(seeds, locationCode, languageCode)})
	if err != nil {
		return nil, err
	}
	items, err := result(resp)
	if err != nil {
		return nil, err
	}
	return parseMetrics(items), nil
}

// Locations lists targetable locations, optionally filtered by country code.
func (c *Client) Locations(ctx context.Context, country string) ([]Location, error) {
	endpoint := "keywords_data/google_ads/locations"
	if country != "" {
		endpoint = fmt.Sprintf("%s/%s", endpoint, country)
	}
	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	items, err := result(resp)
	if err != nil {
		return nil, err
	}
	out := make([]Location, 0, len(items))
	for _, it := range items {
		m, _ := it.(map[string]any)
		if m == nil {
			continue
		}
		name, _ := m["location_name"].(string)
		countryCode, _ := m["country_iso_code"].(string)
		typ, _ := m["location_type"].(string)
		out = append(out, Location{
			Code:    int64(numField(m, "location_code")),
			Name:    name,
			Country: countryCode,
			Type:    typ,
		})
	}
	return out, nil
}

func parseMetrics(items []any) []Metrics {
	out := make([]Metrics, 0, len(items))
	for _, it := range items {
		m, _ := it.(map[string]any)
		if m == nil {
			continue
		}
		kw, _ := m["keyword"].(string)
		if kw == "" {
			continue
		}
		out = append(out, Metrics{
			Keyword:      kw,
			SearchVolume: int64(numField(m, "search_volume")),
			CPC:          floatField(m, "cpc"),
			Competition:  floatField(m, "competition"),
		})
	}
	return out
}

func numField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func floatField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
