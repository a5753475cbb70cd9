// Package httpclient wraps http.Client with logging, default headers, and
// classification of failures into the shared taxonomy.
//
// The client performs single requests only. Retrying is the caller's concern
// via pkg/retry so attempt accounting stays single-sourced.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	stdhttp "net/http"
	"net/url"
	"strconv"
	"time"

	"ppcbatch/internal/shared"
)

// Client is a logging JSON HTTP client.
type Client struct {
	hc      *stdhttp.Client
	log     *slog.Logger
	headers map[string]string
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(t time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = t }
}

// WithLogger sets the logger used by the client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithHeaders adds default headers applied to each request.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		if c.headers == nil {
			c.headers = make(map[string]string, len(h))
		}
		for k, v := range h {
			c.headers[k] = v
		}
	}
}

// WithTransport sets a custom transport.
func WithTransport(rt stdhttp.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.hc.Transport = rt
		}
	}
}

// New creates a configured Client.
func New(opts ...Option) *Client {
	tr := stdhttp.DefaultTransport.(*stdhttp.Transport).Clone()
	tr.MaxIdleConns = 100
	tr.MaxIdleConnsPerHost = 10
	tr.IdleConnTimeout = 90 * time.Second
	tr.TLSHandshakeTimeout = 10 * time.Second
	tr.ResponseHeaderTimeout = 10 * time.Second

	c := &Client{
		hc: &stdhttp.Client{
			Timeout:   30 * time.Second,
			Transport: tr,
		},
		log: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// PostJSON sends body as JSON and decodes the JSON response into a map.
// headers override the client defaults for this request.
func (c *Client) PostJSON(ctx context.Context, rawURL string, body any, headers map[string]string) (map[string]any, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, shared.New("encode request body: "+err.Error(), shared.CategoryParsing)
		}
	}
	req, err := stdhttp.NewRequestWithContext(ctx, stdhttp.MethodPost, rawURL, &buf)
	if err != nil {
		return nil, shared.NewValidation("build request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, headers)
}

// GetJSON fetches rawURL and decodes the JSON response into a map.
func (c *Client) GetJSON(ctx context.Context, rawURL string, headers map[string]string) (map[string]any, error) {
	req, err := stdhttp.NewRequestWithContext(ctx, stdhttp.MethodGet, rawURL, nil)
	if err != nil {
		return nil, shared.NewValidation("build request: " + err.Error())
	}
	return c.doJSON(req, headers)
}

func (c *Client) doJSON(req *stdhttp.Request, headers map[string]string) (map[string]any, error) {
	for k, v := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	dur := time.Since(start)
	if err != nil {
		c.log.Warn("http request error",
			slog.String("method", req.Method),
			slog.String("url", req.URL.Redacted()),
			slog.Any("error", err),
		)
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	c.log.Info("http request",
		slog.String("method", req.Method),
		slog.String("url", req.URL.Redacted()),
		slog.Int("status", resp.StatusCode),
		slog.Duration("dur", dur),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyStatus(resp)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, shared.New("decode response: "+err.Error(), shared.CategoryParsing)
	}
	return out, nil
}

// classifyTransport maps transport failures into the taxonomy. Context
// cancellation passes through unclassified so callers can distinguish their
// own shutdown from an upstream fault.
func classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		if ne, ok := ue.Err.(net.Error); ok && ne.Timeout() {
			return shared.New(err.Error(), shared.CategoryNetwork).WithContext("timeout", true)
		}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return shared.New(err.Error(), shared.CategoryNetwork)
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return shared.New(err.Error(), shared.CategoryNetwork)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return shared.New(err.Error(), shared.CategoryNetwork)
	}
	// url.Error wrapping anything else is still a transport fault
	if errors.As(err, &ue) {
		return shared.New(err.Error(), shared.CategoryNetwork)
	}
	return shared.New(err.Error(), shared.CategoryUnknown)
}

// classifyStatus maps a non-2xx response into the taxonomy. The body is
// drained so the connection can be reused.
func classifyStatus(resp *stdhttp.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	snippet := string(bytes.TrimSpace(body))

	switch resp.StatusCode {
	case stdhttp.StatusUnauthorized, stdhttp.StatusForbidden:
		return shared.New(fmt.Sprintf("authentication rejected (status %d)", resp.StatusCode), shared.CategoryAuth).
			WithSeverity(shared.SeverityHigh).
			WithContext("status", resp.StatusCode)
	case stdhttp.StatusTooManyRequests:
		return shared.NewRateLimit(
			fmt.Sprintf("rate limited (status %d)", resp.StatusCode),
			retryAfterSeconds(resp.Header.Get("Retry-After")),
		).WithContext("status", resp.StatusCode)
	default:
		e := shared.NewAPI(fmt.Sprintf("unexpected status %d", resp.StatusCode)).
			WithContext("status", resp.StatusCode)
		if resp.StatusCode >= 500 {
			// server faults are worth retrying at the call site
			e = shared.New(fmt.Sprintf("upstream failure (status %d)", resp.StatusCode), shared.CategoryNetwork).
				WithContext("status", resp.StatusCode)
		}
		if snippet != "" {
			e = e.WithContext("body", snippet)
		}
		return e
	}
}

// retryAfterSeconds parses a Retry-After header value in seconds or HTTP-date
// form. Unparsable or absent values return 0 and the caller's default applies.
func retryAfterSeconds(h string) int {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil {
		if secs < 0 {
			return 0
		}
		return secs
	}
	if t, err := stdhttp.ParseTime(h); err == nil {
		d := time.Until(t)
		if d < 0 {
			return 0
		}
		return int(d / time.Second)
	}
	return 0
}
