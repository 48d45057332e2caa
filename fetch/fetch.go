// Package fetch implements page acquisition for soft visits: a single HTTP
// GET that returns the raw document plus the metadata the driver needs to
// reflect the navigation in history — most importantly the final location
// after redirects, so a redirected visit can replace instead of push.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/hazyhaar/softnav/location"
)

// Result is the outcome of fetching a page.
type Result struct {
	// Body is the raw response body, capped at the configured limit.
	Body []byte

	// Location is the final location after any redirects.
	Location location.Location

	// Redirected reports whether the final location differs from the
	// requested one. Drivers replace history instead of pushing twice.
	Redirected bool

	StatusCode  int
	ContentType string
	Duration    time.Duration
}

// IsHTML reports whether the response declared an HTML content type.
func (r *Result) IsHTML() bool {
	return strings.HasPrefix(r.ContentType, "text/html") ||
		strings.HasPrefix(r.ContentType, "application/xhtml+xml")
}

// Fetcher performs HTTP GETs for soft visits.
type Fetcher struct {
	client  *http.Client
	ua      string
	maxBody int64
	logger  *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets a custom HTTP client. Its CheckRedirect is left alone;
// redirects are followed and the final URL reported.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.ua = ua }
}

// WithMaxBodySize caps the response body read, in bytes.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) { f.maxBody = n }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher with sensible defaults.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:  &http.Client{Timeout: 30 * time.Second},
		ua:      "Mozilla/5.0 (compatible; softnav/1.0)",
		maxBody: 10 << 20,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch GETs the location. Cancel ctx to abandon the request; a superseded
// visit's context does exactly that.
func (f *Fetcher) Fetch(ctx context.Context, loc location.Location) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.RequestURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %s: %w", loc.RequestURL(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}

	final, err := location.Parse(resp.Request.URL.String())
	if err != nil {
		return nil, fmt.Errorf("fetch: final URL: %w", err)
	}

	res := &Result{
		Body:        body,
		Location:    final,
		Redirected:  !final.Equal(loc),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Duration:    time.Since(start),
	}

	f.logger.Debug("fetch: done",
		"url", loc.RequestURL(), "status", res.StatusCode,
		"redirected", res.Redirected, "bytes", len(body),
		"duration", res.Duration)
	return res, nil
}
