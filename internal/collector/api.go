package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
	"github.com/Gustavofrb/relatorio-mensal/internal/period"
)

const (
	defaultTimeout = 30 * time.Second
	errorBodyLimit = 1024
)

var (
	ErrTokenRequired = errors.New("api token is required")
	ErrUpstream      = errors.New("upstream request failed")
)

type payloadFormat int

const (
	formatJSON payloadFormat = iota
	formatCSV
)

// endpoint describes where one source lives on the upstream API.
type endpoint struct {
	source    core.Source
	path      string
	format    payloadFormat
	withMonth bool
}

var endpoints = []endpoint{
	{source: core.SourceBookings, path: "/bookings-operational", format: formatJSON, withMonth: true},
	{source: core.SourceProperties, path: "/property-details", format: formatJSON},
	{source: core.SourceFees, path: "/platform-fees", format: formatJSON},
	{source: core.SourceFeedback, path: "/download/guest-feedback", format: formatCSV, withMonth: true},
	{source: core.SourceCosts, path: "/download/extra-costs", format: formatCSV, withMonth: true},
}

// StatusError carries a non-2xx upstream response.
type StatusError struct {
	Source     core.Source
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s returned %d: %s", ErrUpstream, e.Source, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrUpstream
}

// APICollector reads the five sources from the upstream HTTP API.
type APICollector struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Option configures optional collector behavior.
type Option func(*APICollector)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *APICollector) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(c *APICollector) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// NewAPICollector builds a collector for baseURL authenticated with token.
func NewAPICollector(baseURL, token string, opts ...Option) (*APICollector, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenRequired
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	c := &APICollector{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Collect fetches every source concurrently. The first failure cancels the
// remaining requests.
func (c *APICollector) Collect(ctx context.Context, month period.Period) (core.RawData, error) {
	slog.InfoContext(ctx, "Collecting source data", "month", month.String(), "base_url", c.baseURL)

	var (
		mu       sync.Mutex
		payloads = make(map[core.Source][]record, len(endpoints))
		headers  = make(map[core.Source][]string, len(endpoints))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, ep := range endpoints {
		ep := ep
		g.Go(func() error {
			rows, header, err := c.fetch(gctx, ep, month)
			if err != nil {
				return err
			}
			mu.Lock()
			payloads[ep.source] = rows
			headers[ep.source] = header
			mu.Unlock()
			slog.InfoContext(gctx, "Source fetched", "source", string(ep.source), "rows", len(rows))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return core.RawData{}, err
	}

	return assemble(payloads, headers)
}

func (c *APICollector) fetch(ctx context.Context, ep endpoint, month period.Period) ([]record, []string, error) {
	target := c.baseURL + ep.path
	if ep.withMonth {
		target += "?" + url.Values{"month": {month.String()}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build %s request: %w", ep.source, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrUpstream, ep.source, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, nil, &StatusError{Source: ep.source, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if ep.format == formatCSV {
		return decodeCSV(ep.source, resp.Body)
	}
	return decodeJSON(ep.source, resp.Body)
}
