package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gustavofrb/relatorio-mensal/internal/amqp"
	"github.com/Gustavofrb/relatorio-mensal/internal/core"
	"github.com/Gustavofrb/relatorio-mensal/internal/log"
	"github.com/Gustavofrb/relatorio-mensal/internal/metrics"
	"github.com/Gustavofrb/relatorio-mensal/internal/services"
)

type fakeRunner struct {
	mu     sync.Mutex
	months []string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, month string, opts ...services.RunOption) (core.RunReport, error) {
	o := services.RunOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.months = append(f.months, month)
	if f.err != nil {
		return core.RunReport{}, f.err
	}
	return core.RunReport{RunID: "run-1", Month: month, Trigger: o.Trigger, Rows: 2}, nil
}

type fakePublisher struct {
	months []string
	by     []string
	err    error
}

func (f *fakePublisher) PublishRunRequest(_ context.Context, month, requestedBy string) (*amqp.RunRequestMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.months = append(f.months, month)
	f.by = append(f.by, requestedBy)
	msg := amqp.NewRunRequestMessage(month, requestedBy)
	msg.RequestID = "req-42"
	return msg, nil
}

type fakeSummaries struct {
	rows  map[string][]core.MonthlySummary
	calls int
	err   error
}

func (f *fakeSummaries) ListMonthlySummary(_ context.Context, month string) ([]core.MonthlySummary, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[month], nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func testLogger() *log.Logger {
	return log.New(log.Config{Level: log.DefaultConfig().Level, Component: log.ComponentHTTP, Output: &bytes.Buffer{}})
}

func newTestServer(t *testing.T, cfg Config, deps Deps) *Server {
	t.Helper()
	if cfg.RunRateLimit == 0 {
		cfg.RunRateLimit = 100
	}
	if deps.Logger == nil {
		deps.Logger = testLogger()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.NewRegistry()
	}
	s := NewServer(cfg, deps)
	s.now = func() time.Time { return time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func do(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = "203.0.113.5:40000"
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, Config{}, Deps{Pinger: fakePinger{}})

	rr := do(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode(t, rr)["status"])
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = do(s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	down := newTestServer(t, Config{}, Deps{Pinger: fakePinger{err: errors.New("database is locked")}})
	rr = do(down, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "unavailable", decode(t, rr)["status"])
}

func TestRun_Synchronous(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestServer(t, Config{}, Deps{Runner: runner})

	rr := do(s, http.MethodPost, "/run", `{"month":"2025-05"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var rep core.RunReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	assert.Equal(t, "2025-05", rep.Month)
	assert.Equal(t, core.TriggerHTTP, rep.Trigger)
	assert.Equal(t, []string{"2025-05"}, runner.months)
}

func TestRun_EmptyBodyUsesPreviousMonth(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestServer(t, Config{}, Deps{Runner: runner})

	rr := do(s, http.MethodPost, "/run", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = do(s, http.MethodPost, "/run", `{}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	assert.Equal(t, []string{"2025-06", "2025-06"}, runner.months)
}

func TestRun_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "single digit month", body: `{"month":"2025-6"}`},
		{name: "month out of range", body: `{"month":"2025-13"}`},
		{name: "not a date", body: `{"month":"junho"}`},
		{name: "malformed json", body: `{"month":`},
		{name: "unknown field", body: `{"month":"2025-06","force":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			s := newTestServer(t, Config{}, Deps{Runner: runner})

			rr := do(s, http.MethodPost, "/run", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.NotEmpty(t, decode(t, rr)["error"])
			assert.Empty(t, runner.months)
		})
	}
}

func TestRun_Failure(t *testing.T) {
	s := newTestServer(t, Config{}, Deps{Runner: &fakeRunner{err: errors.New("collect: upstream returned 502")}})

	rr := do(s, http.MethodPost, "/run", `{"month":"2025-06"}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decode(t, rr)
	assert.Contains(t, body["error"], "upstream")
	assert.Equal(t, "2025-06", body["month"])
}

func TestRun_Queued(t *testing.T) {
	runner := &fakeRunner{}
	pub := &fakePublisher{}
	s := newTestServer(t, Config{}, Deps{Runner: runner, Publisher: pub})

	rr := do(s, http.MethodPost, "/run", `{"month":"2025-06"}`)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, "req-42", body["request_id"])
	assert.Equal(t, []string{"2025-06"}, pub.months)
	assert.Equal(t, []string{"http:203.0.113.5"}, pub.by)
	assert.Empty(t, runner.months, "queued runs must not execute in the request")
}

func TestRun_QueueUnavailable(t *testing.T) {
	s := newTestServer(t, Config{}, Deps{Publisher: &fakePublisher{err: amqp.ErrCircuitOpen}})

	rr := do(s, http.MethodPost, "/run", `{"month":"2025-06"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRun_RateLimited(t *testing.T) {
	s := newTestServer(t, Config{RunRateLimit: 2}, Deps{Runner: &fakeRunner{}})

	for i := 0; i < 2; i++ {
		rr := do(s, http.MethodPost, "/run", `{"month":"2025-06"}`)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := do(s, http.MethodPost, "/run", `{"month":"2025-06"}`)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// other endpoints are not limited
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/health", "").Code)
}

func TestRun_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, Config{}, Deps{Runner: &fakeRunner{}})
	assert.Equal(t, http.StatusMethodNotAllowed, do(s, http.MethodGet, "/run", "").Code)
	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/expenses", "").Code)
}

func TestSummary_CachedAndInvalidated(t *testing.T) {
	rating := 4.5
	summaries := &fakeSummaries{rows: map[string][]core.MonthlySummary{
		"2025-06": {
			{PropertyID: "P1", Month: "2025-06", GrossRevenue: 1000, NetRevenue: 800, AvgRating: &rating},
			{PropertyID: "P2", Month: "2025-06", GrossRevenue: 500, NetRevenue: 450},
		},
	}}
	s := newTestServer(t, Config{SummaryCacheSize: 4, SummaryCacheTTL: time.Minute}, Deps{
		Runner:    &fakeRunner{},
		Summaries: summaries,
	})

	rr := do(s, http.MethodGet, "/summary?month=2025-06", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp summaryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp.Rows, 2)
	assert.Equal(t, 2, resp.Stats.TotalProperties)
	assert.InDelta(t, 1500, resp.Stats.TotalRevenue, 0.001)

	do(s, http.MethodGet, "/summary?month=2025-06", "")
	assert.Equal(t, 1, summaries.calls, "second read should be served from cache")

	require.Equal(t, http.StatusOK, do(s, http.MethodPost, "/run", `{"month":"2025-06"}`).Code)
	do(s, http.MethodGet, "/summary?month=2025-06", "")
	assert.Equal(t, 2, summaries.calls, "run must invalidate the cached month")
}

func TestSummary_Errors(t *testing.T) {
	summaries := &fakeSummaries{rows: map[string][]core.MonthlySummary{}}
	s := newTestServer(t, Config{}, Deps{Summaries: summaries})

	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodGet, "/summary", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodGet, "/summary?month=2025-6", "").Code)

	rr := do(s, http.MethodGet, "/summary?month=2025-06", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	do(s, http.MethodGet, "/summary?month=2025-06", "")
	assert.Equal(t, 2, summaries.calls, "empty results are not cached")

	summaries.err = errors.New("database busy")
	assert.Equal(t, http.StatusInternalServerError, do(s, http.MethodGet, "/summary?month=2025-05", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewPipelineMetrics(reg)
	m.IncRun(metrics.StatusSuccess)

	s := newTestServer(t, Config{}, Deps{Gatherer: reg})
	rr := do(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `closing_runs_total{status="success"} 1`)
}

func TestRequestIDPropagation(t *testing.T) {
	s := newTestServer(t, Config{}, Deps{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "trace-abc")
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)
	assert.Equal(t, "trace-abc", rr.Header().Get("X-Request-Id"))
}
