// Package http serves the closing trigger API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Gustavofrb/relatorio-mensal/internal/amqp"
	"github.com/Gustavofrb/relatorio-mensal/internal/cache"
	"github.com/Gustavofrb/relatorio-mensal/internal/core"
	"github.com/Gustavofrb/relatorio-mensal/internal/log"
	"github.com/Gustavofrb/relatorio-mensal/internal/middleware/ratelimit"
	"github.com/Gustavofrb/relatorio-mensal/internal/middleware/security"
	"github.com/Gustavofrb/relatorio-mensal/internal/middleware/trace"
	"github.com/Gustavofrb/relatorio-mensal/internal/services"
)

type (
	// Runner executes a closing synchronously.
	Runner interface {
		Run(ctx context.Context, month string, opts ...services.RunOption) (core.RunReport, error)
	}

	// RunPublisher queues a closing for the worker.
	RunPublisher interface {
		PublishRunRequest(ctx context.Context, month, requestedBy string) (*amqp.RunRequestMessage, error)
	}

	// SummaryReader reads stored monthly summaries.
	SummaryReader interface {
		ListMonthlySummary(ctx context.Context, month string) ([]core.MonthlySummary, error)
	}

	// Pinger reports store readiness.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Config tunes the server.
type Config struct {
	Addr             string
	RunRateLimit     int
	SummaryCacheTTL  time.Duration
	SummaryCacheSize int
}

// Deps are the collaborators of the server. Publisher is optional: without
// it runs execute in the request.
type Deps struct {
	Runner    Runner
	Publisher RunPublisher
	Summaries SummaryReader
	Pinger    Pinger
	Logger    *log.Logger
	Gatherer  prometheus.Gatherer
}

// Server is the closing trigger API.
type Server struct {
	http.Server

	runner    Runner
	publisher RunPublisher
	summaries SummaryReader
	pinger    Pinger
	logger    *log.Logger

	limiter      *ratelimit.Limiter
	summaryCache *cache.LRUCache[[]core.MonthlySummary]
	cacheManager *cache.Manager
	validate     *validator.Validate
	now          func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if cfg.SummaryCacheTTL <= 0 {
		cfg.SummaryCacheTTL = 5 * time.Minute
	}

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: cfg.RunRateLimit,
		Burst:             cfg.RunRateLimit,
	})

	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 10 * time.Second,
		},

		runner:    deps.Runner,
		publisher: deps.Publisher,
		summaries: deps.Summaries,
		pinger:    deps.Pinger,
		logger:    logger,

		limiter:      limiter,
		summaryCache: cache.NewLRUCache[[]core.MonthlySummary](cfg.SummaryCacheSize, cfg.SummaryCacheTTL),
		cacheManager: cache.NewManager(),
		validate:     validator.New(),
		now:          time.Now,
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(cfg.SummaryCacheTTL)

	s.Handler = s.routes(gatherer)
	return s
}

func (s *Server) routes(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(
		trace.Middleware,
		log.Middleware(s.logger),
		log.RequestIDMiddleware(trace.FromRequest),
		log.AccessLog(security.ClientIP),
		chimw.Recoverer,
		security.Headers(security.DefaultHeadersConfig()),
	)

	r.Get("/health", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.With(s.limiter.Middleware(security.ClientIP, s.onRateLimited)).Post("/run", s.handleRun)
	r.Get("/summary", s.handleSummary)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// InvalidateSummary drops the cached summary of month.
func (s *Server) InvalidateSummary(month string) {
	s.summaryCache.Delete(month)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
