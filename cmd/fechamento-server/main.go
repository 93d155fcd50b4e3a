package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Gustavofrb/relatorio-mensal/internal/cli"
	closinghttp "github.com/Gustavofrb/relatorio-mensal/internal/http"
	"github.com/Gustavofrb/relatorio-mensal/internal/log"
	"github.com/Gustavofrb/relatorio-mensal/internal/services"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))

	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	comps, err := cli.NewFactory(logger).Build(context.Background(), cfg, cli.Options{
		Source:     cli.SourceAPI,
		Broker:     true,
		Registerer: reg,
	})
	if err != nil {
		cli.Fatal(logger, "Failed to build closing pipeline", err)
	}

	deps := closinghttp.Deps{
		Runner:    comps.Closing,
		Summaries: comps.Store,
		Pinger:    comps.Store,
		Logger:    logger.WithComponent(log.ComponentHTTP),
		Gatherer:  reg,
	}
	if comps.Broker != nil {
		deps.Publisher = comps.Broker
	}
	srv := closinghttp.NewServer(closinghttp.Config{
		Addr:             ":" + cfg.Port,
		RunRateLimit:     cfg.RunRateLimit,
		SummaryCacheTTL:  cfg.SummaryCacheTTL,
		SummaryCacheSize: cfg.SummaryCacheSize,
	}, deps)

	var scheduler *services.Scheduler
	if cfg.ScheduleEnabled {
		scheduler = services.NewScheduler(comps.Closing, services.SchedulerConfig{
			Interval: cfg.ScheduleInterval,
			Day:      cfg.ScheduleDay,
		})
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if scheduler != nil {
			if err := scheduler.Stop(ctx); err != nil {
				logger.Warn("Scheduler stop failed", "error", err)
			}
		}
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown failed", "error", err)
		}
		if err := comps.Cleanup(); err != nil {
			logger.Warn("Cleanup failed", "error", err)
		}
	})

	if scheduler != nil {
		if err := scheduler.Start(ctx); err != nil {
			cli.Fatal(logger, "Failed to start scheduler", err)
		}
		logger.Info("Closing scheduler started", "interval", cfg.ScheduleInterval, "day", cfg.ScheduleDay)
	}

	go func() {
		logger.Info("Trigger server listening", "addr", srv.Addr, "queued_runs", deps.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cli.Fatal(logger, "Server failed", fmt.Errorf("listen on %s: %w", srv.Addr, err))
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
