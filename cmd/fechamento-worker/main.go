package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/Gustavofrb/relatorio-mensal/internal/cli"
	"github.com/Gustavofrb/relatorio-mensal/internal/log"
	"github.com/Gustavofrb/relatorio-mensal/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))

	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		os.Exit(1)
	}
	if !cfg.AMQPEnabled() {
		cli.Fatal(logger, "Worker cannot start", errors.New("AMQP_URL is required"))
	}

	comps, err := cli.NewFactory(logger).Build(context.Background(), cfg, cli.Options{
		Source: cli.SourceAPI,
		Broker: true,
	})
	if err != nil {
		cli.Fatal(logger, "Failed to build closing pipeline", err)
	}
	if comps.Broker == nil {
		_ = comps.Cleanup()
		cli.Fatal(logger, "Worker cannot start", errors.New("AMQP broker unavailable"))
	}

	runWorker := worker.NewRunWorker(comps.Closing)
	workerLogger := logger.WithComponent(log.ComponentWorker)

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(context.Context) {
		if err := comps.Cleanup(); err != nil {
			workerLogger.Warn("Cleanup failed", "error", err)
		}
	})

	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		workerLogger.Info("Consuming run requests",
			"queue", cfg.AMQPQueue,
			"events_queue", cfg.AMQPEventsQueue)
		err := comps.Broker.ConsumeRunRequests(ctx, runWorker.HandleRunRequest)
		if err != nil && !errors.Is(err, context.Canceled) {
			workerLogger.Error("Message consumption stopped", "error", err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	<-consumed
}
