package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/Gustavofrb/relatorio-mensal/internal/amqp"
	"github.com/Gustavofrb/relatorio-mensal/internal/collector"
	"github.com/Gustavofrb/relatorio-mensal/internal/config"
	"github.com/Gustavofrb/relatorio-mensal/internal/log"
	"github.com/Gustavofrb/relatorio-mensal/internal/metrics"
	"github.com/Gustavofrb/relatorio-mensal/internal/notify"
	"github.com/Gustavofrb/relatorio-mensal/internal/report"
	"github.com/Gustavofrb/relatorio-mensal/internal/services"
	"github.com/Gustavofrb/relatorio-mensal/internal/sheets"
	"github.com/Gustavofrb/relatorio-mensal/internal/sheets/google"
	"github.com/Gustavofrb/relatorio-mensal/internal/storage"
	"github.com/Gustavofrb/relatorio-mensal/internal/transform"
)

// SourceKind selects where raw inputs are collected from.
type SourceKind string

const (
	SourceAPI SourceKind = "api"
	SourceDir SourceKind = "dir"
)

// String implements fmt.Stringer
func (k SourceKind) String() string {
	return string(k)
}

// IsValid returns true if the source kind is known
func (k SourceKind) IsValid() bool {
	switch k {
	case SourceAPI, SourceDir:
		return true
	default:
		return false
	}
}

// CleanupFunc releases resources opened by Build.
type CleanupFunc func() error

// Options tune what Build wires.
type Options struct {
	Source     SourceKind
	Dir        string
	Broker     bool // dial AMQP when AMQP_URL is set
	Registerer prometheus.Registerer
}

// Components is a fully wired closing pipeline.
type Components struct {
	Store      *storage.SQLiteRepository
	Broker     *amqp.Client
	Metrics    *metrics.PipelineMetrics
	Closing    *services.ClosingService
	Classifier services.ClassifierKind
	Collector  collector.Collector
	Cleanup    CleanupFunc
}

// Factory builds pipeline components from configuration.
type Factory struct {
	logger *log.Logger
}

// NewFactory creates a factory logging through logger.
func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Factory{logger: logger.WithComponent(log.ComponentApp)}
}

// NewCollector returns the collector for opts.Source. An empty source means
// the API.
func (f *Factory) NewCollector(cfg *config.Config, opts Options) (collector.Collector, error) {
	source := opts.Source
	if source == "" {
		source = SourceAPI
	}
	if !source.IsValid() {
		return nil, fmt.Errorf("invalid source: %s", source)
	}

	switch source {
	case SourceDir:
		if opts.Dir == "" {
			return nil, errors.New("a directory is required for the dir source")
		}
		f.logger.Info("Collecting from files", "dir", opts.Dir)
		return collector.NewFileCollector(opts.Dir), nil
	default:
		if err := cfg.ValidateCollection(); err != nil {
			return nil, err
		}
		c, err := collector.NewAPICollector(cfg.APIBaseURL, cfg.APIToken, collector.WithTimeout(cfg.APITimeout))
		if err != nil {
			return nil, fmt.Errorf("create api collector: %w", err)
		}
		f.logger.Info("Collecting from API", "base_url", cfg.APIBaseURL)
		return c, nil
	}
}

// NewExporter returns the Google Sheets exporter, or nil when the export is
// not configured.
func (f *Factory) NewExporter(ctx context.Context, cfg *config.Config) (sheets.SummaryExporter, error) {
	if !cfg.SheetsEnabled() {
		return nil, nil
	}
	exp, err := google.New(ctx, google.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		SheetPrefix:     cfg.GoogleSheetPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets exporter: %w", err)
	}
	return exp, nil
}

// NewNotifier combines every configured channel. events may be nil.
func (f *Factory) NewNotifier(cfg *config.Config, events notify.EventPublisher) notify.Notifier {
	var channels notify.Multi
	if cfg.SMTPEnabled() {
		channels = append(channels, notify.NewEmailNotifier(notify.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.FromEmail,
			Recipients: notify.Recipients{
				Finance:    cfg.FinanceEmails,
				Operations: cfg.OperationsEmails,
				Support:    cfg.SupportEmails,
				IT:         cfg.ITEmails,
				Leadership: cfg.LeadershipEmails,
			},
		}))
	}
	if cfg.SlackWebhookURL != "" {
		channels = append(channels, notify.NewSlackNotifier(cfg.SlackWebhookURL, nil))
	}
	if events != nil {
		channels = append(channels, notify.NewEventNotifier(events))
	}

	f.logger.Info("Notification channels configured",
		"email", cfg.SMTPEnabled(),
		"slack", cfg.SlackWebhookURL != "",
		"events", events != nil)

	if len(channels) == 0 {
		return notify.Nop{}
	}
	return channels
}

// Build opens the store, dials the broker when asked to and wires the
// closing service. Callers must invoke Cleanup.
func (f *Factory) Build(ctx context.Context, cfg *config.Config, opts Options) (*Components, error) {
	col, err := f.NewCollector(cfg, opts)
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(ctx, f.logger, cfg)
	if err != nil {
		return nil, err
	}
	comps := &Components{Store: store, Collector: col}
	comps.Cleanup = func() error {
		var err error
		if comps.Broker != nil {
			err = multierr.Append(err, comps.Broker.Close())
		}
		return multierr.Append(err, store.Close())
	}

	if opts.Broker && cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPEventsQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without broker", "error", err)
		} else {
			comps.Broker = client
			f.logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue,
				"events_queue", cfg.AMQPEventsQueue)
		}
	}

	classifier, kind, err := services.NewClassifier(services.ClassifierConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.LLMModel,
	})
	if err != nil {
		_ = comps.Cleanup()
		return nil, err
	}
	comps.Classifier = kind

	exporter, err := f.NewExporter(ctx, cfg)
	if err != nil {
		_ = comps.Cleanup()
		return nil, err
	}

	var events notify.EventPublisher
	if comps.Broker != nil {
		events = comps.Broker
	}

	comps.Metrics = metrics.NewPipelineMetrics(opts.Registerer)
	closing, err := services.NewClosingService(services.ClosingDeps{
		Collector:   col,
		Transformer: transform.New(),
		Store:       store,
		Classifier:  classifier,
		Reports:     report.NewGenerator(cfg.OutputDir),
		Exporter:    exporter,
		Notifier:    f.NewNotifier(cfg, events),
		Metrics:     comps.Metrics,
	})
	if err != nil {
		_ = comps.Cleanup()
		return nil, err
	}
	comps.Closing = closing

	f.logger.Info("Closing pipeline ready",
		"source", opts.Source.String(),
		"classifier", string(kind),
		"sheets", exporter != nil,
		"broker", comps.Broker != nil)
	return comps, nil
}
