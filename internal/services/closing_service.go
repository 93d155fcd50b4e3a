package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Gustavofrb/relatorio-mensal/internal/collector"
	"github.com/Gustavofrb/relatorio-mensal/internal/core"
	"github.com/Gustavofrb/relatorio-mensal/internal/insights"
	"github.com/Gustavofrb/relatorio-mensal/internal/log"
	"github.com/Gustavofrb/relatorio-mensal/internal/metrics"
	"github.com/Gustavofrb/relatorio-mensal/internal/notify"
	"github.com/Gustavofrb/relatorio-mensal/internal/period"
	"github.com/Gustavofrb/relatorio-mensal/internal/report"
	"github.com/Gustavofrb/relatorio-mensal/internal/sheets"
)

type (
	// Transformer turns raw inputs into the monthly summary.
	Transformer interface {
		Transform(ctx context.Context, data core.RawData, month string) ([]core.MonthlySummary, error)
	}

	// SummaryStore persists the monthly summary.
	SummaryStore interface {
		Save(ctx context.Context, rows []core.MonthlySummary) error
		HasMonth(ctx context.Context, month string) (bool, error)
	}

	// ReportGenerator writes the CSV reports of a month.
	ReportGenerator interface {
		Generate(ctx context.Context, rows []core.MonthlySummary, month string) (report.Paths, error)
	}
)

// ClosingDeps wires a ClosingService. Exporter, Notifier and Metrics are
// optional.
type ClosingDeps struct {
	Collector   collector.Collector
	Transformer Transformer
	Store       SummaryStore
	Classifier  insights.Classifier
	Reports     ReportGenerator
	Exporter    sheets.SummaryExporter
	Notifier    notify.Notifier
	Metrics     *metrics.PipelineMetrics
}

// ClosingService runs the monthly closing end to end. Runs are serialized.
type ClosingService struct {
	collector   collector.Collector
	transformer Transformer
	store       SummaryStore
	classifier  insights.Classifier
	reports     ReportGenerator
	exporter    sheets.SummaryExporter
	notifier    notify.Notifier
	metrics     *metrics.PipelineMetrics

	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

// RunOptions tune a single run.
type RunOptions struct {
	Trigger    string
	SkipNotify bool
}

// RunOption mutates RunOptions.
type RunOption func(*RunOptions)

// WithTrigger records what started the run.
func WithTrigger(trigger string) RunOption {
	return func(o *RunOptions) { o.Trigger = trigger }
}

// WithoutNotifications skips every notifier for the run.
func WithoutNotifications() RunOption {
	return func(o *RunOptions) { o.SkipNotify = true }
}

// NewClosingService validates deps and returns the service.
func NewClosingService(deps ClosingDeps) (*ClosingService, error) {
	switch {
	case deps.Collector == nil:
		return nil, errors.New("collector is required")
	case deps.Transformer == nil:
		return nil, errors.New("transformer is required")
	case deps.Store == nil:
		return nil, errors.New("store is required")
	case deps.Reports == nil:
		return nil, errors.New("report generator is required")
	}
	classifier := deps.Classifier
	if classifier == nil {
		classifier = insights.NewKeywordClassifier()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &ClosingService{
		collector:   deps.Collector,
		transformer: deps.Transformer,
		store:       deps.Store,
		classifier:  classifier,
		reports:     deps.Reports,
		exporter:    deps.Exporter,
		notifier:    notifier,
		metrics:     deps.Metrics,
		now:         time.Now,
		newID:       func() string { return uuid.NewString() },
	}, nil
}

// HasMonth reports whether month is already closed in the store.
func (s *ClosingService) HasMonth(ctx context.Context, month string) (bool, error) {
	return s.store.HasMonth(ctx, month)
}

// Run closes month ("YYYY-MM"): collect, transform, load, classify feedback,
// write reports, export and notify. A failure before notification sends the
// failure notification and is returned. Notification and export problems are
// logged and do not fail the run.
func (s *ClosingService) Run(ctx context.Context, month string, opts ...RunOption) (core.RunReport, error) {
	options := RunOptions{Trigger: core.TriggerCLI}
	for _, opt := range opts {
		opt(&options)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.now()
	rep := core.RunReport{
		RunID:     s.newID(),
		Month:     month,
		Trigger:   options.Trigger,
		StartedAt: started,
	}
	fields := log.NewFields().
		WithComponent(log.ComponentPipeline).
		WithRun(rep.RunID, month, options.Trigger)
	slog.InfoContext(ctx, "Closing run started", fields.ToSlice()...)

	done := s.metrics.Timer(metrics.StageTotal)
	err := s.execute(ctx, &rep)
	done()
	rep.Duration = time.Since(started)

	if err != nil {
		s.metrics.IncRun(metrics.StatusFailure)
		log.NewStructuredLogger(log.FromContext(ctx)).
			LogError(ctx, "Closing run failed", err, log.ComponentPipeline, log.OpRun, fields)
		if !options.SkipNotify {
			if nerr := s.notifier.Failure(context.WithoutCancel(ctx), month, err); nerr != nil {
				slog.WarnContext(ctx, "Failure notification not delivered", fields.WithError(nerr).ToSlice()...)
			}
		}
		return rep, err
	}

	s.metrics.IncRun(metrics.StatusSuccess)
	if !options.SkipNotify {
		stop := s.metrics.Timer(metrics.StageNotify)
		if nerr := s.notifier.Success(ctx, rep); nerr != nil {
			slog.WarnContext(ctx, "Success notification not delivered", fields.WithError(nerr).ToSlice()...)
		}
		if nerr := s.notifier.Summary(ctx, rep); nerr != nil {
			slog.WarnContext(ctx, "Summary notification not delivered", fields.WithError(nerr).ToSlice()...)
		}
		stop()
	}

	log.NewStructuredLogger(log.FromContext(ctx)).
		LogRunCompleted(ctx, rep.RunID, rep.Month, rep.Trigger, rep.Rows, rep.Duration.Milliseconds())
	return rep, nil
}

func (s *ClosingService) execute(ctx context.Context, rep *core.RunReport) error {
	p, err := period.Parse(rep.Month)
	if err != nil {
		return err
	}

	stop := s.metrics.Timer(metrics.StageCollect)
	raw, err := s.collector.Collect(ctx, p)
	stop()
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}

	stop = s.metrics.Timer(metrics.StageTransform)
	rows, err := s.transformer.Transform(ctx, raw, rep.Month)
	stop()
	if err != nil {
		return fmt.Errorf("transform: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("transform: %w", core.ErrEmptySummary)
	}

	stop = s.metrics.Timer(metrics.StageLoad)
	err = s.store.Save(ctx, rows)
	stop()
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	rep.Rows = len(rows)
	rep.Stats = core.ComputeStats(rows)
	s.metrics.SetRowsWritten(rep.Month, len(rows))

	stop = s.metrics.Timer(metrics.StageClassify)
	classified, err := s.classifier.Classify(ctx, raw.Feedback)
	stop()
	if err != nil {
		return fmt.Errorf("classify feedback: %w", err)
	}
	rep.RecurringIssues = insights.RecurringIssues(classified)

	stop = s.metrics.Timer(metrics.StageReport)
	paths, err := s.reports.Generate(ctx, rows, rep.Month)
	stop()
	if err != nil {
		return fmt.Errorf("generate reports: %w", err)
	}
	rep.Reports = paths.All()
	rep.Summary = insights.Summarize(rows, rep.Month)

	if s.exporter != nil {
		stop = s.metrics.Timer(metrics.StageExport)
		ref, err := s.exporter.Export(ctx, rep.Month, rows)
		stop()
		if err != nil {
			slog.WarnContext(ctx, "Sheets export failed",
				log.FieldComponent, log.ComponentSheets, log.FieldMonth, rep.Month, log.FieldError, err)
		} else {
			rep.SheetRef = ref
		}
	}
	return nil
}
