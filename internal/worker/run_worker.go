// Package worker consumes queued closing requests.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Gustavofrb/relatorio-mensal/internal/amqp"
	"github.com/Gustavofrb/relatorio-mensal/internal/core"
	"github.com/Gustavofrb/relatorio-mensal/internal/log"
	"github.com/Gustavofrb/relatorio-mensal/internal/period"
	"github.com/Gustavofrb/relatorio-mensal/internal/services"
)

// Runner executes a closing run.
type Runner interface {
	Run(ctx context.Context, month string, opts ...services.RunOption) (core.RunReport, error)
}

// RunWorker turns run request messages into closing runs.
type RunWorker struct {
	runner Runner
}

func NewRunWorker(runner Runner) *RunWorker {
	return &RunWorker{runner: runner}
}

// HandleRunRequest validates the requested month and runs the closing. The
// returned error decides whether the delivery is requeued.
func (w *RunWorker) HandleRunRequest(ctx context.Context, msg *amqp.RunRequestMessage) error {
	if msg == nil {
		return fmt.Errorf("nil run request")
	}

	slog.InfoContext(ctx, "Processing run request",
		log.FieldComponent, log.ComponentWorker,
		log.FieldRequestID, msg.RequestID,
		log.FieldMonth, msg.Month,
		"requested_by", msg.RequestedBy)

	p, err := period.Parse(msg.Month)
	if err != nil {
		fields := log.NewFields().
			WithComponent(log.ComponentWorker).
			WithRequestID(msg.RequestID).
			WithMonth(msg.Month).
			WithError(err)
		slog.WarnContext(ctx, "Rejecting run request", fields.ToSlice()...)
		return fmt.Errorf("run request %s: %w", msg.RequestID, err)
	}

	rep, err := w.runner.Run(ctx, p.String(), services.WithTrigger(core.TriggerQueue))
	if err != nil {
		return fmt.Errorf("closing %s: %w", p, err)
	}

	slog.InfoContext(ctx, "Run request completed",
		log.FieldComponent, log.ComponentWorker,
		log.FieldRequestID, msg.RequestID,
		log.FieldRunID, rep.RunID,
		log.FieldMonth, rep.Month,
		log.FieldRows, rep.Rows)
	return nil
}
