// Package notify tells people and systems about closing runs.
package notify

import (
	"context"

	"go.uber.org/multierr"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
)

// Notifier is one delivery channel for run outcomes.
type Notifier interface {
	Success(ctx context.Context, report core.RunReport) error
	Failure(ctx context.Context, month string, runErr error) error
	Summary(ctx context.Context, report core.RunReport) error
}

// Multi fans out to every notifier. A failing channel does not stop the
// others; their errors are combined.
type Multi []Notifier

func (m Multi) Success(ctx context.Context, report core.RunReport) error {
	var err error
	for _, n := range m {
		err = multierr.Append(err, n.Success(ctx, report))
	}
	return err
}

func (m Multi) Failure(ctx context.Context, month string, runErr error) error {
	var err error
	for _, n := range m {
		err = multierr.Append(err, n.Failure(ctx, month, runErr))
	}
	return err
}

func (m Multi) Summary(ctx context.Context, report core.RunReport) error {
	var err error
	for _, n := range m {
		err = multierr.Append(err, n.Summary(ctx, report))
	}
	return err
}

// Nop discards every notification.
type Nop struct{}

func (Nop) Success(context.Context, core.RunReport) error { return nil }
func (Nop) Failure(context.Context, string, error) error  { return nil }
func (Nop) Summary(context.Context, core.RunReport) error { return nil }
