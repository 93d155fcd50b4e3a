package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gustavofrb/relatorio-mensal/internal/amqp"
	"github.com/Gustavofrb/relatorio-mensal/internal/core"
	"github.com/Gustavofrb/relatorio-mensal/internal/services"
)

type fakeRunner struct {
	months   []string
	triggers []string
	err      error
}

func (f *fakeRunner) Run(_ context.Context, month string, opts ...services.RunOption) (core.RunReport, error) {
	o := services.RunOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	f.months = append(f.months, month)
	f.triggers = append(f.triggers, o.Trigger)
	return core.RunReport{RunID: "run-1", Month: month, Rows: 3}, f.err
}

func TestRunWorker_HandleRunRequest(t *testing.T) {
	runner := &fakeRunner{}
	w := NewRunWorker(runner)

	err := w.HandleRunRequest(context.Background(), amqp.NewRunRequestMessage("2025-06", "api"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-06"}, runner.months)
	assert.Equal(t, []string{core.TriggerQueue}, runner.triggers)
}

func TestRunWorker_InvalidMonth(t *testing.T) {
	runner := &fakeRunner{}
	w := NewRunWorker(runner)

	err := w.HandleRunRequest(context.Background(), amqp.NewRunRequestMessage("2025-6", "api"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidPeriod)
	assert.Empty(t, runner.months)
}

func TestRunWorker_RunError(t *testing.T) {
	boom := errors.New("upstream down")
	w := NewRunWorker(&fakeRunner{err: boom})

	err := w.HandleRunRequest(context.Background(), amqp.NewRunRequestMessage("2025-06", "scheduler"))
	assert.ErrorIs(t, err, boom)
}

func TestRunWorker_NilMessage(t *testing.T) {
	w := NewRunWorker(&fakeRunner{})
	assert.Error(t, w.HandleRunRequest(context.Background(), nil))
}
