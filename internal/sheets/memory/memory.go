package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
	ports "github.com/Gustavofrb/relatorio-mensal/internal/sheets"
)

var _ ports.SummaryExporter = (*Exporter)(nil)

// Exporter keeps exported months in memory. Used when no spreadsheet is
// configured and in tests.
type Exporter struct {
	mu     sync.Mutex
	months map[string][]core.MonthlySummary
	calls  int
}

func New() *Exporter {
	return &Exporter{months: make(map[string][]core.MonthlySummary)}
}

// Export stores a copy of rows under month, replacing any previous export.
func (e *Exporter) Export(ctx context.Context, month string, rows []core.MonthlySummary) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if month == "" {
		return "", fmt.Errorf("month is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.months[month] = append([]core.MonthlySummary(nil), rows...)
	e.calls++
	return fmt.Sprintf("memory:%s:%d", month, len(rows)), nil
}

// Rows returns the last export of month.
func (e *Exporter) Rows(month string) ([]core.MonthlySummary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rows, ok := e.months[month]
	return append([]core.MonthlySummary(nil), rows...), ok
}

// Months lists the exported months in ascending order.
func (e *Exporter) Months() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.months))
	for m := range e.months {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Calls reports how many exports succeeded.
func (e *Exporter) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}
