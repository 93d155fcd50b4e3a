package sheets

import (
	"context"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
)

// Ports for outbound adapters.
type (
	// SummaryExporter publishes the financial view of a closed month.
	// Exporting the same month again replaces the previous content.
	SummaryExporter interface {
		Export(ctx context.Context, month string, rows []core.MonthlySummary) (ref string, err error)
	}
)
