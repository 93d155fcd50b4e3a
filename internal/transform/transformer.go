// Package transform folds the raw sources of a closing run into one
// consolidated row per property and month.
package transform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
	"github.com/Gustavofrb/relatorio-mensal/internal/period"
)

// Transformer joins bookings with properties, fees, costs and feedback.
// It holds no state between calls and never mutates its inputs.
type Transformer struct{}

// New returns a Transformer.
func New() *Transformer {
	return &Transformer{}
}

// Transform builds the monthly summary for month ("YYYY-MM").
//
// Bookings drive the result: every booking row yields exactly one output row
// and later joins only add columns. Fees are filtered to the target period
// and matched on city; costs are summed and feedback averaged per property.
// Missing relations degrade to zero or nil, while a malformed month or a
// missing required column aborts the run.
func (t *Transformer) Transform(ctx context.Context, data core.RawData, month string) ([]core.MonthlySummary, error) {
	start := time.Now()

	p, err := period.Parse(month)
	if err != nil {
		return nil, err
	}
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("validate raw data: %w", err)
	}

	days := float64(p.DaysInMonth())
	props := propertyIndex(data.Properties)
	fees := feeIndex(data.Fees, p)
	costs := costTotals(data.Costs)
	feedback := feedbackByProperty(data.Feedback)

	rows := make([]core.MonthlySummary, 0, len(data.Bookings))
	for _, b := range data.Bookings {
		id := core.PropertyKey(b.PropertyID)
		row := core.MonthlySummary{
			PropertyID:        id,
			Month:             p.String(),
			ReservationsCount: b.ReservationsCount,
			GrossRevenue:      b.GrossRevenue,
			OccupiedDays:      b.OccupiedDays,
			OccupancyRate:     float64(b.OccupiedDays) / days,
		}

		if prop, ok := props[id]; ok {
			row.Condominium = ptr(prop.Condominium)
			row.City = ptr(prop.City)
			row.State = ptr(prop.State)
			row.Region = ptr(prop.Region)
			row.Status = ptr(prop.Status)
			if pct, ok := fees[prop.City]; ok {
				row.FeePercentage = pct
			}
		}
		row.PlatformFeeAmount = row.GrossRevenue * row.FeePercentage / 100

		row.ExtraCostTotal = costs[id]

		if fb, ok := feedback[id]; ok {
			row.AvgRating = fb.avgRating
			row.ComplaintsList = fb.complaints
		}

		row.NetRevenue = row.GrossRevenue - row.PlatformFeeAmount - row.ExtraCostTotal
		row.MarginValue = row.NetRevenue
		row.MarginPercent = marginPercent(row.NetRevenue, row.GrossRevenue)
		row.OwnerName = row.Condominium

		rows = append(rows, row)
	}

	slog.InfoContext(ctx, "Transformation finished",
		"month", p.String(),
		"bookings", len(data.Bookings),
		"rows", len(rows),
		"duration_ms", time.Since(start).Milliseconds())

	return rows, nil
}

// marginPercent is undefined, not zero, when there is no revenue.
func marginPercent(net, gross float64) *float64 {
	if gross == 0 {
		return nil
	}
	v := net / gross * 100
	return &v
}

func ptr(s string) *string {
	return &s
}
