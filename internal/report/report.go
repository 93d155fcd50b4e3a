// Package report writes the monthly closing CSV reports.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
)

const (
	FinancialFile = "relatorio_financeiro.csv"
	QualityFile   = "relatorio_qualidade.csv"
	OccupancyFile = "relatorio_ocupacao.csv"
)

var (
	FinancialHeader = []string{
		"property_id", "owner_name", "city", "state", "region", "month",
		"reservations_count", "gross_revenue", "platform_fee_amount", "extra_cost_total",
		"net_revenue", "margin_value", "margin_percent",
	}
	QualityHeader = []string{
		"property_id", "owner_name", "city", "state", "region", "month",
		"avg_rating", "complaints_list",
	}
	OccupancyHeader = []string{
		"property_id", "owner_name", "city", "state", "region", "month",
		"reservations_count", "occupied_days", "occupancy_rate",
	}
)

// Paths lists the files produced by one Generate call.
type Paths struct {
	Financial string `json:"financial"`
	Quality   string `json:"quality"`
	Occupancy string `json:"occupancy"`
}

// All returns the paths in generation order.
func (p Paths) All() []string {
	return []string{p.Financial, p.Quality, p.Occupancy}
}

// Generator writes reports under outputDir/<month>/.
type Generator struct {
	outputDir string
}

func NewGenerator(outputDir string) *Generator {
	return &Generator{outputDir: outputDir}
}

// Dir returns the directory reports for month are written to.
func (g *Generator) Dir(month string) string {
	return filepath.Join(g.outputDir, month)
}

// Generate writes the financial, quality and occupancy reports for month.
// Existing files for the same month are replaced.
func (g *Generator) Generate(ctx context.Context, rows []core.MonthlySummary, month string) (Paths, error) {
	dir := g.Dir(month)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Paths{}, fmt.Errorf("create report directory: %w", err)
	}

	paths := Paths{
		Financial: filepath.Join(dir, FinancialFile),
		Quality:   filepath.Join(dir, QualityFile),
		Occupancy: filepath.Join(dir, OccupancyFile),
	}

	reports := []struct {
		path   string
		header []string
		body   [][]string
	}{
		{paths.Financial, FinancialHeader, FinancialRecords(rows)},
		{paths.Quality, QualityHeader, QualityRecords(rows)},
		{paths.Occupancy, OccupancyHeader, OccupancyRecords(rows)},
	}
	for _, r := range reports {
		if err := ctx.Err(); err != nil {
			return Paths{}, err
		}
		if err := writeCSV(r.path, r.header, r.body); err != nil {
			return Paths{}, err
		}
		slog.InfoContext(ctx, "Report written", "file", r.path, "rows", len(r.body))
	}
	return paths, nil
}

// FinancialRecords returns the financial report body sorted by month, city
// and property_id.
func FinancialRecords(rows []core.MonthlySummary) [][]string {
	sorted := sortedCopy(rows, func(a, b core.MonthlySummary) bool {
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		if c := compareNullable(a.City, b.City); c != 0 {
			return c < 0
		}
		return a.PropertyID < b.PropertyID
	})
	out := make([][]string, 0, len(sorted))
	for _, r := range sorted {
		out = append(out, append(identity(r),
			strconv.Itoa(r.ReservationsCount),
			money(r.GrossRevenue),
			money(r.PlatformFeeAmount),
			money(r.ExtraCostTotal),
			money(r.NetRevenue),
			money(r.MarginValue),
			nullableFixed(r.MarginPercent),
		))
	}
	return out
}

// QualityRecords returns the quality report body sorted by month, then by
// avg_rating descending with unrated properties last.
func QualityRecords(rows []core.MonthlySummary) [][]string {
	sorted := sortedCopy(rows, func(a, b core.MonthlySummary) bool {
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		switch {
		case a.AvgRating == nil && b.AvgRating == nil:
		case a.AvgRating == nil:
			return false
		case b.AvgRating == nil:
			return true
		case *a.AvgRating != *b.AvgRating:
			return *a.AvgRating > *b.AvgRating
		}
		return a.PropertyID < b.PropertyID
	})
	out := make([][]string, 0, len(sorted))
	for _, r := range sorted {
		out = append(out, append(identity(r),
			nullableFixed(r.AvgRating),
			r.ComplaintsList,
		))
	}
	return out
}

// OccupancyRecords returns the occupancy report body sorted by month, then
// by occupancy_rate descending.
func OccupancyRecords(rows []core.MonthlySummary) [][]string {
	sorted := sortedCopy(rows, func(a, b core.MonthlySummary) bool {
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		if a.OccupancyRate != b.OccupancyRate {
			return a.OccupancyRate > b.OccupancyRate
		}
		return a.PropertyID < b.PropertyID
	})
	out := make([][]string, 0, len(sorted))
	for _, r := range sorted {
		out = append(out, append(identity(r),
			strconv.Itoa(r.ReservationsCount),
			strconv.Itoa(r.OccupiedDays),
			strconv.FormatFloat(r.OccupancyRate, 'f', 4, 64),
		))
	}
	return out
}

func identity(r core.MonthlySummary) []string {
	return []string{
		r.PropertyID,
		core.StringValue(r.OwnerName),
		core.StringValue(r.City),
		core.StringValue(r.State),
		core.StringValue(r.Region),
		r.Month,
	}
}

func sortedCopy(rows []core.MonthlySummary, less func(a, b core.MonthlySummary) bool) []core.MonthlySummary {
	out := make([]core.MonthlySummary, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// compareNullable orders nil after every value.
func compareNullable(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}

func money(v float64) string {
	return strconv.FormatFloat(core.RoundCurrency(v), 'f', 2, 64)
}

func nullableFixed(v *float64) string {
	if v == nil {
		return ""
	}
	return money(*v)
}

// writeCSV writes to a temporary file and renames it over path, so readers
// never see a partial report.
func writeCSV(path string, header []string, rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
