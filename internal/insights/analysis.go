package insights

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
)

const (
	recurringThreshold = 3
	lowRatingThreshold = 4.0
	topCount           = 3
)

// RecurringIssues maps each property to the categories it received at least
// three times, sorted by name.
func RecurringIssues(classified []core.ClassifiedFeedback) map[string][]string {
	counts := make(map[string]map[string]int)
	for _, fb := range classified {
		id := strings.TrimSpace(fb.PropertyID)
		if id == "" || fb.Category == "" {
			continue
		}
		if counts[id] == nil {
			counts[id] = make(map[string]int)
		}
		counts[id][fb.Category]++
	}

	out := make(map[string][]string)
	for id, byCategory := range counts {
		var recurring []string
		for cat, n := range byCategory {
			if n >= recurringThreshold {
				recurring = append(recurring, cat)
			}
		}
		if len(recurring) > 0 {
			sort.Strings(recurring)
			out[id] = recurring
		}
	}
	return out
}

// TopBottom returns the n best and n worst rows by net revenue. Ties are
// broken by property_id.
func TopBottom(rows []core.MonthlySummary, n int) (top, bottom []core.MonthlySummary) {
	if n <= 0 || len(rows) == 0 {
		return nil, nil
	}
	sorted := make([]core.MonthlySummary, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].NetRevenue != sorted[j].NetRevenue {
			return sorted[i].NetRevenue > sorted[j].NetRevenue
		}
		return sorted[i].PropertyID < sorted[j].PropertyID
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	top = append(top, sorted[:n]...)
	for i := len(sorted) - 1; i >= len(sorted)-n; i-- {
		bottom = append(bottom, sorted[i])
	}
	return top, bottom
}

// InsightKind classifies a property recommendation.
type InsightKind string

const (
	InsightRisk         InsightKind = "risk"
	InsightLowMargin    InsightKind = "low_margin"
	InsightLowOccupancy InsightKind = "low_occupancy"
	InsightExcellent    InsightKind = "excellent"
	InsightNormal       InsightKind = "normal"
)

// Insight is a one line recommendation for a property.
type Insight struct {
	Kind    InsightKind `json:"kind"`
	Message string      `json:"message"`
}

// PropertyInsight applies the recommendation rules to one row. Rules needing
// a missing rating or margin do not fire.
func PropertyInsight(row core.MonthlySummary) Insight {
	occupancy := row.OccupancyRate * 100
	rated := row.AvgRating != nil

	switch {
	case rated && occupancy > 80 && *row.AvgRating < lowRatingThreshold:
		return Insight{InsightRisk, "Alta ocupação com nota baixa: risco de cancelamentos futuros"}
	case row.MarginPercent != nil && *row.MarginPercent < 10:
		return Insight{InsightLowMargin, "Margem muito baixa: revisar precificação e custos"}
	case occupancy < 30:
		return Insight{InsightLowOccupancy, "Baixa ocupação: considerar ajustes de preço ou marketing"}
	case rated && *row.AvgRating > 4.5 && occupancy > 70:
		return Insight{InsightExcellent, "Desempenho excelente: referência para outros imóveis"}
	default:
		return Insight{InsightNormal, "Desempenho dentro da normalidade"}
	}
}

// QualityAlerts returns the rows rated below 4.0 with occupancy above 70%.
func QualityAlerts(rows []core.MonthlySummary) []core.MonthlySummary {
	var out []core.MonthlySummary
	for _, r := range rows {
		if r.AvgRating != nil && *r.AvgRating < lowRatingThreshold && r.OccupancyRate > 0.7 {
			out = append(out, r)
		}
	}
	return out
}

// Summarize renders the plain-text executive summary of a closed month.
func Summarize(rows []core.MonthlySummary, month string) string {
	stats := core.ComputeStats(rows)

	lowRated := 0
	for _, r := range rows {
		if r.AvgRating != nil && *r.AvgRating < lowRatingThreshold {
			lowRated++
		}
	}
	top, _ := TopBottom(rows, topCount)
	topIDs := make([]string, 0, len(top))
	for _, r := range top {
		topIDs = append(topIDs, r.PropertyID)
	}

	rating := "sem avaliações"
	if stats.AvgRating != nil {
		rating = fmt.Sprintf("%.2f/5.0", *stats.AvgRating)
	}
	highlights := "nenhum"
	if len(topIDs) > 0 {
		highlights = strings.Join(topIDs, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "RESUMO EXECUTIVO - %s\n\n", month)
	fmt.Fprintf(&b, "Processamos %d imóveis neste mês.\n\n", stats.TotalProperties)
	b.WriteString("FINANCEIRO:\n")
	fmt.Fprintf(&b, "- Faturamento bruto total: %s\n", core.FormatBRL(stats.TotalRevenue))
	fmt.Fprintf(&b, "- Receita líquida total: %s\n\n", core.FormatBRL(stats.NetRevenue))
	b.WriteString("OPERACIONAL:\n")
	fmt.Fprintf(&b, "- Taxa média de ocupação: %.1f%%\n", stats.AvgOccupancy)
	fmt.Fprintf(&b, "- Total de reservas: %d\n\n", stats.TotalReservations)
	b.WriteString("QUALIDADE:\n")
	fmt.Fprintf(&b, "- Nota média dos hóspedes: %s\n", rating)
	fmt.Fprintf(&b, "- Imóveis com nota abaixo de 4.0: %d\n\n", lowRated)
	b.WriteString("DESTAQUES:\n")
	fmt.Fprintf(&b, "- Top 3 em faturamento: %s\n", highlights)
	fmt.Fprintf(&b, "- Alertas de qualidade: %d imóveis com alta ocupação mas nota baixa\n", len(QualityAlerts(rows)))
	return b.String()
}
