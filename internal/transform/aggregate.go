package transform

import (
	"sort"
	"strings"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
	"github.com/Gustavofrb/relatorio-mensal/internal/period"
)

// feedbackSummary is the per-property fold of guest feedback.
type feedbackSummary struct {
	avgRating  *float64
	complaints string
}

// propertyIndex keys dimension rows by property_id; later rows win.
func propertyIndex(rows []core.RawProperty) map[string]core.RawProperty {
	idx := make(map[string]core.RawProperty, len(rows))
	for _, p := range rows {
		idx[core.PropertyKey(p.PropertyID)] = p
	}
	return idx
}

// feeIndex keeps only fee rows of the target period and keys them by city.
// Later rows for the same city win; a nil percentage counts as zero.
func feeIndex(rows []core.RawFee, p period.Period) map[string]float64 {
	idx := make(map[string]float64)
	for _, f := range rows {
		if f.Year != p.Year || f.Month != int(p.Month) {
			continue
		}
		pct := 0.0
		if f.FeePercentage != nil {
			pct = *f.FeePercentage
		}
		idx[f.City] = pct
	}
	return idx
}

// costTotals sums every cost row by property.
func costTotals(rows []core.RawCost) map[string]float64 {
	totals := make(map[string]float64)
	for _, c := range rows {
		totals[core.PropertyKey(c.PropertyID)] += c.CostValue
	}
	return totals
}

// feedbackByProperty averages non-null ratings and builds the sorted,
// de-duplicated complaint list per property.
func feedbackByProperty(rows []core.RawFeedback) map[string]feedbackSummary {
	type acc struct {
		sum        float64
		rated      int
		complaints map[string]struct{}
	}
	accs := make(map[string]*acc)
	for _, f := range rows {
		id := core.PropertyKey(f.PropertyID)
		a, ok := accs[id]
		if !ok {
			a = &acc{complaints: make(map[string]struct{})}
			accs[id] = a
		}
		if f.Rating != nil {
			a.sum += *f.Rating
			a.rated++
		}
		if c := strings.TrimSpace(f.ComplaintCategory); c != "" {
			a.complaints[c] = struct{}{}
		}
	}

	out := make(map[string]feedbackSummary, len(accs))
	for id, a := range accs {
		var fs feedbackSummary
		if a.rated > 0 {
			avg := a.sum / float64(a.rated)
			fs.avgRating = &avg
		}
		fs.complaints = joinSorted(a.complaints)
		out[id] = fs
	}
	return out
}

func joinSorted(set map[string]struct{}) string {
	if len(set) == 0 {
		return ""
	}
	items := make([]string, 0, len(set))
	for s := range set {
		items = append(items, s)
	}
	sort.Strings(items)
	return strings.Join(items, ", ")
}
