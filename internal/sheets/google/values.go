package google

import (
	"fmt"
	"strings"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
	"github.com/Gustavofrb/relatorio-mensal/internal/report"
)

// SheetTitle returns "<prefix> <YYYY-MM>" unless prefix already ends with
// the month.
func SheetTitle(prefix, month string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	if strings.HasSuffix(prefix, month) {
		return prefix
	}
	return fmt.Sprintf("%s %s", prefix, month)
}

// Values builds the header plus body matrix of the financial report.
func Values(rows []core.MonthlySummary) [][]any {
	records := report.FinancialRecords(rows)
	out := make([][]any, 0, len(records)+1)
	out = append(out, toAny(report.FinancialHeader))
	for _, rec := range records {
		out = append(out, toAny(rec))
	}
	return out
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// quoteTitle quotes a sheet title for A1 notation.
func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// columnLetter converts a 1-based column index to A1 letters.
func columnLetter(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}
