// Package period handles YYYY-MM closing periods.
package period

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
)

// Layout is the textual form of a period.
const Layout = "2006-01"

// Period identifies a calendar month.
type Period struct {
	Year  int
	Month time.Month
}

// New builds a period, rejecting months outside 1..12.
func New(year int, month time.Month) (Period, error) {
	if month < time.January || month > time.December {
		return Period{}, fmt.Errorf("%w: month %d out of range", core.ErrInvalidPeriod, month)
	}
	if year < 1 || year > 9999 {
		return Period{}, fmt.Errorf("%w: year %d out of range", core.ErrInvalidPeriod, year)
	}
	return Period{Year: year, Month: month}, nil
}

// Parse reads a strict "YYYY-MM" string.
func Parse(s string) (Period, error) {
	if len(s) != 7 || s[4] != '-' {
		return Period{}, fmt.Errorf("%w: %q is not YYYY-MM", core.ErrInvalidPeriod, s)
	}
	year, err := atoiDigits(s[:4])
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q is not YYYY-MM", core.ErrInvalidPeriod, s)
	}
	month, err := atoiDigits(s[5:])
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q is not YYYY-MM", core.ErrInvalidPeriod, s)
	}
	return New(year, time.Month(month))
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Period {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

func atoiDigits(s string) (int, error) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-digit %q", r)
		}
	}
	return strconv.Atoi(s)
}

// String returns the YYYY-MM form.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// IsZero reports whether p was never set.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// DaysInMonth returns 28, 29, 30 or 31.
func (p Period) DaysInMonth() int {
	return DaysIn(p.Year, p.Month)
}

// Previous returns the month before p.
func (p Period) Previous() Period {
	if p.Month == time.January {
		return Period{Year: p.Year - 1, Month: time.December}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// Next returns the month after p.
func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Start returns the first instant of the period in UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Of returns the period containing t.
func Of(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// PreviousMonth returns the period before the one containing now.
func PreviousMonth(now time.Time) Period {
	return Of(now).Previous()
}

// IsLeapYear applies the Gregorian rule.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysIn returns the number of days of month in year.
func DaysIn(year int, month time.Month) int {
	switch month {
	case time.February:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

// Resolve picks the explicit value, then the configured fallback, then the
// month before now.
func Resolve(explicit, fallback string, now time.Time) (Period, error) {
	switch {
	case explicit != "":
		return Parse(explicit)
	case fallback != "":
		return Parse(fallback)
	default:
		return PreviousMonth(now), nil
	}
}
