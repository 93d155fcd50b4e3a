package period

import (
	"errors"
	"testing"
	"time"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
)

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		period string
		want   int
	}{
		{"2024-02", 29},
		{"2023-02", 28},
		{"2000-02", 29},
		{"1900-02", 28},
		{"2025-01", 31},
		{"2025-04", 30},
		{"2025-06", 30},
		{"2025-09", 30},
		{"2025-10", 31},
		{"2025-11", 30},
		{"2025-12", 31},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			p := MustParse(tt.period)
			if got := p.DaysInMonth(); got != tt.want {
				t.Errorf("DaysInMonth(%s) = %d, want %d", tt.period, got, tt.want)
			}
		})
	}
}

func TestDaysInMatchesTimePackage(t *testing.T) {
	for year := 1899; year <= 2404; year++ {
		for m := time.January; m <= time.December; m++ {
			want := time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
			if got := DaysIn(year, m); got != want {
				t.Fatalf("DaysIn(%d, %d) = %d, want %d", year, m, got, want)
			}
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Period
		wantErr bool
	}{
		{name: "valid", in: "2025-10", want: Period{Year: 2025, Month: time.October}},
		{name: "january", in: "2024-01", want: Period{Year: 2024, Month: time.January}},
		{name: "month 13", in: "2025-13", wantErr: true},
		{name: "month 00", in: "2025-00", wantErr: true},
		{name: "single digit month", in: "2025-1", wantErr: true},
		{name: "slash separator", in: "2025/10", wantErr: true},
		{name: "full date", in: "2025-10-01", wantErr: true},
		{name: "letters", in: "20a5-10", wantErr: true},
		{name: "signed", in: "+025-10", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) expected error", tt.in)
				}
				if !errors.Is(err, core.ErrInvalidPeriod) {
					t.Errorf("Parse(%q) error = %v, want ErrInvalidPeriod", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
		})
	}
}

func TestPreviousMonth(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"mid year", time.Date(2025, 11, 15, 10, 0, 0, 0, time.UTC), "2025-10"},
		{"january wraps", time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), "2024-12"},
		{"first instant of march", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "2024-02"},
		{"last day of december", time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC), "2025-11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PreviousMonth(tt.now).String(); got != tt.want {
				t.Errorf("PreviousMonth() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNextAndPreviousAreInverse(t *testing.T) {
	p := MustParse("2024-12")
	if got := p.Next(); got.String() != "2025-01" {
		t.Fatalf("Next() = %s", got)
	}
	if got := p.Next().Previous(); got != p {
		t.Fatalf("Next().Previous() = %s, want %s", got, p)
	}
}

func TestResolve(t *testing.T) {
	now := time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC)

	got, err := Resolve("2025-03", "2025-05", now)
	if err != nil || got.String() != "2025-03" {
		t.Fatalf("explicit: got %s, %v", got, err)
	}
	got, err = Resolve("", "2025-05", now)
	if err != nil || got.String() != "2025-05" {
		t.Fatalf("fallback: got %s, %v", got, err)
	}
	got, err = Resolve("", "", now)
	if err != nil || got.String() != "2025-10" {
		t.Fatalf("default: got %s, %v", got, err)
	}
	if _, err := Resolve("10-2025", "", now); !errors.Is(err, core.ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}
