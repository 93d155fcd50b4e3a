package core

import (
	"errors"
	"testing"
)

func TestRawDataValidate(t *testing.T) {
	full := map[Source][]string{
		SourceBookings:   {"property_id", "reservations_count", "occupied_days", "gross_revenue"},
		SourceProperties: {"property_id", "condominium", "city", "state", "region", "status"},
		SourceFees:       {"city", "fee_percentage", "year", "month", "state"},
		SourceFeedback:   {"property_id", "rating", "complaint_category", "comment"},
		SourceCosts:      {"property_id", "cost_value", "description", "date"},
	}

	tests := []struct {
		name    string
		data    RawData
		wantErr error
		column  string
	}{
		{
			name: "all columns present",
			data: RawData{Bookings: []RawBooking{{PropertyID: "A1"}}, Columns: full},
		},
		{
			name: "typed input without headers",
			data: RawData{Bookings: []RawBooking{{PropertyID: "A1"}, {PropertyID: "B2"}}},
		},
		{
			name: "fees without fee_percentage",
			data: RawData{Columns: map[Source][]string{
				SourceFees: {"city", "year", "month"},
			}},
			wantErr: ErrMissingColumn,
			column:  "fee_percentage",
		},
		{
			name: "bookings with upstream names left unmapped",
			data: RawData{Columns: map[Source][]string{
				SourceBookings: {"property_id", "booking_count", "occupancy_days", "gross_revenue"},
			}},
			wantErr: ErrMissingColumn,
			column:  "reservations_count",
		},
		{
			name:    "empty property id",
			data:    RawData{Bookings: []RawBooking{{PropertyID: "  "}}},
			wantErr: ErrMissingPropertyID,
		},
		{
			name:    "duplicate booking",
			data:    RawData{Bookings: []RawBooking{{PropertyID: "A1"}, {PropertyID: "A1"}}},
			wantErr: ErrDuplicateBooking,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.data.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.column != "" {
				var colErr *ColumnError
				if !errors.As(err, &colErr) || colErr.Column != tt.column {
					t.Fatalf("expected ColumnError for %q, got %v", tt.column, err)
				}
			}
		})
	}
}

func TestCanonicalColumns(t *testing.T) {
	got := CanonicalColumns(SourceFeedback, []string{"id_imovel", "nota_media", "principais_reclamacoes", "comentarios_qualitativos"})
	want := []string{"property_id", "rating", "complaint_category", "comment"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("column %d = %q, want %q", i, got[i], want[i])
		}
	}
	if err := ValidateColumns(SourceFeedback, got); err != nil {
		t.Fatalf("canonical feedback header rejected: %v", err)
	}
	if c := CanonicalColumn(SourceCosts, " Custo_Reais "); c != "cost_value" {
		t.Fatalf("CanonicalColumn = %q", c)
	}
}

func TestDimensionsKeepLastOccurrence(t *testing.T) {
	sp, rj := "SP", "RJ"
	rows := []MonthlySummary{
		{PropertyID: "A1", City: &sp},
		{PropertyID: "B2"},
		{PropertyID: "A1", City: &rj},
	}
	dims := Dimensions(rows)
	if len(dims) != 2 {
		t.Fatalf("expected 2 dimensions, got %d", len(dims))
	}
	if dims[0].PropertyID != "A1" || StringValue(dims[0].City) != "RJ" {
		t.Fatalf("unexpected first dimension %+v", dims[0])
	}
	if dims[1].PropertyID != "B2" || dims[1].City != nil {
		t.Fatalf("unexpected second dimension %+v", dims[1])
	}
}

func TestSingleMonth(t *testing.T) {
	if _, err := SingleMonth(nil); !errors.Is(err, ErrEmptySummary) {
		t.Fatalf("expected ErrEmptySummary, got %v", err)
	}
	rows := []MonthlySummary{{Month: "2025-10"}, {Month: "2025-10"}}
	if m, err := SingleMonth(rows); err != nil || m != "2025-10" {
		t.Fatalf("SingleMonth = %q, %v", m, err)
	}
	rows = append(rows, MonthlySummary{Month: "2025-09"})
	if _, err := SingleMonth(rows); !errors.Is(err, ErrMixedPeriods) {
		t.Fatalf("expected ErrMixedPeriods, got %v", err)
	}
}

func TestComputeStats(t *testing.T) {
	r1, r2 := 4.0, 5.0
	rows := []MonthlySummary{
		{GrossRevenue: 1000, NetRevenue: 800, ReservationsCount: 3, OccupancyRate: 0.5, AvgRating: &r1},
		{GrossRevenue: 500, NetRevenue: 400, ReservationsCount: 2, OccupancyRate: 1.0, AvgRating: &r2},
		{GrossRevenue: 0, NetRevenue: -50, ReservationsCount: 0, OccupancyRate: 0},
	}
	st := ComputeStats(rows)
	if st.TotalProperties != 3 || st.TotalReservations != 5 {
		t.Fatalf("unexpected counts %+v", st)
	}
	if st.TotalRevenue != 1500 || st.NetRevenue != 1150 {
		t.Fatalf("unexpected revenue %+v", st)
	}
	if st.AvgOccupancy != 50 {
		t.Fatalf("AvgOccupancy = %v, want 50", st.AvgOccupancy)
	}
	if st.AvgRating == nil || *st.AvgRating != 4.5 {
		t.Fatalf("AvgRating = %v, want 4.5", st.AvgRating)
	}

	empty := ComputeStats(nil)
	if empty.TotalProperties != 0 || empty.AvgRating != nil {
		t.Fatalf("unexpected empty stats %+v", empty)
	}
}
