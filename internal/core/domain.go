package core

import (
	"errors"
	"fmt"
	"strings"
)

// Source names one of the five raw inputs of a closing run.
type Source string

const (
	SourceBookings   Source = "bookings"
	SourceProperties Source = "properties"
	SourceFees       Source = "fees"
	SourceFeedback   Source = "feedback"
	SourceCosts      Source = "costs"
)

// Sources lists every raw input in join order.
var Sources = []Source{SourceBookings, SourceProperties, SourceFees, SourceCosts, SourceFeedback}

type (
	// RawBooking is the per-property operational row for the target month.
	RawBooking struct {
		PropertyID        string
		ReservationsCount int
		OccupiedDays      int
		GrossRevenue      float64
	}

	// RawProperty is a dimension row from the property catalogue.
	RawProperty struct {
		PropertyID  string
		Condominium string
		City        string
		State       string
		Region      string
		Status      string
	}

	// RawFee is a platform fee for a city in a given year and month.
	// A nil FeePercentage counts as zero.
	RawFee struct {
		City          string
		FeePercentage *float64
		Year          int
		Month         int
	}

	// RawFeedback is one guest review.
	RawFeedback struct {
		PropertyID        string
		Rating            *float64
		ComplaintCategory string
		Comment           string
	}

	// RawCost is one extra cost attributed to a property.
	RawCost struct {
		PropertyID  string
		CostValue   float64
		Description string
		Date        string
	}

	// RawData bundles the inputs of one run. Columns records the column set
	// each source actually delivered; a source without an entry is trusted to
	// carry every required column.
	RawData struct {
		Bookings   []RawBooking
		Properties []RawProperty
		Fees       []RawFee
		Feedback   []RawFeedback
		Costs      []RawCost
		Columns    map[Source][]string
	}

	// ClassifiedFeedback is a feedback row plus the category assigned by a
	// classifier.
	ClassifiedFeedback struct {
		RawFeedback
		Category string
	}
)

var (
	ErrInvalidPeriod     = errors.New("invalid period")
	ErrMissingColumn     = errors.New("missing required column")
	ErrMissingPropertyID = errors.New("missing property_id")
	ErrDuplicateBooking  = errors.New("duplicate booking row")
	ErrEmptySummary      = errors.New("empty monthly summary")
	ErrMixedPeriods      = errors.New("rows span more than one month")
)

// ColumnError reports a required column absent from a raw source.
type ColumnError struct {
	Source Source
	Column string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("%s: %s missing column %q", ErrMissingColumn, e.Source, e.Column)
}

func (e *ColumnError) Unwrap() error {
	return ErrMissingColumn
}

// RequiredColumns are the canonical column names each source must provide.
var RequiredColumns = map[Source][]string{
	SourceBookings:   {"property_id", "reservations_count", "occupied_days", "gross_revenue"},
	SourceProperties: {"property_id", "condominium", "city", "state", "region", "status"},
	SourceFees:       {"city", "fee_percentage", "year", "month"},
	SourceFeedback:   {"property_id", "rating", "complaint_category"},
	SourceCosts:      {"property_id", "cost_value"},
}

// columnAliases maps upstream field names to canonical ones.
var columnAliases = map[Source]map[string]string{
	SourceBookings: {
		"booking_count":  "reservations_count",
		"occupancy_days": "occupied_days",
	},
	SourceFeedback: {
		"id_imovel":                "property_id",
		"nota_media":               "rating",
		"principais_reclamacoes":   "complaint_category",
		"comentarios_qualitativos": "comment",
	},
	SourceCosts: {
		"id_imovel":       "property_id",
		"custo_reais":     "cost_value",
		"descricao_custo": "description",
		"data_custo":      "date",
	},
}

// CanonicalColumn returns the canonical name for an upstream column.
func CanonicalColumn(source Source, column string) string {
	column = strings.ToLower(strings.TrimSpace(column))
	if alias, ok := columnAliases[source][column]; ok {
		return alias
	}
	return column
}

// CanonicalColumns maps a whole header.
func CanonicalColumns(source Source, header []string) []string {
	out := make([]string, len(header))
	for i, col := range header {
		out[i] = CanonicalColumn(source, col)
	}
	return out
}

// ValidateColumns checks header against RequiredColumns for source.
// Header names must already be canonical.
func ValidateColumns(source Source, header []string) error {
	seen := make(map[string]struct{}, len(header))
	for _, col := range header {
		seen[col] = struct{}{}
	}
	for _, col := range RequiredColumns[source] {
		if _, ok := seen[col]; !ok {
			return &ColumnError{Source: source, Column: col}
		}
	}
	return nil
}

// Validate enforces the input contract of a run: required columns on every
// source that reported its header, and a non-empty, unique property_id on
// every booking row.
func (d RawData) Validate() error {
	for _, source := range Sources {
		header, ok := d.Columns[source]
		if !ok {
			continue
		}
		if err := ValidateColumns(source, header); err != nil {
			return err
		}
	}

	seen := make(map[string]struct{}, len(d.Bookings))
	for i, b := range d.Bookings {
		id := PropertyKey(b.PropertyID)
		if id == "" {
			return fmt.Errorf("bookings row %d: %w", i, ErrMissingPropertyID)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("bookings property %q: %w", id, ErrDuplicateBooking)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// PropertyKey is the form of a property id used for duplicate checks and
// joins across sources.
func PropertyKey(id string) string {
	return strings.TrimSpace(id)
}
