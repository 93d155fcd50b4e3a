// Package collector gathers the five raw inputs of a closing run, either from
// the upstream HTTP API or from files on disk.
package collector

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
	"github.com/Gustavofrb/relatorio-mensal/internal/period"
)

// Collector fetches everything one month needs.
type Collector interface {
	Collect(ctx context.Context, month period.Period) (core.RawData, error)
}

var ErrDecode = errors.New("decode payload")

// record is one decoded row keyed by canonical column name.
type record map[string]any

// envelope is the JSON shape of the list endpoints.
type envelope struct {
	Data []map[string]any `json:"data"`
}

// decodeJSON reads a {"data": [...]} payload and returns canonical rows plus
// the union of columns seen.
func decodeJSON(source core.Source, r io.Reader) ([]record, []string, error) {
	var env envelope
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrDecode, source, err)
	}

	rows := make([]record, 0, len(env.Data))
	cols := make(map[string]struct{})
	for _, raw := range env.Data {
		rec := make(record, len(raw))
		for k, v := range raw {
			name := core.CanonicalColumn(source, k)
			rec[name] = v
			cols[name] = struct{}{}
		}
		rows = append(rows, rec)
	}
	if err := checkRequiredKeys(source, rows, cols); err != nil {
		return nil, nil, err
	}
	return rows, columnList(cols), nil
}

// checkRequiredKeys rejects rows lacking a required key that other rows carry.
// A key absent from every row is left to core.ValidateColumns.
func checkRequiredKeys(source core.Source, rows []record, cols map[string]struct{}) error {
	for _, col := range core.RequiredColumns[source] {
		if _, ok := cols[col]; !ok {
			continue
		}
		for i, rec := range rows {
			if _, ok := rec[col]; !ok {
				return rowError(source, i, fmt.Errorf("missing key %s", col))
			}
		}
	}
	return nil
}

// decodeCSV reads a CSV payload with a header line.
func decodeCSV(source core.Source, r io.Reader) ([]record, []string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s header: %v", ErrDecode, source, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	header = core.CanonicalColumns(source, header)

	var rows []record
	for line := 2; ; line++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s line %d: %v", ErrDecode, source, line, err)
		}
		rec := make(record, len(header))
		for i, name := range header {
			if i < len(fields) {
				rec[name] = fields[i]
			}
		}
		rows = append(rows, rec)
	}
	return rows, header, nil
}

func columnList(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r record) str(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// floatPtr returns nil for absent, empty or NaN values.
func (r record) floatPtr(key string) (*float64, error) {
	var f float64
	switch v := r[key].(type) {
	case nil:
		return nil, nil
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		f = parsed
	case float64:
		f = v
	case bool:
		return nil, fmt.Errorf("%s: unexpected boolean", key)
	default:
		s := r.str(key)
		if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
			return nil, nil
		}
		parsed, err := core.ParseAmount(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		f = parsed
	}
	if math.IsNaN(f) {
		return nil, nil
	}
	return &f, nil
}

func (r record) float(key string) (float64, error) {
	p, err := r.floatPtr(key)
	if err != nil || p == nil {
		return 0, err
	}
	return *p, nil
}

// int accepts only whole numbers that fit an int.
func (r record) int(key string) (int, error) {
	f, err := r.float(key)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%s: %v is not a whole number", key, f)
	}
	if f < float64(math.MinInt) || f >= float64(math.MaxInt) {
		return 0, fmt.Errorf("%s: %v out of range", key, f)
	}
	return int(f), nil
}

func toBookings(rows []record) ([]core.RawBooking, error) {
	out := make([]core.RawBooking, 0, len(rows))
	for i, r := range rows {
		reservations, err := r.int("reservations_count")
		if err != nil {
			return nil, rowError(core.SourceBookings, i, err)
		}
		occupied, err := r.int("occupied_days")
		if err != nil {
			return nil, rowError(core.SourceBookings, i, err)
		}
		gross, err := r.float("gross_revenue")
		if err != nil {
			return nil, rowError(core.SourceBookings, i, err)
		}
		out = append(out, core.RawBooking{
			PropertyID:        r.str("property_id"),
			ReservationsCount: reservations,
			OccupiedDays:      occupied,
			GrossRevenue:      gross,
		})
	}
	return out, nil
}

func toProperties(rows []record) []core.RawProperty {
	out := make([]core.RawProperty, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.RawProperty{
			PropertyID:  r.str("property_id"),
			Condominium: r.str("condominium"),
			City:        r.str("city"),
			State:       r.str("state"),
			Region:      r.str("region"),
			Status:      r.str("status"),
		})
	}
	return out
}

func toFees(rows []record) ([]core.RawFee, error) {
	out := make([]core.RawFee, 0, len(rows))
	for i, r := range rows {
		pct, err := r.floatPtr("fee_percentage")
		if err != nil {
			return nil, rowError(core.SourceFees, i, err)
		}
		year, err := r.int("year")
		if err != nil {
			return nil, rowError(core.SourceFees, i, err)
		}
		month, err := r.int("month")
		if err != nil {
			return nil, rowError(core.SourceFees, i, err)
		}
		out = append(out, core.RawFee{
			City:          r.str("city"),
			FeePercentage: pct,
			Year:          year,
			Month:         month,
		})
	}
	return out, nil
}

func toFeedback(rows []record) ([]core.RawFeedback, error) {
	out := make([]core.RawFeedback, 0, len(rows))
	for i, r := range rows {
		rating, err := r.floatPtr("rating")
		if err != nil {
			return nil, rowError(core.SourceFeedback, i, err)
		}
		out = append(out, core.RawFeedback{
			PropertyID:        r.str("property_id"),
			Rating:            rating,
			ComplaintCategory: r.str("complaint_category"),
			Comment:           r.str("comment"),
		})
	}
	return out, nil
}

func toCosts(rows []record) ([]core.RawCost, error) {
	out := make([]core.RawCost, 0, len(rows))
	for i, r := range rows {
		value, err := r.float("cost_value")
		if err != nil {
			return nil, rowError(core.SourceCosts, i, err)
		}
		out = append(out, core.RawCost{
			PropertyID:  r.str("property_id"),
			CostValue:   value,
			Description: r.str("description"),
			Date:        r.str("date"),
		})
	}
	return out, nil
}

func rowError(source core.Source, i int, err error) error {
	return fmt.Errorf("%w: %s row %d: %v", ErrDecode, source, i, err)
}

// assemble turns decoded payloads into RawData. Sources with no rows do not
// report a header.
func assemble(payloads map[core.Source][]record, headers map[core.Source][]string) (core.RawData, error) {
	var (
		data core.RawData
		err  error
	)
	data.Columns = make(map[core.Source][]string)
	for source, rows := range payloads {
		if len(rows) > 0 && len(headers[source]) > 0 {
			data.Columns[source] = headers[source]
		}
	}

	if data.Bookings, err = toBookings(payloads[core.SourceBookings]); err != nil {
		return core.RawData{}, err
	}
	data.Properties = toProperties(payloads[core.SourceProperties])
	if data.Fees, err = toFees(payloads[core.SourceFees]); err != nil {
		return core.RawData{}, err
	}
	if data.Feedback, err = toFeedback(payloads[core.SourceFeedback]); err != nil {
		return core.RawData{}, err
	}
	if data.Costs, err = toCosts(payloads[core.SourceCosts]); err != nil {
		return core.RawData{}, err
	}
	return data, nil
}
