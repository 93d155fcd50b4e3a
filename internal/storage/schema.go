package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrSchemaMismatch = errors.New("schema mismatch")

const (
	tableProperties     = "properties"
	tableMonthlySummary = "monthly_summary"
)

var propertyColumns = []string{
	"property_id", "condominium", "city", "state", "region", "status",
}

var summaryColumns = []string{
	"property_id", "month",
	"reservations_count", "gross_revenue", "occupied_days", "occupancy_rate",
	"condominium", "city", "state", "region", "status",
	"fee_percentage", "platform_fee_amount", "extra_cost_total",
	"net_revenue", "margin_value", "margin_percent",
	"avg_rating", "complaints_list", "owner_name",
}

var expectedSchema = map[string][]string{
	tableProperties:     propertyColumns,
	tableMonthlySummary: summaryColumns,
}

// expectedKeys lists each table's primary key columns in key order.
var expectedKeys = map[string][]string{
	tableProperties:     {"property_id"},
	tableMonthlySummary: {"property_id", "month"},
}

// tableInfo is the layout PRAGMA table_info reports for one table.
type tableInfo struct {
	columns []string
	keys    []string
}

// SchemaError details how an existing table differs from the expected one.
// Key and WantKey are set only when the primary key differs.
type SchemaError struct {
	Table   string
	Missing []string
	Extra   []string
	Key     []string
	WantKey []string
}

func (e *SchemaError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Extra, ", "))
	}
	if e.WantKey != nil {
		got := "none"
		if len(e.Key) > 0 {
			got = "(" + strings.Join(e.Key, ", ") + ")"
		}
		parts = append(parts, fmt.Sprintf("primary key %s, want (%s)", got, strings.Join(e.WantKey, ", ")))
	}
	return fmt.Sprintf("%s: table %s: %s", ErrSchemaMismatch, e.Table, strings.Join(parts, "; "))
}

func (e *SchemaError) Unwrap() error {
	return ErrSchemaMismatch
}

// VerifySchema compares the live tables against the expected column sets and
// primary keys.
func (r *SQLiteRepository) VerifySchema(ctx context.Context) error {
	for _, table := range []string{tableProperties, tableMonthlySummary} {
		info, err := r.tableInfo(ctx, table)
		if err != nil {
			return err
		}
		if len(info.columns) == 0 {
			return &SchemaError{Table: table, Missing: expectedSchema[table]}
		}
		if serr := diffTable(table, info); serr != nil {
			return serr
		}
	}
	return nil
}

// verifyExisting checks only the tables that already exist, so a foreign
// layout is reported before migrations try to build on top of it.
func (r *SQLiteRepository) verifyExisting(ctx context.Context) error {
	for _, table := range []string{tableProperties, tableMonthlySummary} {
		info, err := r.tableInfo(ctx, table)
		if err != nil {
			return err
		}
		if len(info.columns) == 0 {
			continue
		}
		if serr := diffTable(table, info); serr != nil {
			return serr
		}
	}
	return nil
}

func (r *SQLiteRepository) tableInfo(ctx context.Context, table string) (tableInfo, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return tableInfo{}, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	var info tableInfo
	keyPos := map[int]string{}
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return tableInfo{}, fmt.Errorf("scan table info %s: %w", table, err)
		}
		info.columns = append(info.columns, name)
		if pk > 0 {
			keyPos[pk] = name
		}
	}
	if err := rows.Err(); err != nil {
		return tableInfo{}, err
	}
	// pk is the 1-based position of the column within the primary key.
	for i := 1; i <= len(keyPos); i++ {
		info.keys = append(info.keys, keyPos[i])
	}
	return info, nil
}

func diffTable(table string, info tableInfo) *SchemaError {
	serr := diffColumns(table, expectedSchema[table], info.columns)
	want := expectedKeys[table]
	if slices.Equal(want, info.keys) {
		return serr
	}
	if serr == nil {
		serr = &SchemaError{Table: table}
	}
	serr.Key = info.keys
	serr.WantKey = want
	return serr
}

func diffColumns(table string, want, got []string) *SchemaError {
	wantSet := make(map[string]struct{}, len(want))
	for _, c := range want {
		wantSet[c] = struct{}{}
	}
	gotSet := make(map[string]struct{}, len(got))
	for _, c := range got {
		gotSet[c] = struct{}{}
	}

	serr := &SchemaError{Table: table}
	for _, c := range want {
		if _, ok := gotSet[c]; !ok {
			serr.Missing = append(serr.Missing, c)
		}
	}
	for _, c := range got {
		if _, ok := wantSet[c]; !ok {
			serr.Extra = append(serr.Extra, c)
		}
	}
	if len(serr.Missing) == 0 && len(serr.Extra) == 0 {
		return nil
	}
	return serr
}
