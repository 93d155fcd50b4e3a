package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
)

const selectSummarySQL = `
SELECT property_id, month,
       reservations_count, gross_revenue, occupied_days, occupancy_rate,
       condominium, city, state, region, status,
       fee_percentage, platform_fee_amount, extra_cost_total,
       net_revenue, margin_value, margin_percent,
       avg_rating, complaints_list, owner_name
FROM monthly_summary
WHERE month = ?
ORDER BY property_id`

// ListMonthlySummary returns the stored rows of month ordered by property.
func (r *SQLiteRepository) ListMonthlySummary(ctx context.Context, month string) ([]core.MonthlySummary, error) {
	rows, err := r.db.QueryContext(ctx, selectSummarySQL, month)
	if err != nil {
		return nil, fmt.Errorf("query monthly summary: %w", err)
	}
	defer rows.Close()

	var out []core.MonthlySummary
	for rows.Next() {
		var (
			s          core.MonthlySummary
			reserv     sql.NullInt64
			occupied   sql.NullInt64
			gross      sql.NullFloat64
			occupancy  sql.NullFloat64
			fee        sql.NullFloat64
			feeAmount  sql.NullFloat64
			extra      sql.NullFloat64
			net        sql.NullFloat64
			margin     sql.NullFloat64
			complaints sql.NullString
		)
		err := rows.Scan(
			&s.PropertyID, &s.Month,
			&reserv, &gross, &occupied, &occupancy,
			&s.Condominium, &s.City, &s.State, &s.Region, &s.Status,
			&fee, &feeAmount, &extra,
			&net, &margin, &s.MarginPercent,
			&s.AvgRating, &complaints, &s.OwnerName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan monthly summary: %w", err)
		}
		s.ReservationsCount = int(reserv.Int64)
		s.OccupiedDays = int(occupied.Int64)
		s.GrossRevenue = gross.Float64
		s.OccupancyRate = occupancy.Float64
		s.FeePercentage = fee.Float64
		s.PlatformFeeAmount = feeAmount.Float64
		s.ExtraCostTotal = extra.Float64
		s.NetRevenue = net.Float64
		s.MarginValue = margin.Float64
		s.ComplaintsList = complaints.String
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monthly summary: %w", err)
	}
	return out, nil
}

// HasMonth reports whether any fact row exists for month.
func (r *SQLiteRepository) HasMonth(ctx context.Context, month string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM monthly_summary WHERE month = ?)`, month).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check month %s: %w", month, err)
	}
	return exists == 1, nil
}

// Months lists the closed months, most recent first.
func (r *SQLiteRepository) Months(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT month FROM monthly_summary ORDER BY month DESC`)
	if err != nil {
		return nil, fmt.Errorf("list months: %w", err)
	}
	defer rows.Close()

	var months []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan month: %w", err)
		}
		months = append(months, m)
	}
	return months, rows.Err()
}

// GetProperty reads one dimension row.
func (r *SQLiteRepository) GetProperty(ctx context.Context, propertyID string) (core.PropertyDimension, error) {
	var p core.PropertyDimension
	err := r.db.QueryRowContext(ctx,
		`SELECT property_id, condominium, city, state, region, status FROM properties WHERE property_id = ?`,
		propertyID).Scan(&p.PropertyID, &p.Condominium, &p.City, &p.State, &p.Region, &p.Status)
	if err != nil {
		return p, fmt.Errorf("get property %s: %w", propertyID, err)
	}
	return p, nil
}

// CountProperties returns the size of the dimension table.
func (r *SQLiteRepository) CountProperties(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM properties`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count properties: %w", err)
	}
	return n, nil
}
