package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"

	_ "modernc.org/sqlite"
)

// DefaultBusyTimeout bounds how long writers wait on a locked database.
const DefaultBusyTimeout = 30 * time.Second

// SQLiteRepository owns the properties dimension and the monthly_summary
// fact table.
type SQLiteRepository struct {
	db          *sql.DB
	dsn         string
	busyTimeout time.Duration
}

// DSN builds the connection string for path: busy_timeout lets SQLite wait
// on locks, rollback journaling and immediate transactions make writers take
// the write lock at BEGIN.
func DSN(path string, busyTimeout time.Duration) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(DELETE)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// NewSQLiteRepository opens the database at dbPath, applies migrations and
// verifies the resulting schema.
func NewSQLiteRepository(dbPath string, busyTimeout time.Duration) (*SQLiteRepository, error) {
	if busyTimeout <= 0 {
		busyTimeout = DefaultBusyTimeout
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath, busyTimeout)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := &SQLiteRepository{
		db:          db,
		dsn:         dsn,
		busyTimeout: busyTimeout,
	}

	if err := repo.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// EnsureSchema creates missing tables and fails if existing ones differ from
// the expected layout. It is safe to call repeatedly.
func (r *SQLiteRepository) EnsureSchema(ctx context.Context) error {
	if err := r.verifyExisting(ctx); err != nil {
		return err
	}
	err := withBusyRetry(ctx, r.busyTimeout, func() error {
		_, err := RunMigrations(r.dsn)
		return err
	})
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if err := r.VerifySchema(ctx); err != nil {
		return err
	}
	return nil
}

// UpsertProperties inserts or replaces each dimension row by property_id.
func (r *SQLiteRepository) UpsertProperties(ctx context.Context, rows []core.PropertyDimension) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return upsertProperties(ctx, tx, rows)
	})
}

// ReplaceMonthlySummary deletes every row of month and inserts rows in one
// transaction, so readers see either the previous set or the new one.
func (r *SQLiteRepository) ReplaceMonthlySummary(ctx context.Context, month string, rows []core.MonthlySummary) error {
	if err := checkMonth(month, rows); err != nil {
		return err
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return replaceMonthlySummary(ctx, tx, month, rows)
	})
}

// Save persists a consolidated table whose month is taken from its first
// row. An empty table only ensures the schema.
func (r *SQLiteRepository) Save(ctx context.Context, rows []core.MonthlySummary) error {
	if len(rows) == 0 {
		slog.WarnContext(ctx, "No monthly summary rows to save")
		return r.EnsureSchema(ctx)
	}
	return r.SaveMonth(ctx, rows[0].Month, rows)
}

// SaveMonth ensures the schema, then upserts the dimension rows and replaces
// the month's facts within a single transaction. With no rows the month is
// cleared.
func (r *SQLiteRepository) SaveMonth(ctx context.Context, month string, rows []core.MonthlySummary) error {
	start := time.Now()

	if err := checkMonth(month, rows); err != nil {
		return err
	}
	if err := r.EnsureSchema(ctx); err != nil {
		return err
	}

	dims := core.Dimensions(rows)
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := upsertProperties(ctx, tx, dims); err != nil {
			return err
		}
		return replaceMonthlySummary(ctx, tx, month, rows)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Monthly summary saved to SQLite",
		"month", month,
		"properties", len(dims),
		"rows", len(rows),
		"duration_ms", time.Since(start).Milliseconds())

	return nil
}

// inTx runs fn in a transaction, retrying the whole transaction while the
// database is busy.
func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return withBusyRetry(ctx, r.busyTimeout, func() error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	})
}

func checkMonth(month string, rows []core.MonthlySummary) error {
	if month == "" {
		return fmt.Errorf("replace monthly summary: %w", core.ErrInvalidPeriod)
	}
	for _, row := range rows {
		if row.Month != month {
			return fmt.Errorf("row %s has month %q, want %q: %w", row.PropertyID, row.Month, month, core.ErrMixedPeriods)
		}
	}
	return nil
}

const upsertPropertySQL = `
INSERT OR REPLACE INTO properties (property_id, condominium, city, state, region, status)
VALUES (?, ?, ?, ?, ?, ?)`

func upsertProperties(ctx context.Context, tx *sql.Tx, rows []core.PropertyDimension) error {
	stmt, err := tx.PrepareContext(ctx, upsertPropertySQL)
	if err != nil {
		return fmt.Errorf("prepare upsert property: %w", err)
	}
	defer stmt.Close()

	for _, p := range rows {
		if _, err := stmt.ExecContext(ctx, p.PropertyID, p.Condominium, p.City, p.State, p.Region, p.Status); err != nil {
			return fmt.Errorf("upsert property %s: %w", p.PropertyID, err)
		}
	}
	return nil
}

const insertSummarySQL = `
INSERT INTO monthly_summary (
    property_id, month,
    reservations_count, gross_revenue, occupied_days, occupancy_rate,
    condominium, city, state, region, status,
    fee_percentage, platform_fee_amount, extra_cost_total,
    net_revenue, margin_value, margin_percent,
    avg_rating, complaints_list, owner_name
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func replaceMonthlySummary(ctx context.Context, tx *sql.Tx, month string, rows []core.MonthlySummary) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM monthly_summary WHERE month = ?`, month)
	if err != nil {
		return fmt.Errorf("delete month %s: %w", month, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		slog.InfoContext(ctx, "Existing monthly summary removed", "month", month, "rows", n)
	}

	stmt, err := tx.PrepareContext(ctx, insertSummarySQL)
	if err != nil {
		return fmt.Errorf("prepare insert summary: %w", err)
	}
	defer stmt.Close()

	for _, s := range rows {
		_, err := stmt.ExecContext(ctx,
			s.PropertyID, s.Month,
			s.ReservationsCount, s.GrossRevenue, s.OccupiedDays, s.OccupancyRate,
			s.Condominium, s.City, s.State, s.Region, s.Status,
			s.FeePercentage, s.PlatformFeeAmount, s.ExtraCostTotal,
			s.NetRevenue, s.MarginValue, s.MarginPercent,
			s.AvgRating, s.ComplaintsList, s.OwnerName,
		)
		if err != nil {
			return fmt.Errorf("insert summary %s/%s: %w", s.PropertyID, s.Month, err)
		}
	}
	return nil
}
