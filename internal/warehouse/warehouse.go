// Package warehouse manages the local PostgreSQL analytical store.
//
// Every sync source writes into its own table family (mongo_*, clickup_*,
// gsc_*, ga4_*, ch_*, bq_*); the transcript RAG index lives in the same
// database (documents table, pgvector). Schema is owned by the embedded
// migrations and applied with golang-migrate.
package warehouse

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for golang-migrate
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNoRows indicates a lookup matched nothing.
var ErrNoRows = errors.New("no rows")

// Warehouse wraps the connection pool to the local analytical store.
//
// Warehouse is safe for concurrent use by multiple goroutines.
type Warehouse struct {
	Pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects to the warehouse and verifies the connection.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Warehouse, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating warehouse pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging warehouse: %w", err)
	}

	return &Warehouse{Pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (w *Warehouse) Close() {
	w.Pool.Close()
}

// Migrate applies all pending schema migrations. dsn is the key=value pgx
// DSN also used by Open.
func Migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening migration connection: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("creating migrate driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// TableInfo describes one warehouse table.
type TableInfo struct {
	Name string
	Rows int64
}

// Tables lists user tables with their live row estimates.
func (w *Warehouse) Tables(ctx context.Context) ([]TableInfo, error) {
	rows, err := w.Pool.Query(ctx, `
		SELECT relname, n_live_tup
		FROM pg_stat_user_tables
		ORDER BY relname`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var tables []TableInfo
	for rows.Next() {
		var t TableInfo
		if err := rows.Scan(&t.Name, &t.Rows); err != nil {
			return nil, fmt.Errorf("scanning table info: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// RowCount returns the exact row count of a table.
// The table name is interpolated; callers pass only compile-time constants.
func (w *Warehouse) RowCount(ctx context.Context, table string) (int64, error) {
	var count int64
	if err := w.Pool.QueryRow(ctx, "SELECT count(*) FROM "+table).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting rows in %s: %w", table, err)
	}
	return count, nil
}

// MaxTimestamp returns the newest value of a timestamp column, used by
// incremental syncs to resume where the previous run stopped. The second
// return value is false when the table is empty.
func (w *Warehouse) MaxTimestamp(ctx context.Context, table, column string) (time.Time, bool, error) {
	var ts *time.Time
	query := fmt.Sprintf("SELECT max(%s) FROM %s", column, table)
	if err := w.Pool.QueryRow(ctx, query).Scan(&ts); err != nil {
		return time.Time{}, false, fmt.Errorf("reading max %s.%s: %w", table, column, err)
	}
	if ts == nil {
		return time.Time{}, false, nil
	}
	return *ts, true, nil
}
