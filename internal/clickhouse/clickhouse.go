// Package clickhouse copies event log tables from the production
// ClickHouse cluster into the warehouse. Syncs are incremental by the
// table's timestamp column; only tables small enough to mirror locally
// are configured here, the multi-gigabyte history tables stay remote.
package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// TableSpec describes one mirrored table.
type TableSpec struct {
	// Name is the source table; the warehouse table is "ch_" + Name.
	Name string
	// TimestampColumn drives incremental sync.
	TimestampColumn string
}

// Target returns the warehouse table name.
func (t TableSpec) Target() string { return "ch_" + t.Name }

// Tables is the set of mirrored event tables. domain_history and
// price_history are too large to mirror and are queried in place.
var Tables = []TableSpec{
	{Name: "user_activity_logs", TimestampColumn: "timestamp"},
	{Name: "resources_modal_opens", TimestampColumn: "timestamp"},
	{Name: "not_found_domains", TimestampColumn: "created_at"},
}

// SpecFor returns the spec for a source table name.
func SpecFor(name string) (TableSpec, bool) {
	for _, t := range Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableSpec{}, false
}

// Client wraps a native protocol connection to ClickHouse.
type Client struct {
	Conn   driver.Conn
	logger *slog.Logger
}

// Connect opens a connection and verifies it with a ping.
func Connect(ctx context.Context, addr, database, username, password string, logger *slog.Logger) (*Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("clickhouse address is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout:     30 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("opening clickhouse connection: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging clickhouse: %w", err)
	}

	return &Client{Conn: conn, logger: logger}, nil
}

// Close shuts down the connection.
func (c *Client) Close() error {
	return c.Conn.Close()
}

// Column describes one column of a source table.
type Column struct {
	Name string
	Type string
}

// DescribeTable returns the source table's columns in order.
func (c *Client) DescribeTable(ctx context.Context, table string) ([]Column, error) {
	rows, err := c.Conn.Query(ctx, fmt.Sprintf("DESCRIBE TABLE %s", table))
	if err != nil {
		return nil, fmt.Errorf("describing %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		// DESCRIBE returns more columns than we need; scan the rest away.
		var name, typ, defaultType, defaultExpr, comment, codec, ttl string
		if err := rows.Scan(&name, &typ, &defaultType, &defaultExpr, &comment, &codec, &ttl); err != nil {
			return nil, fmt.Errorf("scanning schema row: %w", err)
		}
		cols = append(cols, Column{Name: name, Type: typ})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s has no columns", table)
	}
	return cols, nil
}

// CountSince returns how many rows have a timestamp strictly after since.
// A zero since counts the whole table.
func (c *Client) CountSince(ctx context.Context, spec TableSpec, since time.Time) (uint64, error) {
	query := fmt.Sprintf("SELECT count() FROM %s", spec.Name)
	args := []any{}
	if !since.IsZero() {
		query += fmt.Sprintf(" WHERE %s > ?", spec.TimestampColumn)
		args = append(args, since)
	}

	var count uint64
	if err := c.Conn.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting %s: %w", spec.Name, err)
	}
	return count, nil
}

// Rows streams table rows newer than since, ordered by the timestamp
// column. The caller owns closing the returned rows.
func (c *Client) Rows(ctx context.Context, spec TableSpec, since time.Time) (driver.Rows, error) {
	query := fmt.Sprintf("SELECT * FROM %s", spec.Name)
	args := []any{}
	if !since.IsZero() {
		query += fmt.Sprintf(" WHERE %s > ?", spec.TimestampColumn)
		args = append(args, since)
	}
	query += fmt.Sprintf(" ORDER BY %s", spec.TimestampColumn)

	rows, err := c.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", spec.Name, err)
	}
	return rows, nil
}
