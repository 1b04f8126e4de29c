package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/fatgrid/insights/internal/warehouse"
)

// pgTypes maps ClickHouse column types to warehouse column types.
// Unknown types land as TEXT.
var pgTypes = map[string]string{
	"UInt8":      "SMALLINT",
	"UInt16":     "INTEGER",
	"UInt32":     "BIGINT",
	"UInt64":     "NUMERIC(20)",
	"Int8":       "SMALLINT",
	"Int16":      "SMALLINT",
	"Int32":      "INTEGER",
	"Int64":      "BIGINT",
	"Float32":    "REAL",
	"Float64":    "DOUBLE PRECISION",
	"String":     "TEXT",
	"DateTime":   "TIMESTAMPTZ",
	"DateTime64": "TIMESTAMPTZ",
	"Date":       "DATE",
	"Date32":     "DATE",
	"UUID":       "UUID",
	"Bool":       "BOOLEAN",
}

// PostgresType converts a ClickHouse type expression to a warehouse
// column type, unwrapping Nullable and LowCardinality.
func PostgresType(chType string) string {
	for {
		switch {
		case strings.HasPrefix(chType, "Nullable(") && strings.HasSuffix(chType, ")"):
			chType = chType[len("Nullable(") : len(chType)-1]
		case strings.HasPrefix(chType, "LowCardinality(") && strings.HasSuffix(chType, ")"):
			chType = chType[len("LowCardinality(") : len(chType)-1]
		default:
			// Strip parameters: DateTime64(3), Decimal(18, 2), Enum8(...).
			base, _, _ := strings.Cut(chType, "(")
			if t, ok := pgTypes[base]; ok {
				return t
			}
			if base == "Decimal" {
				return "NUMERIC"
			}
			return "TEXT"
		}
	}
}

// Syncer mirrors configured ClickHouse tables into the warehouse.
type Syncer struct {
	client    *Client
	warehouse *warehouse.Warehouse
	logger    *slog.Logger
}

// NewSyncer creates a Syncer.
func NewSyncer(client *Client, wh *warehouse.Warehouse, logger *slog.Logger) (*Syncer, error) {
	if client == nil {
		return nil, fmt.Errorf("clickhouse client is required")
	}
	if wh == nil {
		return nil, fmt.Errorf("warehouse is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{client: client, warehouse: wh, logger: logger}, nil
}

// Sync brings every configured table up to date and returns the total
// rows copied.
func (s *Syncer) Sync(ctx context.Context) (int64, error) {
	var total int64
	for _, spec := range Tables {
		n, err := s.SyncTable(ctx, spec)
		if err != nil {
			return total, fmt.Errorf("syncing %s: %w", spec.Name, err)
		}
		total += n
	}
	s.logger.Info("clickhouse sync complete", "rows", total)
	return total, nil
}

// SyncTable copies rows newer than the warehouse's high-water mark for
// one table. On first run the mirror table is created from the source
// schema and fully loaded.
func (s *Syncer) SyncTable(ctx context.Context, spec TableSpec) (int64, error) {
	cols, err := s.client.DescribeTable(ctx, spec.Name)
	if err != nil {
		return 0, err
	}

	if err := s.ensureTable(ctx, spec, cols); err != nil {
		return 0, err
	}

	since, haveSince, err := s.warehouse.MaxTimestamp(ctx, spec.Target(), spec.TimestampColumn)
	if err != nil {
		return 0, err
	}
	if !haveSince {
		since = time.Time{}
	}

	pending, err := s.client.CountSince(ctx, spec, since)
	if err != nil {
		return 0, err
	}
	if pending == 0 {
		s.logger.Info("table up to date", "table", spec.Name)
		return 0, nil
	}
	s.logger.Info("copying rows",
		"table", spec.Name, "pending", pending, "since", since)

	rows, err := s.client.Rows(ctx, spec, since)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}

	// Mirror tables have no primary key; plain inserts, the timestamp
	// high-water mark prevents duplicates across runs.
	writer := warehouse.NewBulkWriter(ctx, s.warehouse, spec.Target(), names, nil, nil)
	writer.Start(2)

	scanTypes := rows.ColumnTypes()
	for rows.Next() {
		ptrs := make([]any, len(scanTypes))
		for i, ct := range scanTypes {
			ptrs[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(ptrs...); err != nil {
			_ = writer.Close()
			return writer.Written(), fmt.Errorf("scanning row: %w", err)
		}

		row := make([]any, len(ptrs))
		for i, p := range ptrs {
			row[i] = reflect.ValueOf(p).Elem().Interface()
		}

		select {
		case writer.WriteChannel <- row:
		case <-ctx.Done():
			_ = writer.Close()
			return writer.Written(), ctx.Err()
		}
	}
	if err := rows.Err(); err != nil {
		_ = writer.Close()
		return writer.Written(), fmt.Errorf("iterating rows: %w", err)
	}

	if err := writer.Close(); err != nil {
		return writer.Written(), err
	}

	s.logger.Info("table synced", "table", spec.Name, "rows", writer.Written())
	return writer.Written(), nil
}

// ensureTable creates the mirror table from the source schema when it
// does not exist yet.
func (s *Syncer) ensureTable(ctx context.Context, spec TableSpec, cols []Column) error {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = fmt.Sprintf("%s %s", c.Name, PostgresType(c.Type))
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		spec.Target(), strings.Join(defs, ", "))
	if _, err := s.warehouse.Pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("creating %s: %w", spec.Target(), err)
	}
	return nil
}
