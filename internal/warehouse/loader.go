package warehouse

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultBatchSize is the number of rows per flushed batch.
const DefaultBatchSize = 1000

// UpsertSQL builds an INSERT ... ON CONFLICT DO UPDATE statement for the
// given columns. With no conflict columns it degrades to a plain INSERT.
func UpsertSQL(table string, columns, conflict []string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	if len(conflict) == 0 {
		return b.String()
	}

	conflictSet := make(map[string]struct{}, len(conflict))
	for _, c := range conflict {
		conflictSet[c] = struct{}{}
	}

	var updates []string
	for _, col := range columns {
		if _, isKey := conflictSet[col]; isKey {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}

	if len(updates) == 0 {
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO NOTHING", strings.Join(conflict, ", "))
		return b.String()
	}

	fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s",
		strings.Join(conflict, ", "), strings.Join(updates, ", "))
	return b.String()
}

// BulkWriter streams rows into one warehouse table from multiple producer
// goroutines, batching them into pgx batches. Rows are upserted, so a
// re-run of the same sync converges instead of duplicating.
type BulkWriter struct {
	wh        *Warehouse
	query     string
	batchSize int
	limiter   *rate.Limiter

	// WriteChannel receives one row (positional args for the upsert) per send.
	WriteChannel chan []any

	eg      *errgroup.Group
	ctx     context.Context
	written atomic.Int64
}

// NewBulkWriter creates a writer for table. conflict names the primary key
// columns driving upsert behavior. A nil limiter disables throttling.
func NewBulkWriter(ctx context.Context, wh *Warehouse, table string, columns, conflict []string, limiter *rate.Limiter) *BulkWriter {
	eg, ctx := errgroup.WithContext(ctx)
	return &BulkWriter{
		wh:           wh,
		query:        UpsertSQL(table, columns, conflict),
		batchSize:    DefaultBatchSize,
		limiter:      limiter,
		WriteChannel: make(chan []any, DefaultBatchSize),
		eg:           eg,
		ctx:          ctx,
	}
}

// Start launches the writer goroutines. Must be called before sending rows.
func (w *BulkWriter) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for range workers {
		w.eg.Go(w.run)
	}
}

func (w *BulkWriter) run() error {
	batch := make([][]any, 0, w.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if w.limiter != nil {
			if err := w.limiter.Wait(w.ctx); err != nil {
				return err
			}
		}
		pgxBatch := &pgx.Batch{}
		for _, row := range batch {
			pgxBatch.Queue(w.query, row...)
		}
		if err := w.wh.Pool.SendBatch(w.ctx, pgxBatch).Close(); err != nil {
			return fmt.Errorf("flushing batch: %w", err)
		}
		w.written.Add(int64(len(batch)))
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		case row, ok := <-w.WriteChannel:
			if !ok {
				return flush()
			}
			batch = append(batch, row)
			if len(batch) >= w.batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
}

// Close signals the end of input and waits for all batches to land.
// Returns the first worker error, if any.
func (w *BulkWriter) Close() error {
	close(w.WriteChannel)
	return w.eg.Wait()
}

// Written reports the number of rows flushed so far.
func (w *BulkWriter) Written() int64 {
	return w.written.Load()
}

// Replace atomically swaps the full contents of a table: TRUNCATE plus
// CopyFrom inside one transaction. Used by full-refresh sources (Mongo).
func (w *Warehouse) Replace(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	tx, err := w.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning replace of %s: %w", table, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, "TRUNCATE "+table); err != nil {
		return 0, fmt.Errorf("truncating %s: %w", table, err)
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copying into %s: %w", table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing replace of %s: %w", table, err)
	}
	return copied, nil
}
