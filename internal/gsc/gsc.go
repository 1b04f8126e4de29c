// Package gsc copies Search Console performance data into the
// warehouse: a daily overview plus query, page, country and device
// breakdowns aggregated over the requested window.
package gsc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/option"
	searchconsole "google.golang.org/api/searchconsole/v1"

	"github.com/fatgrid/insights/internal/warehouse"
)

// Window is the date range a sync covers, inclusive on both ends.
type Window struct {
	Start string // YYYY-MM-DD
	End   string // YYYY-MM-DD
}

// LastDays builds a window covering the given number of days and ending
// yesterday; Search Console data for today is not final.
func LastDays(now time.Time, days int) Window {
	end := now.AddDate(0, 0, -1)
	start := now.AddDate(0, 0, -days)
	return Window{
		Start: start.Format("2006-01-02"),
		End:   end.Format("2006-01-02"),
	}
}

// Syncer pulls search performance reports for one site.
type Syncer struct {
	service   *searchconsole.Service
	siteURL   string
	warehouse *warehouse.Warehouse
	logger    *slog.Logger
}

// NewSyncer authenticates with the service account credentials file.
func NewSyncer(ctx context.Context, credentialsFile, siteURL string, wh *warehouse.Warehouse, logger *slog.Logger) (*Syncer, error) {
	if credentialsFile == "" {
		return nil, fmt.Errorf("service account file is required")
	}
	if siteURL == "" {
		return nil, fmt.Errorf("site URL is required")
	}
	if wh == nil {
		return nil, fmt.Errorf("warehouse is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	service, err := searchconsole.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(searchconsole.WebmastersReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("creating search console service: %w", err)
	}

	return &Syncer{service: service, siteURL: siteURL, warehouse: wh, logger: logger}, nil
}

// Sync refreshes all report tables for the window and returns the total
// rows written.
func (s *Syncer) Sync(ctx context.Context, w Window) (int64, error) {
	var total int64

	n, err := s.syncDaily(ctx, w)
	if err != nil {
		return total, err
	}
	total += n

	breakdowns := []struct {
		dimension string
		table     string
		rowLimit  int64
	}{
		{"query", "gsc_queries", 25000},
		{"page", "gsc_pages", 25000},
		{"country", "gsc_countries", 250},
		{"device", "gsc_devices", 10},
	}
	for _, b := range breakdowns {
		n, err := s.syncBreakdown(ctx, w, b.dimension, b.table, b.rowLimit)
		if err != nil {
			return total, err
		}
		total += n
	}

	s.logger.Info("search console sync complete", "rows", total, "start", w.Start, "end", w.End)
	return total, nil
}

func (s *Syncer) fetch(ctx context.Context, w Window, dimension string, rowLimit int64) ([]*searchconsole.ApiDataRow, error) {
	req := &searchconsole.SearchAnalyticsQueryRequest{
		StartDate:  w.Start,
		EndDate:    w.End,
		Dimensions: []string{dimension},
		RowLimit:   rowLimit,
	}

	resp, err := s.service.Searchanalytics.Query(s.siteURL, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("querying %s report: %w", dimension, err)
	}
	return resp.Rows, nil
}

// syncDaily upserts one row per day.
func (s *Syncer) syncDaily(ctx context.Context, w Window) (int64, error) {
	s.logger.Info("fetching daily performance")

	rows, err := s.fetch(ctx, w, "date", 25000)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	query := warehouse.UpsertSQL("gsc_daily",
		[]string{"date", "clicks", "impressions", "ctr", "position", "synced_at"},
		[]string{"date"})

	now := time.Now().UTC()
	for _, row := range rows {
		_, err := s.warehouse.Pool.Exec(ctx, query,
			row.Keys[0], int64(row.Clicks), int64(row.Impressions),
			row.Ctr, row.Position, now)
		if err != nil {
			return 0, fmt.Errorf("upserting gsc_daily: %w", err)
		}
	}

	s.logger.Info("saved daily rows", "rows", len(rows))
	return int64(len(rows)), nil
}

// syncBreakdown replaces the window's rows in one dimension table:
// breakdown reports aggregate over the whole window, so the window is
// the natural replacement unit.
func (s *Syncer) syncBreakdown(ctx context.Context, w Window, dimension, table string, rowLimit int64) (int64, error) {
	s.logger.Info("fetching breakdown", "dimension", dimension)

	rows, err := s.fetch(ctx, w, dimension, rowLimit)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.warehouse.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning %s sync: %w", table, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	deleteSQL := fmt.Sprintf(
		"DELETE FROM %s WHERE date_range_start = $1 AND date_range_end = $2", table)
	if _, err := tx.Exec(ctx, deleteSQL, w.Start, w.End); err != nil {
		return 0, fmt.Errorf("clearing %s window: %w", table, err)
	}

	insertSQL := fmt.Sprintf(`INSERT INTO %s
		(date_range_start, date_range_end, %s, clicks, impressions, ctr, position, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, table, dimension)

	now := time.Now().UTC()
	for _, row := range rows {
		_, err := tx.Exec(ctx, insertSQL,
			w.Start, w.End, row.Keys[0],
			int64(row.Clicks), int64(row.Impressions), row.Ctr, row.Position, now)
		if err != nil {
			return 0, fmt.Errorf("inserting into %s: %w", table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing %s sync: %w", table, err)
	}

	s.logger.Info("saved breakdown rows", "table", table, "rows", len(rows))
	return int64(len(rows)), nil
}
