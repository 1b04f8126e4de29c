// Package ga4 copies Google Analytics 4 traffic reports into the
// warehouse: a daily overview plus page, source and geography
// breakdowns aggregated over the requested window.
package ga4

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	"google.golang.org/api/option"

	"github.com/fatgrid/insights/internal/warehouse"
)

// Window is the date range a sync covers, inclusive on both ends.
type Window struct {
	Start string // YYYY-MM-DD
	End   string // YYYY-MM-DD
}

// LastDays builds a window of the given number of days ending yesterday.
func LastDays(now time.Time, days int) Window {
	return Window{
		Start: now.AddDate(0, 0, -days).Format("2006-01-02"),
		End:   now.AddDate(0, 0, -1).Format("2006-01-02"),
	}
}

// Syncer pulls reports for one GA4 property.
type Syncer struct {
	service    *analyticsdata.Service
	propertyID string
	warehouse  *warehouse.Warehouse
	logger     *slog.Logger
}

// NewSyncer authenticates with the service account credentials file.
func NewSyncer(ctx context.Context, credentialsFile, propertyID string, wh *warehouse.Warehouse, logger *slog.Logger) (*Syncer, error) {
	if credentialsFile == "" {
		return nil, fmt.Errorf("service account file is required")
	}
	if propertyID == "" {
		return nil, fmt.Errorf("GA4 property ID is required")
	}
	if wh == nil {
		return nil, fmt.Errorf("warehouse is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	service, err := analyticsdata.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(analyticsdata.AnalyticsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("creating analytics data service: %w", err)
	}

	return &Syncer{service: service, propertyID: propertyID, warehouse: wh, logger: logger}, nil
}

// report runs one RunReport call and returns its rows.
func (s *Syncer) report(ctx context.Context, w Window, dimensions, metrics []string, limit int64) ([]*analyticsdata.Row, error) {
	req := &analyticsdata.RunReportRequest{
		DateRanges: []*analyticsdata.DateRange{{StartDate: w.Start, EndDate: w.End}},
		Limit:      limit,
	}
	for _, d := range dimensions {
		req.Dimensions = append(req.Dimensions, &analyticsdata.Dimension{Name: d})
	}
	for _, m := range metrics {
		req.Metrics = append(req.Metrics, &analyticsdata.Metric{Name: m})
	}

	resp, err := s.service.Properties.RunReport("properties/"+s.propertyID, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("running report: %w", err)
	}
	return resp.Rows, nil
}

// Sync refreshes all report tables for the window and returns the total
// rows written.
func (s *Syncer) Sync(ctx context.Context, w Window) (int64, error) {
	var total int64
	for _, step := range []func(context.Context, Window) (int64, error){
		s.syncDaily, s.syncPages, s.syncSources, s.syncCountries,
	} {
		n, err := step(ctx, w)
		if err != nil {
			return total, err
		}
		total += n
	}

	s.logger.Info("ga4 sync complete", "rows", total, "start", w.Start, "end", w.End)
	return total, nil
}

func (s *Syncer) syncDaily(ctx context.Context, w Window) (int64, error) {
	s.logger.Info("fetching daily overview")

	rows, err := s.report(ctx, w,
		[]string{"date"},
		[]string{"sessions", "totalUsers", "newUsers", "screenPageViews",
			"averageSessionDuration", "bounceRate", "engagedSessions"},
		10000)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	query := warehouse.UpsertSQL("ga4_daily",
		[]string{"date", "sessions", "total_users", "new_users", "pageviews",
			"avg_session_duration", "bounce_rate", "engaged_sessions", "synced_at"},
		[]string{"date"})

	now := time.Now().UTC()
	for _, row := range rows {
		// GA4 dates come back as YYYYMMDD.
		raw := row.DimensionValues[0].Value
		if len(raw) != 8 {
			return 0, fmt.Errorf("unexpected date value %q", raw)
		}
		date := raw[:4] + "-" + raw[4:6] + "-" + raw[6:]

		_, err := s.warehouse.Pool.Exec(ctx, query,
			date,
			metricInt(row, 0), metricInt(row, 1), metricInt(row, 2), metricInt(row, 3),
			metricFloat(row, 4), metricFloat(row, 5), metricInt(row, 6),
			now)
		if err != nil {
			return 0, fmt.Errorf("upserting ga4_daily: %w", err)
		}
	}

	s.logger.Info("saved daily rows", "rows", len(rows))
	return int64(len(rows)), nil
}

func (s *Syncer) syncPages(ctx context.Context, w Window) (int64, error) {
	s.logger.Info("fetching page metrics")

	rows, err := s.report(ctx, w,
		[]string{"pagePath", "pageTitle"},
		[]string{"screenPageViews", "totalUsers", "averageSessionDuration", "bounceRate"},
		5000)
	if err != nil {
		return 0, err
	}

	return s.replaceWindow(ctx, w, "ga4_pages", rows, func(row *analyticsdata.Row) ([]string, []any) {
		title := row.DimensionValues[1].Value
		if len(title) > 500 {
			title = title[:500]
		}
		return []string{"page_path", "page_title", "pageviews", "users", "avg_session_duration", "bounce_rate"},
			[]any{row.DimensionValues[0].Value, title,
				metricInt(row, 0), metricInt(row, 1), metricFloat(row, 2), metricFloat(row, 3)}
	})
}

func (s *Syncer) syncSources(ctx context.Context, w Window) (int64, error) {
	s.logger.Info("fetching traffic sources")

	rows, err := s.report(ctx, w,
		[]string{"sessionSource", "sessionMedium", "sessionCampaignName"},
		[]string{"sessions", "totalUsers", "newUsers", "bounceRate"},
		1000)
	if err != nil {
		return 0, err
	}

	return s.replaceWindow(ctx, w, "ga4_sources", rows, func(row *analyticsdata.Row) ([]string, []any) {
		return []string{"source", "medium", "campaign", "sessions", "users", "new_users", "bounce_rate"},
			[]any{row.DimensionValues[0].Value, row.DimensionValues[1].Value, row.DimensionValues[2].Value,
				metricInt(row, 0), metricInt(row, 1), metricInt(row, 2), metricFloat(row, 3)}
	})
}

func (s *Syncer) syncCountries(ctx context.Context, w Window) (int64, error) {
	s.logger.Info("fetching geography")

	rows, err := s.report(ctx, w,
		[]string{"country", "city"},
		[]string{"sessions", "totalUsers", "screenPageViews"},
		2000)
	if err != nil {
		return 0, err
	}

	return s.replaceWindow(ctx, w, "ga4_countries", rows, func(row *analyticsdata.Row) ([]string, []any) {
		return []string{"country", "city", "sessions", "users", "pageviews"},
			[]any{row.DimensionValues[0].Value, row.DimensionValues[1].Value,
				metricInt(row, 0), metricInt(row, 1), metricInt(row, 2)}
	})
}

// replaceWindow deletes the window's rows from table and inserts the
// fresh report inside one transaction.
func (s *Syncer) replaceWindow(ctx context.Context, w Window, table string, rows []*analyticsdata.Row, extract func(*analyticsdata.Row) ([]string, []any)) (int64, error) {
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

	now := time.Now().UTC()
	for _, row := range rows {
		cols, vals := extract(row)

		columns := append([]string{"date_range_start", "date_range_end"}, cols...)
		columns = append(columns, "synced_at")
		args := append([]any{w.Start, w.End}, vals...)
		args = append(args, now)

		insertSQL := warehouse.UpsertSQL(table, columns, nil)
		if _, err := tx.Exec(ctx, insertSQL, args...); err != nil {
			return 0, fmt.Errorf("inserting into %s: %w", table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing %s sync: %w", table, err)
	}

	s.logger.Info("saved breakdown rows", "table", table, "rows", len(rows))
	return int64(len(rows)), nil
}

// metricInt reads a metric value as an integer; GA4 returns all metric
// values as strings.
func metricInt(row *analyticsdata.Row, i int) int64 {
	if i >= len(row.MetricValues) {
		return 0
	}
	n, err := strconv.ParseInt(row.MetricValues[i].Value, 10, 64)
	if err != nil {
		// Some count metrics come back in float form.
		if f, ferr := strconv.ParseFloat(row.MetricValues[i].Value, 64); ferr == nil {
			return int64(f)
		}
		return 0
	}
	return n
}

// metricFloat reads a metric value as a float.
func metricFloat(row *analyticsdata.Row, i int) float64 {
	if i >= len(row.MetricValues) {
		return 0
	}
	f, err := strconv.ParseFloat(row.MetricValues[i].Value, 64)
	if err != nil {
		return 0
	}
	return f
}
