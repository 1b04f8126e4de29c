// Package bq mirrors the BigQuery-side exports into the warehouse:
// the Search Console bulk export tables and the Clarity metric
// snapshots a scheduled collector appends to the clarity dataset.
package bq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/fatgrid/insights/internal/warehouse"
)

// Config identifies the BigQuery project and datasets to read from.
type Config struct {
	CredentialsFile string
	Project         string
	GSCDataset      string
	ClarityDataset  string
}

// Syncer copies BigQuery tables into the warehouse incrementally.
type Syncer struct {
	client    *bigquery.Client
	cfg       Config
	warehouse *warehouse.Warehouse
	logger    *slog.Logger
}

// NewSyncer authenticates with the service account credentials file.
func NewSyncer(ctx context.Context, cfg Config, wh *warehouse.Warehouse, logger *slog.Logger) (*Syncer, error) {
	if cfg.CredentialsFile == "" {
		return nil, fmt.Errorf("service account file is required")
	}
	if cfg.Project == "" {
		return nil, fmt.Errorf("BigQuery project is required")
	}
	if wh == nil {
		return nil, fmt.Errorf("warehouse is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := bigquery.NewClient(ctx, cfg.Project,
		option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}

	return &Syncer{client: client, cfg: cfg, warehouse: wh, logger: logger}, nil
}

// Close releases the BigQuery connection.
func (s *Syncer) Close() error {
	return s.client.Close()
}

// Sync copies the Search Console and Clarity exports and returns the
// total rows written.
func (s *Syncer) Sync(ctx context.Context) (int64, error) {
	var total int64

	n, err := s.SyncSearchConsole(ctx)
	total += n
	if err != nil {
		return total, err
	}

	n, err = s.SyncClarity(ctx)
	total += n
	if err != nil {
		return total, err
	}

	s.logger.Info("bigquery sync complete", "rows", total)
	return total, nil
}

// SyncSearchConsole mirrors the bulk export's site and URL impression
// tables, picking up dates newer than what the warehouse already holds.
func (s *Syncer) SyncSearchConsole(ctx context.Context) (int64, error) {
	var total int64

	n, err := s.syncGSCTable(ctx, "searchdata_site_impression", "bq_gsc_site_impressions",
		[]string{"data_date", "query", "country", "device", "clicks", "impressions", "sum_position"},
		`SELECT FORMAT_DATE('%%Y-%%m-%%d', data_date) AS data_date,
		        IFNULL(query, '') AS query,
		        IFNULL(country, '') AS country,
		        IFNULL(device, '') AS device,
		        SUM(clicks) AS clicks,
		        SUM(impressions) AS impressions,
		        SUM(sum_position) AS sum_position
		 FROM %s
		 WHERE data_date > DATE(@since)
		 GROUP BY 1, 2, 3, 4
		 ORDER BY 1`)
	total += n
	if err != nil {
		return total, err
	}

	n, err = s.syncGSCTable(ctx, "searchdata_url_impression", "bq_gsc_url_impressions",
		[]string{"data_date", "url", "query", "clicks", "impressions", "sum_position"},
		`SELECT FORMAT_DATE('%%Y-%%m-%%d', data_date) AS data_date,
		        IFNULL(url, '') AS url,
		        IFNULL(query, '') AS query,
		        SUM(clicks) AS clicks,
		        SUM(impressions) AS impressions,
		        SUM(sum_position) AS sum_position
		 FROM %s
		 WHERE data_date > DATE(@since)
		 GROUP BY 1, 2, 3
		 ORDER BY 1`)
	total += n
	return total, err
}

func (s *Syncer) syncGSCTable(ctx context.Context, source, target string, columns []string, queryTemplate string) (int64, error) {
	since, found, err := s.warehouse.MaxTimestamp(ctx, target, "data_date")
	if err != nil {
		return 0, fmt.Errorf("reading %s high-water mark: %w", target, err)
	}
	if !found {
		// Full backfill on first run.
		since = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	s.logger.Info("fetching search console export", "table", source, "since", since.Format("2006-01-02"))

	query := s.client.Query(fmt.Sprintf(queryTemplate,
		fmt.Sprintf("`%s.%s.%s`", s.cfg.Project, s.cfg.GSCDataset, source)))
	query.Parameters = []bigquery.QueryParameter{
		{Name: "since", Value: civilDate(since)},
	}

	return s.copyRows(ctx, query, target, columns, true)
}

// clarityDimensions maps Clarity dataset tables to their warehouse
// mirrors. snapshots and pages have their own shapes and are handled
// separately.
var clarityDimensions = []string{"devices", "countries", "browsers", "os"}

// SyncClarity mirrors the Clarity dataset, picking up snapshots newer
// than the warehouse's latest snapshot_time.
func (s *Syncer) SyncClarity(ctx context.Context) (int64, error) {
	var total int64

	n, err := s.syncClarityTable(ctx, "snapshots", "bq_clarity_snapshots",
		[]string{"snapshot_time", "period_hours", "total_sessions", "bot_sessions",
			"distinct_users", "pages_per_session", "avg_scroll_depth",
			"total_time_sec", "active_time_sec", "dead_click_pct", "dead_clicks",
			"rage_click_pct", "rage_clicks", "quickback_pct", "quickbacks",
			"script_error_pct"},
		`SELECT snapshot_time, period_hours, total_sessions, bot_sessions,
		        distinct_users, pages_per_session, avg_scroll_depth,
		        total_time_sec, active_time_sec, dead_click_pct, dead_clicks,
		        rage_click_pct, rage_clicks, quickback_pct, quickbacks,
		        script_error_pct
		 FROM %s
		 WHERE snapshot_time > @since
		 ORDER BY snapshot_time`)
	total += n
	if err != nil {
		return total, err
	}

	for _, dim := range clarityDimensions {
		n, err := s.syncClarityTable(ctx, dim, "bq_clarity_"+dim,
			[]string{"snapshot_time", "name", "sessions"},
			`SELECT snapshot_time, IFNULL(name, '') AS name, sessions
			 FROM %s
			 WHERE snapshot_time > @since
			 ORDER BY snapshot_time`)
		total += n
		if err != nil {
			return total, err
		}
	}

	n, err = s.syncClarityTable(ctx, "pages", "bq_clarity_pages",
		[]string{"snapshot_time", "url", "visits"},
		`SELECT snapshot_time, IFNULL(url, '') AS url, visits
		 FROM %s
		 WHERE snapshot_time > @since
		 ORDER BY snapshot_time`)
	total += n
	return total, err
}

func (s *Syncer) syncClarityTable(ctx context.Context, source, target string, columns []string, queryTemplate string) (int64, error) {
	since, found, err := s.warehouse.MaxTimestamp(ctx, target, "snapshot_time")
	if err != nil {
		return 0, fmt.Errorf("reading %s high-water mark: %w", target, err)
	}
	if !found {
		since = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	s.logger.Info("fetching clarity export", "table", source, "since", since)

	query := s.client.Query(fmt.Sprintf(queryTemplate,
		fmt.Sprintf("`%s.%s.%s`", s.cfg.Project, s.cfg.ClarityDataset, source)))
	query.Parameters = []bigquery.QueryParameter{
		{Name: "since", Value: since},
	}

	return s.copyRows(ctx, query, target, columns, false)
}

// copyRows streams query results into the target table through a bulk
// writer. When upsert is true the primary key columns take the place
// of the conflict target, which makes re-syncing a window safe.
func (s *Syncer) copyRows(ctx context.Context, query *bigquery.Query, target string, columns []string, upsert bool) (int64, error) {
	it, err := query.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("querying %s: %w", target, err)
	}

	var conflict []string
	if upsert {
		conflict = conflictColumns(target)
	}

	writer := warehouse.NewBulkWriter(ctx, s.warehouse, target, columns, conflict, nil)
	writer.Start(2)

	for {
		var values []bigquery.Value
		err := it.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			_ = writer.Close()
			return writer.Written(), fmt.Errorf("reading %s rows: %w", target, err)
		}

		row := make([]any, len(values))
		for i, v := range values {
			row[i] = normalizeValue(v)
		}

		select {
		case writer.WriteChannel <- row:
		case <-ctx.Done():
			_ = writer.Close()
			return writer.Written(), ctx.Err()
		}
	}

	if err := writer.Close(); err != nil {
		return writer.Written(), fmt.Errorf("writing %s rows: %w", target, err)
	}

	written := writer.Written()
	s.logger.Info("mirrored table", "table", target, "rows", written)
	return written, nil
}

// conflictColumns returns the key columns for the GSC export mirrors.
func conflictColumns(target string) []string {
	switch target {
	case "bq_gsc_site_impressions":
		return []string{"data_date", "query", "country", "device"}
	case "bq_gsc_url_impressions":
		return []string{"data_date", "url", "query"}
	default:
		return nil
	}
}

// normalizeValue converts BigQuery scalar values into types pgx can
// bind directly.
func normalizeValue(v bigquery.Value) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.UTC()
	default:
		return val
	}
}

// civilDate renders a timestamp as a BigQuery DATE literal string.
func civilDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
