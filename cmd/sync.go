package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/fatgrid/insights/internal/bq"
	"github.com/fatgrid/insights/internal/clickhouse"
	"github.com/fatgrid/insights/internal/clickup"
	"github.com/fatgrid/insights/internal/config"
	"github.com/fatgrid/insights/internal/ga4"
	"github.com/fatgrid/insights/internal/gsc"
	"github.com/fatgrid/insights/internal/mongodb"
	"github.com/fatgrid/insights/internal/warehouse"
)

var daysFlag = &cli.IntFlag{
	Name:    "days",
	Aliases: []string{"n"},
	Usage:   "date window for report sources, in days ending yesterday",
	Value:   30,
}

var fullFlag = &cli.BoolFlag{
	Name:  "full",
	Usage: "ignore previous sync state and refresh everything",
}

// Search Console retains sixteen months of data; GA4 report syncs cap
// at a year per run.
const (
	gscFullDays = 16 * 30
	ga4FullDays = 365
)

// reportDays resolves the window for report sources from --days/--full.
func reportDays(cCtx *cli.Context, fullDays int) int {
	if cCtx.Bool("full") {
		return fullDays
	}
	return cCtx.Int("days")
}

var SyncCommand = &cli.Command{
	Name:      "sync",
	Usage:     "copy data from a source system into the warehouse",
	UsageText: "insights sync [mongo|clickhouse|clickup|gsc|ga4|bigquery|all] [--days N] [--full]",
	Subcommands: []*cli.Command{
		{
			Name:  "mongo",
			Usage: "refresh the application database mirror",
			Action: func(cCtx *cli.Context) error {
				return withWarehouse(cCtx, func(ctx context.Context, cfg *config.Config, wh *warehouse.Warehouse, logger *slog.Logger) error {
					return syncMongo(ctx, cfg, wh, logger)
				})
			},
		},
		{
			Name:  "clickhouse",
			Usage: "pull new activity log rows from the production log store",
			Action: func(cCtx *cli.Context) error {
				return withWarehouse(cCtx, func(ctx context.Context, cfg *config.Config, wh *warehouse.Warehouse, logger *slog.Logger) error {
					return syncClickHouse(ctx, cfg, wh, logger)
				})
			},
		},
		{
			Name:  "clickup",
			Usage: "sync order tasks, comments and attachments",
			Flags: []cli.Flag{fullFlag},
			Action: func(cCtx *cli.Context) error {
				full := cCtx.Bool("full")
				return withWarehouse(cCtx, func(ctx context.Context, cfg *config.Config, wh *warehouse.Warehouse, logger *slog.Logger) error {
					return syncClickUp(ctx, cfg, wh, logger, full)
				})
			},
		},
		{
			Name:  "gsc",
			Usage: "sync Search Console performance reports",
			Flags: []cli.Flag{daysFlag, fullFlag},
			Action: func(cCtx *cli.Context) error {
				days := reportDays(cCtx, gscFullDays)
				return withWarehouse(cCtx, func(ctx context.Context, cfg *config.Config, wh *warehouse.Warehouse, logger *slog.Logger) error {
					return syncGSC(ctx, cfg, wh, logger, days)
				})
			},
		},
		{
			Name:  "ga4",
			Usage: "sync Google Analytics traffic reports",
			Flags: []cli.Flag{daysFlag, fullFlag},
			Action: func(cCtx *cli.Context) error {
				days := reportDays(cCtx, ga4FullDays)
				return withWarehouse(cCtx, func(ctx context.Context, cfg *config.Config, wh *warehouse.Warehouse, logger *slog.Logger) error {
					return syncGA4(ctx, cfg, wh, logger, days)
				})
			},
		},
		{
			Name:  "bigquery",
			Usage: "mirror the Search Console bulk export and Clarity snapshots",
			Action: func(cCtx *cli.Context) error {
				return withWarehouse(cCtx, func(ctx context.Context, cfg *config.Config, wh *warehouse.Warehouse, logger *slog.Logger) error {
					return syncBigQuery(ctx, cfg, wh, logger)
				})
			},
		},
		{
			Name:  "all",
			Usage: "run every configured source in sequence",
			Flags: []cli.Flag{daysFlag, fullFlag},
			Action: func(cCtx *cli.Context) error {
				days := cCtx.Int("days")
				full := cCtx.Bool("full")
				return withWarehouse(cCtx, func(ctx context.Context, cfg *config.Config, wh *warehouse.Warehouse, logger *slog.Logger) error {
					return syncAll(ctx, cfg, wh, logger, days, full)
				})
			},
		},
	},
}

// withWarehouse loads configuration, opens the warehouse and hands both
// to the command body.
func withWarehouse(cCtx *cli.Context, fn func(context.Context, *config.Config, *warehouse.Warehouse, *slog.Logger) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.Default()
	ctx := cCtx.Context

	wh, err := openWarehouse(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer wh.Close()

	return fn(ctx, cfg, wh, logger)
}

func syncMongo(ctx context.Context, cfg *config.Config, wh *warehouse.Warehouse, logger *slog.Logger) error {
	if err := cfg.ValidateMongo(); err != nil {
		return err
	}

	syncer, err := mongodb.NewSyncer(ctx, cfg.MongoURI, cfg.MongoDatabase, wh, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := syncer.Close(ctx); err != nil {
			logger.Warn("closing mongo connection", "error", err)
		}
	}()

	rows, err := syncer.Sync(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("mongo: %d rows\n", rows)
	return nil
}

func syncClickHouse(ctx context.Context, cfg *config.Config, wh *warehouse.Warehouse, logger *slog.Logger) error {
	if err := cfg.ValidateClickHouse(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", cfg.ClickHouseHost, cfg.ClickHousePort)
	client, err := clickhouse.Connect(ctx, addr, cfg.ClickHouseDB, cfg.ClickHouseUser, cfg.ClickHousePassword, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	syncer, err := clickhouse.NewSyncer(client, wh, logger)
	if err != nil {
		return err
	}

	rows, err := syncer.Sync(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("clickhouse: %d rows\n", rows)
	return nil
}

func syncClickUp(ctx context.Context, cfg *config.Config, wh *warehouse.Warehouse, logger *slog.Logger, full bool) error {
	if err := cfg.ValidateClickUp(); err != nil {
		return err
	}

	client, err := clickup.NewClient(cfg.ClickUpAPIKey, logger)
	if err != nil {
		return err
	}

	syncer, err := clickup.NewSyncer(client, cfg.ClickUpOrdersList, wh, logger)
	if err != nil {
		return err
	}

	stats, err := syncer.Sync(ctx, full)
	if err != nil {
		return err
	}
	fmt.Printf("clickup: %d new, %d updated of %d tasks\n", stats.New, stats.Updated, stats.Total)
	return nil
}

func syncGSC(ctx context.Context, cfg *config.Config, wh *warehouse.Warehouse, logger *slog.Logger, days int) error {
	if err := cfg.ValidateGoogle(); err != nil {
		return err
	}
	if cfg.GSCSiteURL == "" {
		return fmt.Errorf("GSC_SITE_URL is required")
	}

	syncer, err := gsc.NewSyncer(ctx, cfg.GoogleCredentialsFile, cfg.GSCSiteURL, wh, logger)
	if err != nil {
		return err
	}

	rows, err := syncer.Sync(ctx, gsc.LastDays(time.Now(), days))
	if err != nil {
		return err
	}
	fmt.Printf("gsc: %d rows\n", rows)
	return nil
}

func syncGA4(ctx context.Context, cfg *config.Config, wh *warehouse.Warehouse, logger *slog.Logger, days int) error {
	if err := cfg.ValidateGoogle(); err != nil {
		return err
	}
	if cfg.GA4PropertyID == "" {
		return fmt.Errorf("GA4_PROPERTY_ID is required")
	}

	syncer, err := ga4.NewSyncer(ctx, cfg.GoogleCredentialsFile, cfg.GA4PropertyID, wh, logger)
	if err != nil {
		return err
	}

	rows, err := syncer.Sync(ctx, ga4.LastDays(time.Now(), days))
	if err != nil {
		return err
	}
	fmt.Printf("ga4: %d rows\n", rows)
	return nil
}

func syncBigQuery(ctx context.Context, cfg *config.Config, wh *warehouse.Warehouse, logger *slog.Logger) error {
	if err := cfg.ValidateGoogle(); err != nil {
		return err
	}
	if cfg.BigQueryProject == "" {
		return fmt.Errorf("BIGQUERY_PROJECT is required")
	}

	syncer, err := bq.NewSyncer(ctx, bq.Config{
		CredentialsFile: cfg.GoogleCredentialsFile,
		Project:         cfg.BigQueryProject,
		GSCDataset:      cfg.BigQueryGSCDataset,
		ClarityDataset:  cfg.BigQueryClarity,
	}, wh, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := syncer.Close(); err != nil {
			logger.Warn("closing bigquery client", "error", err)
		}
	}()

	rows, err := syncer.Sync(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("bigquery: %d rows\n", rows)
	return nil
}

// syncAll runs every source whose credentials are configured and skips
// the rest, so one missing API key does not block the daily run.
func syncAll(ctx context.Context, cfg *config.Config, wh *warehouse.Warehouse, logger *slog.Logger, days int, full bool) error {
	type step struct {
		name      string
		validator func() error
		run       func() error
	}

	gscDays, ga4Days := days, days
	if full {
		gscDays, ga4Days = gscFullDays, ga4FullDays
	}

	steps := []step{
		{"mongo", cfg.ValidateMongo, func() error { return syncMongo(ctx, cfg, wh, logger) }},
		{"clickhouse", cfg.ValidateClickHouse, func() error { return syncClickHouse(ctx, cfg, wh, logger) }},
		{"clickup", cfg.ValidateClickUp, func() error { return syncClickUp(ctx, cfg, wh, logger, full) }},
		{"gsc", cfg.ValidateGoogle, func() error { return syncGSC(ctx, cfg, wh, logger, gscDays) }},
		{"ga4", cfg.ValidateGoogle, func() error { return syncGA4(ctx, cfg, wh, logger, ga4Days) }},
		{"bigquery", cfg.ValidateGoogle, func() error { return syncBigQuery(ctx, cfg, wh, logger) }},
	}

	var failed []string
	for _, s := range steps {
		if err := s.validator(); err != nil {
			logger.Info("skipping source, not configured", "source", s.name, "reason", err)
			continue
		}
		if err := s.run(); err != nil {
			logger.Error("source sync failed", "source", s.name, "error", err)
			failed = append(failed, s.name)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("sync failed for: %v", failed)
	}
	return nil
}
