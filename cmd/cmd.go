// Package cmd wires the CLI commands: warehouse sync for each data
// source, transcript archive management, and warehouse maintenance.
package cmd

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/fatgrid/insights/internal/config"
	"github.com/fatgrid/insights/internal/warehouse"
)

// Commands returns the top-level command tree.
func Commands() []*cli.Command {
	return []*cli.Command{
		SyncCommand,
		TranscriptsCommand,
		WarehouseCommand,
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openWarehouse(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*warehouse.Warehouse, error) {
	if err := warehouse.Migrate(cfg.PostgresURL()); err != nil {
		return nil, err
	}
	return warehouse.Open(ctx, cfg.PostgresDSN(), logger)
}
