package cmd

import (
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/fatgrid/insights/internal/warehouse"
)

var WarehouseCommand = &cli.Command{
	Name:      "warehouse",
	Usage:     "manage the local analytical store",
	UsageText: "insights warehouse [migrate|tables]",
	Subcommands: []*cli.Command{
		{
			Name:  "migrate",
			Usage: "apply pending schema migrations",
			Action: func(cCtx *cli.Context) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				if err := warehouse.Migrate(cfg.PostgresURL()); err != nil {
					return err
				}
				fmt.Println("schema is up to date")
				return nil
			},
		},
		{
			Name:  "tables",
			Usage: "list warehouse tables with row counts",
			Action: func(cCtx *cli.Context) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}

				wh, err := warehouse.Open(cCtx.Context, cfg.PostgresDSN(), slog.Default())
				if err != nil {
					return err
				}
				defer wh.Close()

				tables, err := wh.Tables(cCtx.Context)
				if err != nil {
					return err
				}

				for _, t := range tables {
					fmt.Printf("%-40s %12d\n", t.Name, t.Rows)
				}
				fmt.Printf("%d tables\n", len(tables))
				return nil
			},
		},
	},
}
