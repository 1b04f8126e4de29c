package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/fatgrid/insights/cmd"
	"github.com/fatgrid/insights/internal/log"
)

// Version is populated by build flags with the current Git tag.
var Version = "dev"

func main() {
	app := &cli.App{
		Name:                 "insights",
		Usage:                "sync product data into the local warehouse and search meeting transcripts",
		UsageText:            "insights [--debug] command [command options]",
		Version:              Version,
		Commands:             cmd.Commands(),
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(cCtx *cli.Context) error {
			level := slog.LevelInfo
			if cCtx.Bool("debug") || os.Getenv("DEBUG") != "" {
				level = slog.LevelDebug
			}
			slog.SetDefault(log.New(log.Config{Level: level}))

			// Credentials live in .env during local use; absence is fine
			// when everything comes from the environment.
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				slog.Debug("no .env file loaded", "error", err)
			}
			return nil
		},
		ExitErrHandler: func(cCtx *cli.Context, err error) {
			if err == nil {
				return
			}
			fmt.Fprintf(cCtx.App.ErrWriter, "Error: %v\n", err)
			cli.OsExiter(1)
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
