package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/fatgrid/insights/internal/config"
	"github.com/fatgrid/insights/internal/fathom"
	"github.com/fatgrid/insights/internal/rag"
	"github.com/fatgrid/insights/internal/transcript"
)

var forceFlag = &cli.BoolFlag{
	Name:  "force",
	Usage: "re-process recordings that were already handled",
}

var limitFlag = &cli.IntFlag{
	Name:    "limit",
	Aliases: []string{"k"},
	Usage:   "number of results to retrieve",
}

var TranscriptsCommand = &cli.Command{
	Name:      "transcripts",
	Usage:     "archive meeting transcripts and search them",
	UsageText: "insights transcripts [sync|embed|sync-embed|status|list|search|ask]",
	Subcommands: []*cli.Command{
		{
			Name:  "sync",
			Usage: "download new meeting transcripts into the local archive",
			Flags: []cli.Flag{forceFlag},
			Action: func(cCtx *cli.Context) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}

				syncer, err := archiveSyncer(cfg, slog.Default())
				if err != nil {
					return err
				}

				stats, err := syncer.Sync(cCtx.Context, cCtx.Bool("force"))
				if err != nil {
					return err
				}
				fmt.Printf("synced %d new, skipped %d, %d errors (%d meetings total)\n",
					stats.New, stats.Skipped, stats.Errors, stats.Total)
				return nil
			},
		},
		{
			Name:  "embed",
			Usage: "index archived transcripts for semantic search",
			Flags: []cli.Flag{forceFlag},
			Action: func(cCtx *cli.Context) error {
				return withSearchStack(cCtx, func(ctx context.Context, cfg *config.Config, store *rag.Store) error {
					syncer, err := indexSyncer(ctx, cfg, store, slog.Default())
					if err != nil {
						return err
					}

					stats, err := syncer.Embed(ctx, cCtx.Bool("force"))
					if err != nil {
						return err
					}
					fmt.Printf("embedded %d transcripts (%d chunks)\n", stats.Embedded, stats.TotalChunks)
					return nil
				})
			},
		},
		{
			Name:  "sync-embed",
			Usage: "sync then embed in one run",
			Flags: []cli.Flag{forceFlag},
			Action: func(cCtx *cli.Context) error {
				return withSearchStack(cCtx, func(ctx context.Context, cfg *config.Config, store *rag.Store) error {
					syncer, err := indexSyncer(ctx, cfg, store, slog.Default())
					if err != nil {
						return err
					}

					syncStats, embedStats, err := syncer.SyncAndEmbed(ctx, cCtx.Bool("force"))
					if err != nil {
						return err
					}
					fmt.Printf("synced %d new, embedded %d transcripts (%d chunks)\n",
						syncStats.New, embedStats.Embedded, embedStats.TotalChunks)
					return nil
				})
			},
		},
		{
			Name:  "status",
			Usage: "show sync and index progress",
			Action: func(cCtx *cli.Context) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}

				// The index is only consulted when the search stack is
				// configured, so status still works without warehouse or
				// Gemini credentials.
				if cfg.ValidateRAG() == nil {
					return withSearchStack(cCtx, func(ctx context.Context, cfg *config.Config, store *rag.Store) error {
						syncer, err := indexSyncer(ctx, cfg, store, slog.Default())
						if err != nil {
							return err
						}
						status, err := syncer.Status(ctx)
						if err != nil {
							return err
						}
						printStatus(status)
						fmt.Printf("indexed chunks: %d\n", status.IndexedChunks)
						return nil
					})
				}

				syncer, err := archiveSyncer(cfg, slog.Default())
				if err != nil {
					return err
				}

				status, err := syncer.Status(cCtx.Context)
				if err != nil {
					return err
				}
				printStatus(status)
				return nil
			},
		},
		{
			Name:  "list",
			Usage: "list archived meetings, newest first",
			Action: func(cCtx *cli.Context) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}

				syncer, err := archiveSyncer(cfg, slog.Default())
				if err != nil {
					return err
				}

				meetings, err := syncer.List()
				if err != nil {
					return err
				}

				for _, m := range meetings {
					mark := " "
					if m.Embedded {
						mark = "*"
					}
					fmt.Printf("%s %s  %s  (%s)\n", mark, m.Date, m.Title, m.RecordingID)
				}
				fmt.Printf("%d meetings, * = embedded\n", len(meetings))
				return nil
			},
		},
		{
			Name:      "search",
			Usage:     "find transcript passages matching a query",
			ArgsUsage: "QUERY",
			Flags:     []cli.Flag{limitFlag},
			Action: func(cCtx *cli.Context) error {
				query := cCtx.Args().First()
				if query == "" {
					return fmt.Errorf("a search query is required")
				}

				return withSearchStack(cCtx, func(ctx context.Context, cfg *config.Config, store *rag.Store) error {
					limit := cCtx.Int("limit")
					if limit <= 0 {
						limit = cfg.RAGTopK
					}

					results, err := store.Search(ctx, query, limit)
					if err != nil {
						return err
					}

					for _, r := range results {
						fmt.Printf("[%s - %s] (score %.3f)\n%s\n\n", r.Meeting, r.Date, r.Score, r.Text)
					}
					if len(results) == 0 {
						fmt.Println("no matches")
					}
					return nil
				})
			},
		},
		{
			Name:      "ask",
			Usage:     "answer a question from the indexed transcripts",
			ArgsUsage: "QUESTION",
			Flags:     []cli.Flag{limitFlag},
			Action: func(cCtx *cli.Context) error {
				question := cCtx.Args().First()
				if question == "" {
					return fmt.Errorf("a question is required")
				}

				return withSearchStack(cCtx, func(ctx context.Context, cfg *config.Config, store *rag.Store) error {
					answerer, err := rag.NewAnswerer(ctx, cfg.GeminiAPIKey, cfg.ChatModel, store)
					if err != nil {
						return err
					}

					limit := cCtx.Int("limit")
					if limit <= 0 {
						limit = cfg.RAGTopK
					}

					answer, err := answerer.Ask(ctx, question, limit)
					if err != nil {
						return err
					}
					fmt.Println(answer)
					return nil
				})
			},
		},
	},
}

// archiveSyncer builds a transcript syncer without an index, enough for
// sync, status and list.
func archiveSyncer(cfg *config.Config, logger *slog.Logger) (*transcript.Syncer, error) {
	if err := cfg.ValidateFathom(); err != nil {
		return nil, err
	}

	source, err := fathom.New(cfg.FathomAPIKey, logger)
	if err != nil {
		return nil, err
	}

	return transcript.NewSyncer(source, nil, cfg.TranscriptsDir(), cfg.StateFile(), cfg.ChunkTurns, logger)
}

// indexSyncer builds a transcript syncer backed by the vector index.
func indexSyncer(_ context.Context, cfg *config.Config, store *rag.Store, logger *slog.Logger) (*transcript.Syncer, error) {
	if err := cfg.ValidateFathom(); err != nil {
		return nil, err
	}

	source, err := fathom.New(cfg.FathomAPIKey, logger)
	if err != nil {
		return nil, err
	}

	return transcript.NewSyncer(source, store, cfg.TranscriptsDir(), cfg.StateFile(), cfg.ChunkTurns, logger)
}

// withSearchStack opens the warehouse and builds the embedding store.
func withSearchStack(cCtx *cli.Context, fn func(context.Context, *config.Config, *rag.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateRAG(); err != nil {
		return err
	}

	logger := slog.Default()
	ctx := cCtx.Context

	wh, err := openWarehouse(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer wh.Close()

	embedder, err := rag.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedderModel)
	if err != nil {
		return err
	}

	store, err := rag.NewStore(wh.Pool, embedder, logger)
	if err != nil {
		return err
	}

	return fn(ctx, cfg, store)
}

func printStatus(status transcript.Status) {
	fmt.Printf("last sync:      %s\n", orNever(status.LastSync))
	fmt.Printf("synced:         %d\n", status.TotalSynced)
	fmt.Printf("embedded:       %d\n", status.TotalEmbedded)
	fmt.Printf("pending embed:  %d\n", status.PendingEmbed)
}

func orNever(s string) string {
	if s == "" {
		return "never"
	}
	return s
}
