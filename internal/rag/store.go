package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// embedBatchSize bounds how many chunks go to the embedding API per call.
const embedBatchSize = 50

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const insertDocumentSQL = `INSERT INTO documents (id, content, embedding, metadata)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content,
		embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata`

const searchDocumentsSQL = `SELECT content, metadata, 1 - (embedding <=> $1) AS score
	FROM documents
	ORDER BY embedding <=> $1
	LIMIT $2`

// Result is one retrieved chunk with its similarity score.
type Result struct {
	Text    string
	Meeting string
	Date    string
	Score   float64
}

// Store manages the transcript chunk index backed by PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db       querier
	embedder Embedder
	logger   *slog.Logger
}

// NewStore creates a chunk Store.
func NewStore(db querier, embedder Embedder, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, embedder: embedder, logger: logger}, nil
}

// documentMetadata is the JSON payload stored alongside each chunk.
type documentMetadata struct {
	Meeting    string `json:"meeting"`
	Date       string `json:"date"`
	SourceFile string `json:"source_file"`
}

// Index embeds chunks and upserts them into the documents table.
// sourceFile is recorded in each chunk's metadata.
func (s *Store) Index(ctx context.Context, chunks []Chunk, sourceFile string) (int, error) {
	indexed := 0

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := s.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return indexed, fmt.Errorf("embedding chunks: %w", err)
		}

		for i, c := range batch {
			meta, err := json.Marshal(documentMetadata{
				Meeting:    c.Meeting,
				Date:       c.Date,
				SourceFile: sourceFile,
			})
			if err != nil {
				return indexed, fmt.Errorf("marshaling metadata: %w", err)
			}

			_, err = s.db.Exec(ctx, insertDocumentSQL,
				uuid.NewString(), c.Text, pgvector.NewVector(vectors[i]), meta)
			if err != nil {
				return indexed, fmt.Errorf("inserting document: %w", err)
			}
			indexed++
		}
	}

	s.logger.Debug("indexed transcript chunks", "file", sourceFile, "chunks", indexed)
	return indexed, nil
}

// Search retrieves the limit most similar chunks to the query.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.db.Query(ctx, searchDocumentsSQL, pgvector.NewVector(vec), limit)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			content string
			rawMeta []byte
			score   float64
		)
		if err := rows.Scan(&content, &rawMeta, &score); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}

		var meta documentMetadata
		if err := json.Unmarshal(rawMeta, &meta); err != nil {
			s.logger.Warn("skipping document with bad metadata", "error", err)
			continue
		}

		results = append(results, Result{
			Text:    content,
			Meeting: meta.Meeting,
			Date:    meta.Date,
			Score:   score,
		})
	}

	return results, rows.Err()
}

// Count returns the number of indexed chunks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

// Clear removes every indexed chunk.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `TRUNCATE documents`); err != nil {
		return fmt.Errorf("clearing documents: %w", err)
	}
	return nil
}
