package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/fatgrid/insights/internal/log"
)

type mockEmbedder struct {
	docCalls   int
	queryCalls int
	fail       bool
}

func (m *mockEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	m.docCalls++
	if m.fail {
		return nil, fmt.Errorf("embed unavailable")
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{float32(i), 1}
	}
	return vecs, nil
}

func (m *mockEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	m.queryCalls++
	if m.fail {
		return nil, fmt.Errorf("embed unavailable")
	}
	return []float32{0.5, 0.5}, nil
}

type execCall struct {
	sql  string
	args []any
}

// mockQuerier records Exec calls and serves canned Search rows.
type mockQuerier struct {
	execs []execCall
	rows  []searchRow
}

type searchRow struct {
	content string
	meta    []byte
	score   float64
}

func (m *mockQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.execs = append(m.execs, execCall{sql: sql, args: args})
	return pgconn.CommandTag{}, nil
}

func (m *mockQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return &mockRows{rows: m.rows, idx: -1}, nil
}

func (m *mockQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	return mockRow{count: int64(len(m.rows))}
}

type mockRows struct {
	rows []searchRow
	idx  int
}

func (r *mockRows) Close()                                       {}
func (r *mockRows) Err() error                                   { return nil }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}
func (r *mockRows) Scan(dest ...any) error {
	row := r.rows[r.idx]
	*dest[0].(*string) = row.content
	*dest[1].(*[]byte) = row.meta
	*dest[2].(*float64) = row.score
	return nil
}
func (r *mockRows) Values() ([]any, error) { return nil, nil }
func (r *mockRows) RawValues() [][]byte    { return nil }
func (r *mockRows) Conn() *pgx.Conn        { return nil }

type mockRow struct{ count int64 }

func (r mockRow) Scan(dest ...any) error {
	*dest[0].(*int64) = r.count
	return nil
}

func TestStoreIndex(t *testing.T) {
	db := &mockQuerier{}
	embedder := &mockEmbedder{}
	store, err := NewStore(db, embedder, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	chunks := []Chunk{
		{Text: "chunk one", Meeting: "Weekly Sync", Date: "2025-06-02"},
		{Text: "chunk two", Meeting: "Weekly Sync", Date: "2025-06-02"},
	}

	indexed, err := store.Index(context.Background(), chunks, "transcripts/a.txt")
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if indexed != 2 {
		t.Errorf("indexed = %d, want 2", indexed)
	}
	if embedder.docCalls != 1 {
		t.Errorf("embedder called %d times, want 1 batched call", embedder.docCalls)
	}
	if len(db.execs) != 2 {
		t.Fatalf("got %d inserts, want 2", len(db.execs))
	}

	// Row args: id, content, vector, metadata.
	args := db.execs[0].args
	if args[1] != "chunk one" {
		t.Errorf("content arg = %v", args[1])
	}
	if _, ok := args[2].(pgvector.Vector); !ok {
		t.Errorf("embedding arg type = %T, want pgvector.Vector", args[2])
	}
	var meta documentMetadata
	if err := json.Unmarshal(args[3].([]byte), &meta); err != nil {
		t.Fatalf("metadata not valid JSON: %v", err)
	}
	if meta.Meeting != "Weekly Sync" || meta.SourceFile != "transcripts/a.txt" {
		t.Errorf("metadata = %+v", meta)
	}
}

func TestStoreIndexEmbedFailure(t *testing.T) {
	db := &mockQuerier{}
	store, _ := NewStore(db, &mockEmbedder{fail: true}, log.NewNop())

	if _, err := store.Index(context.Background(), []Chunk{{Text: "x"}}, "f.txt"); err == nil {
		t.Fatal("expected error when embedding fails")
	}
	if len(db.execs) != 0 {
		t.Errorf("no rows should be written when embedding fails, got %d", len(db.execs))
	}
}

func TestStoreSearch(t *testing.T) {
	meta, _ := json.Marshal(documentMetadata{Meeting: "Demo", Date: "2025-01-10", SourceFile: "f.txt"})
	db := &mockQuerier{rows: []searchRow{
		{content: "[00:00:01] A: hi", meta: meta, score: 0.91},
	}}
	embedder := &mockEmbedder{}
	store, _ := NewStore(db, embedder, log.NewNop())

	results, err := store.Search(context.Background(), "greeting", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if embedder.queryCalls != 1 {
		t.Errorf("query embedded %d times, want 1", embedder.queryCalls)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.Meeting != "Demo" || r.Date != "2025-01-10" || r.Score != 0.91 {
		t.Errorf("result = %+v", r)
	}
}

func TestStoreCount(t *testing.T) {
	db := &mockQuerier{rows: make([]searchRow, 3)}
	store, _ := NewStore(db, &mockEmbedder{}, log.NewNop())

	count, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 3 {
		t.Errorf("Count() = %d, want 3", count)
	}
}
