package transcript

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatgrid/insights/internal/fathom"
	"github.com/fatgrid/insights/internal/log"
	"github.com/fatgrid/insights/internal/rag"
)

type fakeSource struct {
	meetings        []fathom.Meeting
	transcripts     map[int64][]fathom.Entry
	transcriptCalls int
}

func (f *fakeSource) AllMeetings(context.Context, fathom.ListOptions) ([]fathom.Meeting, error) {
	return f.meetings, nil
}

func (f *fakeSource) Transcript(_ context.Context, recordingID int64) ([]fathom.Entry, error) {
	f.transcriptCalls++
	entries, ok := f.transcripts[recordingID]
	if !ok {
		return nil, fmt.Errorf("recording %d not found", recordingID)
	}
	return entries, nil
}

type fakeIndex struct {
	chunks  int64
	cleared bool
}

func (f *fakeIndex) Index(_ context.Context, chunks []rag.Chunk, _ string) (int, error) {
	f.chunks += int64(len(chunks))
	return len(chunks), nil
}

func (f *fakeIndex) Count(context.Context) (int64, error) { return f.chunks, nil }

func (f *fakeIndex) Clear(context.Context) error {
	f.cleared = true
	f.chunks = 0
	return nil
}

func testEntries(n int) []fathom.Entry {
	entries := make([]fathom.Entry, n)
	for i := range entries {
		entries[i] = fathom.Entry{
			Speaker:   fathom.Speaker{DisplayName: "Ana"},
			Text:      fmt.Sprintf("turn %d", i),
			Timestamp: fmt.Sprintf("00:%02d:00", i),
		}
	}
	return entries
}

func newTestSyncer(t *testing.T, source *fakeSource, index *fakeIndex) (*Syncer, string) {
	t.Helper()
	dir := t.TempDir()
	syncer, err := NewSyncer(source, index,
		filepath.Join(dir, "transcripts"),
		filepath.Join(dir, "sync_state.json"),
		15, log.NewNop())
	if err != nil {
		t.Fatalf("NewSyncer() error = %v", err)
	}
	return syncer, dir
}

func TestSyncWritesArchivesAndState(t *testing.T) {
	source := &fakeSource{
		meetings: []fathom.Meeting{
			{RecordingID: 1, MeetingTitle: "Kickoff", CreatedAt: "2025-06-01T10:00:00Z"},
			{RecordingID: 2, MeetingTitle: "Demo", CreatedAt: "2025-06-02T10:00:00Z"},
		},
		transcripts: map[int64][]fathom.Entry{
			1: testEntries(2),
			2: testEntries(3),
		},
	}
	syncer, dir := newTestSyncer(t, source, &fakeIndex{})

	stats, err := syncer.Sync(context.Background(), false)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if stats.New != 2 || stats.Skipped != 0 || stats.Errors != 0 {
		t.Errorf("stats = %+v", stats)
	}

	archive := filepath.Join(dir, "transcripts", "2025-06-01_1_Kickoff.txt")
	if _, err := os.Stat(archive); err != nil {
		t.Errorf("archive not written: %v", err)
	}

	state, err := LoadState(filepath.Join(dir, "sync_state.json"))
	if err != nil {
		t.Fatal(err)
	}
	if state.LastSync == "" {
		t.Error("LastSync not set")
	}
	rec := state.SyncedRecordings["1"]
	if rec == nil || rec.Embedded || rec.Title != "Kickoff" {
		t.Errorf("record = %+v", rec)
	}
}

func TestSyncSkipsAlreadySynced(t *testing.T) {
	source := &fakeSource{
		meetings: []fathom.Meeting{
			{RecordingID: 1, MeetingTitle: "Kickoff", CreatedAt: "2025-06-01T10:00:00Z"},
		},
		transcripts: map[int64][]fathom.Entry{1: testEntries(2)},
	}
	syncer, _ := newTestSyncer(t, source, &fakeIndex{})

	if _, err := syncer.Sync(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	stats, err := syncer.Sync(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Skipped != 1 || stats.New != 0 {
		t.Errorf("second run stats = %+v", stats)
	}
	if source.transcriptCalls != 1 {
		t.Errorf("transcript fetched %d times, want 1", source.transcriptCalls)
	}
}

func TestSyncForceRefetches(t *testing.T) {
	source := &fakeSource{
		meetings: []fathom.Meeting{
			{RecordingID: 1, MeetingTitle: "Kickoff", CreatedAt: "2025-06-01T10:00:00Z"},
		},
		transcripts: map[int64][]fathom.Entry{1: testEntries(2)},
	}
	syncer, _ := newTestSyncer(t, source, &fakeIndex{})

	if _, err := syncer.Sync(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	stats, err := syncer.Sync(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if stats.New != 1 || stats.Skipped != 0 {
		t.Errorf("forced run stats = %+v", stats)
	}
}

func TestSyncCountsErrorsAndContinues(t *testing.T) {
	source := &fakeSource{
		meetings: []fathom.Meeting{
			{RecordingID: 1, MeetingTitle: "Broken", CreatedAt: "2025-06-01T10:00:00Z"},
			{RecordingID: 2, MeetingTitle: "Fine", CreatedAt: "2025-06-02T10:00:00Z"},
		},
		transcripts: map[int64][]fathom.Entry{2: testEntries(1)},
	}
	syncer, _ := newTestSyncer(t, source, &fakeIndex{})

	stats, err := syncer.Sync(context.Background(), false)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if stats.Errors != 1 || stats.New != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestEmbedMarksRecordsAndSkipsEmbedded(t *testing.T) {
	source := &fakeSource{
		meetings: []fathom.Meeting{
			{RecordingID: 1, MeetingTitle: "Kickoff", CreatedAt: "2025-06-01T10:00:00Z"},
		},
		transcripts: map[int64][]fathom.Entry{1: testEntries(4)},
	}
	index := &fakeIndex{}
	syncer, dir := newTestSyncer(t, source, index)

	if _, err := syncer.Sync(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	stats, err := syncer.Embed(context.Background(), false)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if stats.Embedded != 1 || stats.TotalChunks == 0 {
		t.Errorf("stats = %+v", stats)
	}

	state, _ := LoadState(filepath.Join(dir, "sync_state.json"))
	if !state.SyncedRecordings["1"].Embedded {
		t.Error("record not marked embedded")
	}

	// Second run has nothing to do.
	stats, err = syncer.Embed(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Embedded != 0 {
		t.Errorf("re-run embedded %d, want 0", stats.Embedded)
	}
}

func TestEmbedForceClearsIndex(t *testing.T) {
	source := &fakeSource{
		meetings: []fathom.Meeting{
			{RecordingID: 1, MeetingTitle: "Kickoff", CreatedAt: "2025-06-01T10:00:00Z"},
		},
		transcripts: map[int64][]fathom.Entry{1: testEntries(4)},
	}
	index := &fakeIndex{}
	syncer, _ := newTestSyncer(t, source, index)

	if _, _, err := syncer.SyncAndEmbed(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	stats, err := syncer.Embed(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if !index.cleared {
		t.Error("index not cleared on force")
	}
	if stats.Embedded != 1 {
		t.Errorf("force re-embed embedded %d, want 1", stats.Embedded)
	}
}

func TestEmbedSkipsMissingFiles(t *testing.T) {
	syncer, dir := newTestSyncer(t, &fakeSource{}, &fakeIndex{})

	state := NewState()
	state.SyncedRecordings["9"] = &RecordState{
		File:  filepath.Join(dir, "transcripts", "gone.txt"),
		Title: "Gone",
		Date:  "2025-01-01T00:00:00Z",
	}
	if err := state.Save(filepath.Join(dir, "sync_state.json")); err != nil {
		t.Fatal(err)
	}

	stats, err := syncer.Embed(context.Background(), false)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if stats.Embedded != 0 {
		t.Errorf("embedded %d, want 0", stats.Embedded)
	}
}

func TestStatusAndList(t *testing.T) {
	source := &fakeSource{
		meetings: []fathom.Meeting{
			{RecordingID: 1, MeetingTitle: "Older", CreatedAt: "2025-06-01T10:00:00Z"},
			{RecordingID: 2, MeetingTitle: "Newer", CreatedAt: "2025-06-02T10:00:00Z"},
		},
		transcripts: map[int64][]fathom.Entry{
			1: testEntries(1),
			2: testEntries(1),
		},
	}
	syncer, _ := newTestSyncer(t, source, &fakeIndex{})

	if _, err := syncer.Sync(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	status, err := syncer.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.TotalSynced != 2 || status.TotalEmbedded != 0 || status.PendingEmbed != 2 {
		t.Errorf("status = %+v", status)
	}

	infos, err := syncer.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d transcripts, want 2", len(infos))
	}
	if infos[0].Title != "Newer" {
		t.Errorf("first listed = %q, want newest first", infos[0].Title)
	}
}
