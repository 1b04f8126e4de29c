package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/fatgrid/insights/internal/fathom"
	"github.com/fatgrid/insights/internal/rag"
)

// MeetingSource fetches meetings and their transcripts.
type MeetingSource interface {
	AllMeetings(ctx context.Context, opts fathom.ListOptions) ([]fathom.Meeting, error)
	Transcript(ctx context.Context, recordingID int64) ([]fathom.Entry, error)
}

// Index stores transcript chunks for retrieval.
type Index interface {
	Index(ctx context.Context, chunks []rag.Chunk, sourceFile string) (int, error)
	Count(ctx context.Context) (int64, error)
	Clear(ctx context.Context) error
}

// SyncStats summarizes one sync run.
type SyncStats struct {
	New     int
	Skipped int
	Errors  int
	Total   int
}

// EmbedStats summarizes one embed run.
type EmbedStats struct {
	Embedded    int
	TotalChunks int64
}

// Status reports the overall sync and embed state.
type Status struct {
	LastSync      string
	TotalSynced   int
	TotalEmbedded int
	PendingEmbed  int
	IndexedChunks int64
}

// Info describes one synced transcript.
type Info struct {
	RecordingID string
	Title       string
	Date        string
	Embedded    bool
}

// Syncer copies meeting transcripts from the recording service into the
// local archive and embeds them into the retrieval index. Progress is
// checkpointed after every recording, so an interrupted run resumes
// where it stopped.
type Syncer struct {
	source         MeetingSource
	index          Index
	transcriptsDir string
	statePath      string
	chunkTurns     int
	logger         *slog.Logger
}

// NewSyncer creates a Syncer. index may be nil when only the sync phase
// is used.
func NewSyncer(source MeetingSource, index Index, transcriptsDir, statePath string, chunkTurns int, logger *slog.Logger) (*Syncer, error) {
	if source == nil {
		return nil, fmt.Errorf("meeting source is required")
	}
	if transcriptsDir == "" || statePath == "" {
		return nil, fmt.Errorf("transcripts dir and state path are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		source:         source,
		index:          index,
		transcriptsDir: transcriptsDir,
		statePath:      statePath,
		chunkTurns:     chunkTurns,
		logger:         logger,
	}, nil
}

// Sync fetches transcripts for meetings not yet in the local archive.
// With force, every meeting is re-fetched.
func (s *Syncer) Sync(ctx context.Context, force bool) (SyncStats, error) {
	state, err := LoadState(s.statePath)
	if err != nil {
		return SyncStats{}, err
	}

	if err := os.MkdirAll(s.transcriptsDir, 0o755); err != nil {
		return SyncStats{}, fmt.Errorf("creating transcripts dir: %w", err)
	}

	s.logger.Info("fetching meetings")
	meetings, err := s.source.AllMeetings(ctx, fathom.ListOptions{})
	if err != nil {
		return SyncStats{}, fmt.Errorf("fetching meetings: %w", err)
	}

	var stats SyncStats
	total := len(meetings)
	s.logger.Info("found meetings", "total", total)

	for i, meeting := range meetings {
		recordingID := strconv.FormatInt(meeting.RecordingID, 10)
		title := meeting.DisplayTitle()

		if _, synced := state.SyncedRecordings[recordingID]; synced && !force {
			stats.Skipped++
			s.logger.Debug("skipping synced recording",
				"progress", fmt.Sprintf("%d/%d", i+1, total),
				"title", title)
			continue
		}

		s.logger.Info("syncing transcript",
			"progress", fmt.Sprintf("%d/%d", i+1, total),
			"title", title,
			"date", meeting.CreatedAt)

		entries, err := s.source.Transcript(ctx, meeting.RecordingID)
		if err != nil {
			stats.Errors++
			s.logger.Error("failed to fetch transcript",
				"recording_id", recordingID, "error", err)
			continue
		}
		if len(entries) == 0 {
			s.logger.Info("no transcript available", "recording_id", recordingID)
			continue
		}

		path := filepath.Join(s.transcriptsDir,
			ArchiveFileName(meeting.RecordingID, title, meeting.CreatedAt))
		if err := os.WriteFile(path, []byte(FormatArchive(meeting, entries)), 0o644); err != nil {
			stats.Errors++
			s.logger.Error("failed to write transcript",
				"recording_id", recordingID, "error", err)
			continue
		}

		// Checkpoint after each recording so a crash loses at most one.
		state.SyncedRecordings[recordingID] = &RecordState{
			SyncedAt: time.Now().Format(time.RFC3339),
			Embedded: false,
			File:     path,
			Title:    title,
			Date:     meeting.CreatedAt,
		}
		if err := state.Save(s.statePath); err != nil {
			return stats, err
		}
		stats.New++
	}

	state.LastSync = time.Now().Format(time.RFC3339)
	if err := state.Save(s.statePath); err != nil {
		return stats, err
	}

	stats.Total = len(state.SyncedRecordings)
	s.logger.Info("sync complete",
		"new", stats.New, "skipped", stats.Skipped, "errors", stats.Errors)
	return stats, nil
}

// Embed chunks and indexes every synced transcript not yet embedded.
// With force, the index is cleared and everything is re-embedded.
func (s *Syncer) Embed(ctx context.Context, force bool) (EmbedStats, error) {
	if s.index == nil {
		return EmbedStats{}, fmt.Errorf("no index configured")
	}

	state, err := LoadState(s.statePath)
	if err != nil {
		return EmbedStats{}, err
	}

	if force {
		s.logger.Info("clearing index for re-embed")
		if err := s.index.Clear(ctx); err != nil {
			return EmbedStats{}, fmt.Errorf("clearing index: %w", err)
		}
		for _, rec := range state.SyncedRecordings {
			rec.Embedded = false
		}
		if err := state.Save(s.statePath); err != nil {
			return EmbedStats{}, err
		}
	}

	var pending []string
	for id, rec := range state.SyncedRecordings {
		if !rec.Embedded {
			pending = append(pending, id)
		}
	}
	sort.Strings(pending)

	if len(pending) == 0 {
		s.logger.Info("all transcripts already embedded")
		count, err := s.index.Count(ctx)
		if err != nil {
			return EmbedStats{}, err
		}
		return EmbedStats{TotalChunks: count}, nil
	}

	var stats EmbedStats
	total := len(pending)
	s.logger.Info("embedding transcripts", "pending", total)

	for i, id := range pending {
		rec := state.SyncedRecordings[id]

		content, err := os.ReadFile(rec.File)
		if err != nil {
			s.logger.Warn("transcript file missing, skipping",
				"progress", fmt.Sprintf("%d/%d", i+1, total),
				"recording_id", id, "file", rec.File)
			continue
		}

		s.logger.Info("embedding transcript",
			"progress", fmt.Sprintf("%d/%d", i+1, total),
			"title", rec.Title, "date", rec.Date)

		chunks := rag.ChunkTranscript(string(content), s.chunkTurns)
		if _, err := s.index.Index(ctx, chunks, rec.File); err != nil {
			return stats, fmt.Errorf("indexing %s: %w", rec.File, err)
		}

		rec.Embedded = true
		if err := state.Save(s.statePath); err != nil {
			return stats, err
		}
		stats.Embedded++
	}

	stats.TotalChunks, err = s.index.Count(ctx)
	if err != nil {
		return stats, err
	}

	s.logger.Info("embedding complete",
		"embedded", stats.Embedded, "total_chunks", stats.TotalChunks)
	return stats, nil
}

// SyncAndEmbed runs Sync then Embed in one step.
func (s *Syncer) SyncAndEmbed(ctx context.Context, force bool) (SyncStats, EmbedStats, error) {
	syncStats, err := s.Sync(ctx, force)
	if err != nil {
		return syncStats, EmbedStats{}, err
	}
	embedStats, err := s.Embed(ctx, force)
	return syncStats, embedStats, err
}

// Status reports how many transcripts are synced, embedded and pending.
func (s *Syncer) Status(ctx context.Context) (Status, error) {
	state, err := LoadState(s.statePath)
	if err != nil {
		return Status{}, err
	}

	status := Status{
		LastSync:      state.LastSync,
		TotalSynced:   len(state.SyncedRecordings),
		TotalEmbedded: state.EmbeddedCount(),
	}
	status.PendingEmbed = status.TotalSynced - status.TotalEmbedded

	if s.index != nil {
		status.IndexedChunks, err = s.index.Count(ctx)
		if err != nil {
			return Status{}, err
		}
	}
	return status, nil
}

// List returns all synced transcripts, newest first.
func (s *Syncer) List() ([]Info, error) {
	state, err := LoadState(s.statePath)
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(state.SyncedRecordings))
	for id, rec := range state.SyncedRecordings {
		infos = append(infos, Info{
			RecordingID: id,
			Title:       rec.Title,
			Date:        rec.Date,
			Embedded:    rec.Embedded,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Date != infos[j].Date {
			return infos[i].Date > infos[j].Date
		}
		return infos[i].RecordingID < infos[j].RecordingID
	})
	return infos, nil
}
