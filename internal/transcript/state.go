package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// RecordState tracks one recording through the sync and embed phases.
type RecordState struct {
	SyncedAt string `json:"synced_at"`
	Embedded bool   `json:"embedded"`
	File     string `json:"file"`
	Title    string `json:"title"`
	Date     string `json:"date"`
}

// State is the persistent sync state. A recording present in
// SyncedRecordings will not be fetched again unless the sync is forced.
type State struct {
	LastSync         string                  `json:"last_sync"`
	SyncedRecordings map[string]*RecordState `json:"synced_recordings"`
}

// NewState returns an empty state.
func NewState() *State {
	return &State{SyncedRecordings: make(map[string]*RecordState)}
}

// LoadState reads the state file at path. A missing file yields a fresh
// empty state, not an error.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing state file %s: %w", path, err)
	}
	if state.SyncedRecordings == nil {
		state.SyncedRecordings = make(map[string]*RecordState)
	}
	return &state, nil
}

// Save writes the state atomically: a temp file in the same directory is
// renamed over the target, so a crash mid-write never corrupts the state.
func (s *State) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".sync_state-*.json")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing state file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

// EmbeddedCount returns how many synced recordings have been embedded.
func (s *State) EmbeddedCount() int {
	n := 0
	for _, rec := range s.SyncedRecordings {
		if rec.Embedded {
			n++
		}
	}
	return n
}
