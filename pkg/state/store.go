package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store holds the latest snapshot published by the host application.
// The host writes it to a JSON file; the store re-reads that file when it
// changes. Readers always receive a copy.
type Store struct {
	mu   sync.RWMutex
	path string
	snap Snapshot
}

// NewStore creates a store backed by path. An empty path yields an
// in-memory store that only changes through Replace.
func NewStore(path string) *Store {
	return &Store{path: path, snap: Snapshot{}}
}

// Path returns the absolute path of the backing file, or "".
func (s *Store) Path() string {
	if s.path == "" {
		return ""
	}
	abs, err := filepath.Abs(s.path)
	if err != nil {
		return s.path
	}
	return abs
}

// Load reads the backing file. A missing file leaves an empty snapshot.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("State file not found, starting with empty snapshot", "path", s.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}
	if snap == nil {
		snap = Snapshot{}
	}

	s.Replace(snap)
	slog.Info("System state loaded", "path", s.path, "protocols", len(snap.Protocols()), "instruments", len(snap.Instruments()))
	return nil
}

// Replace swaps the current snapshot.
func (s *Store) Replace(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

// Snapshot returns a shallow copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// Follow reloads the store whenever its backing file shows up on changes.
// It returns when ctx is done or changes is closed.
func (s *Store) Follow(ctx context.Context, changes <-chan string) {
	target := s.Path()
	for {
		select {
		case <-ctx.Done():
			return
		case name, ok := <-changes:
			if !ok {
				return
			}
			if name != target {
				continue
			}
			if err := s.Load(); err != nil {
				slog.Error("Failed to reload system state", "error", err)
			}
		}
	}
}
