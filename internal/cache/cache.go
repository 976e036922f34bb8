// Package cache persists the dedup snapshot between runs as a JSON file.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/pauljones0/offnbuy-bot/internal/dedup"
)

// Seeder supplies the snapshot when no cache file exists yet, so a fresh
// instance starts from what the document store already holds.
type Seeder interface {
	LoadSnapshot(ctx context.Context) (dedup.Snapshot, error)
}

// FileStore reads and writes the snapshot at a fixed path.
type FileStore struct {
	path   string
	seeder Seeder
	mu     sync.Mutex
}

func NewFileStore(path string, seeder Seeder) *FileStore {
	return &FileStore{path: path, seeder: seeder}
}

// Load returns the persisted snapshot. A missing file is seeded from the
// Seeder (if any) and written back; an empty file is an empty snapshot.
func (s *FileStore) Load(ctx context.Context) (dedup.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s.seed(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file %s: %w", s.path, err)
	}

	snapshot := make(dedup.Snapshot)
	if len(data) == 0 {
		return snapshot, nil
	}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode cache file %s: %w", s.path, err)
	}
	return snapshot, nil
}

func (s *FileStore) seed(ctx context.Context) (dedup.Snapshot, error) {
	if s.seeder == nil {
		return make(dedup.Snapshot), nil
	}
	snapshot, err := s.seeder.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to seed cache: %w", err)
	}
	if snapshot == nil {
		snapshot = make(dedup.Snapshot)
	}
	if err := s.write(snapshot); err != nil {
		return nil, err
	}
	slog.Info("Seeded cache from document store", "entries", len(snapshot), "path", s.path)
	return snapshot, nil
}

// Save replaces the cache file atomically.
func (s *FileStore) Save(_ context.Context, snapshot dedup.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(snapshot)
}

func (s *FileStore) write(snapshot dedup.Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".cache-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}
