package stability

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// DefaultStateFile is the file name used under the repository cache directory.
const DefaultStateFile = "cache_stability.json"

// DefaultPath returns the conventional state file location for a repository.
func DefaultPath(workDir string) string {
	return filepath.Join(workDir, ".cache", DefaultStateFile)
}

// Store persists tracker state as a JSON file.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore returns a Store backed by the file at path. A nil logger discards.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{path: path, logger: logger}
}

// Path returns the state file location.
func (s *Store) Path() string { return s.path }

// Load builds a Tracker from cfg and restores any saved state into it.
// A missing, unreadable or corrupt state file yields an empty tracker: losing
// tier history costs one turn of weaker caching, never prompt correctness.
func (s *Store) Load(cfg Config) *Tracker {
	t := New(cfg)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("stability state unreadable; starting cold", "path", s.path, "error", err)
		}
		return t
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("stability state corrupt; starting cold", "path", s.path, "error", err)
		return t
	}
	if err := t.Restore(state); err != nil {
		s.logger.Warn("stability state rejected; starting cold", "path", s.path, "error", err)
		return t
	}
	s.logger.Debug("stability state loaded", "path", s.path, "items", t.Len())
	return t
}

// Save writes the tracker state atomically (write temp + rename) so a crash
// mid-save never leaves a partially written file behind.
func (s *Store) Save(t *Tracker) error {
	data, err := json.MarshalIndent(t.State(), "", "  ")
	if err != nil {
		return fmt.Errorf("stability: marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("stability: create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("stability: create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("stability: write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("stability: close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("stability: rename state file: %w", err)
	}
	return nil
}
