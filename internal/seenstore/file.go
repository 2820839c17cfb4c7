package seenstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// FileStore keeps the seen-set as a JSON array of identifiers on disk.
type FileStore struct {
	path string
	ids  map[string]struct{}
}

// OpenFile loads (or initializes) a file-backed store. A missing file starts
// empty; a corrupt file is renamed to .broken for diagnosis and the store
// starts empty rather than failing the run.
func OpenFile(path string) *FileStore {
	s := &FileStore{path: path, ids: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read seen file, starting empty", "path", path, "error", err)
		}
		return s
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		brokenPath := path + ".broken"
		if renameErr := os.Rename(path, brokenPath); renameErr != nil {
			slog.Warn("Failed to preserve corrupt seen file", "path", path, "error", renameErr)
		}
		slog.Warn("Seen file was corrupt, starting empty", "path", path, "moved_to", brokenPath, "error", err)
		return s
	}

	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s *FileStore) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *FileStore) Add(id string) {
	s.ids[id] = struct{}{}
}

func (s *FileStore) Len() int {
	return len(s.ids)
}

// Persist writes the set atomically via a temp file rename. Identifiers are
// sorted so the file is stable across runs.
func (s *FileStore) Persist() error {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal seen set: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create seen directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp seen file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp seen file: %w", err)
	}
	return nil
}
