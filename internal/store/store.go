// Package store persists the set of listing ids already evaluated, the
// overflow queue and the per-user criteria as JSON files in one directory.
//
// Writes go to a temp file in the same directory, are synced and then
// renamed over the target, so a crash never leaves a half-written file.
// A file that is not valid JSON is moved aside with a ".bak" suffix and
// treated as empty.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rsilvagit/deptos/internal/model"
)

const (
	sentFile  = "sent.json"
	queueFile = "queue.json"
)

// FileStore keeps the dedup set and the queue.
type FileStore struct {
	dir string
}

// New returns a FileStore rooted at dir.
func New(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) SentPath() string  { return filepath.Join(s.dir, sentFile) }
func (s *FileStore) QueuePath() string { return filepath.Join(s.dir, queueFile) }

// LoadSent returns the ids already evaluated. A missing or corrupt file
// yields an empty set.
func (s *FileStore) LoadSent() (model.IDSet, error) {
	var ids []string
	if _, err := readJSON(s.SentPath(), &ids); err != nil {
		return nil, err
	}
	return model.NewIDSet(ids...), nil
}

// SaveSent replaces the stored ids with ids.
func (s *FileStore) SaveSent(ids model.IDSet) error {
	return writeJSON(s.SentPath(), ids.Sorted())
}

// LoadQueue returns the listings deferred by the last run, in order.
func (s *FileStore) LoadQueue() ([]model.Listing, error) {
	var queue []model.Listing
	if _, err := readJSON(s.QueuePath(), &queue); err != nil {
		return nil, err
	}
	return queue, nil
}

// SaveQueue replaces the stored queue with queue.
func (s *FileStore) SaveQueue(queue []model.Listing) error {
	if queue == nil {
		queue = []model.Listing{}
	}
	return writeJSON(s.QueuePath(), queue)
}

// readJSON decodes path into v and reports whether anything was loaded.
// Only I/O errors are returned.
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: reading %s: %w", path, err)
	}

	if !json.Valid(data) {
		backup := path + ".bak"
		if err := os.Rename(path, backup); err != nil {
			return false, fmt.Errorf("store: backing up corrupt %s: %w", path, err)
		}
		slog.Error("corrupt store file moved aside, starting empty", "path", path, "backup", backup)
		return false, nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		slog.Warn("store file has unexpected shape, starting empty", "path", path, "error", err)
		return false, nil
	}
	return true, nil
}

// writeJSON atomically replaces path with the JSON encoding of v.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encoding %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: writing %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: syncing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: closing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("store: replacing %s: %w", path, err)
	}
	return nil
}
