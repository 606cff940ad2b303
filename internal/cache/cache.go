// Package cache persists the most recent status payload to disk.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Record is the on-disk cache layout.
type Record struct {
	CachedAt time.Time       `json:"cachedAt"`
	Data     json.RawMessage `json:"data"`
}

// Store reads and writes the single cache file. Caching is best-effort:
// a missing or corrupt file is a miss, never a failure.
type Store struct {
	path string
	log  *slog.Logger
}

// New creates a Store backed by the file at path.
func New(path string, log *slog.Logger) *Store {
	return &Store{path: path, log: log}
}

// Load reads the persisted record. A missing or corrupt file returns
// (nil, nil); corruption is logged and treated as a miss.
func (s *Store) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.log.Warn("discarding corrupt cache file", "path", s.path, "error", err)
		return nil, nil
	}
	return &rec, nil
}

// Save replaces the cache file with a record timestamped now. The write
// goes to a temp file in the same directory and is renamed into place,
// so a crash mid-write cannot corrupt prior valid state. The parent
// directory is created if missing.
//
// The payload bytes are spliced into the envelope verbatim; running them
// through json.Marshal would compact and HTML-escape them, and a load
// must return exactly what was saved.
func (s *Store) Save(data json.RawMessage) error {
	if !json.Valid(data) {
		return fmt.Errorf("encode cache: payload is not valid JSON")
	}
	ts, err := json.Marshal(time.Now().UTC())
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	buf := make([]byte, 0, len(data)+len(ts)+32)
	buf = append(buf, `{"cachedAt":`...)
	buf = append(buf, ts...)
	buf = append(buf, `,"data":`...)
	buf = append(buf, data...)
	buf = append(buf, '}')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(buf); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}
