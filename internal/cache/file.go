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
	"time"
)

// DefaultTTL applies when none is configured.
const DefaultTTL = 30 * 24 * time.Hour

// FileStore keeps one JSON file per key under Dir/<bucket>/<key[:2]>/<key>.json.
type FileStore struct {
	Dir string
	TTL time.Duration

	now    func() time.Time
	logger *slog.Logger
}

func NewFileStore(dir string, ttl time.Duration, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &FileStore{Dir: dir, TTL: ttl, now: time.Now, logger: logger}
}

// Path returns the file holding bucket/key.
func (s *FileStore) Path(bucket, key string) string {
	shard := key
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return filepath.Join(s.Dir, bucket, shard, key+".json")
}

func (s *FileStore) Get(_ context.Context, bucket, key string) (Entry, bool) {
	path := s.Path(bucket, key)
	b, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("cache.read_error", "path", path, "error", err)
		}
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		s.logger.Warn("cache.decode_error", "path", path, "error", err)
		return Entry{}, false
	}
	if e.ExpiresAt <= 0 {
		// entries without an expiry age out from their file time
		st, err := os.Stat(path)
		if err != nil {
			return Entry{}, false
		}
		e.ExpiresAt = st.ModTime().Add(s.TTL).Unix()
	}
	if e.Expired(s.now()) {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("cache.remove_error", "path", path, "error", err)
		}
		s.logger.Debug("cache.expired", "bucket", bucket, "key", key)
		return Entry{}, false
	}
	return e, true
}

// Set writes to a temp file in the target directory and renames it into
// place, so readers see either no entry or a complete one.
func (s *FileStore) Set(_ context.Context, bucket, key string, data []byte) error {
	path := s.Path(bucket, key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache mkdir: %w", err)
	}
	b, err := json.Marshal(newEntry(s.now(), s.TTL, data))
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	tmp, err := os.CreateTemp(dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("cache temp: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("cache write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("cache close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("cache rename: %w", err)
	}
	return nil
}
