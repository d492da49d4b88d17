package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SaveRuleCache persists refreshed rule metadata for a linter. Writes go
// to a temp file first and are moved into place with an atomic rename,
// so a crash or a concurrent second run cannot corrupt the cache.
func (s *SQLiteStorage) SaveRuleCache(ctx context.Context, linter string, payload []byte) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(linter, "linter"); err != nil {
		return err
	}

	if err := os.MkdirAll(s.cacheDir, 0750); err != nil {
		return fmt.Errorf("failed to create rule cache directory: %w", err)
	}

	target := s.ruleCachePath(linter)

	tmp, err := os.CreateTemp(s.cacheDir, linter+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write rule cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp cache file: %w", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to move rule cache into place: %w", err)
	}

	return nil
}

// GetRuleCache returns the cached payload for a linter, or nil when the
// cache is missing or older than maxAge. The cache is advisory, never
// authoritative.
func (s *SQLiteStorage) GetRuleCache(ctx context.Context, linter string, maxAge time.Duration) ([]byte, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(linter, "linter"); err != nil {
		return nil, err
	}

	target := s.ruleCachePath(linter)

	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat rule cache: %w", err)
	}

	if maxAge > 0 && time.Since(info.ModTime()) > maxAge {
		return nil, nil
	}

	payload, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule cache: %w", err)
	}
	return payload, nil
}

func (s *SQLiteStorage) ruleCachePath(linter string) string {
	return filepath.Join(s.cacheDir, filepath.Base(linter)+".yaml")
}
