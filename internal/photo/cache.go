package photo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	dateCacheFileName = "date_cache.json"
	dateCacheVersion  = 1
	configDirName     = "photostamp"
)

// DateCache remembers extracted capture dates keyed by path and modification
// time, so re-adding the same photos skips the EXIF scan.
type DateCache struct {
	path    string
	mu      sync.Mutex
	dirty   bool
	Version int                       `json:"version"`
	Entries map[string]dateCacheEntry `json:"entries"`
}

type dateCacheEntry struct {
	ModTime int64  `json:"modTime"`
	Date    string `json:"date"`
}

// DefaultCachePath returns the cache location under the user config directory.
func DefaultCachePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("determine user config dir: %w", err)
	}
	return filepath.Join(dir, configDirName, dateCacheFileName), nil
}

// OpenDateCache loads the cache at path. A missing file, or one written by a
// different cache version, yields an empty cache.
func OpenDateCache(path string) (*DateCache, error) {
	cache := newDateCache(path)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cache, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read date cache: %w", err)
	}

	if err := json.Unmarshal(data, cache); err != nil {
		return nil, fmt.Errorf("unmarshal date cache: %w", err)
	}
	if cache.Version != dateCacheVersion || cache.Entries == nil {
		return newDateCache(path), nil
	}
	return cache, nil
}

func newDateCache(path string) *DateCache {
	return &DateCache{
		path:    path,
		Version: dateCacheVersion,
		Entries: make(map[string]dateCacheEntry),
	}
}

// Save writes the cache back if anything changed since it was opened.
func (c *DateCache) Save() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal date cache: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write date cache: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("replace date cache: %w", err)
	}
	c.dirty = false
	return nil
}

// dateFor returns the capture date of path, consulting the cache first.
// A nil cache always extracts.
func (c *DateCache) dateFor(path string) string {
	if c == nil {
		return ExtractDate(path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	if date, ok := c.get(path, info.ModTime()); ok {
		return date
	}
	date := ExtractDate(path)
	c.set(path, info.ModTime(), date)
	return date
}

func (c *DateCache) get(path string, modTime time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.Entries[path]
	if !ok || entry.ModTime != modTime.UnixNano() {
		return "", false
	}
	return entry.Date, true
}

func (c *DateCache) set(path string, modTime time.Time, date string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Entries[path] = dateCacheEntry{ModTime: modTime.UnixNano(), Date: date}
	c.dirty = true
}
