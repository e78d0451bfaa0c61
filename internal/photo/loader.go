package photo

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/electronjoe/photostamp/internal/codec"
)

// LoadOptions controls how paths are expanded into queue items.
type LoadOptions struct {
	// Recursive descends into subdirectories of directory arguments.
	Recursive bool
	// Cache, when non-nil, short-circuits date extraction for unchanged files.
	Cache *DateCache
	Logger *slog.Logger
}

// Load expands paths (files or directories) into queue items, extracting each
// capture date at add time. Unsupported files and unreadable entries are
// logged and skipped; one bad path does not stop the rest.
func Load(paths []string, opts LoadOptions) []Item {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var items []Item
	seen := make(map[string]struct{})
	add := func(path string) {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		items = append(items, Item{Path: abs, Date: opts.Cache.dateFor(abs)})
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			logger.Warn("skipping path", slog.String("path", root), slog.String("error", err.Error()))
			continue
		}
		if !info.IsDir() {
			if !codec.IsSupportedPath(root) {
				logger.Warn("skipping unsupported file", slog.String("path", root))
				continue
			}
			add(root)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				logger.Warn("error accessing path", slog.String("path", path), slog.String("error", err.Error()))
				return nil
			}
			if d.IsDir() {
				if path != root && !opts.Recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if codec.IsSupportedPath(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			logger.Warn("error walking directory", slog.String("path", root), slog.String("error", err.Error()))
		}
	}
	return items
}
