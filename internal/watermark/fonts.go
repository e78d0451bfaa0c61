package watermark

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

// ErrFontNotFound is returned by catalogs for unknown font names.
var ErrFontNotFound = errors.New("font not found")

// FontCatalog resolves a display name into a parsed font.
type FontCatalog interface {
	Resolve(name string) (*opentype.Font, error)
}

// MemoryCatalog holds fonts registered from bytes.
type MemoryCatalog struct {
	mu    sync.RWMutex
	fonts map[string]*opentype.Font
}

// NewMemoryCatalog returns a catalog preloaded with the embedded Go fonts
// under the names "Go Regular" and "Go Bold".
func NewMemoryCatalog() *MemoryCatalog {
	c := &MemoryCatalog{fonts: make(map[string]*opentype.Font)}
	// The embedded fonts are known-good; Register cannot fail on them.
	_ = c.Register("Go Regular", goregular.TTF)
	_ = c.Register("Go Bold", gobold.TTF)
	return c
}

// Register parses data and stores it under name.
func (c *MemoryCatalog) Register(name string, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %q: %w", name, err)
	}
	c.mu.Lock()
	c.fonts[name] = f
	c.mu.Unlock()
	return nil
}

// Resolve returns the font registered under name.
func (c *MemoryCatalog) Resolve(name string) (*opentype.Font, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.fonts[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrFontNotFound)
	}
	return f, nil
}

// SystemCatalog indexes the TrueType/OpenType files under a set of font
// directories. Directories are scanned once, on first use; fonts are parsed
// when resolved.
type SystemCatalog struct {
	dirs   []string
	logger *slog.Logger

	scanOnce sync.Once
	paths    map[string]string

	mu     sync.Mutex
	parsed map[string]*opentype.Font
}

// NewSystemCatalog builds a catalog over dirs, or over the platform's usual
// font directories when none are given.
func NewSystemCatalog(logger *slog.Logger, dirs ...string) *SystemCatalog {
	if logger == nil {
		logger = slog.Default()
	}
	if len(dirs) == 0 {
		dirs = systemFontDirs()
	}
	return &SystemCatalog{
		dirs:   dirs,
		logger: logger,
		parsed: make(map[string]*opentype.Font),
	}
}

func systemFontDirs() []string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		return []string{
			filepath.Join(os.Getenv("WINDIR"), "Fonts"),
			filepath.Join(os.Getenv("LOCALAPPDATA"), "Microsoft", "Windows", "Fonts"),
		}
	case "darwin":
		return []string{"/System/Library/Fonts", "/Library/Fonts", filepath.Join(home, "Library", "Fonts")}
	default:
		return []string{
			"/usr/share/fonts",
			"/usr/local/share/fonts",
			filepath.Join(home, ".fonts"),
			filepath.Join(home, ".local", "share", "fonts"),
		}
	}
}

// Names lists the display names found, sorted.
func (c *SystemCatalog) Names() []string {
	c.scanOnce.Do(c.scan)
	names := make([]string, 0, len(c.paths))
	for name := range c.paths {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the font with the given display name. A name that is a path
// to a font file is loaded directly.
func (c *SystemCatalog) Resolve(name string) (*opentype.Font, error) {
	c.scanOnce.Do(c.scan)

	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.parsed[name]; ok {
		return f, nil
	}

	path, ok := c.paths[name]
	if !ok {
		if !isFontFile(name) {
			return nil, fmt.Errorf("%q: %w", name, ErrFontNotFound)
		}
		path = name
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font %q: %w", name, err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %q: %w", name, err)
	}
	c.parsed[name] = f
	return f, nil
}

func (c *SystemCatalog) scan() {
	c.paths = make(map[string]string)
	var buf sfnt.Buffer
	for _, dir := range c.dirs {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !isFontFile(path) {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil
			}
			f, err := sfnt.Parse(data)
			if err != nil {
				return nil
			}
			name := displayName(f, &buf)
			if name == "" {
				return nil
			}
			if _, dup := c.paths[name]; !dup {
				c.paths[name] = path
			}
			return nil
		})
	}
	c.logger.Debug("font catalog scanned", slog.Int("fonts", len(c.paths)), slog.Any("dirs", c.dirs))
}

// displayName is the family name, followed by the subfamily unless it is a
// regular style or already part of the family name.
func displayName(f *sfnt.Font, buf *sfnt.Buffer) string {
	family, err := f.Name(buf, sfnt.NameIDFamily)
	if err != nil || family == "" {
		return ""
	}
	style, err := f.Name(buf, sfnt.NameIDSubfamily)
	if err != nil || style == "" {
		return family
	}
	switch strings.ToLower(style) {
	case "regular", "normal":
		return family
	}
	if strings.HasSuffix(family, style) {
		return family
	}
	return family + " " + style
}

func isFontFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ttf", ".otf":
		return true
	}
	return false
}

var (
	defaultFontOnce sync.Once
	defaultFont     *opentype.Font
)

// newFace returns a face of f at px pixels. A nil f selects the embedded Go
// Regular font; if that cannot be built either, the fixed 7x13 bitmap face is
// returned.
func newFace(f *opentype.Font, px float64) font.Face {
	if f == nil {
		defaultFontOnce.Do(func() {
			defaultFont, _ = opentype.Parse(goregular.TTF)
		})
		f = defaultFont
	}
	if f != nil {
		face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: px, DPI: 72, Hinting: font.HintingNone})
		if err == nil {
			return face
		}
	}
	return basicfont.Face7x13
}

// Chain tries each catalog in order and returns the first match.
type Chain []FontCatalog

func (c Chain) Resolve(name string) (*opentype.Font, error) {
	for _, cat := range c {
		if f, err := cat.Resolve(name); err == nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", name, ErrFontNotFound)
}
