// Package batch stamps a queue of photos and writes the results.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/electronjoe/photostamp/internal/codec"
	"github.com/electronjoe/photostamp/internal/photo"
	"github.com/electronjoe/photostamp/internal/watermark"
)

// Mode selects where stamped images are written.
type Mode string

const (
	// ModeOverwrite replaces each original file.
	ModeOverwrite Mode = "overwrite"
	// ModeSeparate writes into Options.OutputDir under the original base name.
	ModeSeparate Mode = "separate"
)

// ParseMode accepts "overwrite" or "separate", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeOverwrite, ModeSeparate:
		return m, nil
	}
	return "", fmt.Errorf("unknown save mode %q", s)
}

// Options controls where a run writes.
type Options struct {
	Mode      Mode
	OutputDir string
}

// EventKind identifies an Event.
type EventKind int

const (
	// EventProgress is sent once per attempted item, skipped and failed included.
	EventProgress EventKind = iota
	// EventItemFailed carries the path and error of an item that could not be written.
	EventItemFailed
	// EventDone is the last event of a run and carries its Result.
	EventDone
)

// Event reports run progress to the caller.
type Event struct {
	Kind EventKind
	// Done and Total count attempted items for EventProgress.
	Done, Total int
	Path        string
	Err         error
	Result      Result
}

// Result summarizes a run. Items not reached because of cancellation are
// counted nowhere.
type Result struct {
	Success   int
	Skipped   int
	Failed    int
	Cancelled bool
}

func (r Result) String() string {
	s := fmt.Sprintf("%d stamped, %d skipped, %d failed", r.Success, r.Skipped, r.Failed)
	if r.Cancelled {
		s += " (cancelled)"
	}
	return s
}

// Processor applies a style to items one at a time.
type Processor struct {
	renderer *watermark.Renderer
	logger   *slog.Logger
}

func NewProcessor(renderer *watermark.Renderer, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{renderer: renderer, logger: logger}
}

// Run stamps items in order until done or ctx is cancelled, reporting
// through sink (which may be nil). The only error returned is a failure to
// create the output directory; per-item failures are counted and reported
// as EventItemFailed.
func (p *Processor) Run(ctx context.Context, items []photo.Item, style watermark.Style, opts Options, sink func(Event)) (Result, error) {
	if sink == nil {
		sink = func(Event) {}
	}
	if opts.Mode == ModeSeparate {
		if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
			return Result{}, fmt.Errorf("create output directory: %w", err)
		}
	}

	var res Result
	for i, it := range items {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}

		switch {
		case !it.HasDate():
			res.Skipped++
			p.logger.Debug("skipping item without date", slog.String("path", it.Path))
		default:
			if err := p.stamp(it, style, opts); err != nil {
				res.Failed++
				p.logger.Warn("stamp failed", slog.String("path", it.Path), slog.String("error", err.Error()))
				sink(Event{Kind: EventItemFailed, Path: it.Path, Err: err})
			} else {
				res.Success++
			}
		}
		sink(Event{Kind: EventProgress, Done: i + 1, Total: len(items), Path: it.Path})
	}

	p.logger.Info("batch finished",
		slog.Int("success", res.Success),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed),
		slog.Bool("cancelled", res.Cancelled))
	sink(Event{Kind: EventDone, Result: res})
	return res, nil
}

func (p *Processor) stamp(it photo.Item, style watermark.Style, opts Options) error {
	img, format, meta, err := codec.Load(it.Path)
	if err != nil {
		return err
	}
	img = codec.Rotate(img, it.Rotation)
	out := p.renderer.Compose(img, it.Date, style)
	return codec.Save(Destination(it.Path, opts), codec.Flatten(out), format, meta)
}

// Destination is the path an item at path is written to.
func Destination(path string, opts Options) string {
	if opts.Mode == ModeOverwrite {
		return path
	}
	return filepath.Join(opts.OutputDir, filepath.Base(path))
}
