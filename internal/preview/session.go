package preview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/electronjoe/photostamp/internal/batch"
	"github.com/electronjoe/photostamp/internal/config"
	"github.com/electronjoe/photostamp/internal/datefmt"
	"github.com/electronjoe/photostamp/internal/photo"
	"github.com/electronjoe/photostamp/internal/watermark"
)

const maxStatusLines = 6

// SessionOptions configures a Session.
type SessionOptions struct {
	Items        []photo.Item
	Settings     *config.Settings
	SettingsPath string // empty disables saving on Close
	Renderer     *watermark.Renderer
	Runner       *batch.Runner
	OutputDir    string
	Delay        time.Duration
	Logger       *slog.Logger
}

// Session is the interactive editing state behind the viewer: the queue, the
// selected item, the settings being edited and the batch in progress. All
// methods must be called from the one control loop.
type Session struct {
	items        []photo.Item
	index        int
	settings     *config.Settings
	settingsPath string
	renderer     *watermark.Renderer
	runner       *batch.Runner
	outputDir    string
	logger       *slog.Logger
	debounce     *Debouncer

	job      *batch.Job
	progress string
	status   []string
}

func NewSession(opts SessionOptions) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Settings == nil {
		opts.Settings = config.NewDefaultSettings()
	}
	return &Session{
		items:        slices.Clone(opts.Items),
		settings:     opts.Settings,
		settingsPath: opts.SettingsPath,
		renderer:     opts.Renderer,
		runner:       opts.Runner,
		outputDir:    opts.OutputDir,
		logger:       opts.Logger,
		debounce:     NewDebouncer(opts.Delay),
	}
}

// Debouncer gates preview renders; the control loop renders when a current
// token arrives on its channel.
func (s *Session) Debouncer() *Debouncer { return s.debounce }

func (s *Session) requestPreview() { s.debounce.Request() }

// Len is the queue length.
func (s *Session) Len() int { return len(s.items) }

// Index is the selected position, or -1 for an empty queue.
func (s *Session) Index() int {
	if len(s.items) == 0 {
		return -1
	}
	return s.index
}

// Current returns the selected item.
func (s *Session) Current() (photo.Item, bool) {
	if len(s.items) == 0 {
		return photo.Item{}, false
	}
	return s.items[s.index], true
}

// Select moves the selection by delta, wrapping around.
func (s *Session) Select(delta int) {
	if len(s.items) == 0 {
		return
	}
	n := len(s.items)
	s.index = ((s.index+delta)%n + n) % n
	s.requestPreview()
}

// Rotate turns the selected item a further 90 degrees.
func (s *Session) Rotate() {
	if len(s.items) == 0 {
		return
	}
	s.items[s.index].Rotate()
	s.requestPreview()
}

// Remove drops the selected item from the queue and selects the one that
// took its place, or the new last item.
func (s *Session) Remove() (photo.Item, bool) {
	if len(s.items) == 0 {
		return photo.Item{}, false
	}
	it := s.items[s.index]
	s.items = slices.Delete(s.items, s.index, s.index+1)
	if s.index >= len(s.items) {
		s.index = max(len(s.items)-1, 0)
	}
	s.requestPreview()
	return it, true
}

// SetDate edits the selected item's date. An empty date is allowed and marks
// the item to be skipped.
func (s *Session) SetDate(date string) error {
	if len(s.items) == 0 {
		return nil
	}
	it := &s.items[s.index]
	if d := strings.TrimSpace(date); d != "" {
		if _, err := datefmt.Parse(d); err != nil {
			return err
		}
	}
	it.SetDate(date)
	s.requestPreview()
	return nil
}

// Settings returns the settings being edited.
func (s *Session) Settings() *config.Settings { return s.settings }

// ReplaceSettings installs settings reloaded from disk.
func (s *Session) ReplaceSettings(settings *config.Settings) {
	s.settings = settings
	s.requestPreview()
}

// CyclePosition moves the stamp to the next position.
func (s *Session) CyclePosition() {
	p, _ := watermark.ParsePosition(s.settings.Position)
	s.settings.Position = string(p.Next())
	s.requestPreview()
}

// AdjustFontSize grows (dir > 0) or shrinks the font by one step: half a
// percent or two pixels, never below one step.
func (s *Session) AdjustFontSize(dir int) {
	step := 2.0
	if s.settings.SizeMode == string(watermark.UnitPercent) {
		step = 0.5
	}
	size := s.settings.FontSize + float64(dir)*step
	if size < step {
		size = step
	}
	s.settings.FontSize = size
	s.requestPreview()
}

// ToggleUnit switches between pixel and percent sizes. When the current
// image's size is known (width and height > 0) sizes are converted so the
// stamp keeps its look on that image.
func (s *Session) ToggleUnit(width, height int) {
	base := float64(max(width, height)) / 100
	convert := func(v float64, toPercent bool) float64 {
		if base <= 0 {
			return v
		}
		if toPercent {
			return math.Round(v/base*10) / 10
		}
		return math.Round(v * base)
	}

	toPercent := s.settings.SizeMode != string(watermark.UnitPercent)
	s.settings.FontSize = convert(s.settings.FontSize, toPercent)
	s.settings.Margin = convert(s.settings.Margin, toPercent)
	s.settings.BgPadding = convert(s.settings.BgPadding, toPercent)
	if toPercent {
		s.settings.SizeMode = string(watermark.UnitPercent)
	} else {
		s.settings.SizeMode = string(watermark.UnitPixel)
	}
	s.requestPreview()
}

// Render composes the preview of the selected item with the current settings.
func (s *Session) Render() (*image.RGBA, error) {
	it, ok := s.Current()
	if !ok {
		return nil, errors.New("no images queued")
	}
	style, err := s.settings.Style()
	if err != nil {
		return nil, err
	}
	return Render(s.renderer, it, style)
}

// Running reports whether a batch is in progress.
func (s *Session) Running() bool { return s.job != nil }

// Apply starts stamping every queued item on the runner's worker.
func (s *Session) Apply(ctx context.Context) error {
	if s.job != nil {
		return batch.ErrBusy
	}
	if len(s.items) == 0 {
		return errors.New("no images queued")
	}
	style, err := s.settings.Style()
	if err != nil {
		return err
	}
	job, err := s.runner.Start(ctx, s.items, style, batch.Options{Mode: s.settings.Mode(), OutputDir: s.outputDir})
	if err != nil {
		return err
	}
	s.job = job
	s.progress = fmt.Sprintf("Stamping 0/%d", len(s.items))
	s.logger.Info("batch started",
		slog.Int("items", len(s.items)),
		slog.String("mode", string(s.settings.Mode())),
		slog.String("output_dir", s.outputDir))
	return nil
}

// Cancel asks a running batch to stop. It reports whether one was running.
func (s *Session) Cancel() bool {
	if s.job == nil {
		return false
	}
	s.job.Cancel()
	s.progress = "Cancelling..."
	return true
}

// Poll drains the batch's pending events without blocking.
func (s *Session) Poll() {
	for s.job != nil {
		select {
		case ev, ok := <-s.job.Events():
			if !ok {
				// The worker has exited, so Wait returns at once.
				if _, err := s.job.Wait(0); err != nil {
					s.logger.Error("batch failed", slog.String("error", err.Error()))
					s.Notify("Batch failed: " + err.Error())
				}
				s.job = nil
				s.progress = ""
				return
			}
			s.handle(ev)
		default:
			return
		}
	}
}

func (s *Session) handle(ev batch.Event) {
	switch ev.Kind {
	case batch.EventProgress:
		s.progress = fmt.Sprintf("Stamping %d/%d", ev.Done, ev.Total)
	case batch.EventItemFailed:
		s.Notify(fmt.Sprintf("Failed %s: %v", filepath.Base(ev.Path), ev.Err))
	case batch.EventDone:
		s.Notify("Done: " + ev.Result.String())
	}
}

// Notify appends a line to the status area.
func (s *Session) Notify(line string) {
	s.status = append(s.status, line)
	if len(s.status) > maxStatusLines {
		s.status = s.status[len(s.status)-maxStatusLines:]
	}
}

// Status returns the progress line, if any, followed by recent messages.
func (s *Session) Status() []string {
	lines := make([]string, 0, len(s.status)+1)
	if s.progress != "" {
		lines = append(lines, s.progress)
	}
	return append(lines, s.status...)
}

// Close cancels any running batch, waits up to timeout for it, then saves
// the settings.
func (s *Session) Close(timeout time.Duration) error {
	s.debounce.Stop()
	var errs []error
	if s.job != nil {
		s.job.Cancel()
		if _, err := s.job.Wait(timeout); err != nil {
			errs = append(errs, err)
		}
		s.job = nil
	}
	if s.settingsPath != "" {
		if err := config.Save(s.settingsPath, s.settings); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
