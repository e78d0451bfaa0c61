// Package viewer is the interactive preview window.
package viewer

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/electronjoe/photostamp/internal/config"
	"github.com/electronjoe/photostamp/internal/preview"
)

// ShutdownTimeout bounds how long closing the window waits for a batch.
const ShutdownTimeout = 10 * time.Second

// Game drives a preview.Session from keyboard input and draws it.
type Game struct {
	ctx          context.Context
	session      *preview.Session
	settingsPath string
	logger       *slog.Logger

	current       *TiledImage
	width, height int // of the last rendered preview
	notice        string

	editing bool
	editBuf []rune

	settingsChanged chan struct{}
}

// NewGame wraps session. settingsPath, when set, is reloaded on Update after
// NotifySettingsChanged.
func NewGame(ctx context.Context, session *preview.Session, settingsPath string, logger *slog.Logger) *Game {
	if logger == nil {
		logger = slog.Default()
	}
	return &Game{
		ctx:             ctx,
		session:         session,
		settingsPath:    settingsPath,
		logger:          logger,
		settingsChanged: make(chan struct{}, 1),
	}
}

// NotifySettingsChanged may be called from any goroutine.
func (g *Game) NotifySettingsChanged() {
	select {
	case g.settingsChanged <- struct{}{}:
	default:
	}
}

// Run opens the window and blocks until it is closed. On close any batch is
// cancelled and joined, then the settings are saved.
func Run(ctx context.Context, session *preview.Session, settingsPath string, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g := NewGame(ctx, session, settingsPath, logger)
	if settingsPath != "" {
		go func() {
			if err := config.Watch(ctx, settingsPath, g.logger, g.NotifySettingsChanged); err != nil {
				g.logger.Warn("settings watcher failed", slog.String("error", err.Error()))
			}
		}()
	}

	ebiten.SetWindowTitle("photostamp")
	ebiten.SetWindowSize(1280, 800)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	g.session.Debouncer().Request()
	err := ebiten.RunGame(g)

	// Stop watching before our own save lands on disk.
	cancel()
	if cerr := g.session.Close(ShutdownTimeout); cerr != nil {
		g.logger.Warn("shutdown incomplete", slog.String("error", cerr.Error()))
	}
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

// Update is called by Ebiten ~60 times/sec.
func (g *Game) Update() error {
	// Non-blocking read of settings reloads
	select {
	case <-g.settingsChanged:
		g.reloadSettings()
	default:
	}

	g.session.Poll()

readLoop:
	for {
		select {
		case tok := <-g.session.Debouncer().C():
			if g.session.Debouncer().Current(tok) {
				g.renderPreview()
			}
		default:
			break readLoop
		}
	}

	if g.editing {
		g.updateDateEdit()
		return nil
	}
	return g.handleKeys()
}

func (g *Game) handleKeys() error {
	s := g.session
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		// Esc stops a running batch first; only an idle window closes.
		if s.Cancel() {
			return nil
		}
		return ebiten.Termination
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft):
		s.Select(-1)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowRight):
		s.Select(1)
	case inpututil.IsKeyJustPressed(ebiten.KeyDelete), inpututil.IsKeyJustPressed(ebiten.KeyBackspace):
		if it, ok := s.Remove(); ok {
			s.Notify("Removed " + filepath.Base(it.Path))
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		s.Rotate()
	case inpututil.IsKeyJustPressed(ebiten.KeyE):
		if it, ok := s.Current(); ok {
			g.editing = true
			g.editBuf = []rune(it.Date)
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyP):
		s.CyclePosition()
	case inpututil.IsKeyJustPressed(ebiten.KeyEqual), inpututil.IsKeyJustPressed(ebiten.KeyNumpadAdd):
		s.AdjustFontSize(1)
	case inpututil.IsKeyJustPressed(ebiten.KeyMinus), inpututil.IsKeyJustPressed(ebiten.KeyNumpadSubtract):
		s.AdjustFontSize(-1)
	case inpututil.IsKeyJustPressed(ebiten.KeyU):
		s.ToggleUnit(g.width, g.height)
	case inpututil.IsKeyJustPressed(ebiten.KeyA):
		if s.Running() {
			break
		}
		if err := s.Apply(g.ctx); err != nil {
			s.Notify("Cannot apply: " + err.Error())
		}
	}
	return nil
}

func (g *Game) updateDateEdit() {
	for _, r := range ebiten.AppendInputChars(nil) {
		if (r >= '0' && r <= '9') || r == '-' {
			g.editBuf = append(g.editBuf, r)
		}
	}
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyBackspace):
		if len(g.editBuf) > 0 {
			g.editBuf = g.editBuf[:len(g.editBuf)-1]
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyEnter), inpututil.IsKeyJustPressed(ebiten.KeyNumpadEnter):
		if err := g.session.SetDate(string(g.editBuf)); err != nil {
			g.session.Notify("Invalid date: " + string(g.editBuf))
			return
		}
		g.editing = false
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		g.editing = false
	}
}

func (g *Game) reloadSettings() {
	s, err := config.Load(g.settingsPath)
	if err != nil {
		g.logger.Warn("settings reload failed", slog.String("error", err.Error()))
		g.session.Notify("Settings not reloaded: " + err.Error())
		return
	}
	g.session.ReplaceSettings(s)
	g.logger.Info("settings reloaded", slog.String("path", g.settingsPath))
}

// renderPreview replaces the displayed preview. A failure leaves an inline
// notice instead of an image.
func (g *Game) renderPreview() {
	if g.session.Len() == 0 {
		g.freePreview()
		g.notice = ""
		return
	}
	img, err := g.session.Render()
	g.freePreview()
	if err != nil {
		g.notice = "Preview failed: " + err.Error()
		g.logger.Warn("preview failed", slog.String("error", err.Error()))
		return
	}
	g.notice = ""
	g.width, g.height = img.Bounds().Dx(), img.Bounds().Dy()
	g.current = newTiledImage(img)
}

func (g *Game) freePreview() {
	if g.current != nil {
		g.current.Dispose()
		g.current = nil
	}
}

// Draw is called every frame.
func (g *Game) Draw(screen *ebiten.Image) {
	g.draw(screen)
}

// Layout follows the window size.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}
