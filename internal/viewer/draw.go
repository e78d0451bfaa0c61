package viewer

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/basicfont"
)

const (
	lineHeight = 16
	textInset  = 10
)

var (
	background = color.RGBA{24, 24, 24, 255}
	panel      = color.RGBA{0, 0, 0, 200}
	noticeRed  = color.RGBA{255, 110, 110, 255}
)

// drawDebugString prints msg in the top-left corner over a cleared screen.
func drawDebugString(screen *ebiten.Image, msg string) {
	screen.Fill(color.RGBA{0, 0, 0, 255})
	ebitenutil.DebugPrint(screen, msg)
}

// statusLines is the text shown under the preview.
func (g *Game) statusLines() []string {
	var lines []string
	if it, ok := g.session.Current(); ok {
		date := it.Date
		if date == "" {
			date = "-"
		}
		if g.editing {
			date = string(g.editBuf) + "_"
		}
		lines = append(lines, fmt.Sprintf("[%d/%d] %s  date: %s  rotation: %d",
			g.session.Index()+1, g.session.Len(), filepath.Base(it.Path), date, it.Rotation))
	}
	s := g.session.Settings()
	lines = append(lines, fmt.Sprintf("position: %s  size: %g %s  format: %s  save: %s",
		s.Position, s.FontSize, s.SizeMode, s.DateFormat, s.SaveMode))
	lines = append(lines, g.session.Status()...)
	return lines
}

func (g *Game) draw(screen *ebiten.Image) {
	screen.Fill(background)
	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()

	lines := g.statusLines()
	panelH := len(lines)*lineHeight + 2*textInset
	area := image.Rect(0, 0, sw, max(sh-panelH, 0))

	switch {
	case g.session.Len() == 0:
		drawDebugString(screen, "No images queued.")
	case g.notice != "":
		text.Draw(screen, g.notice, basicfont.Face7x13, textInset, textInset+lineHeight, noticeRed)
	case g.current != nil:
		g.current.draw(screen, area)
	}

	vector.DrawFilledRect(screen, 0, float32(sh-panelH), float32(sw), float32(panelH), panel, false)
	for i, line := range lines {
		y := sh - panelH + textInset + (i+1)*lineHeight - 4
		text.Draw(screen, line, basicfont.Face7x13, textInset, y, color.White)
	}
}
