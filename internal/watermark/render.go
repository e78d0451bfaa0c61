package watermark

import (
	"image"
	"image/draw"
	"log/slog"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/electronjoe/photostamp/internal/codec"
	"github.com/electronjoe/photostamp/internal/datefmt"
)

// Renderer composes date stamps. It is safe for concurrent use; each call
// builds its own font face.
type Renderer struct {
	catalog FontCatalog
	logger  *slog.Logger
}

// NewRenderer returns a renderer resolving fonts through catalog. A nil
// catalog always uses the built-in font.
func NewRenderer(catalog FontCatalog, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{catalog: catalog, logger: logger}
}

// Layout is the resolved geometry of one stamp on one image.
//
// Box is the tight ink bounding box of the text as reported by
// font.BoundString, placed so that the anchor mode's corner (or middle) of
// Box lies on the anchor point. Background is Box grown by the padding on
// every side, or the empty rectangle when no background is drawn.
type Layout struct {
	Text       string
	FontPx     float64
	MarginPx   float64
	PaddingPx  float64
	AnchorX    float64
	AnchorY    float64
	Mode       AnchorMode
	Box        image.Rectangle
	Background image.Rectangle

	face font.Face
	dot  fixed.Point26_6
}

// Layout computes where the stamp for date goes on a width×height image.
// It fails only when the date cannot be formatted.
func (r *Renderer) Layout(width, height int, date string, style Style) (Layout, error) {
	text, err := datefmt.Format(date, style.DateFormat)
	if err != nil {
		return Layout{}, err
	}

	fontPx, marginPx, paddingPx := style.resolve(width, height)
	face := r.face(style.FontName, fontPx)
	if !style.Position.Known() {
		r.logger.Warn("unknown watermark position, using bottom-right", slog.String("position", string(style.Position)))
	}
	x, y, mode := Place(width, height, marginPx, style.Position)

	bounds, _ := font.BoundString(face, text)
	w := bounds.Max.X - bounds.Min.X
	h := bounds.Max.Y - bounds.Min.Y

	minX := fixed.Int26_6(math.Round(x * 64))
	switch mode.H {
	case AlignCenter:
		minX -= w / 2
	case AlignRight:
		minX -= w
	}
	minY := fixed.Int26_6(math.Round(y * 64))
	switch mode.V {
	case AlignMiddle:
		minY -= h / 2
	case AlignBottom:
		minY -= h
	}

	l := Layout{
		Text:      text,
		FontPx:    fontPx,
		MarginPx:  marginPx,
		PaddingPx: paddingPx,
		AnchorX:   x,
		AnchorY:   y,
		Mode:      mode,
		Box:       image.Rect(minX.Floor(), minY.Floor(), (minX + w).Ceil(), (minY + h).Ceil()),
		face:      face,
		dot:       fixed.Point26_6{X: minX - bounds.Min.X, Y: minY - bounds.Min.Y},
	}
	if _, ok := style.backgroundColor(); ok {
		pad := int(math.Round(paddingPx))
		l.Background = l.Box.Inset(-pad)
	}
	return l, nil
}

func (r *Renderer) face(name string, px float64) font.Face {
	if r.catalog == nil || name == "" {
		return newFace(nil, px)
	}
	f, err := r.catalog.Resolve(name)
	if err != nil {
		r.logger.Warn("font load failed, using default font",
			slog.String("font", name),
			slog.String("error", err.Error()))
		return newFace(nil, px)
	}
	return newFace(f, px)
}

// Compose draws the stamp for date over base and returns the result. The base
// is never modified. When the date cannot be formatted the result is just the
// RGBA copy of base. Any rotation must already be applied to base.
func (r *Renderer) Compose(base image.Image, date string, style Style) *image.RGBA {
	out := codec.ToRGBA(base)
	b := out.Bounds()

	l, err := r.Layout(b.Dx(), b.Dy(), date, style)
	if err != nil {
		r.logger.Debug("no stamp drawn", slog.String("date", date), slog.String("error", err.Error()))
		return out
	}
	defer l.face.Close()

	// Only the area the stamp can touch is layered and composited.
	region := l.Box.Inset(-2).Union(l.Background).Intersect(b)
	if region.Empty() {
		return out
	}
	layer := image.NewRGBA(region)

	if bg, ok := style.backgroundColor(); ok {
		draw.Draw(layer, l.Background.Intersect(region), image.NewUniform(bg), image.Point{}, draw.Src)
	}

	fg := style.FontColor
	fg.A = 0xff
	d := &font.Drawer{
		Dst:  layer,
		Src:  image.NewUniform(fg),
		Face: l.face,
		Dot:  l.dot,
	}
	d.DrawString(l.Text)

	draw.Draw(out, region, layer, region.Min, draw.Over)
	return out
}
