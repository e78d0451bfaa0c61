package viewer

import (
	"image"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

const maxTileSize = 2048

// TiledImage holds one large image that may be split into multiple sub-images (tiles)
// if its dimensions exceed Ebiten's max texture size.
type TiledImage struct {
	tiles       []*ebiten.Image
	rects       []image.Rectangle
	totalWidth  int
	totalHeight int
}

// newTiledImage uploads src, chopped into tiles no larger than maxTileSize.
func newTiledImage(src *image.RGBA) *TiledImage {
	b := src.Bounds()
	t := &TiledImage{totalWidth: b.Dx(), totalHeight: b.Dy()}
	for _, r := range tileRects(b.Dx(), b.Dy()) {
		sub := src.SubImage(r.Add(b.Min))
		t.tiles = append(t.tiles, ebiten.NewImageFromImage(sub))
		t.rects = append(t.rects, r)
	}
	return t
}

// tileRects splits a w×h area into row-major tiles.
func tileRects(w, h int) []image.Rectangle {
	var rects []image.Rectangle
	for y := 0; y < h; y += maxTileSize {
		for x := 0; x < w; x += maxTileSize {
			rects = append(rects, image.Rect(x, y, min(x+maxTileSize, w), min(y+maxTileSize, h)))
		}
	}
	return rects
}

// Dispose frees the GPU textures.
func (t *TiledImage) Dispose() {
	for _, tile := range t.tiles {
		tile.Dispose()
	}
	t.tiles = nil
}

// draw scales the image to fit the area and centers it there.
func (t *TiledImage) draw(screen *ebiten.Image, area image.Rectangle) {
	scale := computeScale(t.totalWidth, t.totalHeight, area.Dx(), area.Dy())
	offsetX := float64(area.Min.X) + (float64(area.Dx())-float64(t.totalWidth)*scale)/2
	offsetY := float64(area.Min.Y) + (float64(area.Dy())-float64(t.totalHeight)*scale)/2

	for i, tile := range t.tiles {
		op := &ebiten.DrawImageOptions{}
		op.GeoM.Translate(float64(t.rects[i].Min.X), float64(t.rects[i].Min.Y))
		op.GeoM.Scale(scale, scale)
		op.GeoM.Translate(offsetX, offsetY)
		op.Filter = ebiten.FilterLinear
		screen.DrawImage(tile, op)
	}
}

func computeScale(imgW, imgH, screenW, screenH int) float64 {
	if imgW == 0 || imgH == 0 {
		return 1.0
	}
	scaleW := float64(screenW) / float64(imgW)
	scaleH := float64(screenH) / float64(imgH)
	return math.Min(scaleW, scaleH)
}
