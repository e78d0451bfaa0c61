package preview

import (
	"image"

	"github.com/electronjoe/photostamp/internal/codec"
	"github.com/electronjoe/photostamp/internal/photo"
	"github.com/electronjoe/photostamp/internal/watermark"
)

// Render loads it, applies its rotation and draws the stamp, exactly as the
// batch would, without writing anything.
func Render(r *watermark.Renderer, it photo.Item, style watermark.Style) (*image.RGBA, error) {
	img, _, _, err := codec.Load(it.Path)
	if err != nil {
		return nil, err
	}
	return r.Compose(codec.Rotate(img, it.Rotation), it.Date, style), nil
}
