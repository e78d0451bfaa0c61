// Package codec decodes and encodes the two raster families the tool accepts,
// JPEG and PNG, and carries their EXIF block across a re-encode.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imageorient"
	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// Supported formats as reported by image.Decode.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
)

// JPEGQuality is used for every JPEG written by the tool.
const JPEGQuality = 95

// ErrUnsupportedFormat is returned for anything that is not JPEG or PNG.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// IsSupportedPath reports whether path has a JPEG or PNG extension.
func IsSupportedPath(path string) bool {
	_, err := FormatForPath(path)
	return err == nil
}

// FormatForPath picks the output format from a file extension.
func FormatForPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".png":
		return FormatPNG, nil
	}
	return "", fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
}

// Decode decodes data and applies the EXIF orientation so that the returned
// pixels are upright. For PNG the orientation comes from the eXIf chunk.
func Decode(data []byte) (image.Image, string, error) {
	if bytes.HasPrefix(data, pngSignature) {
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, "", fmt.Errorf("decode image: %w", err)
		}
		return Orient(img, Orientation(Metadata(data, FormatPNG))), FormatPNG, nil
	}

	img, format, err := imageorient.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if format != FormatJPEG {
		return nil, "", fmt.Errorf("decode image: %s: %w", format, ErrUnsupportedFormat)
	}
	return img, format, nil
}

// Orientation reads the EXIF Orientation tag (1 to 8) from a TIFF-structured
// block. Missing or unreadable values count as 1.
func Orientation(tiff []byte) int {
	if len(tiff) == 0 {
		return 1
	}
	x, err := exif.Decode(bytes.NewReader(tiff))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return 1
	}
	return o
}

// Orient transforms img so that an image stored with orientation o displays
// upright.
func Orient(img image.Image, o int) image.Image {
	switch o {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	}
	return img
}

// Load reads and decodes the file at path, returning the upright image, its
// format and its raw EXIF block (nil when absent).
func Load(path string) (image.Image, string, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", nil, fmt.Errorf("read %s: %w", path, err)
	}
	img, format, err := Decode(data)
	if err != nil {
		return nil, "", nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, format, Metadata(data, format), nil
}

// Rotate turns img counter-clockwise by degrees. The canvas grows to hold the
// whole rotated image instead of cropping it.
func Rotate(img image.Image, degrees int) image.Image {
	switch ((degrees % 360) + 360) % 360 {
	case 0:
		return img
	case 90:
		return imaging.Rotate90(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate270(img)
	default:
		return imaging.Rotate(img, float64(degrees), color.Transparent)
	}
}

// ToRGBA returns a fresh *image.RGBA copy of img with its origin at (0, 0).
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// Flatten drops the alpha channel, keeping each pixel's straight color.
func Flatten(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}

// Encode writes img in format. A non-nil meta block is embedded with its
// Orientation tag reset, since the pixels written are already upright.
func Encode(w io.Writer, img image.Image, format string, meta []byte) error {
	var buf bytes.Buffer
	switch format {
	case FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
			return fmt.Errorf("encode jpeg: %w", err)
		}
	case FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
	default:
		return fmt.Errorf("encode %s: %w", format, ErrUnsupportedFormat)
	}

	data := buf.Bytes()
	if len(meta) > 0 {
		var err error
		if data, err = Embed(data, format, ResetOrientation(meta)); err != nil {
			return err
		}
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", format, err)
	}
	return nil
}

// Save encodes img to path through a temporary file in the same directory,
// so a reader never sees a half-written image.
func Save(path string, img image.Image, format string, meta []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	// An overwritten file keeps its permissions.
	perm := os.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		perm = fi.Mode().Perm()
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := Encode(tmp, img, format, meta); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
