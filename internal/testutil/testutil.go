// Package testutil provides shared test helpers for building photo fixtures.
package testutil

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/electronjoe/photostamp/internal/codec"
)

// Exif lists the tags ExifBlock knows how to write. Empty fields are omitted.
type Exif struct {
	DateTime          string
	DateTimeOriginal  string
	DateTimeDigitized string
	Orientation       uint16
}

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	value []byte
}

func asciiEntry(tag uint16, s string) ifdEntry {
	v := append([]byte(s), 0)
	return ifdEntry{tag: tag, typ: 2, count: uint32(len(v)), value: v}
}

// ExifBlock builds a little-endian TIFF stream with IFD0 and, when any of the
// Exif sub-IFD dates is set, an Exif sub-IFD reached through tag 0x8769.
func ExifBlock(x Exif) []byte {
	le := binary.LittleEndian

	var ifd0, sub []ifdEntry
	if x.Orientation != 0 {
		ifd0 = append(ifd0, ifdEntry{tag: 0x0112, typ: 3, count: 1, value: le.AppendUint16(nil, x.Orientation)})
	}
	if x.DateTime != "" {
		ifd0 = append(ifd0, asciiEntry(0x0132, x.DateTime))
	}
	if x.DateTimeOriginal != "" {
		sub = append(sub, asciiEntry(0x9003, x.DateTimeOriginal))
	}
	if x.DateTimeDigitized != "" {
		sub = append(sub, asciiEntry(0x9004, x.DateTimeDigitized))
	}

	ifd0Size := 2 + 12*(len(ifd0)+1) + 4
	if len(sub) == 0 {
		ifd0Size -= 12
	}
	subOff := 8 + ifd0Size
	subSize := 0
	if len(sub) > 0 {
		subSize = 2 + 12*len(sub) + 4
		ifd0 = append(ifd0, ifdEntry{tag: 0x8769, typ: 4, count: 1, value: le.AppendUint32(nil, uint32(subOff))})
	}

	dataOff := subOff + subSize
	var data []byte
	writeIFD := func(entries []ifdEntry) []byte {
		out := le.AppendUint16(nil, uint16(len(entries)))
		for _, e := range entries {
			out = le.AppendUint16(out, e.tag)
			out = le.AppendUint16(out, e.typ)
			out = le.AppendUint32(out, e.count)
			if len(e.value) <= 4 {
				field := make([]byte, 4)
				copy(field, e.value)
				out = append(out, field...)
				continue
			}
			out = le.AppendUint32(out, uint32(dataOff+len(data)))
			data = append(data, e.value...)
			if len(data)%2 == 1 {
				data = append(data, 0)
			}
		}
		return le.AppendUint32(out, 0)
	}

	var buf bytes.Buffer
	buf.WriteString("II")
	buf.Write(le.AppendUint16(nil, 42))
	buf.Write(le.AppendUint32(nil, 8))
	buf.Write(writeIFD(ifd0))
	if len(sub) > 0 {
		buf.Write(writeIFD(sub))
	}
	buf.Write(data)
	return buf.Bytes()
}

// Gradient returns a w×h opaque test image with distinct pixel values.
func Gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / max(w-1, 1)), G: uint8(y * 255 / max(h-1, 1)), B: 128, A: 255})
		}
	}
	return img
}

// WriteImage encodes img to dir/name (format chosen by extension) and embeds
// tiff verbatim when it is non-nil. It returns the full path.
func WriteImage(t *testing.T, dir, name string, img image.Image, tiff []byte) string {
	t.Helper()
	format, err := codec.FormatForPath(name)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if format == codec.FormatJPEG {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	} else {
		err = png.Encode(&buf, img)
	}
	if err != nil {
		t.Fatal(err)
	}

	data := buf.Bytes()
	if tiff != nil {
		if data, err = codec.Embed(data, format, tiff); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// WriteBroken writes a file with an image extension whose content cannot be decoded.
func WriteBroken(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("definitely not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
