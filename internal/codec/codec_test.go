package codec_test

import (
	"bytes"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/electronjoe/photostamp/internal/codec"
	"github.com/electronjoe/photostamp/internal/testutil"
)

func TestFormatForPath(t *testing.T) {
	tests := map[string]string{
		"a.jpg":  codec.FormatJPEG,
		"a.JPEG": codec.FormatJPEG,
		"b.png":  codec.FormatPNG,
	}
	for path, want := range tests {
		got, err := codec.FormatForPath(path)
		if err != nil || got != want {
			t.Errorf("FormatForPath(%q) = %q, %v; want %q", path, got, err, want)
		}
	}
	if _, err := codec.FormatForPath("c.gif"); !errors.Is(err, codec.ErrUnsupportedFormat) {
		t.Errorf("gif error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestLoad_AppliesOrientation(t *testing.T) {
	dir := t.TempDir()
	tiff := testutil.ExifBlock(testutil.Exif{Orientation: 6, DateTime: "2020:05:06 07:08:09"})
	path := testutil.WriteImage(t, dir, "o.jpg", testutil.Gradient(40, 20), tiff)

	img, format, meta, err := codec.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if format != codec.FormatJPEG {
		t.Errorf("format = %q", format)
	}
	if b := img.Bounds(); b.Dx() != 20 || b.Dy() != 40 {
		t.Errorf("bounds = %v, want 20x40 after orientation 6", b)
	}
	if !bytes.Equal(meta, tiff) {
		t.Errorf("metadata block not returned verbatim")
	}
}

func TestLoad_AppliesPNGOrientation(t *testing.T) {
	dir := t.TempDir()
	src := testutil.Gradient(40, 20)
	tiff := testutil.ExifBlock(testutil.Exif{Orientation: 6})
	path := testutil.WriteImage(t, dir, "o.png", src, tiff)

	img, format, meta, err := codec.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if format != codec.FormatPNG {
		t.Errorf("format = %q", format)
	}
	if b := img.Bounds(); b.Dx() != 20 || b.Dy() != 40 {
		t.Fatalf("bounds = %v, want 20x40 after orientation 6", b)
	}
	// A quarter turn clockwise brings the bottom-left pixel to the top-left.
	if got := codec.ToRGBA(img).RGBAAt(0, 0); got != src.RGBAAt(0, 19) {
		t.Errorf("(0,0) = %v, want %v", got, src.RGBAAt(0, 19))
	}
	if codec.Orientation(meta) != 6 {
		t.Errorf("Orientation(meta) = %d, want 6", codec.Orientation(meta))
	}
}

func TestOrient(t *testing.T) {
	src := testutil.Gradient(3, 2)
	tests := []struct {
		o    int
		size image.Point
		at   image.Point // source pixel expected at (0, 0)
	}{
		{1, image.Pt(3, 2), image.Pt(0, 0)},
		{2, image.Pt(3, 2), image.Pt(2, 0)},
		{3, image.Pt(3, 2), image.Pt(2, 1)},
		{4, image.Pt(3, 2), image.Pt(0, 1)},
		{5, image.Pt(2, 3), image.Pt(0, 0)},
		{6, image.Pt(2, 3), image.Pt(0, 1)},
		{7, image.Pt(2, 3), image.Pt(2, 1)},
		{8, image.Pt(2, 3), image.Pt(2, 0)},
		{9, image.Pt(3, 2), image.Pt(0, 0)},
	}
	for _, tt := range tests {
		got := codec.ToRGBA(codec.Orient(src, tt.o))
		if b := got.Bounds(); b.Dx() != tt.size.X || b.Dy() != tt.size.Y {
			t.Errorf("Orient(%d) size = %v, want %v", tt.o, b.Size(), tt.size)
			continue
		}
		if got.RGBAAt(0, 0) != src.RGBAAt(tt.at.X, tt.at.Y) {
			t.Errorf("Orient(%d) (0,0) = %v, want source %v", tt.o, got.RGBAAt(0, 0), tt.at)
		}
	}
}

func TestOrientation_Missing(t *testing.T) {
	if o := codec.Orientation(nil); o != 1 {
		t.Errorf("nil block = %d", o)
	}
	if o := codec.Orientation(testutil.ExifBlock(testutil.Exif{DateTime: "2001:02:03 04:05:06"})); o != 1 {
		t.Errorf("block without tag = %d", o)
	}
}

func TestLoad_Broken(t *testing.T) {
	path := testutil.WriteBroken(t, t.TempDir(), "x.jpg")
	if _, _, _, err := codec.Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRotate_Expands(t *testing.T) {
	src := testutil.Gradient(30, 10)
	for deg, want := range map[int]image.Point{0: {30, 10}, 90: {10, 30}, 180: {30, 10}, 270: {10, 30}, 360: {30, 10}} {
		b := codec.Rotate(src, deg).Bounds()
		if b.Dx() != want.X || b.Dy() != want.Y {
			t.Errorf("Rotate(%d) size = %dx%d, want %dx%d", deg, b.Dx(), b.Dy(), want.X, want.Y)
		}
	}
}

func TestRotate_CounterClockwise(t *testing.T) {
	src := testutil.Gradient(3, 2)
	got := codec.ToRGBA(codec.Rotate(src, 90))
	// The top-right source pixel ends up top-left after a quarter turn to the left.
	if got.RGBAAt(0, 0) != src.RGBAAt(2, 0) {
		t.Errorf("rotated (0,0) = %v, want %v", got.RGBAAt(0, 0), src.RGBAAt(2, 0))
	}
}

func TestFlatten(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.Pix = []uint8{200, 100, 50, 10}
	out := codec.Flatten(img)
	if got := out.Pix; got[0] != 200 || got[1] != 100 || got[2] != 50 || got[3] != 255 {
		t.Errorf("flattened = %v", got)
	}
}

func TestSave_ReattachesMetadata(t *testing.T) {
	for _, name := range []string{"out.jpg", "out.png"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			tiff := testutil.ExifBlock(testutil.Exif{Orientation: 8, DateTimeOriginal: "2001:02:03 04:05:06"})
			format, _ := codec.FormatForPath(name)
			path := filepath.Join(dir, name)

			if err := codec.Save(path, testutil.Gradient(8, 8), format, tiff); err != nil {
				t.Fatal(err)
			}

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			meta := codec.Metadata(data, format)
			if meta == nil {
				t.Fatal("metadata missing after save")
			}
			x, err := exif.Decode(bytes.NewReader(meta))
			if err != nil {
				t.Fatal(err)
			}
			tag, err := x.Get(exif.Orientation)
			if err != nil {
				t.Fatal(err)
			}
			if v, _ := tag.Int(0); v != 1 {
				t.Errorf("orientation = %d, want 1", v)
			}
			tag, err = x.Get(exif.DateTimeOriginal)
			if err != nil {
				t.Fatal(err)
			}
			if s, _ := tag.StringVal(); s != "2001:02:03 04:05:06" {
				t.Errorf("DateTimeOriginal = %q", s)
			}

			if _, _, err := codec.Decode(data); err != nil {
				t.Errorf("saved file does not decode: %v", err)
			}
			entries, _ := os.ReadDir(dir)
			if len(entries) != 1 {
				t.Errorf("temp files left behind: %v", entries)
			}
		})
	}
}

func TestSave_KeepsPermissions(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteImage(t, dir, "keep.png", testutil.Gradient(4, 4), nil)
	if err := os.Chmod(path, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := codec.Save(path, testutil.Gradient(4, 4), codec.FormatPNG, nil); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := fi.Mode().Perm(); perm != 0o600 {
		t.Errorf("mode = %o, want 600", perm)
	}

	fresh := filepath.Join(dir, "fresh.png")
	if err := codec.Save(fresh, testutil.Gradient(4, 4), codec.FormatPNG, nil); err != nil {
		t.Fatal(err)
	}
	fi, err = os.Stat(fresh)
	if err != nil {
		t.Fatal(err)
	}
	if perm := fi.Mode().Perm(); perm != 0o644 {
		t.Errorf("new file mode = %o, want 644", perm)
	}
}

func TestResetOrientation_NoTag(t *testing.T) {
	tiff := testutil.ExifBlock(testutil.Exif{DateTime: "2001:02:03 04:05:06"})
	if !bytes.Equal(codec.ResetOrientation(tiff), tiff) {
		t.Error("block without orientation changed")
	}
	if got := codec.ResetOrientation([]byte("xx")); string(got) != "xx" {
		t.Errorf("short block = %q", got)
	}
}
