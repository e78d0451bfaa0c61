package photo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/electronjoe/photostamp/internal/testutil"
)

func TestExtractDate_Priority(t *testing.T) {
	dir := t.TempDir()
	img := testutil.Gradient(8, 8)

	tests := []struct {
		name string
		exif *testutil.Exif
		want string
	}{
		{"original wins", &testutil.Exif{DateTimeOriginal: "2021:01:02 03:04:05", DateTimeDigitized: "2022:01:01 00:00:00", DateTime: "2023:01:01 00:00:00"}, "2021-01-02"},
		{"digitized next", &testutil.Exif{DateTimeDigitized: "2022:06:07 00:00:00", DateTime: "2023:01:01 00:00:00"}, "2022-06-07"},
		{"ifd0 last", &testutil.Exif{DateTime: "2023:11:12 13:14:15"}, "2023-11-12"},
		{"blank original falls through", &testutil.Exif{DateTimeOriginal: "    :  :     :  :  ", DateTime: "2019:09:09 09:09:09"}, "2019-09-09"},
		{"no dates", &testutil.Exif{Orientation: 1}, ""},
		{"no exif", nil, ""},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, ext := range []string{".jpg", ".png"} {
				var tiff []byte
				if tt.exif != nil {
					tiff = testutil.ExifBlock(*tt.exif)
				}
				path := testutil.WriteImage(t, dir, string(rune('a'+i))+ext, img, tiff)
				if got := ExtractDate(path); got != tt.want {
					t.Errorf("%s: ExtractDate = %q, want %q", ext, got, tt.want)
				}
			}
		})
	}
}

func TestExtractDate_Unreadable(t *testing.T) {
	dir := t.TempDir()
	if got := ExtractDate(filepath.Join(dir, "missing.jpg")); got != "" {
		t.Errorf("missing file = %q", got)
	}
	if got := ExtractDate(testutil.WriteBroken(t, dir, "broken.jpg")); got != "" {
		t.Errorf("broken file = %q", got)
	}
}

func TestNormalizeExifDate(t *testing.T) {
	tests := map[string]string{
		"2024:02:29 10:00:00": "2024-02-29",
		"2024:02:29":          "2024-02-29",
		" 2024:02:29 10:00 ":  "2024-02-29",
		"2024-02-29 10:00:00": "",
		"24:02:29":            "",
		"":                    "",
	}
	for in, want := range tests {
		if got := normalizeExifDate(in); got != want {
			t.Errorf("normalizeExifDate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestItem(t *testing.T) {
	it := Item{Path: "x.jpg"}
	for _, want := range []int{90, 180, 270, 0, 90} {
		it.Rotate()
		if it.Rotation != want {
			t.Fatalf("rotation = %d, want %d", it.Rotation, want)
		}
	}
	it.SetDate("  2020-01-01 ")
	if it.Date != "2020-01-01" || !it.HasDate() {
		t.Errorf("date = %q", it.Date)
	}
	it.SetDate("")
	if it.HasDate() {
		t.Error("empty date reported as set")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	img := testutil.Gradient(4, 4)
	testutil.WriteImage(t, dir, "a.jpg", img, testutil.ExifBlock(testutil.Exif{DateTime: "2010:10:10 10:10:10"}))
	testutil.WriteImage(t, dir, "b.png", img, nil)
	testutil.WriteImage(t, sub, "c.jpg", img, nil)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	flat := Load([]string{dir}, LoadOptions{})
	if len(flat) != 2 {
		t.Fatalf("non-recursive load = %d items, want 2", len(flat))
	}
	if flat[0].Date != "2010-10-10" || flat[1].Date != "" {
		t.Errorf("dates = %q, %q", flat[0].Date, flat[1].Date)
	}

	deep := Load([]string{dir, filepath.Join(dir, "a.jpg"), filepath.Join(dir, "missing.jpg")}, LoadOptions{Recursive: true})
	if len(deep) != 3 {
		t.Fatalf("recursive load = %d items, want 3 (duplicates and missing dropped)", len(deep))
	}
}

func TestDateCache(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache", "dates.json")
	photo := testutil.WriteImage(t, dir, "a.jpg", testutil.Gradient(4, 4), testutil.ExifBlock(testutil.Exif{DateTime: "2010:10:10 10:10:10"}))

	cache, err := OpenDateCache(cachePath)
	if err != nil {
		t.Fatal(err)
	}
	items := Load([]string{photo}, LoadOptions{Cache: cache})
	if items[0].Date != "2010-10-10" {
		t.Fatalf("date = %q", items[0].Date)
	}
	if err := cache.Save(); err != nil {
		t.Fatal(err)
	}

	// A cache hit must not re-read the file: poison the entry and reload.
	reopened, err := OpenDateCache(cachePath)
	if err != nil {
		t.Fatal(err)
	}
	info, _ := os.Stat(photo)
	reopened.set(photo, info.ModTime(), "1999-09-09")
	if got := Load([]string{photo}, LoadOptions{Cache: reopened})[0].Date; got != "1999-09-09" {
		t.Errorf("cached date = %q, want poisoned value", got)
	}

	// A newer modification time invalidates the entry.
	later := info.ModTime().Add(time.Hour)
	if err := os.Chtimes(photo, later, later); err != nil {
		t.Fatal(err)
	}
	if got := Load([]string{photo}, LoadOptions{Cache: reopened})[0].Date; got != "2010-10-10" {
		t.Errorf("date after touch = %q", got)
	}
}

func TestOpenDateCache_VersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dates.json")
	if err := os.WriteFile(path, []byte(`{"version":99,"entries":{"x":{"modTime":1,"date":"2000-01-01"}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cache, err := OpenDateCache(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cache.Entries) != 0 {
		t.Errorf("entries = %v, want empty", cache.Entries)
	}
}
