package photo

import (
	"bytes"
	"os"
	"strings"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/electronjoe/photostamp/internal/codec"
)

// dateTags are consulted in order; the first non-empty value wins.
var dateTags = []exif.FieldName{
	exif.DateTimeOriginal,
	exif.DateTimeDigitized,
	exif.DateTime,
}

// ExtractDate returns the capture date of the image at path as YYYY-MM-DD, or
// an empty string when the file has no usable date. It never fails.
func ExtractDate(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return extractDate(data)
}

func extractDate(data []byte) string {
	block := data
	if bytes.HasPrefix(data, []byte("\x89PNG")) {
		block = codec.Metadata(data, codec.FormatPNG)
		if block == nil {
			return ""
		}
	}

	x, err := exif.Decode(bytes.NewReader(block))
	if err != nil || x == nil {
		return ""
	}

	for _, name := range dateTags {
		tag, err := x.Get(name)
		if err != nil || tag == nil {
			continue
		}
		s, err := tag.StringVal()
		if err != nil {
			continue
		}
		if date := normalizeExifDate(s); date != "" {
			return date
		}
	}
	return ""
}

// normalizeExifDate turns "YYYY:MM:DD HH:MM:SS" into "YYYY-MM-DD".
func normalizeExifDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	date, _, _ := strings.Cut(s, " ")
	if len(date) != 10 || date[4] != ':' || date[7] != ':' {
		return ""
	}
	for i, r := range date {
		if i == 4 || i == 7 {
			continue
		}
		if r < '0' || r > '9' {
			return ""
		}
	}
	return strings.ReplaceAll(date, ":", "-")
}
