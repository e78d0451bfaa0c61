// Package watermark lays out and draws the date stamp over a photo.
package watermark

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// SizeUnit selects how FontSize, Margin and Padding are interpreted.
type SizeUnit string

const (
	// UnitPixel takes sizes as literal pixels.
	UnitPixel SizeUnit = "pixel"
	// UnitPercent takes sizes as a percentage of the image's longer side.
	UnitPercent SizeUnit = "percent"
)

// Style is a snapshot of the stamp's appearance.
type Style struct {
	FontName  string
	FontSize  float64
	Unit      SizeUnit
	FontColor color.NRGBA
	// Background is nil when no box is drawn behind the text.
	Background        *color.NRGBA
	BackgroundOpacity float64 // 0-100
	Padding           float64
	Position          Position
	Margin            float64
	DateFormat        string
}

// DefaultStyle mirrors the settings defaults.
func DefaultStyle() Style {
	return Style{
		FontSize:          3,
		Unit:              UnitPercent,
		FontColor:         color.NRGBA{A: 0xff},
		BackgroundOpacity: 50,
		Padding:           1,
		Position:          BottomRight,
		Margin:            3,
		DateFormat:        "YYYY-MM-DD",
	}
}

// resolve converts the style's sizes into pixels for a width×height image.
func (s Style) resolve(width, height int) (fontPx, marginPx, paddingPx float64) {
	fontPx, marginPx, paddingPx = s.FontSize, s.Margin, s.Padding
	if s.Unit == UnitPercent {
		base := float64(max(width, height)) / 100
		fontPx *= base
		marginPx *= base
		paddingPx *= base
	}
	if fontPx < 1 || math.IsNaN(fontPx) {
		fontPx = 1
	}
	return fontPx, marginPx, paddingPx
}

// backgroundColor returns the box color with opacity applied.
func (s Style) backgroundColor() (color.NRGBA, bool) {
	if s.Background == nil {
		return color.NRGBA{}, false
	}
	opacity := math.Max(0, math.Min(100, s.BackgroundOpacity))
	c := *s.Background
	c.A = uint8(math.Round(opacity * 255 / 100))
	return c, true
}

// ParseHexColor parses "#RRGGBB" (the leading # is optional) into an opaque color.
func ParseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("color %q: want #RRGGBB", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
