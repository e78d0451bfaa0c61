package watermark

import (
	"slices"
	"strings"
)

// Position is one of the five places a stamp can sit.
type Position string

const (
	TopLeft     Position = "top-left"
	TopRight    Position = "top-right"
	BottomLeft  Position = "bottom-left"
	BottomRight Position = "bottom-right"
	Center      Position = "center"
)

// Positions lists the known positions in display order.
var Positions = []Position{TopLeft, TopRight, BottomLeft, BottomRight, Center}

// Labels written to settings files by earlier releases of the tool.
var legacyPositions = map[string]Position{
	"좌측 상단": TopLeft,
	"우측 상단": TopRight,
	"좌측 하단": BottomLeft,
	"우측 하단": BottomRight,
	"중앙":    Center,
}

// ParsePosition accepts a canonical or legacy label.
func ParsePosition(label string) (Position, bool) {
	label = strings.TrimSpace(label)
	if p, ok := legacyPositions[label]; ok {
		return p, true
	}
	p := Position(strings.ToLower(label))
	for _, known := range Positions {
		if p == known {
			return p, true
		}
	}
	return p, false
}

// Known reports whether p is one of Positions.
func (p Position) Known() bool {
	return slices.Contains(Positions, p)
}

// Next returns the position after p in display order, wrapping around.
func (p Position) Next() Position {
	for i, known := range Positions {
		if known == p {
			return Positions[(i+1)%len(Positions)]
		}
	}
	return Positions[0]
}

// HAlign is the horizontal half of an anchor mode.
type HAlign int

const (
	AlignLeft HAlign = iota
	AlignCenter
	AlignRight
)

// VAlign is the vertical half of an anchor mode.
type VAlign int

const (
	AlignTop VAlign = iota
	AlignMiddle
	AlignBottom
)

// AnchorMode says which point of the text box sits on the anchor point.
type AnchorMode struct {
	H HAlign
	V VAlign
}

func (m AnchorMode) String() string {
	h := [...]string{"left", "center", "right"}
	v := [...]string{"top", "middle", "bottom"}
	if int(m.H) >= len(h) || int(m.V) >= len(v) || m.H < 0 || m.V < 0 {
		return "invalid"
	}
	return h[m.H] + "-" + v[m.V]
}

// Place computes the anchor point and mode of a stamp on a width×height image.
// Unknown positions are treated as bottom-right.
func Place(width, height int, margin float64, pos Position) (x, y float64, mode AnchorMode) {
	w, h := float64(width), float64(height)
	switch pos {
	case TopLeft:
		return margin, margin, AnchorMode{AlignLeft, AlignTop}
	case TopRight:
		return w - margin, margin, AnchorMode{AlignRight, AlignTop}
	case BottomLeft:
		return margin, h - margin, AnchorMode{AlignLeft, AlignBottom}
	case Center:
		return w / 2, h / 2, AnchorMode{AlignCenter, AlignMiddle}
	}
	return w - margin, h - margin, AnchorMode{AlignRight, AlignBottom}
}
