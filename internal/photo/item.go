package photo

import "strings"

// Item is one queued photo.
type Item struct {
	Path     string
	Date     string // YYYY-MM-DD, or empty when unknown
	Rotation int    // degrees counter-clockwise: 0, 90, 180 or 270
}

// SetDate stores a user-edited date.
func (it *Item) SetDate(date string) {
	it.Date = strings.TrimSpace(date)
}

// Rotate turns the item a further 90 degrees.
func (it *Item) Rotate() {
	it.Rotation = (it.Rotation + 90) % 360
}

// HasDate reports whether the item can be stamped.
func (it Item) HasDate() bool {
	return it.Date != ""
}
