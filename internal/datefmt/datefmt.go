// Package datefmt renders a stored YYYY-MM-DD date through a user template
// such as "YYYY. M. D." or "AA, MM/DD/YY".
package datefmt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the only accepted shape of a stored date.
const DateLayout = "2006-01-02"

// ErrEmptyText is returned when a template renders to nothing.
var ErrEmptyText = errors.New("template renders empty text")

// ParseError reports a stored date that is not a valid YYYY-MM-DD value.
type ParseError struct {
	Date string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid date %q: %v", e.Date, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

type token struct {
	text   string
	render func(t time.Time) string
}

// Longest tokens first so that YYYY wins over YY, MM over M, and so on.
var tokens = []token{
	{"YYYY", func(t time.Time) string { return fmt.Sprintf("%04d", t.Year()) }},
	{"YY", func(t time.Time) string { return fmt.Sprintf("%02d", t.Year()%100) }},
	{"MM", func(t time.Time) string { return fmt.Sprintf("%02d", int(t.Month())) }},
	{"DD", func(t time.Time) string { return fmt.Sprintf("%02d", t.Day()) }},
	{"AA", func(t time.Time) string { return t.Weekday().String() }},
	{"M", func(t time.Time) string { return strconv.Itoa(int(t.Month())) }},
	{"D", func(t time.Time) string { return strconv.Itoa(t.Day()) }},
	{"A", func(t time.Time) string { return t.Weekday().String()[:3] }},
}

// Parse validates date strictly as YYYY-MM-DD.
func Parse(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, &ParseError{Date: date, Err: err}
	}
	return t, nil
}

// Format renders date through template. Token letters match case-insensitively;
// every other character is copied as is.
func Format(date, template string) (string, error) {
	t, err := Parse(date)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 0; i < len(template); {
		matched := false
		for _, tok := range tokens {
			end := i + len(tok.text)
			if end <= len(template) && strings.EqualFold(template[i:end], tok.text) {
				b.WriteString(tok.render(t))
				i = end
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(template[i])
			i++
		}
	}

	if b.Len() == 0 {
		return "", ErrEmptyText
	}
	return b.String(), nil
}
