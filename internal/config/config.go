// Package config persists the stamp settings between sessions.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/electronjoe/photostamp/internal/batch"
	"github.com/electronjoe/photostamp/internal/watermark"
)

const DefaultPath = "settings.json"

// Settings is the on-disk settings document.
type Settings struct {
	FontName   string  `json:"font_name" yaml:"font_name"`
	FontSize   float64 `json:"font_size" yaml:"font_size"`
	FontColor  string  `json:"font_color" yaml:"font_color"`
	BgColor    string  `json:"bg_color" yaml:"bg_color"`
	BgOpacity  float64 `json:"bg_opacity" yaml:"bg_opacity"`
	BgPadding  float64 `json:"bg_padding" yaml:"bg_padding"`
	Position   string  `json:"position" yaml:"position"`
	Margin     float64 `json:"margin" yaml:"margin"`
	SizeMode   string  `json:"size_mode" yaml:"size_mode"`
	DateFormat string  `json:"date_format" yaml:"date_format"`
	SaveMode   string  `json:"save_mode" yaml:"save_mode"`
}

// Size-mode labels written by earlier releases.
var legacySizeModes = map[string]watermark.SizeUnit{
	"픽셀(px)":  watermark.UnitPixel,
	"백분율(%)": watermark.UnitPercent,
}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// NewDefaultSettings returns the settings used when no file exists.
func NewDefaultSettings() *Settings {
	return &Settings{
		FontSize:   3,
		FontColor:  "#000000",
		BgOpacity:  50,
		BgPadding:  1,
		Position:   string(watermark.BottomRight),
		Margin:     3,
		SizeMode:   string(watermark.UnitPercent),
		DateFormat: "YYYY-MM-DD",
		SaveMode:   string(batch.ModeSeparate),
	}
}

// Validate checks every field.
func (s *Settings) Validate() error {
	positions := make([]interface{}, len(watermark.Positions))
	for i, p := range watermark.Positions {
		positions[i] = string(p)
	}
	return validation.ValidateStruct(s,
		validation.Field(&s.FontSize, validation.Min(0.0)),
		validation.Field(&s.FontColor, validation.Required, validation.Match(hexColor)),
		validation.Field(&s.BgColor, validation.When(!noBackground(s.BgColor), validation.Match(hexColor))),
		validation.Field(&s.BgOpacity, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&s.BgPadding, validation.Min(0.0)),
		validation.Field(&s.Position, validation.Required, validation.In(positions...)),
		validation.Field(&s.Margin, validation.Min(0.0)),
		validation.Field(&s.SizeMode, validation.Required,
			validation.In(string(watermark.UnitPixel), string(watermark.UnitPercent))),
		validation.Field(&s.DateFormat, validation.Required),
		validation.Field(&s.SaveMode, validation.Required,
			validation.In(string(batch.ModeOverwrite), string(batch.ModeSeparate))),
	)
}

func noBackground(c string) bool {
	c = strings.TrimSpace(c)
	return c == "" || strings.EqualFold(c, "none")
}

// normalize rewrites legacy labels to their canonical values.
func (s *Settings) normalize() {
	if p, ok := watermark.ParsePosition(s.Position); ok {
		s.Position = string(p)
	}
	if u, ok := legacySizeModes[strings.TrimSpace(s.SizeMode)]; ok {
		s.SizeMode = string(u)
	}
	s.SaveMode = strings.ToLower(strings.TrimSpace(s.SaveMode))
}

// Style converts validated settings into a watermark style.
func (s *Settings) Style() (watermark.Style, error) {
	fg, err := watermark.ParseHexColor(s.FontColor)
	if err != nil {
		return watermark.Style{}, fmt.Errorf("font_color: %w", err)
	}
	style := watermark.Style{
		FontName:          s.FontName,
		FontSize:          s.FontSize,
		Unit:              watermark.SizeUnit(s.SizeMode),
		FontColor:         fg,
		BackgroundOpacity: s.BgOpacity,
		Padding:           s.BgPadding,
		Position:          watermark.Position(s.Position),
		Margin:            s.Margin,
		DateFormat:        s.DateFormat,
	}
	if !noBackground(s.BgColor) {
		bg, err := watermark.ParseHexColor(s.BgColor)
		if err != nil {
			return watermark.Style{}, fmt.Errorf("bg_color: %w", err)
		}
		style.Background = &bg
	}
	return style, nil
}

// Mode returns the configured save mode.
func (s *Settings) Mode() batch.Mode {
	return batch.Mode(s.SaveMode)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads the settings at path. A missing file yields the defaults; keys
// absent from the file keep their default values.
func Load(path string) (*Settings, error) {
	s := NewDefaultSettings()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file at %s: %w", path, err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, s)
	} else {
		err = json.Unmarshal(data, s)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings file at %s: %w", path, err)
	}

	s.normalize()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}
	return s, nil
}

// Save writes s to path, replacing any previous file in one step.
func Save(path string, s *Settings) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(s)
	} else {
		data, err = json.MarshalIndent(s, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}
