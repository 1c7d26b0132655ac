package thumbnail

import (
	"encoding/hex"
	"fmt"
	"image/color"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Palette maps template color keywords to hex values without the leading '#'.
type Palette map[string]string

// DefaultPalette holds the accent colors templates may name.
func DefaultPalette() Palette {
	return Palette{
		"tart":      "f9393f",
		"honey":     "ffcc33",
		"yellow":    "ffff33",
		"green":     "d0ff14",
		"capri":     "00ccff",
		"bluetiful": "0b68fe",
		"violet":    "7f00ff",
		"pink":      "fc74fd",
	}
}

// LoadPalette reads keyword overrides from a YAML file and merges them over
// the defaults. An empty path returns the defaults.
//
//	capri: "00bbee"
//	mint: "3eb489"
func LoadPalette(path string) (Palette, error) {
	p := DefaultPalette()
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read palette: %w", err)
	}
	var overrides map[string]string
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse palette: %w", err)
	}
	for k, v := range overrides {
		if _, err := parseHex(v); err != nil {
			return nil, fmt.Errorf("palette %q: %w", k, err)
		}
		p[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return p, nil
}

// Color resolves a keyword, falling back to treating it as a raw hex value.
func (p Palette) Color(keyword string) (color.Color, error) {
	k := strings.ToLower(strings.TrimSpace(keyword))
	if v, ok := p[k]; ok {
		return parseHex(v)
	}
	return parseHex(k)
}

func parseHex(s string) (color.Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{R: b[0], G: b[1], B: b[2], A: 0xff}, nil
}
