package timeline

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// RGB is an opaque color. In YAML it is written either as [r, g, b] or as
// a "#rrggbb" string.
type RGB struct {
	R, G, B uint8
}

// Color converts to an opaque color.RGBA.
func (c RGB) Color() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

// String returns the "#rrggbb" form.
func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseRGB parses "#rrggbb" (the leading # is optional).
func ParseRGB(s string) (RGB, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("color %q: %w", s, err)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

func (c *RGB) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		parsed, err := ParseRGB(node.Value)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	case yaml.SequenceNode:
		var parts []int
		if err := node.Decode(&parts); err != nil {
			return err
		}
		if len(parts) != 3 {
			return fmt.Errorf("line %d: color needs 3 components, got %d", node.Line, len(parts))
		}
		for _, p := range parts {
			if p < 0 || p > 255 {
				return fmt.Errorf("line %d: color component %d out of range", node.Line, p)
			}
		}
		*c = RGB{R: uint8(parts[0]), G: uint8(parts[1]), B: uint8(parts[2])}
		return nil
	default:
		return fmt.Errorf("line %d: unsupported color form", node.Line)
	}
}

func (c RGB) MarshalYAML() (any, error) {
	return c.String(), nil
}

// Visual declares which content variant paints a scene and its parameters.
// The zero value means "no content" and renders the plain background.
type Visual struct {
	Kind     string   `yaml:"kind,omitempty"` // title, bullets, slide, qr, blank
	Headline string   `yaml:"headline,omitempty"`
	Subtitle string   `yaml:"subtitle,omitempty"`
	Lines    []string `yaml:"lines,omitempty"`

	// slide
	Source    string     `yaml:"source,omitempty"` // PDF or image path
	Page      int        `yaml:"page,omitempty"`
	DPI       int        `yaml:"dpi,omitempty"`
	Keyframes []Keyframe `yaml:"keyframes,omitempty"`

	// qr
	URL string `yaml:"url,omitempty"`
}

// Keyframe positions the slide camera at a point of scene progress.
type Keyframe struct {
	At   float64 `yaml:"at"`   // scene progress, 0..1
	X    float64 `yaml:"x"`    // focus center, fraction of image width
	Y    float64 `yaml:"y"`    // focus center, fraction of image height
	Zoom float64 `yaml:"zoom"` // 1.0 = whole image fits the frame
}
