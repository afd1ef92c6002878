package render

import (
	"sort"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/jlindqvist/chorogram/pkg/errors"
)

// ColorScale maps a feature value to a display color. Scales are built once
// at map construction and never mutated; changing the scheme means building
// a new scale.
type ColorScale interface {
	// Color returns the color for a value, and whether the value is
	// inside the scale's domain.
	Color(value any) (string, bool)

	// Domain lists the scale's discrete domain values for legend
	// rendering. Empty for continuous scales.
	Domain() []string

	// Qualitative reports whether the scale has a discrete domain.
	Qualitative() bool
}

// NewColorScale builds the scale named by the validated options.
func NewColorScale(o *Options) (ColorScale, error) {
	switch o.ColorScheme {
	case SchemeQualitative:
		return newQualitativeScale(o.ColorData), nil
	case SchemeSequential:
		return newSequentialScale(o.ColorRange, o.ColorDomain)
	}
	return nil, errors.New(errors.ErrCodeInvalidScheme, "unknown color scheme %q", o.ColorScheme)
}

// qualitativeScale maps exact domain values to fixed colors.
type qualitativeScale struct {
	colors map[string]string
	domain []string
}

func newQualitativeScale(colorData map[string]string) *qualitativeScale {
	s := &qualitativeScale{colors: make(map[string]string, len(colorData))}
	for value, color := range colorData {
		s.colors[value] = color
		s.domain = append(s.domain, value)
	}
	sort.Strings(s.domain)
	return s
}

func (s *qualitativeScale) Color(value any) (string, bool) {
	c, ok := s.colors[formatValue(value)]
	return c, ok
}

func (s *qualitativeScale) Domain() []string { return s.domain }
func (s *qualitativeScale) Qualitative() bool { return true }

// sequentialScale interpolates between two endpoint colors in Lab space
// over a numeric domain.
type sequentialScale struct {
	from colorful.Color
	to   colorful.Color
	min  float64
	max  float64
}

func newSequentialScale(colorRange [2]string, domain [2]float64) (*sequentialScale, error) {
	if colorRange[0] == "" || colorRange[1] == "" {
		return nil, errors.New(errors.ErrCodeInvalidScheme, "sequential scheme needs two range colors")
	}
	from, err := colorful.Hex(colorRange[0])
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidScheme, err, "bad range color %q", colorRange[0])
	}
	to, err := colorful.Hex(colorRange[1])
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidScheme, err, "bad range color %q", colorRange[1])
	}
	if domain[0] >= domain[1] {
		return nil, errors.New(errors.ErrCodeInvalidScheme, "sequential domain must be an increasing interval")
	}
	return &sequentialScale{from: from, to: to, min: domain[0], max: domain[1]}, nil
}

func (s *sequentialScale) Color(value any) (string, bool) {
	v, ok := asFloat(value)
	if !ok {
		return "", false
	}
	t := (v - s.min) / (s.max - s.min)
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return s.from.BlendLab(s.to, t).Clamped().Hex(), true
}

func (s *sequentialScale) Domain() []string { return nil }
func (s *sequentialScale) Qualitative() bool { return false }

func asFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
