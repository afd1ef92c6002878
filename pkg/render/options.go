// Package render turns decoded topology plus per-feature data into a
// self-contained choropleth SVG: projected region paths and point markers
// colored by a data-driven scale, with labels, a legend, and hover tooltips
// wired through embedded CSS/JS.
package render

import (
	"math"

	"github.com/jlindqvist/chorogram/pkg/errors"
	"github.com/jlindqvist/chorogram/pkg/topo"
)

// Color scheme kinds accepted by Options.ColorScheme.
const (
	SchemeQualitative = "qualitative"
	SchemeSequential  = "sequential"
)

// Sizing and projection defaults.
const (
	DefaultWidth       = 960.0
	DefaultAspectRatio = 0.5625
	DefaultLabelSource = "name"
	DefaultTemplate    = "[[name]]: [[value]]"
)

// DefaultScaleFactor makes the full longitude range span the map width
// under the equirectangular projection.
var DefaultScaleFactor = 1 / (2 * math.Pi)

// Options configures one map rendering. Optional toggles are pointers so an
// explicitly set false survives defaulting; every other field treats its
// zero value as unset. ValidateAndSetDefaults fills the gaps exactly once
// and is idempotent.
type Options struct {
	// Dataset and Granularity select the topology source. Both are
	// required; validation fails without them.
	Dataset     string
	Granularity string

	// Width, Height and AspectRatio pick the sizing strategy: explicit
	// width and height win, otherwise height derives from width and the
	// aspect ratio.
	Width       float64
	Height      float64
	AspectRatio float64

	// Data holds per-feature property records merged into the topology
	// by numeric feature id before drawing.
	Data map[int]topo.Properties

	// TopologyAdditions is extra geometry merged into the loaded
	// topology under its collection names.
	TopologyAdditions map[string]*topo.FeatureCollection

	// ColorScheme selects the scale kind. ColorData maps domain values
	// to colors for the qualitative scheme; ColorRange and ColorDomain
	// bound the sequential scheme.
	ColorScheme string
	ColorData   map[string]string
	ColorRange  [2]string
	ColorDomain [2]float64

	// ExtraLayers names additional collections drawn after the primary
	// granularity layer.
	ExtraLayers []string

	Labels          *bool
	LabelsSource    string
	Legend          *bool
	LegendLabels    map[string]string
	Tooltip         *bool
	TooltipTemplate string

	// Center places the projection origin as fractions of the drawing
	// box. ScaleFactor scales the projection relative to the width.
	Center      *[2]float64
	ScaleFactor float64
}

// ValidateAndSetDefaults checks required fields and back-fills every unset
// optional field with its documented default. Fields the caller set are
// never overwritten, so running it on an already-complete Options is a
// no-op.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Dataset == "" {
		return errors.New(errors.ErrCodeInvalidOptions, "dataset is required")
	}
	if o.Granularity == "" {
		return errors.New(errors.ErrCodeInvalidOptions, "granularity is required")
	}

	if o.AspectRatio == 0 {
		o.AspectRatio = DefaultAspectRatio
	}
	if o.Width == 0 {
		if o.Height != 0 {
			o.Width = o.Height / o.AspectRatio
		} else {
			o.Width = DefaultWidth
		}
	}
	if o.Height == 0 {
		o.Height = o.Width * o.AspectRatio
	}

	if o.ColorScheme == "" {
		o.ColorScheme = SchemeQualitative
	}
	switch o.ColorScheme {
	case SchemeQualitative, SchemeSequential:
	default:
		return errors.New(errors.ErrCodeInvalidScheme, "unknown color scheme %q", o.ColorScheme)
	}

	if o.Labels == nil {
		o.Labels = boolPtr(false)
	}
	if o.LabelsSource == "" {
		o.LabelsSource = DefaultLabelSource
	}
	if o.Legend == nil {
		o.Legend = boolPtr(false)
	}
	if o.Tooltip == nil {
		o.Tooltip = boolPtr(true)
	}
	if o.TooltipTemplate == "" {
		o.TooltipTemplate = DefaultTemplate
	}

	if o.Center == nil {
		o.Center = &[2]float64{0.5, 0.5}
	}
	if o.ScaleFactor == 0 {
		o.ScaleFactor = DefaultScaleFactor
	}
	return nil
}

func boolPtr(b bool) *bool { return &b }
