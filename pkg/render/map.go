package render

import (
	"bytes"
	"fmt"
	"html"
	"io"

	"github.com/charmbracelet/log"

	"github.com/jlindqvist/chorogram/pkg/errors"
	"github.com/jlindqvist/chorogram/pkg/topo"
)

// Map lifecycle stages. Every operation requires the stage its predecessor
// established; construction runs the map through sized and projected. The
// layered stage covers zero or more drawn layers: a layer walk where every
// collection was missing still counts as layered.
type stage int

const (
	stageUninitialized stage = iota
	stageSized
	stageProjected
	stageLayered
	stageLegend
)

// labelExcludedIDs are feature ids never labeled. Their labels would land
// far outside the usual viewport or overlap everything around them.
var labelExcludedIDs = map[int]bool{
	10:  true, // Antarctica
	260: true, // French Southern Territories
}

// Map owns one choropleth rendering: the drawing box, projection, path
// generator and color scale, plus the layers drawn onto it. Build one with
// NewMap, draw layers and annotations, then emit SVG with Render.
type Map struct {
	options    *Options
	topology   *topo.Topology
	projection *Projection
	path       *PathGenerator
	scale      ColorScale
	logger     *log.Logger

	stage       stage
	layers      []drawnLayer
	labelLayers []string
	legend      []legendEntry
}

type drawnLayer struct {
	name     string
	strategy LayerStrategy
	fc       *topo.FeatureCollection
}

type legendEntry struct {
	color string
	label string
}

// MapOption configures a Map beyond its Options record.
type MapOption func(*Map)

// WithLogger routes the map's warnings somewhere visible. The default
// logger discards everything.
func WithLogger(logger *log.Logger) MapOption {
	return func(m *Map) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMap validates and defaults the options, sizes the drawing box, builds
// the projection, path generator and color scale, and returns a map ready
// for layer drawing. A missing required option is fatal here, not deferred.
func NewMap(options *Options, topology *topo.Topology, opts ...MapOption) (*Map, error) {
	if options == nil {
		return nil, errors.New(errors.ErrCodeInvalidOptions, "options are required")
	}
	if err := options.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if topology == nil {
		return nil, errors.New(errors.ErrCodeInvalidTopology, "topology is required")
	}

	m := &Map{
		options:  options,
		topology: topology,
		logger:   log.NewWithOptions(io.Discard, log.Options{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.stage = stageSized

	scale, err := NewColorScale(options)
	if err != nil {
		return nil, err
	}
	m.scale = scale
	m.projection = NewProjection(options.Width, options.Height, options.ScaleFactor, *options.Center)
	m.path = NewPathGenerator(m.projection)
	m.stage = stageProjected
	return m, nil
}

// Options returns the validated options record.
func (m *Map) Options() *Options { return m.options }

// Projection returns the map's projection.
func (m *Map) Projection() *Projection { return m.projection }

// DrawLayer binds the named feature collection as one data layer. An
// absent collection logs a warning and skips; the map stays usable and
// enters the layered stage either way, so a legend or labels can still
// follow a run where every configured layer was missing.
func (m *Map) DrawLayer(name string) error {
	if m.stage < stageProjected {
		return errors.New(errors.ErrCodeInternal, "layer drawn before projection")
	}
	if m.stage < stageLayered {
		m.stage = stageLayered
	}
	fc := m.topology.Collection(name)
	if fc == nil {
		m.logger.Warn("data layer missing from topology, skipping", "layer", name)
		return nil
	}
	m.layers = append(m.layers, drawnLayer{
		name:     name,
		strategy: collectionStrategy(fc),
		fc:       fc,
	})
	return nil
}

// DrawConfiguredLayers draws the primary granularity layer followed by each
// configured extra layer, exactly once each.
func (m *Map) DrawConfiguredLayers() error {
	if err := m.DrawLayer(m.options.Granularity); err != nil {
		return err
	}
	for _, name := range m.options.ExtraLayers {
		if err := m.DrawLayer(name); err != nil {
			return err
		}
	}
	if *m.options.Labels {
		m.DrawLabels(m.options.Granularity)
	}
	if *m.options.Legend {
		if err := m.UpdateLegend(); err != nil {
			return err
		}
	}
	return nil
}

// DrawLabels marks a drawn layer for text labels. Only features without a
// value are labeled (valued features carry tooltips instead), and the fixed
// exclusion set is never labeled.
func (m *Map) DrawLabels(layer string) {
	if m.topology.Collection(layer) == nil {
		m.logger.Warn("label layer missing from topology, skipping", "layer", layer)
		return
	}
	m.labelLayers = append(m.labelLayers, layer)
}

// UpdateLegend builds one legend entry per color-scale domain value, a
// swatch paired with a label from the configured mapping or the raw value.
// Only qualitative scales have a discrete domain to enumerate; for any
// other scheme this warns and leaves the legend empty.
func (m *Map) UpdateLegend() error {
	if m.stage < stageLayered {
		return errors.New(errors.ErrCodeInternal, "legend requested before any layer")
	}
	if !m.scale.Qualitative() {
		m.logger.Warn("legend only supports qualitative color schemes, skipping",
			"scheme", m.options.ColorScheme)
		return nil
	}
	m.legend = m.legend[:0]
	for _, value := range m.scale.Domain() {
		color, _ := m.scale.Color(value)
		label := value
		if mapped, ok := m.options.LegendLabels[value]; ok {
			label = mapped
		}
		m.legend = append(m.legend, legendEntry{color: color, label: label})
	}
	m.stage = stageLegend
	return nil
}

// Resize recomputes the drawing box from a new width, deriving height from
// the fixed aspect ratio, and updates the projection in place so every
// drawn layer's path data follows on the next Render.
func (m *Map) Resize(width float64) {
	m.options.Width = width
	m.options.Height = width * m.options.AspectRatio
	m.projection.Fit(width, m.options.Height, m.options.ScaleFactor, *m.options.Center)
}

// Render emits the map as a self-contained SVG document: drawn layers in
// order, labels, legend, and when tooltips are on, the embedded hover
// assets.
func (m *Map) Render() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.1f %.1f" width="%.0f" height="%.0f">`+"\n",
		m.options.Width, m.options.Height, m.options.Width, m.options.Height)
	renderBaseStyle(&buf)

	for _, layer := range m.layers {
		fmt.Fprintf(&buf, " <g class=%q>\n", "layer "+layer.name)
		for _, f := range layer.fc.Features {
			layer.strategy.Draw(&buf, m, layer.name, f)
		}
		buf.WriteString(" </g>\n")
	}

	for _, layer := range m.labelLayers {
		m.renderLabels(&buf, layer)
	}
	if len(m.legend) > 0 {
		m.renderLegend(&buf)
	}
	if *m.options.Tooltip && len(m.layers) > 0 {
		renderTooltipAssets(&buf)
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

// WriteTo writes the rendered SVG to w.
func (m *Map) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(m.Render())
	return int64(n), err
}

func (m *Map) renderLabels(buf *bytes.Buffer, layer string) {
	fc := m.topology.Collection(layer)
	if fc == nil {
		return
	}
	fmt.Fprintf(buf, " <g class=%q>\n", "labels "+layer)
	for _, f := range fc.Features {
		if labelExcludedIDs[f.ID] {
			continue
		}
		if _, ok := f.Value(); ok {
			continue
		}
		text := m.labelText(f)
		if text == "" {
			continue
		}
		x, y, ok := m.path.Centroid(&f.Geometry)
		if !ok {
			continue
		}
		fmt.Fprintf(buf, `  <text class="label" x="%s" y="%s">%s</text>`+"\n",
			coord(x), coord(y), html.EscapeString(text))
	}
	buf.WriteString(" </g>\n")
}

// labelText resolves the label from the configured source property,
// falling back to the feature's name.
func (m *Map) labelText(f *topo.Feature) string {
	if f.Properties != nil {
		if v, ok := f.Properties[m.options.LabelsSource]; ok {
			return formatValue(v)
		}
	}
	return f.Name()
}

func (m *Map) renderLegend(buf *bytes.Buffer) {
	const swatch, pad, rowH = 12.0, 6.0, 18.0
	x := pad
	y := m.options.Height - rowH*float64(len(m.legend)) - pad
	buf.WriteString(" <g class=\"legend\">\n")
	for i, entry := range m.legend {
		rowY := y + rowH*float64(i)
		fmt.Fprintf(buf, `  <rect x="%s" y="%s" width="%.0f" height="%.0f" fill=%q/>`+"\n",
			coord(x), coord(rowY), swatch, swatch, entry.color)
		fmt.Fprintf(buf, `  <text x="%s" y="%s">%s</text>`+"\n",
			coord(x+swatch+pad), coord(rowY+swatch-2), html.EscapeString(entry.label))
	}
	buf.WriteString(" </g>\n")
}

// fillFor looks up the feature's fill color: scale color when a value is
// present and inside the domain, otherwise unfilled.
func (m *Map) fillFor(f *topo.Feature) string {
	if v, ok := f.Value(); ok {
		if c, ok := m.scale.Color(v); ok {
			return c
		}
	}
	return "none"
}

// collectionStrategy picks the layer strategy from the collection's first
// feature geometry.
func collectionStrategy(fc *topo.FeatureCollection) LayerStrategy {
	for _, f := range fc.Features {
		return strategyFor(f.Geometry.Type)
	}
	return regionStrategy{}
}
