package render

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/jlindqvist/chorogram/pkg/topo"
)

const markerRadius = 4.0

// LayerStrategy draws one feature of a data layer as a visual primitive.
// One implementation exists per primitive kind: projected paths for region
// geometry and circle markers for point geometry. The map picks a strategy
// per collection from a lookup table at composition time.
type LayerStrategy interface {
	Kind() string
	Draw(buf *bytes.Buffer, m *Map, layer string, f *topo.Feature)
}

// strategyFor selects the drawing primitive for a geometry type.
func strategyFor(t topo.GeometryType) LayerStrategy {
	if s, ok := layerStrategies[t]; ok {
		return s
	}
	return regionStrategy{}
}

var layerStrategies = map[topo.GeometryType]LayerStrategy{
	topo.TypePolygon:         regionStrategy{},
	topo.TypeMultiPolygon:    regionStrategy{},
	topo.TypeLineString:      regionStrategy{},
	topo.TypeMultiLineString: regionStrategy{},
	topo.TypePoint:           markerStrategy{},
	topo.TypeMultiPoint:      markerStrategy{},
}

// regionStrategy renders a feature as one SVG path.
type regionStrategy struct{}

func (regionStrategy) Kind() string { return "region" }

func (regionStrategy) Draw(buf *bytes.Buffer, m *Map, layer string, f *topo.Feature) {
	d := m.path.Path(&f.Geometry)
	if d == "" {
		return
	}
	fmt.Fprintf(buf, `  <path id=%q class=%q d=%q fill=%q%s/>`+"\n",
		elementID(layer, f), featureClass(layer, f), d, m.fillFor(f), tipAttr(m, f))
}

// markerStrategy renders a feature as one circle per point.
type markerStrategy struct{}

func (markerStrategy) Kind() string { return "marker" }

func (markerStrategy) Draw(buf *bytes.Buffer, m *Map, layer string, f *topo.Feature) {
	for _, pt := range f.Geometry.Points {
		x, y := m.projection.Project(pt)
		fmt.Fprintf(buf, `  <circle id=%q class=%q cx="%s" cy="%s" r="%.1f" fill=%q%s/>`+"\n",
			elementID(layer, f), featureClass(layer, f), coord(x), coord(y), markerRadius, m.fillFor(f), tipAttr(m, f))
	}
}

// featureClass derives the CSS classes for a primitive: the layer name, the
// layer-qualified feature name (lowercased, underscored), and when a value
// is present, that class suffixed with the value.
func featureClass(layer string, f *topo.Feature) string {
	classes := []string{layer}
	if name := f.Name(); name != "" {
		named := layer + "_" + slug(name)
		classes = append(classes, named)
		if v, ok := f.Value(); ok {
			classes = append(classes, named+"_"+slug(formatValue(v)))
		}
	}
	if _, ok := f.Value(); ok {
		classes = append(classes, "valued")
	}
	return strings.Join(classes, " ")
}

func elementID(layer string, f *topo.Feature) string {
	return fmt.Sprintf("%s-%d", layer, f.ID)
}

// tipAttr emits the pre-substituted tooltip text as a data attribute for
// the embedded hover script. Empty when tooltips are off or the feature
// carries no value.
func tipAttr(m *Map, f *topo.Feature) string {
	if !*m.options.Tooltip {
		return ""
	}
	if _, ok := f.Value(); !ok {
		return ""
	}
	text := RenderTemplate(m.options.TooltipTemplate, f.Properties)
	return ` data-tip="` + html.EscapeString(text) + `"`
}

// slug lowercases a name and replaces runs of non-alphanumerics with
// single underscores.
func slug(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(s) {
		alnum := r >= 'a' && r <= 'z' || r >= '0' && r <= '9'
		if !alnum {
			pending = b.Len() > 0
			continue
		}
		if pending {
			b.WriteByte('_')
			pending = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
