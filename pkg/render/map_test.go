package render

import (
	"strings"
	"testing"

	"github.com/jlindqvist/chorogram/pkg/errors"
	"github.com/jlindqvist/chorogram/pkg/topo"
)

// square returns a closed ring spanning lon/lat degrees.
func square(minLon, minLat, maxLon, maxLat float64) []topo.Point {
	return []topo.Point{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}
}

func fixtureTopology() *topo.Topology {
	return &topo.Topology{Objects: map[string]*topo.FeatureCollection{
		"countries": {
			Name: "countries",
			Features: []*topo.Feature{
				{
					ID:       1,
					Geometry: topo.Geometry{Type: topo.TypePolygon, Polygons: [][][]topo.Point{{square(0, 0, 20, 20)}}},
					Properties: topo.Properties{"name": "New Alpha", "value": 5},
				},
				{
					ID:       2,
					Geometry: topo.Geometry{Type: topo.TypePolygon, Polygons: [][][]topo.Point{{square(30, 0, 50, 20)}}},
					Properties: topo.Properties{"name": "Beta"},
				},
				{
					ID:       10,
					Geometry: topo.Geometry{Type: topo.TypePolygon, Polygons: [][][]topo.Point{{square(-60, -80, 60, -70)}}},
					Properties: topo.Properties{"name": "Antarctica"},
				},
			},
		},
		"cities": {
			Name: "cities",
			Features: []*topo.Feature{
				{
					ID:       100,
					Geometry: topo.Geometry{Type: topo.TypePoint, Points: []topo.Point{{10, 10}}},
					Properties: topo.Properties{"name": "Gamma City", "value": 7},
				},
			},
		},
	}}
}

func fixtureOptions() *Options {
	return &Options{
		Dataset:     "world",
		Granularity: "countries",
		Width:       1000,
		AspectRatio: 0.5,
		ColorData:   map[string]string{"5": "#ff0000", "7": "#00ff00"},
	}
}

func TestNewMapValidation(t *testing.T) {
	if _, err := NewMap(nil, fixtureTopology()); !errors.Is(err, errors.ErrCodeInvalidOptions) {
		t.Errorf("nil options: error = %v, want INVALID_OPTIONS", err)
	}
	if _, err := NewMap(fixtureOptions(), nil); !errors.Is(err, errors.ErrCodeInvalidTopology) {
		t.Errorf("nil topology: error = %v, want INVALID_TOPOLOGY", err)
	}
	if _, err := NewMap(&Options{Granularity: "countries"}, fixtureTopology()); !errors.Is(err, errors.ErrCodeInvalidOptions) {
		t.Errorf("missing dataset: error = %v, want INVALID_OPTIONS", err)
	}
}

func TestMapDrawLayer(t *testing.T) {
	m, err := NewMap(fixtureOptions(), fixtureTopology())
	if err != nil {
		t.Fatalf("NewMap error: %v", err)
	}
	if err := m.DrawLayer("countries"); err != nil {
		t.Fatalf("DrawLayer error: %v", err)
	}

	svg := string(m.Render())
	if !strings.Contains(svg, `<g class="layer countries">`) {
		t.Error("missing countries layer group")
	}
	// Valued feature filled from the scale, classed by layer/name/value.
	if !strings.Contains(svg, `fill="#ff0000"`) {
		t.Error("valued feature not filled from color scale")
	}
	if !strings.Contains(svg, `class="countries countries_new_alpha countries_new_alpha_5 valued"`) {
		t.Error("value-bearing feature class scheme wrong")
	}
	// Valueless feature stays unfilled.
	if !strings.Contains(svg, `class="countries countries_beta"`) {
		t.Error("valueless feature class scheme wrong")
	}
	if !strings.Contains(svg, `fill="none"`) {
		t.Error("valueless feature should be unfilled")
	}
	// Tooltips default on: valued features carry substituted tip text.
	if !strings.Contains(svg, `data-tip="New Alpha: 5"`) {
		t.Error("missing tooltip data attribute")
	}
	if !strings.Contains(svg, "<script") {
		t.Error("missing embedded tooltip script")
	}
}

func TestMapMissingLayerSkips(t *testing.T) {
	m, err := NewMap(fixtureOptions(), fixtureTopology())
	if err != nil {
		t.Fatalf("NewMap error: %v", err)
	}
	if err := m.DrawLayer("rivers"); err != nil {
		t.Errorf("missing layer should degrade, got error: %v", err)
	}
	if strings.Contains(string(m.Render()), "rivers") {
		t.Error("skipped layer leaked into output")
	}
}

func TestMapMarkerLayer(t *testing.T) {
	m, err := NewMap(fixtureOptions(), fixtureTopology())
	if err != nil {
		t.Fatalf("NewMap error: %v", err)
	}
	if err := m.DrawLayer("cities"); err != nil {
		t.Fatalf("DrawLayer error: %v", err)
	}
	svg := string(m.Render())
	if !strings.Contains(svg, "<circle") {
		t.Error("point layer should render circle markers")
	}
	if !strings.Contains(svg, `fill="#00ff00"`) {
		t.Error("marker not filled from color scale")
	}
}

func TestMapLabels(t *testing.T) {
	opts := fixtureOptions()
	opts.Labels = boolPtr(true)
	m, err := NewMap(opts, fixtureTopology())
	if err != nil {
		t.Fatalf("NewMap error: %v", err)
	}
	if err := m.DrawConfiguredLayers(); err != nil {
		t.Fatalf("DrawConfiguredLayers error: %v", err)
	}

	svg := string(m.Render())
	if !strings.Contains(svg, ">Beta</text>") {
		t.Error("valueless feature should be labeled")
	}
	// Valued features get tooltips, not labels.
	if strings.Contains(svg, ">New Alpha</text>") {
		t.Error("valued feature should not be labeled")
	}
	// Hard-coded exclusions are never labeled.
	if strings.Contains(svg, ">Antarctica</text>") {
		t.Error("excluded feature id was labeled")
	}
}

func TestMapLabelsSource(t *testing.T) {
	opts := fixtureOptions()
	opts.Labels = boolPtr(true)
	opts.LabelsSource = "abbr"
	topology := fixtureTopology()
	countries := topology.Objects["countries"]
	countries.Features[1].Properties["abbr"] = "BT"
	countries.Features = append(countries.Features, &topo.Feature{
		ID:         3,
		Geometry:   topo.Geometry{Type: topo.TypePolygon, Polygons: [][][]topo.Point{{square(60, 0, 80, 20)}}},
		Properties: topo.Properties{"name": "Delta"},
	})

	m, err := NewMap(opts, topology)
	if err != nil {
		t.Fatalf("NewMap error: %v", err)
	}
	if err := m.DrawConfiguredLayers(); err != nil {
		t.Fatalf("DrawConfiguredLayers error: %v", err)
	}

	svg := string(m.Render())
	if !strings.Contains(svg, ">BT</text>") {
		t.Error("configured label source ignored")
	}
	// Features without the alternate property fall back to their name.
	if !strings.Contains(svg, ">Delta</text>") {
		t.Error("label source fallback to name missing")
	}
}

func TestMapLegendQualitative(t *testing.T) {
	opts := fixtureOptions()
	opts.Legend = boolPtr(true)
	opts.LegendLabels = map[string]string{"5": "moderate"}
	m, err := NewMap(opts, fixtureTopology())
	if err != nil {
		t.Fatalf("NewMap error: %v", err)
	}
	if err := m.DrawConfiguredLayers(); err != nil {
		t.Fatalf("DrawConfiguredLayers error: %v", err)
	}

	svg := string(m.Render())
	if !strings.Contains(svg, `<g class="legend">`) {
		t.Fatal("missing legend group")
	}
	if !strings.Contains(svg, ">moderate</text>") {
		t.Error("legend label mapping not applied")
	}
	// Unmapped domain values fall back to the raw value string.
	if !strings.Contains(svg, ">7</text>") {
		t.Error("unmapped legend entry missing")
	}
}

func TestMapLegendSkipsSequential(t *testing.T) {
	opts := fixtureOptions()
	opts.Legend = boolPtr(true)
	opts.ColorScheme = SchemeSequential
	opts.ColorRange = [2]string{"#ffffff", "#000000"}
	opts.ColorDomain = [2]float64{0, 10}
	m, err := NewMap(opts, fixtureTopology())
	if err != nil {
		t.Fatalf("NewMap error: %v", err)
	}
	if err := m.DrawConfiguredLayers(); err != nil {
		t.Fatalf("DrawConfiguredLayers error: %v", err)
	}
	if strings.Contains(string(m.Render()), `<g class="legend">`) {
		t.Error("legend rendered for a non-qualitative scheme")
	}
}

func TestMapLegendBeforeLayerWalk(t *testing.T) {
	m, err := NewMap(fixtureOptions(), fixtureTopology())
	if err != nil {
		t.Fatalf("NewMap error: %v", err)
	}
	if err := m.UpdateLegend(); !errors.Is(err, errors.ErrCodeInternal) {
		t.Errorf("legend before any layer walk: error = %v, want INTERNAL", err)
	}
}

func TestMapLegendAfterSkippedLayer(t *testing.T) {
	opts := fixtureOptions()
	opts.Legend = boolPtr(true)
	topology := &topo.Topology{Objects: map[string]*topo.FeatureCollection{}}
	m, err := NewMap(opts, topology)
	if err != nil {
		t.Fatalf("NewMap error: %v", err)
	}
	// A missing data layer degrades to a warning; the legend still renders.
	if err := m.DrawConfiguredLayers(); err != nil {
		t.Fatalf("DrawConfiguredLayers error: %v", err)
	}
	svg := string(m.Render())
	if !strings.Contains(svg, `<g class="legend">`) {
		t.Error("legend missing after skipped data layer")
	}
	if strings.Contains(svg, `<g class="layer `) {
		t.Error("skipped layer leaked into output")
	}
}

func TestMapResize(t *testing.T) {
	m, err := NewMap(fixtureOptions(), fixtureTopology())
	if err != nil {
		t.Fatalf("NewMap error: %v", err)
	}
	if err := m.DrawLayer("countries"); err != nil {
		t.Fatalf("DrawLayer error: %v", err)
	}
	before := string(m.Render())

	m.Resize(500)

	o := m.Options()
	if o.Height != 500*o.AspectRatio {
		t.Errorf("Height = %v, want width*aspectRatio = %v", o.Height, 500*o.AspectRatio)
	}
	if o.AspectRatio != 0.5 {
		t.Errorf("AspectRatio changed to %v", o.AspectRatio)
	}
	if m.Projection().Scale != 500*o.ScaleFactor {
		t.Errorf("projection scale = %v, want %v", m.Projection().Scale, 500*o.ScaleFactor)
	}

	// Path data re-derives through the mutated projection.
	after := string(m.Render())
	if before == after {
		t.Error("resize did not change rendered path data")
	}
	if !strings.Contains(after, `viewBox="0 0 500.0 250.0"`) {
		t.Error("resize did not update the drawing box")
	}
}

func TestMapExtraLayers(t *testing.T) {
	opts := fixtureOptions()
	opts.ExtraLayers = []string{"cities"}
	m, err := NewMap(opts, fixtureTopology())
	if err != nil {
		t.Fatalf("NewMap error: %v", err)
	}
	if err := m.DrawConfiguredLayers(); err != nil {
		t.Fatalf("DrawConfiguredLayers error: %v", err)
	}
	svg := string(m.Render())
	if !strings.Contains(svg, `<g class="layer countries">`) {
		t.Error("primary layer missing")
	}
	if !strings.Contains(svg, `<g class="layer cities">`) {
		t.Error("extra layer missing")
	}
	// Each configured layer is drawn exactly once.
	if strings.Count(svg, `<g class="layer cities">`) != 1 {
		t.Error("extra layer drawn more than once")
	}
}

func TestMapTooltipDisabled(t *testing.T) {
	opts := fixtureOptions()
	opts.Tooltip = boolPtr(false)
	m, err := NewMap(opts, fixtureTopology())
	if err != nil {
		t.Fatalf("NewMap error: %v", err)
	}
	if err := m.DrawLayer("countries"); err != nil {
		t.Fatalf("DrawLayer error: %v", err)
	}
	svg := string(m.Render())
	if strings.Contains(svg, "data-tip") || strings.Contains(svg, "<script") {
		t.Error("tooltip assets rendered while disabled")
	}
}
