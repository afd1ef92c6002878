package render

import (
	"bytes"
	"fmt"
	"math"

	"github.com/jlindqvist/chorogram/pkg/topo"
)

const deg2rad = math.Pi / 180

// Projection maps lon/lat coordinates to drawing coordinates using an
// equirectangular projection. Scale and Translate are updated in place by
// the resize path; everything else is fixed at construction.
type Projection struct {
	Scale     float64
	Translate [2]float64
}

// NewProjection builds a projection for a drawing box, scaled to
// width×scaleFactor and centered at the fractional center point.
func NewProjection(width, height, scaleFactor float64, center [2]float64) *Projection {
	p := &Projection{}
	p.Fit(width, height, scaleFactor, center)
	return p
}

// Fit recomputes scale and translate for a drawing box, mutating the
// projection in place so bound path generators pick up the change.
func (p *Projection) Fit(width, height, scaleFactor float64, center [2]float64) {
	p.Scale = width * scaleFactor
	p.Translate = [2]float64{width * center[0], height * center[1]}
}

// Project maps a lon/lat point to x/y drawing coordinates. Latitude grows
// north while SVG y grows down, hence the sign flip.
func (p *Projection) Project(pt topo.Point) (x, y float64) {
	x = p.Translate[0] + p.Scale*pt.Lon()*deg2rad
	y = p.Translate[1] - p.Scale*pt.Lat()*deg2rad
	return x, y
}

// PathGenerator derives SVG path data from feature geometry through a bound
// projection. It holds the projection by reference, so in-place projection
// updates re-derive the path output without rebinding.
type PathGenerator struct {
	projection *Projection
}

// NewPathGenerator binds a generator to a projection.
func NewPathGenerator(p *Projection) *PathGenerator {
	return &PathGenerator{projection: p}
}

// Path returns the "d" attribute for a polygon or line geometry. The empty
// string means the geometry has no path representation (point geometries
// render as markers instead).
func (g *PathGenerator) Path(geom *topo.Geometry) string {
	var buf bytes.Buffer
	for _, poly := range geom.Polygons {
		for _, ring := range poly {
			g.writeRing(&buf, ring, true)
		}
	}
	for _, line := range geom.Lines {
		g.writeRing(&buf, line, false)
	}
	return buf.String()
}

// Centroid projects the geometry's representative point.
func (g *PathGenerator) Centroid(geom *topo.Geometry) (x, y float64, ok bool) {
	pt, ok := geom.Centroid()
	if !ok {
		return 0, 0, false
	}
	x, y = g.projection.Project(pt)
	return x, y, true
}

func (g *PathGenerator) writeRing(buf *bytes.Buffer, ring []topo.Point, closed bool) {
	for i, pt := range ring {
		x, y := g.projection.Project(pt)
		cmd := byte('L')
		if i == 0 {
			cmd = 'M'
		}
		fmt.Fprintf(buf, "%c%s,%s", cmd, coord(x), coord(y))
	}
	if closed && len(ring) > 0 {
		buf.WriteByte('Z')
	}
}

// coord trims a drawing coordinate to one decimal, enough for on-screen
// precision without bloating the output.
func coord(v float64) string {
	return fmt.Sprintf("%.1f", v)
}
