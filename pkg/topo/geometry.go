// Package topo decodes TopoJSON topology documents into renderable feature
// collections and binds per-feature data onto them.
//
// A topology document stores shared-boundary geometry as a pool of arcs that
// individual geometries reference by index. Decode reconstructs absolute
// coordinates (applying the quantization transform when present) and produces
// a [Topology] whose named [FeatureCollection] objects hold one [Feature] per
// geometric unit.
//
// Augment merges externally supplied data records into feature property bags
// by numeric feature id, which is how choropleth values reach the renderer.
package topo

// Point is a lon/lat coordinate pair.
type Point [2]float64

// Lon returns the longitude (x) component.
func (p Point) Lon() float64 { return p[0] }

// Lat returns the latitude (y) component.
func (p Point) Lat() float64 { return p[1] }

// GeometryType identifies the shape kind of a feature.
type GeometryType string

// Supported geometry types.
const (
	TypePoint           GeometryType = "Point"
	TypeMultiPoint      GeometryType = "MultiPoint"
	TypeLineString      GeometryType = "LineString"
	TypeMultiLineString GeometryType = "MultiLineString"
	TypePolygon         GeometryType = "Polygon"
	TypeMultiPolygon    GeometryType = "MultiPolygon"
)

// Geometry holds decoded absolute coordinates for one feature. Only the
// field matching Type is populated.
type Geometry struct {
	Type GeometryType

	// Points holds coordinates for Point (one entry) and MultiPoint.
	Points []Point

	// Lines holds coordinates for LineString (one entry) and MultiLineString.
	Lines [][]Point

	// Polygons holds rings for Polygon (one entry) and MultiPolygon.
	// Within each polygon the first ring is the outer boundary, any
	// following rings are holes.
	Polygons [][][]Point
}

// BBox is an axis-aligned bounding box in lon/lat space.
type BBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Extend grows the box to include pt. The zero-valued receiver of an empty
// geometry must be initialized with the first point before extending.
func (b *BBox) Extend(pt Point) {
	if pt[0] < b.MinX {
		b.MinX = pt[0]
	}
	if pt[1] < b.MinY {
		b.MinY = pt[1]
	}
	if pt[0] > b.MaxX {
		b.MaxX = pt[0]
	}
	if pt[1] > b.MaxY {
		b.MaxY = pt[1]
	}
}

// Center returns the box midpoint.
func (b BBox) Center() Point {
	return Point{(b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2}
}

// eachPoint visits every coordinate of the geometry.
func (g *Geometry) eachPoint(fn func(Point)) {
	for _, pt := range g.Points {
		fn(pt)
	}
	for _, line := range g.Lines {
		for _, pt := range line {
			fn(pt)
		}
	}
	for _, poly := range g.Polygons {
		for _, ring := range poly {
			for _, pt := range ring {
				fn(pt)
			}
		}
	}
}

// BBox computes the bounding box over all coordinates.
// The second return value is false for an empty geometry.
func (g *Geometry) BBox() (BBox, bool) {
	var box BBox
	first := true
	g.eachPoint(func(pt Point) {
		if first {
			box = BBox{MinX: pt[0], MinY: pt[1], MaxX: pt[0], MaxY: pt[1]}
			first = false
			return
		}
		box.Extend(pt)
	})
	return box, !first
}

// Centroid returns a representative interior point for the geometry.
// For polygons this is the area-weighted centroid of the outer rings;
// for points and lines it falls back to the bounding-box center.
func (g *Geometry) Centroid() (Point, bool) {
	if g.Type == TypePolygon || g.Type == TypeMultiPolygon {
		var cx, cy, total float64
		for _, poly := range g.Polygons {
			if len(poly) == 0 {
				continue
			}
			x, y, area := ringCentroid(poly[0])
			cx += x * area
			cy += y * area
			total += area
		}
		if total != 0 {
			return Point{cx / total, cy / total}, true
		}
	}
	box, ok := g.BBox()
	if !ok {
		return Point{}, false
	}
	return box.Center(), true
}

// ringCentroid computes the centroid and signed area of a closed ring using
// the shoelace formula. The returned area magnitude is used as a weight.
func ringCentroid(ring []Point) (cx, cy, area float64) {
	if len(ring) < 3 {
		return 0, 0, 0
	}
	var a float64
	for i := 0; i < len(ring)-1; i++ {
		cross := ring[i][0]*ring[i+1][1] - ring[i+1][0]*ring[i][1]
		a += cross
		cx += (ring[i][0] + ring[i+1][0]) * cross
		cy += (ring[i][1] + ring[i+1][1]) * cross
	}
	if a == 0 {
		return 0, 0, 0
	}
	a /= 2
	cx /= 6 * a
	cy /= 6 * a
	if a < 0 {
		a = -a
	}
	return cx, cy, a
}

// Properties is a feature's property bag.
type Properties map[string]any

// Feature is one renderable geographic unit with an identifier and
// property bag.
type Feature struct {
	ID         int
	Geometry   Geometry
	Properties Properties
}

// Name returns the feature's "name" property, or empty string.
func (f *Feature) Name() string {
	if f.Properties == nil {
		return ""
	}
	s, _ := f.Properties["name"].(string)
	return s
}

// Value returns the feature's "value" property. The bool reports whether a
// value is present; its presence switches rendering to color-by-value.
func (f *Feature) Value() (any, bool) {
	if f.Properties == nil {
		return nil, false
	}
	v, ok := f.Properties["value"]
	return v, ok
}

// FeatureCollection is a named group of features within a topology,
// corresponding to one granularity (administrative level).
type FeatureCollection struct {
	Name     string
	Features []*Feature
}

// Topology is a decoded topology document: named feature collections keyed
// by object name.
type Topology struct {
	Objects map[string]*FeatureCollection
}

// Collection returns the named feature collection, or nil.
func (t *Topology) Collection(name string) *FeatureCollection {
	if t == nil {
		return nil
	}
	return t.Objects[name]
}

// Clone returns a copy whose feature property bags are independent of the
// receiver. Geometry is shared between the copies: decoding never mutates
// it, so concurrent renderings can augment the same cached topology with
// different data without copying coordinates.
func (t *Topology) Clone() *Topology {
	if t == nil {
		return nil
	}
	out := &Topology{Objects: make(map[string]*FeatureCollection, len(t.Objects))}
	for name, fc := range t.Objects {
		copied := &FeatureCollection{Name: fc.Name, Features: make([]*Feature, len(fc.Features))}
		for i, f := range fc.Features {
			nf := &Feature{ID: f.ID, Geometry: f.Geometry}
			if f.Properties != nil {
				nf.Properties = make(Properties, len(f.Properties))
				for k, v := range f.Properties {
					nf.Properties[k] = v
				}
			}
			copied.Features[i] = nf
		}
		out.Objects[name] = copied
	}
	return out
}

// FeatureCount returns the total number of features across all collections.
func (t *Topology) FeatureCount() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, fc := range t.Objects {
		n += len(fc.Features)
	}
	return n
}
