package topo

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jlindqvist/chorogram/pkg/errors"
)

// rawDocument mirrors the TopoJSON wire format.
type rawDocument struct {
	Type      string                 `json:"type"`
	Transform *rawTransform          `json:"transform"`
	Arcs      [][][]float64          `json:"arcs"`
	Objects   map[string]rawGeometry `json:"objects"`
}

// rawTransform is the quantization transform: absolute = value*scale+translate.
type rawTransform struct {
	Scale     [2]float64 `json:"scale"`
	Translate [2]float64 `json:"translate"`
}

// rawGeometry is one geometry object. Arcs and Coordinates are deferred
// because their shape depends on Type.
type rawGeometry struct {
	Type        string          `json:"type"`
	ID          json.RawMessage `json:"id"`
	Properties  map[string]any  `json:"properties"`
	Geometries  []rawGeometry   `json:"geometries"`
	Arcs        json.RawMessage `json:"arcs"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Decode parses a TopoJSON document into a Topology with absolute
// coordinates. Quantized documents (those carrying a transform) have their
// delta-encoded arcs reconstructed; unquantized arcs are taken as-is.
func Decode(data []byte) (*Topology, error) {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "malformed topology document")
	}
	if doc.Type != "Topology" {
		return nil, errors.New(errors.ErrCodeInvalidTopology, "document type is %q, want Topology", doc.Type)
	}

	arcs := decodeArcs(doc.Arcs, doc.Transform)

	t := &Topology{Objects: make(map[string]*FeatureCollection, len(doc.Objects))}
	for name, obj := range doc.Objects {
		fc := &FeatureCollection{Name: name}
		geoms := obj.Geometries
		if obj.Type != "GeometryCollection" {
			geoms = []rawGeometry{obj}
		}
		for _, g := range geoms {
			f, err := decodeFeature(g, arcs, doc.Transform)
			if err != nil {
				return nil, fmt.Errorf("object %q: %w", name, err)
			}
			fc.Features = append(fc.Features, f)
		}
		t.Objects[name] = fc
	}
	return t, nil
}

// decodeArcs converts the arc pool to absolute coordinates. Quantized arcs
// are delta-encoded: each position is the running sum of the deltas, mapped
// through the transform.
func decodeArcs(raw [][][]float64, tr *rawTransform) [][]Point {
	arcs := make([][]Point, len(raw))
	for i, arc := range raw {
		pts := make([]Point, 0, len(arc))
		var x, y float64
		for _, pos := range arc {
			if len(pos) < 2 {
				continue
			}
			if tr != nil {
				x += pos[0]
				y += pos[1]
				pts = append(pts, Point{
					x*tr.Scale[0] + tr.Translate[0],
					y*tr.Scale[1] + tr.Translate[1],
				})
			} else {
				pts = append(pts, Point{pos[0], pos[1]})
			}
		}
		arcs[i] = pts
	}
	return arcs
}

// transformPoint maps a raw coordinate through the quantization transform.
func transformPoint(pos []float64, tr *rawTransform) Point {
	if tr == nil {
		return Point{pos[0], pos[1]}
	}
	return Point{
		pos[0]*tr.Scale[0] + tr.Translate[0],
		pos[1]*tr.Scale[1] + tr.Translate[1],
	}
}

func decodeFeature(g rawGeometry, arcs [][]Point, tr *rawTransform) (*Feature, error) {
	f := &Feature{
		ID:         parseID(g.ID),
		Properties: g.Properties,
	}

	switch GeometryType(g.Type) {
	case TypePoint:
		var pos []float64
		if err := json.Unmarshal(g.Coordinates, &pos); err != nil || len(pos) < 2 {
			return nil, errors.New(errors.ErrCodeInvalidTopology, "bad Point coordinates")
		}
		f.Geometry = Geometry{Type: TypePoint, Points: []Point{transformPoint(pos, tr)}}

	case TypeMultiPoint:
		var poss [][]float64
		if err := json.Unmarshal(g.Coordinates, &poss); err != nil {
			return nil, errors.New(errors.ErrCodeInvalidTopology, "bad MultiPoint coordinates")
		}
		pts := make([]Point, 0, len(poss))
		for _, pos := range poss {
			if len(pos) >= 2 {
				pts = append(pts, transformPoint(pos, tr))
			}
		}
		f.Geometry = Geometry{Type: TypeMultiPoint, Points: pts}

	case TypeLineString:
		var idx []int
		if err := json.Unmarshal(g.Arcs, &idx); err != nil {
			return nil, errors.New(errors.ErrCodeInvalidTopology, "bad LineString arcs")
		}
		f.Geometry = Geometry{Type: TypeLineString, Lines: [][]Point{stitchArcs(idx, arcs)}}

	case TypeMultiLineString:
		var idx [][]int
		if err := json.Unmarshal(g.Arcs, &idx); err != nil {
			return nil, errors.New(errors.ErrCodeInvalidTopology, "bad MultiLineString arcs")
		}
		lines := make([][]Point, len(idx))
		for i, line := range idx {
			lines[i] = stitchArcs(line, arcs)
		}
		f.Geometry = Geometry{Type: TypeMultiLineString, Lines: lines}

	case TypePolygon:
		var idx [][]int
		if err := json.Unmarshal(g.Arcs, &idx); err != nil {
			return nil, errors.New(errors.ErrCodeInvalidTopology, "bad Polygon arcs")
		}
		f.Geometry = Geometry{Type: TypePolygon, Polygons: [][][]Point{stitchRings(idx, arcs)}}

	case TypeMultiPolygon:
		var idx [][][]int
		if err := json.Unmarshal(g.Arcs, &idx); err != nil {
			return nil, errors.New(errors.ErrCodeInvalidTopology, "bad MultiPolygon arcs")
		}
		polys := make([][][]Point, len(idx))
		for i, rings := range idx {
			polys[i] = stitchRings(rings, arcs)
		}
		f.Geometry = Geometry{Type: TypeMultiPolygon, Polygons: polys}

	default:
		return nil, errors.New(errors.ErrCodeInvalidTopology, "unsupported geometry type %q", g.Type)
	}

	return f, nil
}

// stitchArcs concatenates the referenced arcs into one coordinate sequence.
// A negative index -n references arc n-1 reversed (ones' complement per the
// TopoJSON convention). Junction points duplicated between consecutive arcs
// are dropped.
func stitchArcs(indexes []int, arcs [][]Point) []Point {
	var out []Point
	for _, idx := range indexes {
		pts := resolveArc(idx, arcs)
		if len(out) > 0 && len(pts) > 0 && out[len(out)-1] == pts[0] {
			pts = pts[1:]
		}
		out = append(out, pts...)
	}
	return out
}

// stitchRings builds polygon rings, closing each ring if the arc chain does
// not already end where it started.
func stitchRings(rings [][]int, arcs [][]Point) [][]Point {
	out := make([][]Point, len(rings))
	for i, ring := range rings {
		pts := stitchArcs(ring, arcs)
		if len(pts) > 1 && pts[0] != pts[len(pts)-1] {
			pts = append(pts, pts[0])
		}
		out[i] = pts
	}
	return out
}

func resolveArc(idx int, arcs [][]Point) []Point {
	reversed := false
	if idx < 0 {
		idx = ^idx
		reversed = true
	}
	if idx >= len(arcs) {
		return nil
	}
	arc := arcs[idx]
	if !reversed {
		return arc
	}
	rev := make([]Point, len(arc))
	for i, pt := range arc {
		rev[len(arc)-1-i] = pt
	}
	return rev
}

// parseID extracts a numeric feature id. TopoJSON ids may be encoded as
// numbers or numeric strings; features without a usable id get -1 so they
// never collide with real ids during augmentation.
func parseID(raw json.RawMessage) int {
	if len(raw) == 0 {
		return -1
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return -1
}
