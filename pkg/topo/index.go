package topo

import (
	"github.com/dhconnelly/rtreego"
)

// indexEpsilon pads degenerate bounding boxes (points, vertical or
// horizontal lines) so they form valid R-tree rectangles.
const indexEpsilon = 1e-9

// Index provides fast point-in-feature lookup over a feature collection
// using an R-tree of feature bounding boxes. Candidate features found by
// the R-tree are confirmed with an exact point-in-polygon test.
type Index struct {
	tree *rtreego.Rtree
}

// indexEntry adapts a feature to the rtreego.Spatial interface.
type indexEntry struct {
	feature *Feature
	box     BBox
}

// Bounds converts the feature bounding box to an R-tree rectangle.
func (e indexEntry) Bounds() rtreego.Rect {
	point := rtreego.Point{e.box.MinX, e.box.MinY}
	lengths := []float64{
		max(e.box.MaxX-e.box.MinX, indexEpsilon),
		max(e.box.MaxY-e.box.MinY, indexEpsilon),
	}
	rect, _ := rtreego.NewRect(point, lengths)
	return rect
}

// NewIndex builds a spatial index over the collection's features.
// Features with empty geometry are skipped.
func NewIndex(fc *FeatureCollection) *Index {
	tree := rtreego.NewTree(2, 25, 50)
	if fc != nil {
		for _, f := range fc.Features {
			box, ok := f.Geometry.BBox()
			if !ok {
				continue
			}
			tree.Insert(indexEntry{feature: f, box: box})
		}
	}
	return &Index{tree: tree}
}

// Locate returns the feature whose geometry contains the given lon/lat
// coordinate, or nil when no feature matches. Polygon containment is exact;
// point and line features match by bounding box only.
func (idx *Index) Locate(lon, lat float64) *Feature {
	query, _ := rtreego.NewRect(rtreego.Point{lon, lat}, []float64{indexEpsilon, indexEpsilon})
	for _, spatial := range idx.tree.SearchIntersect(query) {
		entry := spatial.(indexEntry)
		g := &entry.feature.Geometry
		if g.Type == TypePolygon || g.Type == TypeMultiPolygon {
			if polygonsContain(g.Polygons, lon, lat) {
				return entry.feature
			}
			continue
		}
		return entry.feature
	}
	return nil
}

// polygonsContain reports whether any polygon contains the point, honoring
// holes (a point inside a hole ring is outside the polygon).
func polygonsContain(polys [][][]Point, lon, lat float64) bool {
	for _, rings := range polys {
		if len(rings) == 0 {
			continue
		}
		if !ringContains(rings[0], lon, lat) {
			continue
		}
		inHole := false
		for _, hole := range rings[1:] {
			if ringContains(hole, lon, lat) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// ringContains is a standard ray-casting point-in-ring test.
func ringContains(ring []Point, lon, lat float64) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > lat) != (yj > lat) &&
			lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}
