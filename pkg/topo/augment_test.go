package topo

import "testing"

func TestAugment(t *testing.T) {
	topology := decodeFixture(t)

	matched := Augment(topology, "countries", map[int]Properties{
		1: {"value": 5},
	})
	if matched != 1 {
		t.Errorf("matched = %d, want 1", matched)
	}

	alpha := topology.Collection("countries").Features[0]
	v, ok := alpha.Value()
	if !ok || v != 5 {
		t.Errorf("alpha value = %v (ok=%v), want 5", v, ok)
	}
	// Existing properties retained.
	if alpha.Name() != "Alpha" {
		t.Errorf("alpha name = %q, want Alpha", alpha.Name())
	}

	// Unrelated feature ids are untouched.
	beta := topology.Collection("countries").Features[1]
	if _, ok := beta.Value(); ok {
		t.Error("beta should have no value")
	}
	if beta.Name() != "Beta" {
		t.Errorf("beta name = %q, want Beta", beta.Name())
	}
}

func TestAugmentOverwritesSameNamedKeys(t *testing.T) {
	topology := decodeFixture(t)

	Augment(topology, "countries", map[int]Properties{
		1: {"name": "Renamed", "score": 3},
	})
	alpha := topology.Collection("countries").Features[0]
	if alpha.Name() != "Renamed" {
		t.Errorf("name = %q, want Renamed", alpha.Name())
	}
	if alpha.Properties["score"] != 3 {
		t.Errorf("score = %v, want 3", alpha.Properties["score"])
	}
}

func TestAugmentNoopCases(t *testing.T) {
	topology := decodeFixture(t)

	// Absent collection is a no-op.
	if matched := Augment(topology, "provinces", map[int]Properties{1: {"value": 5}}); matched != 0 {
		t.Errorf("matched = %d for absent collection, want 0", matched)
	}
	alpha := topology.Collection("countries").Features[0]
	if _, ok := alpha.Value(); ok {
		t.Error("absent-collection augment must not touch other collections")
	}

	// Nil arguments are no-ops.
	if matched := Augment(nil, "countries", map[int]Properties{1: {"value": 5}}); matched != 0 {
		t.Error("nil topology should be a no-op")
	}
	if matched := Augment(topology, "countries", nil); matched != 0 {
		t.Error("nil value map should be a no-op")
	}
}

func TestAugmentFeatureWithoutProperties(t *testing.T) {
	doc := `{
	  "type": "Topology",
	  "arcs": [[[0, 0], [1, 0], [1, 1], [0, 1], [0, 0]]],
	  "objects": {"regions": {"type": "Polygon", "id": 3, "arcs": [[0]]}}
	}`
	topology, err := Decode([]byte(doc))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}

	matched := Augment(topology, "regions", map[int]Properties{3: {"value": 9}})
	if matched != 1 {
		t.Fatalf("matched = %d, want 1", matched)
	}
	f := topology.Collection("regions").Features[0]
	if v, ok := f.Value(); !ok || v != 9 {
		t.Errorf("value = %v (ok=%v), want 9", v, ok)
	}
}

func TestMergeObjects(t *testing.T) {
	topology := decodeFixture(t)

	extra := &FeatureCollection{
		Name: "markers",
		Features: []*Feature{
			{ID: 100, Geometry: Geometry{Type: TypePoint, Points: []Point{{1, 1}}}},
		},
	}
	moreCities := &FeatureCollection{
		Name: "cities",
		Features: []*Feature{
			{ID: 11, Geometry: Geometry{Type: TypePoint, Points: []Point{{1.5, 0.5}}}},
		},
	}

	MergeObjects(topology, map[string]*FeatureCollection{
		"markers": extra,
		"cities":  moreCities,
	})

	if topology.Collection("markers") == nil {
		t.Fatal("markers collection not added")
	}
	if got := len(topology.Collection("cities").Features); got != 2 {
		t.Errorf("cities features = %d, want 2 (appended)", got)
	}

	// Nil arguments are no-ops.
	MergeObjects(nil, map[string]*FeatureCollection{"x": extra})
	MergeObjects(topology, nil)
	if topology.FeatureCount() != 5 {
		t.Errorf("feature count = %d, want 5", topology.FeatureCount())
	}
}
