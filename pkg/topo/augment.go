package topo

// Augment merges data records into the property bags of the named feature
// collection, keyed by numeric feature id. Existing properties are retained
// unless a record carries a same-named key. The topology is modified in
// place; the return value is the number of features that matched a record.
//
// Augment is a no-op (returns 0) when the topology is nil, the named
// collection does not exist, or the value map is nil.
func Augment(t *Topology, collection string, values map[int]Properties) int {
	if t == nil || values == nil {
		return 0
	}
	fc := t.Collection(collection)
	if fc == nil {
		return 0
	}

	matched := 0
	for _, f := range fc.Features {
		props, ok := values[f.ID]
		if !ok {
			continue
		}
		if f.Properties == nil {
			f.Properties = make(Properties, len(props))
		}
		for k, v := range props {
			f.Properties[k] = v
		}
		matched++
	}
	return matched
}

// MergeObjects merges auxiliary feature collections into the topology,
// used for topology additions (extra geometry layered onto a loaded
// dataset). Collections with names already present have their features
// appended; new names are added as-is. Nil arguments are a no-op.
func MergeObjects(t *Topology, additions map[string]*FeatureCollection) {
	if t == nil || additions == nil {
		return
	}
	if t.Objects == nil {
		t.Objects = make(map[string]*FeatureCollection, len(additions))
	}
	for name, add := range additions {
		if add == nil {
			continue
		}
		if existing, ok := t.Objects[name]; ok {
			existing.Features = append(existing.Features, add.Features...)
			continue
		}
		t.Objects[name] = &FeatureCollection{Name: name, Features: add.Features}
	}
}
