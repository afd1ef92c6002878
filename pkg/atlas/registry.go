// Package atlas resolves and loads topology datasets.
//
// A Registry maps (dataset, granularity) pairs to topology file paths under
// a base location. The Loader fetches those files over HTTP (or from a local
// directory), applies an optional transform hook, caches the payload through
// an injected cache backend, and decodes it into a topo.Topology. Concurrent
// requests for the same dataset are coalesced into a single fetch.
package atlas

import (
	"sort"

	"github.com/jlindqvist/chorogram/pkg/errors"
)

// Source describes one fetchable topology file.
type Source struct {
	Dataset     string // atlas identifier (e.g., "world")
	Granularity string // named feature collection level (e.g., "countries")
	Path        string // path relative to the loader's base location

	// Object is the object name inside the topology document holding this
	// granularity's features. Defaults to Granularity when empty.
	Object string
}

// ObjectName returns the topology object name for this source.
func (s Source) ObjectName() string {
	if s.Object != "" {
		return s.Object
	}
	return s.Granularity
}

// DefaultBaseURL serves the bundled atlases from the npm CDN.
const DefaultBaseURL = "https://cdn.jsdelivr.net/npm"

// Registry maps known (dataset, granularity) pairs to sources. Requests for
// unknown pairs fail fast without any network activity.
type Registry struct {
	sources map[string]Source
}

// NewRegistry creates a registry preloaded with the bundled atlases.
func NewRegistry() *Registry {
	r := &Registry{sources: make(map[string]Source)}
	for _, s := range builtinSources {
		r.Register(s)
	}
	return r
}

// NewEmptyRegistry creates a registry with no sources, for callers that
// manage their own atlases.
func NewEmptyRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// builtinSources are the atlases available out of the box, published as npm
// packages and served relative to DefaultBaseURL.
var builtinSources = []Source{
	{Dataset: "world", Granularity: "countries", Path: "world-atlas@2/countries-110m.json"},
	{Dataset: "world", Granularity: "land", Path: "world-atlas@2/land-110m.json"},
	{Dataset: "usa", Granularity: "states", Path: "us-atlas@3/states-10m.json"},
	{Dataset: "usa", Granularity: "counties", Path: "us-atlas@3/counties-10m.json"},
}

// Register adds or replaces a source.
func (r *Registry) Register(s Source) {
	r.sources[sourceKey(s.Dataset, s.Granularity)] = s
}

// Resolve returns the source for a (dataset, granularity) pair.
// Unknown datasets and unknown granularities produce distinct error codes.
func (r *Registry) Resolve(dataset, granularity string) (Source, error) {
	if s, ok := r.sources[sourceKey(dataset, granularity)]; ok {
		return s, nil
	}
	for _, s := range r.sources {
		if s.Dataset == dataset {
			return Source{}, errors.New(errors.ErrCodeLayerNotFound,
				"dataset %q has no granularity %q", dataset, granularity)
		}
	}
	return Source{}, errors.New(errors.ErrCodeDatasetNotFound, "unknown dataset %q", dataset)
}

// Datasets returns the sorted list of known dataset names.
func (r *Registry) Datasets() []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range r.sources {
		if !seen[s.Dataset] {
			seen[s.Dataset] = true
			names = append(names, s.Dataset)
		}
	}
	sort.Strings(names)
	return names
}

// Granularities returns the sorted granularity names for a dataset.
func (r *Registry) Granularities(dataset string) []string {
	var names []string
	for _, s := range r.sources {
		if s.Dataset == dataset {
			names = append(names, s.Granularity)
		}
	}
	sort.Strings(names)
	return names
}

func sourceKey(dataset, granularity string) string {
	return dataset + "/" + granularity
}
