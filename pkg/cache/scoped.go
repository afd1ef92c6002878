package cache

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation.
// This is useful when several map services share one cache backend and
// need separate key spaces.
//
// Example usage:
//
//	// Keys scoped to one tenant
//	tenantKeyer := NewScopedKeyer(NewDefaultKeyer(), "tenant:abc123:")
//
//	// Global keys for shared atlases
//	globalKeyer := NewDefaultKeyer()
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// TopoKey generates a prefixed key for topology caching.
func (k *ScopedKeyer) TopoKey(dataset, granularity string, opts TopoKeyOpts) string {
	return k.prefix + k.inner.TopoKey(dataset, granularity, opts)
}

// ArtifactKey generates a prefixed key for artifact caching.
func (k *ScopedKeyer) ArtifactKey(topoHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(topoHash, opts)
}
