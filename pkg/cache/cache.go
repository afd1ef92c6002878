// Package cache provides caching abstractions for topology payloads and
// rendered artifacts.
//
// The Cache interface stores opaque byte values under string keys with an
// optional TTL. Implementations cover different deployment shapes:
//   - FileCache: file-based cache for CLI usage
//   - RedisCache: Redis-backed cache for server deployments
//   - MongoCache: MongoDB-backed cache for server deployments
//   - NullCache: no-op cache for tests or when caching is disabled
//
// The Keyer interface produces stable cache keys for the different kinds of
// cached data (decoded topologies, rendered artifacts), so that CLI and
// server share one key scheme.
package cache

import (
	"context"
	"time"
)

// Default expirations per cached data kind. Topology files change rarely
// (atlas releases), rendered artifacts follow the data bound to them.
const (
	TTLTopo     = 7 * 24 * time.Hour
	TTLArtifact = 24 * time.Hour
)

// Cache stores byte values under string keys with optional expiration.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves a value. The bool reports whether the key was found
	// and still fresh.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A ttl of 0 means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// TopoKeyOpts captures the options that distinguish cached topology payloads.
type TopoKeyOpts struct {
	Altered bool // whether an AlterTopography hook was applied before caching
}

// ArtifactKeyOpts captures the render options that distinguish cached artifacts.
type ArtifactKeyOpts struct {
	Width       float64
	Height      float64
	Scheme      string
	Labels      bool
	Legend      bool
	Tooltip     bool
	ScaleFactor float64
}

// Keyer generates cache keys for the different cached data kinds.
type Keyer interface {
	// TopoKey generates a key for a decoded topology payload.
	TopoKey(dataset, granularity string, opts TopoKeyOpts) string

	// ArtifactKey generates a key for a rendered artifact derived from the
	// topology content hash and render options.
	ArtifactKey(topoHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer is the standard key scheme.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// TopoKey generates a key for topology caching.
func (k *DefaultKeyer) TopoKey(dataset, granularity string, opts TopoKeyOpts) string {
	return hashKey("topo", dataset, granularity, opts)
}

// ArtifactKey generates a key for artifact caching.
func (k *DefaultKeyer) ArtifactKey(topoHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", topoHash, opts)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = (*DefaultKeyer)(nil)
