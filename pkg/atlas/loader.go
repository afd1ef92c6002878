package atlas

import (
	"context"
	stderrors "errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jlindqvist/chorogram/pkg/cache"
	"github.com/jlindqvist/chorogram/pkg/errors"
	"github.com/jlindqvist/chorogram/pkg/httputil"
	"github.com/jlindqvist/chorogram/pkg/observability"
	"github.com/jlindqvist/chorogram/pkg/topo"
)

// AlterFunc transforms a raw topology payload before it is cached and
// decoded. It receives the fetched bytes and returns the bytes to use.
type AlterFunc func([]byte) []byte

// Loader fetches, caches, and decodes topology datasets.
//
// Decoded topologies are held in an in-process map so repeated requests for
// the same (dataset, granularity) pair return without I/O. Raw payloads go
// through the injected byte cache, which may be shared across processes.
// Concurrent requests for the same uncached pair are coalesced so exactly
// one fetch is issued.
type Loader struct {
	registry *Registry
	client   *httputil.Client
	cache    cache.Cache
	keyer    cache.Keyer
	baseURL  string
	ttl      time.Duration
	alter    AlterFunc

	group singleflight.Group

	mu  sync.RWMutex
	mem map[string]*topo.Topology
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithCache injects the byte cache for raw payloads.
func WithCache(c cache.Cache) LoaderOption {
	return func(l *Loader) {
		if c != nil {
			l.cache = c
		}
	}
}

// WithKeyer overrides the cache key scheme.
func WithKeyer(k cache.Keyer) LoaderOption {
	return func(l *Loader) {
		if k != nil {
			l.keyer = k
		}
	}
}

// WithBaseURL overrides the base location for topology files. An http(s)
// URL enables network fetching; any other value is treated as a local
// directory.
func WithBaseURL(base string) LoaderOption {
	return func(l *Loader) { l.baseURL = base }
}

// WithTTL sets the byte-cache expiration for fetched payloads.
// Zero means entries never expire.
func WithTTL(ttl time.Duration) LoaderOption {
	return func(l *Loader) { l.ttl = ttl }
}

// WithAlter installs a hook applied to raw payloads before caching.
func WithAlter(fn AlterFunc) LoaderOption {
	return func(l *Loader) { l.alter = fn }
}

// WithClient overrides the HTTP client.
func WithClient(c *httputil.Client) LoaderOption {
	return func(l *Loader) {
		if c != nil {
			l.client = c
		}
	}
}

// NewLoader creates a loader over the given registry.
// With no options it fetches from DefaultBaseURL and does not cache
// payloads beyond the in-process decoded map.
func NewLoader(registry *Registry, opts ...LoaderOption) *Loader {
	if registry == nil {
		registry = NewRegistry()
	}
	l := &Loader{
		registry: registry,
		client:   httputil.NewClient(0),
		cache:    cache.NewNullCache(),
		keyer:    cache.NewDefaultKeyer(),
		baseURL:  DefaultBaseURL,
		mem:      make(map[string]*topo.Topology),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Registry returns the loader's source registry.
func (l *Loader) Registry() *Registry {
	return l.registry
}

// Fetch returns the decoded topology for a (dataset, granularity) pair.
//
// The in-process map is consulted first and returns synchronously on a hit.
// On a miss the byte cache is tried, then the network (or local directory);
// the optional alter hook runs on the raw payload before it is cached.
// Unknown pairs fail with a not-found error and never touch the network.
func (l *Loader) Fetch(ctx context.Context, dataset, granularity string) (*topo.Topology, error) {
	source, err := l.registry.Resolve(dataset, granularity)
	if err != nil {
		return nil, err
	}

	key := l.keyer.TopoKey(dataset, granularity, cache.TopoKeyOpts{Altered: l.alter != nil})

	l.mu.RLock()
	cached, ok := l.mem[key]
	l.mu.RUnlock()
	if ok {
		observability.Cache().OnCacheHit(ctx, "topo")
		return cached, nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		return l.load(ctx, source, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*topo.Topology), nil
}

// load runs inside the singleflight group: exactly one caller per key
// executes it while the rest wait for the shared result.
func (l *Loader) load(ctx context.Context, source Source, key string) (*topo.Topology, error) {
	// A racing caller may have populated the map while we queued.
	l.mu.RLock()
	cached, ok := l.mem[key]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	payload, hit, err := l.cache.Get(ctx, key)
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "topo")
		payload, err = l.fetchRaw(ctx, source)
		if err != nil {
			return nil, err
		}
		if l.alter != nil {
			payload = l.alter(payload)
		}
		if err := l.cache.Set(ctx, key, payload, l.ttl); err == nil {
			observability.Cache().OnCacheSet(ctx, "topo", len(payload))
		}
	} else {
		observability.Cache().OnCacheHit(ctx, "topo")
	}

	topology, err := topo.Decode(payload)
	if err != nil {
		// A corrupt cached payload must not wedge the key forever.
		_ = l.cache.Delete(ctx, key)
		return nil, err
	}

	// A source may store its features under a document object name that
	// differs from its granularity. Alias the collection under the
	// granularity name so callers look layers up uniformly.
	if object := source.ObjectName(); object != source.Granularity {
		if fc := topology.Collection(object); fc != nil && topology.Collection(source.Granularity) == nil {
			topology.Objects[source.Granularity] = fc
		}
	}

	l.mu.Lock()
	l.mem[key] = topology
	l.mu.Unlock()
	return topology, nil
}

// fetchRaw retrieves the payload bytes from the base location.
func (l *Loader) fetchRaw(ctx context.Context, source Source) ([]byte, error) {
	if isHTTP(l.baseURL) {
		target, err := url.JoinPath(l.baseURL, source.Path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "bad topology path %q", source.Path)
		}
		data, err := l.client.Get(ctx, target)
		if err != nil {
			if stderrors.Is(err, httputil.ErrStatusNotFound) {
				return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "topology file missing for %s/%s", source.Dataset, source.Granularity)
			}
			return nil, errors.Wrap(errors.ErrCodeNetwork, err, "fetch %s/%s", source.Dataset, source.Granularity)
		}
		return data, nil
	}

	path := filepath.Join(l.baseURL, filepath.FromSlash(source.Path))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "topology file missing at %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read topology file %s", path)
	}
	return data, nil
}

func isHTTP(base string) bool {
	return strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://")
}
