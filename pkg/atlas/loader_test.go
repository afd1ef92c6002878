package atlas

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jlindqvist/chorogram/pkg/cache"
	"github.com/jlindqvist/chorogram/pkg/errors"
)

const testTopology = `{
  "type": "Topology",
  "arcs": [[[0, 0], [1, 0], [1, 1], [0, 1], [0, 0]]],
  "objects": {
    "regions": {
      "type": "GeometryCollection",
      "geometries": [
        {"type": "Polygon", "id": 1, "properties": {"name": "Alpha"}, "arcs": [[0]]}
      ]
    }
  }
}`

// testServer serves testTopology and counts requests.
func testServer(t *testing.T, delay time.Duration) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if delay > 0 {
			time.Sleep(delay)
		}
		if r.URL.Path != "/test/regions.topo.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(testTopology))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testRegistry() *Registry {
	r := NewEmptyRegistry()
	r.Register(Source{Dataset: "test", Granularity: "regions", Path: "test/regions.topo.json"})
	r.Register(Source{Dataset: "test", Granularity: "missing", Path: "test/missing.topo.json"})
	return r
}

func TestLoaderFetch(t *testing.T) {
	srv, calls := testServer(t, 0)
	l := NewLoader(testRegistry(), WithBaseURL(srv.URL))

	topology, err := l.Fetch(context.Background(), "test", "regions")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if topology.Collection("regions") == nil {
		t.Fatal("regions collection missing")
	}
	if calls.Load() != 1 {
		t.Errorf("requests = %d, want 1", calls.Load())
	}

	// Second fetch hits the in-process map: no network.
	again, err := l.Fetch(context.Background(), "test", "regions")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if again != topology {
		t.Error("second fetch should return the cached topology")
	}
	if calls.Load() != 1 {
		t.Errorf("requests after cache hit = %d, want 1", calls.Load())
	}
}

func TestLoaderUnknownDatasetDoesNotFetch(t *testing.T) {
	srv, calls := testServer(t, 0)
	l := NewLoader(testRegistry(), WithBaseURL(srv.URL))

	_, err := l.Fetch(context.Background(), "atlantis", "regions")
	if !errors.Is(err, errors.ErrCodeDatasetNotFound) {
		t.Errorf("error = %v, want DATASET_NOT_FOUND", err)
	}
	if calls.Load() != 0 {
		t.Errorf("requests = %d, want 0 (unknown pairs never fetch)", calls.Load())
	}
}

func TestLoaderMissingFile(t *testing.T) {
	srv, _ := testServer(t, 0)
	l := NewLoader(testRegistry(), WithBaseURL(srv.URL))

	_, err := l.Fetch(context.Background(), "test", "missing")
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestLoaderByteCacheSharedAcrossLoaders(t *testing.T) {
	srv, calls := testServer(t, 0)
	fileCache, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache error: %v", err)
	}

	first := NewLoader(testRegistry(), WithBaseURL(srv.URL), WithCache(fileCache))
	if _, err := first.Fetch(context.Background(), "test", "regions"); err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("requests = %d, want 1", calls.Load())
	}

	// A fresh loader sharing the byte cache decodes without refetching.
	second := NewLoader(testRegistry(), WithBaseURL(srv.URL), WithCache(fileCache))
	topology, err := second.Fetch(context.Background(), "test", "regions")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if topology.Collection("regions") == nil {
		t.Fatal("regions collection missing")
	}
	if calls.Load() != 1 {
		t.Errorf("requests = %d, want 1 (byte cache hit)", calls.Load())
	}
}

func TestLoaderAlterHook(t *testing.T) {
	srv, _ := testServer(t, 0)
	altered := false
	l := NewLoader(testRegistry(), WithBaseURL(srv.URL), WithAlter(func(raw []byte) []byte {
		altered = true
		return bytes.ReplaceAll(raw, []byte(`"Alpha"`), []byte(`"Omega"`))
	}))

	topology, err := l.Fetch(context.Background(), "test", "regions")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if !altered {
		t.Error("alter hook was not invoked")
	}
	if name := topology.Collection("regions").Features[0].Name(); name != "Omega" {
		t.Errorf("feature name = %q, want Omega (hook applied before decode)", name)
	}
}

func TestLoaderAliasesSourceObjectName(t *testing.T) {
	srv, _ := testServer(t, 0)
	registry := testRegistry()
	// The document stores its features under "regions", not the
	// registered granularity.
	registry.Register(Source{
		Dataset:     "test",
		Granularity: "states",
		Path:        "test/regions.topo.json",
		Object:      "regions",
	})

	l := NewLoader(registry, WithBaseURL(srv.URL))
	topology, err := l.Fetch(context.Background(), "test", "states")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	fc := topology.Collection("states")
	if fc == nil {
		t.Fatal("collection not reachable under the granularity name")
	}
	if fc != topology.Collection("regions") {
		t.Error("granularity name should alias the document object, not copy it")
	}
}

func TestLoaderCoalescesConcurrentFetches(t *testing.T) {
	srv, calls := testServer(t, 50*time.Millisecond)
	l := NewLoader(testRegistry(), WithBaseURL(srv.URL))

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = l.Fetch(context.Background(), "test", "regions")
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("worker %d error: %v", i, err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("requests = %d, want 1 (concurrent fetches coalesced)", calls.Load())
	}
}

func TestLoaderLocalDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test", "regions.topo.json")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(testTopology), 0644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(testRegistry(), WithBaseURL(dir))
	topology, err := l.Fetch(context.Background(), "test", "regions")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if topology.Collection("regions") == nil {
		t.Fatal("regions collection missing")
	}

	_, err = l.Fetch(context.Background(), "test", "missing")
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("error = %v, want FILE_NOT_FOUND", err)
	}
}
