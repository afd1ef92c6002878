package observability

import (
	"context"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	// Pipeline hooks
	p := NoopPipelineHooks{}
	p.OnLoadStart(ctx, "world", "countries")
	p.OnLoadComplete(ctx, "world", "countries", 177, time.Second, nil)
	p.OnAugmentComplete(ctx, "countries", 42)
	p.OnRenderStart(ctx, []string{"countries"})
	p.OnRenderComplete(ctx, []string{"countries"}, time.Second, nil)

	// Cache hooks
	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "topo")
	c.OnCacheMiss(ctx, "artifact")
	c.OnCacheSet(ctx, "artifact", 1024)

	// HTTP hooks
	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "example.org", "/world/countries.topo.json")
	h.OnResponse(ctx, "GET", "example.org", "/world/countries.topo.json", 200, time.Second)
	h.OnError(ctx, "GET", "example.org", "/world/countries.topo.json", nil)
}

type testPipelineHooks struct {
	NoopPipelineHooks
	loads int
}

func (h *testPipelineHooks) OnLoadStart(ctx context.Context, dataset, granularity string) {
	h.loads++
}

type testCacheHooks struct {
	NoopCacheHooks
	hits int
}

func (h *testCacheHooks) OnCacheHit(ctx context.Context, keyType string) {
	h.hits++
}

func TestGlobalHooksRegistry(t *testing.T) {
	// Reset to known state
	Reset()
	t.Cleanup(Reset)

	// Verify defaults are noop
	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Pipeline() should return NoopPipelineHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	// Set custom hooks
	customPipeline := &testPipelineHooks{}
	SetPipelineHooks(customPipeline)
	if Pipeline() != customPipeline {
		t.Error("SetPipelineHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	// Nil registrations are ignored
	SetPipelineHooks(nil)
	if Pipeline() != customPipeline {
		t.Error("SetPipelineHooks(nil) should keep existing hooks")
	}

	// Events reach the custom hooks
	Pipeline().OnLoadStart(context.Background(), "world", "countries")
	if customPipeline.loads != 1 {
		t.Errorf("loads = %d, want 1", customPipeline.loads)
	}
	Cache().OnCacheHit(context.Background(), "topo")
	if customCache.hits != 1 {
		t.Errorf("hits = %d, want 1", customCache.hits)
	}
}
