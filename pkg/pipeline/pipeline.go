// Package pipeline orchestrates the load → augment → render sequence with
// caching.
//
// A Runner wires the topology loader, byte cache, and renderer together so
// the CLI and the HTTP server share one execution path:
//
//	runner := pipeline.NewRunner(loader, fileCache, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{Map: &render.Options{
//	    Dataset:     "world",
//	    Granularity: "countries",
//	    Data:        values,
//	}})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("map.svg", result.SVG, 0o644)
package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jlindqvist/chorogram/pkg/atlas"
	"github.com/jlindqvist/chorogram/pkg/cache"
	"github.com/jlindqvist/chorogram/pkg/errors"
	"github.com/jlindqvist/chorogram/pkg/observability"
	"github.com/jlindqvist/chorogram/pkg/render"
	"github.com/jlindqvist/chorogram/pkg/topo"
)

// Options configures one pipeline run.
type Options struct {
	// Map holds the full rendering configuration, including the topology
	// source, bound data, and annotation toggles.
	Map *render.Options `json:"map"`

	// Refresh bypasses the artifact cache and re-renders.
	Refresh bool `json:"refresh,omitempty"`

	// Logger receives stage progress. Discarded when nil.
	Logger *log.Logger `json:"-"`
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// Idempotent, like the render options fill it delegates to.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Map == nil {
		return errors.New(errors.ErrCodeInvalidOptions, "map options are required")
	}
	if err := o.Map.ValidateAndSetDefaults(); err != nil {
		return err
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Topology is the augmented topology the map was drawn from.
	Topology *topo.Topology

	// SVG is the rendered artifact.
	SVG []byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	FeatureCount int
	MatchedCount int
	LoadTime     time.Duration
	AugmentTime  time.Duration
	RenderTime   time.Duration
}

// CacheInfo tracks cache hits per pipeline stage. The load stage's hit
// reflects the loader's injected cache; the render hit reflects the
// artifact cache.
type CacheInfo struct {
	RenderHit bool
}

// Runner executes the pipeline with caching. It is stateless apart from
// its collaborators, so one Runner serves concurrent requests with
// different options.
type Runner struct {
	Loader *atlas.Loader
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner. A nil cache disables artifact caching, a nil
// keyer uses the default key scheme, a nil logger logs to the default.
func NewRunner(loader *atlas.Loader, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if loader == nil {
		loader = atlas.NewLoader(nil)
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Loader: loader, Cache: c, Keyer: keyer, Logger: logger}
}

// Execute runs the complete load → augment → render pipeline.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	o := opts.Map
	result := &Result{}

	// Stage 1: Load
	loadStart := time.Now()
	observability.Pipeline().OnLoadStart(ctx, o.Dataset, o.Granularity)
	topology, err := r.Loader.Fetch(ctx, o.Dataset, o.Granularity)
	result.Stats.LoadTime = time.Since(loadStart)
	observability.Pipeline().OnLoadComplete(ctx, o.Dataset, o.Granularity, topology.FeatureCount(), result.Stats.LoadTime, err)
	if err != nil {
		return nil, err
	}

	logger.Info("loaded topology",
		"dataset", o.Dataset,
		"granularity", o.Granularity,
		"features", topology.FeatureCount(),
		"duration", result.Stats.LoadTime)

	// Stage 2: Augment. The loader shares decoded topologies across
	// callers, so augmentation works on a copy.
	augmentStart := time.Now()
	topology = topology.Clone()
	topo.MergeObjects(topology, o.TopologyAdditions)
	matched := topo.Augment(topology, o.Granularity, o.Data)
	result.Topology = topology
	result.Stats.AugmentTime = time.Since(augmentStart)
	result.Stats.FeatureCount = topology.FeatureCount()
	result.Stats.MatchedCount = matched
	observability.Pipeline().OnAugmentComplete(ctx, o.Granularity, matched)

	logger.Info("augmented topology",
		"matched", matched,
		"features", result.Stats.FeatureCount,
		"duration", result.Stats.AugmentTime)

	// Stage 3: Render
	renderStart := time.Now()
	svg, renderHit, err := r.renderWithCacheInfo(ctx, topology, opts)
	result.Stats.RenderTime = time.Since(renderStart)
	observability.Pipeline().OnRenderComplete(ctx, renderLayers(o), result.Stats.RenderTime, err)
	if err != nil {
		return nil, err
	}
	result.SVG = svg
	result.CacheInfo.RenderHit = renderHit

	logger.Info("rendered map",
		"bytes", len(svg),
		"cached", renderHit,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// renderWithCacheInfo draws the map, serving the artifact from cache when
// the topology content and render options are unchanged.
func (r *Runner) renderWithCacheInfo(ctx context.Context, topology *topo.Topology, opts Options) ([]byte, bool, error) {
	o := opts.Map
	basis, hashable := renderBasis(o)
	key := r.Keyer.ArtifactKey(basis, cache.ArtifactKeyOpts{
		Width:       o.Width,
		Height:      o.Height,
		Scheme:      o.ColorScheme,
		Labels:      *o.Labels,
		Legend:      *o.Legend,
		Tooltip:     *o.Tooltip,
		ScaleFactor: o.ScaleFactor,
	})

	if !opts.Refresh && hashable {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			observability.Cache().OnCacheHit(ctx, "artifact")
			return data, true, nil
		}
		observability.Cache().OnCacheMiss(ctx, "artifact")
	}

	observability.Pipeline().OnRenderStart(ctx, renderLayers(o))
	m, err := render.NewMap(o, topology, render.WithLogger(opts.Logger))
	if err != nil {
		return nil, false, err
	}
	if err := m.DrawConfiguredLayers(); err != nil {
		return nil, false, err
	}
	svg := m.Render()

	if hashable {
		if err := r.Cache.Set(ctx, key, svg, cache.TTLArtifact); err == nil {
			observability.Cache().OnCacheSet(ctx, "artifact", len(svg))
		}
	}
	return svg, false, nil
}

// renderBasis hashes everything outside ArtifactKeyOpts that changes the
// drawn output: the source pair, the bound data, geometry additions, and
// the annotation inputs. JSON marshaling sorts map keys, so the hash is
// stable for equal inputs. The bool is false when the options cannot be
// hashed, which disables artifact reuse for that run instead of failing it.
func renderBasis(o *render.Options) (string, bool) {
	basis, err := json.Marshal(map[string]any{
		"dataset":     o.Dataset,
		"granularity": o.Granularity,
		"data":        o.Data,
		"additions":   o.TopologyAdditions,
		"colors":      o.ColorData,
		"range":       o.ColorRange,
		"domain":      o.ColorDomain,
		"extras":      o.ExtraLayers,
		"labels_src":  o.LabelsSource,
		"legend":      o.LegendLabels,
		"template":    o.TooltipTemplate,
		"center":      o.Center,
	})
	if err != nil {
		return "", false
	}
	return cache.Hash(basis), true
}

func renderLayers(o *render.Options) []string {
	return append([]string{o.Granularity}, o.ExtraLayers...)
}

// Close releases resources held by the runner, primarily the cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}
