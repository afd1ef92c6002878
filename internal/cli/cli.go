// Package cli implements the chorogram command-line interface.
//
// This package provides commands for rendering choropleth maps from atlas
// topology and per-feature data, listing known datasets, managing the
// topology/artifact cache, and serving rendered maps over HTTP. The CLI is
// built using cobra and supports verbose logging via the charmbracelet/log
// library.
//
// # Commands
//
// The main commands are:
//   - render: Render one choropleth map to an SVG file
//   - datasets: List the known (dataset, granularity) pairs
//   - cache: Manage the topology and artifact cache
//   - serve: Serve rendered maps over HTTP
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/jlindqvist/chorogram/pkg/atlas"
	"github.com/jlindqvist/chorogram/pkg/buildinfo"
	"github.com/jlindqvist/chorogram/pkg/cache"
	"github.com/jlindqvist/chorogram/pkg/pipeline"
)

// appName is the application name used for directories and display.
const appName = "chorogram"

// Cache backend names accepted by --cache.
const (
	cacheFile  = "file"
	cacheRedis = "redis"
	cacheMongo = "mongo"
	cacheNone  = "none"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Chorogram renders choropleth maps as SVG",
		Long:         `Chorogram loads atlas topology, binds per-feature data onto it, and renders self-contained choropleth SVG maps with labels, legends and hover tooltips.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		// The logger rides the command context so every command and helper
		// reaches it via loggerFromContext.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.datasetsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// cacheFlags holds the cache backend selection shared by render and serve.
type cacheFlags struct {
	backend  string
	redisURL string
	mongoURI string
}

func (f *cacheFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.backend, "cache", cacheFile, "cache backend: file, redis, mongo, none")
	cmd.Flags().StringVar(&f.redisURL, "redis-addr", "localhost:6379", "redis address for --cache redis")
	cmd.Flags().StringVar(&f.mongoURI, "mongo-uri", "mongodb://localhost:27017", "mongo URI for --cache mongo")
}

// open builds the configured cache backend. Backend failures fall back to
// no caching rather than failing the command.
func (f *cacheFlags) open(ctx context.Context, logger *log.Logger) cache.Cache {
	switch f.backend {
	case cacheNone:
		return cache.NewNullCache()
	case cacheRedis:
		c, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: f.redisURL})
		if err != nil {
			logger.Warn("redis cache unavailable, caching disabled", "err", err)
			return cache.NewNullCache()
		}
		return c
	case cacheMongo:
		c, err := cache.NewMongoCache(ctx, cache.MongoConfig{URI: f.mongoURI})
		if err != nil {
			logger.Warn("mongo cache unavailable, caching disabled", "err", err)
			return cache.NewNullCache()
		}
		return c
	default:
		dir, err := cacheDir()
		if err != nil {
			return cache.NewNullCache()
		}
		c, err := cache.NewFileCache(dir)
		if err != nil {
			logger.Warn("file cache unavailable, caching disabled", "err", err)
			return cache.NewNullCache()
		}
		return c
	}
}

// newRunner creates a pipeline runner over a loader sharing the cache.
func (c *CLI) newRunner(ctx context.Context, flags *cacheFlags, baseURL string) *pipeline.Runner {
	backend := flags.open(ctx, c.Logger)
	opts := []atlas.LoaderOption{
		atlas.WithCache(backend),
		atlas.WithTTL(cache.TTLTopo),
	}
	if baseURL != "" {
		opts = append(opts, atlas.WithBaseURL(baseURL))
	}
	loader := atlas.NewLoader(atlas.NewRegistry(), opts...)
	return pipeline.NewRunner(loader, backend, nil, c.Logger)
}

// cacheDir returns the cache directory using XDG standard (~/.cache/chorogram/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
