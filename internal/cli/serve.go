package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	apperrors "github.com/jlindqvist/chorogram/pkg/errors"
	"github.com/jlindqvist/chorogram/pkg/pipeline"
	"github.com/jlindqvist/chorogram/pkg/render"
	"github.com/jlindqvist/chorogram/pkg/topo"
)

// serveCommand creates the serve command, exposing rendered maps over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		baseURL string
		flags   cacheFlags
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve rendered maps over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			runner := c.newRunner(ctx, &flags, baseURL)
			defer runner.Close()

			srv := newServer(runner, logger)
			httpSrv := &http.Server{
				Addr:              addr,
				Handler:           srv.routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", "addr", addr)
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpSrv.Shutdown(shutdownCtx)
				return ctx.Err()
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "topology base URL or local directory")
	flags.register(cmd)

	return cmd
}

// server handles HTTP requests over a shared pipeline runner. Spatial
// indexes are built lazily per (dataset, granularity) pair and reused.
type server struct {
	runner *pipeline.Runner
	logger *log.Logger

	mu      sync.Mutex
	indexes map[string]*topo.Index
}

func newServer(runner *pipeline.Runner, logger *log.Logger) *server {
	return &server{
		runner:  runner,
		logger:  logger,
		indexes: make(map[string]*topo.Index),
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Get("/datasets", s.handleDatasets)
	r.Get("/maps/{dataset}/{granularity}.svg", s.handleMap)
	r.Get("/locate/{dataset}/{granularity}", s.handleLocate)
	return r
}

// requestID tags every request with a uuid for log correlation.
func (s *server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			"id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).Round(time.Millisecond))
	})
}

func (s *server) handleDatasets(w http.ResponseWriter, r *http.Request) {
	registry := s.runner.Loader.Registry()
	out := make(map[string][]string)
	for _, dataset := range registry.Datasets() {
		out[dataset] = registry.Granularities(dataset)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *server) handleMap(w http.ResponseWriter, r *http.Request) {
	mapOpts := &render.Options{
		Dataset:     chi.URLParam(r, "dataset"),
		Granularity: chi.URLParam(r, "granularity"),
	}

	q := r.URL.Query()
	if v := q.Get("width"); v != "" {
		width, err := strconv.ParseFloat(v, 64)
		if err != nil || width <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid width")
			return
		}
		mapOpts.Width = width
	}
	if v := q.Get("scheme"); v != "" {
		mapOpts.ColorScheme = v
	}
	if v := q.Get("labels"); v != "" {
		mapOpts.Labels = boolPtr(v == "true" || v == "1")
	}
	if v := q.Get("legend"); v != "" {
		mapOpts.Legend = boolPtr(v == "true" || v == "1")
	}
	if v := q.Get("tooltip"); v != "" {
		mapOpts.Tooltip = boolPtr(v == "true" || v == "1")
	}

	result, err := s.runner.Execute(r.Context(), pipeline.Options{Map: mapOpts, Logger: s.logger})
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.SVG)
}

func (s *server) handleLocate(w http.ResponseWriter, r *http.Request) {
	dataset := chi.URLParam(r, "dataset")
	granularity := chi.URLParam(r, "granularity")

	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if errLon != nil || errLat != nil {
		s.writeError(w, http.StatusBadRequest, "lon and lat query parameters are required")
		return
	}

	index, err := s.indexFor(r.Context(), dataset, granularity)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	feature := index.Locate(lon, lat)
	if feature == nil {
		s.writeError(w, http.StatusNotFound, "no feature at that location")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"id":         feature.ID,
		"name":       feature.Name(),
		"properties": feature.Properties,
	})
}

// indexFor returns the spatial index for a pair, building it on first use.
func (s *server) indexFor(ctx context.Context, dataset, granularity string) (*topo.Index, error) {
	key := dataset + "/" + granularity

	s.mu.Lock()
	index, ok := s.indexes[key]
	s.mu.Unlock()
	if ok {
		return index, nil
	}

	topology, err := s.runner.Loader.Fetch(ctx, dataset, granularity)
	if err != nil {
		return nil, err
	}
	index = topo.NewIndex(topology.Collection(granularity))

	s.mu.Lock()
	s.indexes[key] = index
	s.mu.Unlock()
	return index, nil
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// writePipelineError maps structured error codes to HTTP statuses.
func (s *server) writePipelineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeDatasetNotFound, apperrors.ErrCodeLayerNotFound, apperrors.ErrCodeFileNotFound, apperrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodeInvalidOptions, apperrors.ErrCodeInvalidScheme, apperrors.ErrCodeInvalidConfig:
		status = http.StatusBadRequest
	case apperrors.ErrCodeNetwork, apperrors.ErrCodeTimeout:
		status = http.StatusBadGateway
	}
	s.writeError(w, status, apperrors.UserMessage(err))
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
}
