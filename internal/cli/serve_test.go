package cli

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/jlindqvist/chorogram/pkg/atlas"
	"github.com/jlindqvist/chorogram/pkg/pipeline"
)

const serveTopology = `{
  "type": "Topology",
  "arcs": [[[0, 0], [10, 0], [10, 10], [0, 10], [0, 0]]],
  "objects": {
    "regions": {
      "type": "GeometryCollection",
      "geometries": [
        {"type": "Polygon", "id": 1, "properties": {"name": "Alpha"}, "arcs": [[0]]}
      ]
    }
  }
}`

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test", "regions.topo.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(serveTopology), 0o644); err != nil {
		t.Fatal(err)
	}

	registry := atlas.NewEmptyRegistry()
	registry.Register(atlas.Source{Dataset: "test", Granularity: "regions", Path: "test/regions.topo.json"})
	loader := atlas.NewLoader(registry, atlas.WithBaseURL(dir))

	logger := newLogger(io.Discard, log.ErrorLevel)
	runner := pipeline.NewRunner(loader, nil, nil, logger)
	srv := httptest.NewServer(newServer(runner, logger).routes())
	t.Cleanup(srv.Close)
	return srv
}

func TestServeDatasets(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/datasets")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}

	var out map[string][]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if got := out["test"]; len(got) != 1 || got[0] != "regions" {
		t.Errorf("datasets = %v", out)
	}
}

func TestServeMap(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/maps/test/regions.svg?width=500")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("content type = %q", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	svg := string(body)
	if !strings.Contains(svg, "<svg") || !strings.Contains(svg, "<path") {
		t.Error("response is not a drawn SVG document")
	}
	if !strings.Contains(svg, `width="500"`) {
		t.Error("width query parameter not applied")
	}
}

func TestServeMapErrors(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/maps/atlantis/regions.svg")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown dataset: status = %d, want 404", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/maps/test/regions.svg?width=bogus")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad width: status = %d, want 400", resp.StatusCode)
	}
}

func TestServeLocate(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/locate/test/regions?lon=5&lat=5")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.ID != 1 || out.Name != "Alpha" {
		t.Errorf("located %d/%q, want 1/Alpha", out.ID, out.Name)
	}

	// Outside every region.
	resp, err = http.Get(srv.URL + "/locate/test/regions?lon=50&lat=50")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("empty location: status = %d, want 404", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/locate/test/regions")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing coords: status = %d, want 400", resp.StatusCode)
	}
}
