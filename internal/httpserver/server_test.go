package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/wisbric/argowatch/internal/telemetry"
)

// stubHealth reports a scripted controller state.
type stubHealth struct {
	status string
}

func (s stubHealth) Check(context.Context) string { return s.status }

func newTestServer(t *testing.T, health HealthChecker, staticDir string) *httptest.Server {
	t.Helper()

	srv := NewServer(ServerConfig{
		CORSAllowedOrigins: []string{"*"},
		StaticDir:          staticDir,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), telemetry.NewMetricsRegistry(), health)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string) (int, map[string]string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp.StatusCode, body
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name       string
		health     string
		wantCode   int
		wantStatus string
	}{
		{
			name:       "controller up",
			health:     "up",
			wantCode:   http.StatusOK,
			wantStatus: "up",
		},
		{
			name:       "controller down",
			health:     "down",
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, stubHealth{status: tt.health}, "")

			code, body := getJSON(t, ts.URL+"/healthz")
			if code != tt.wantCode {
				t.Errorf("status code = %d, want %d", code, tt.wantCode)
			}
			if body["status"] != tt.wantStatus {
				t.Errorf("status = %q, want %q", body["status"], tt.wantStatus)
			}
		})
	}
}

func TestVersion(t *testing.T) {
	ts := newTestServer(t, stubHealth{status: "up"}, "")

	code, body := getJSON(t, ts.URL+"/api/v1/version")
	if code != http.StatusOK {
		t.Errorf("status code = %d, want 200", code)
	}
	if body["version"] == "" {
		t.Error("version is empty")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, stubHealth{status: "up"}, "")

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status code = %d, want 200", resp.StatusCode)
	}
}

func TestStaticMountFallsBackToIndex(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>watcher</html>"), 0o644); err != nil {
		t.Fatalf("writing index.html: %v", err)
	}

	ts := newTestServer(t, stubHealth{status: "up"}, dir)

	for _, path := range []string{"/", "/some/spa/route"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}
