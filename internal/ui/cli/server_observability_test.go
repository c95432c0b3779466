package cli

import (
	"assettree/internal/core/app"
	"assettree/internal/core/config"
	"assettree/internal/remote"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestObservabilityServer_HealthAndMetrics(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DB.Enabled = false
	a, err := app.NewWithDependencies(cfg, app.Dependencies{
		Remote: remote.NewMemoryStore(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Paths:  &config.ResolvedPaths{ProjectRoot: t.TempDir(), SourceFiles: map[string]string{}},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	srv := httptest.NewServer(NewObservabilityServer("", app.NewHealthService(a), true).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var status app.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != "up" || status.Components["ledger"] != "disabled" {
		t.Fatalf("unexpected health: %+v", status)
	}

	metrics, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	metrics.Body.Close()
	if metrics.StatusCode != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", metrics.StatusCode)
	}
}

func TestObservabilityServer_MetricsDisabled(t *testing.T) {
	srv := httptest.NewServer(NewObservabilityServer("", nil, false).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 with metrics disabled, got %d", resp.StatusCode)
	}
}
