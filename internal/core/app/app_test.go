package app

import (
	"assettree/internal/core/config"
	"assettree/internal/core/ports"
	"assettree/internal/remote"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRemoteStoreFollowsMode(t *testing.T) {
	_, ok := newRemoteStore(config.Remote{Mode: config.RemoteModeMemory}).(*remote.MemoryStore)
	assert.True(t, ok)
	_, ok = newRemoteStore(config.Remote{Mode: "HTTP", Endpoint: "http://127.0.0.1:1/api"}).(*remote.Client)
	assert.True(t, ok)
}

func TestApplyConfigUpdatesIngestSettings(t *testing.T) {
	a, _ := newTestApp(t, nil)
	next := config.DefaultConfig()
	next.Ingest.Strategy = "keep_first"
	next.Ingest.Roles.Group = "Area"

	a.ApplyConfig(next)
	assert.Equal(t, "keep_first", a.ingestSettings().Strategy)
	assert.Equal(t, "Area", a.ingestSettings().Roles.Group)
}

func TestHealthCheck(t *testing.T) {
	a, _ := newTestApp(t, func(cfg *config.Config) { cfg.DB.Enabled = true })
	status := NewHealthService(a).Check(context.Background())

	assert.Equal(t, "up", status.Status)
	assert.Equal(t, "ok", status.Components["ledger"])
	assert.Equal(t, "ok (memory)", status.Components["remote"])
	assert.Contains(t, status.Components, "heap_mb")
	assert.NotEqual(t, "0", status.Components["goroutines"])
}

func TestIngestSources(t *testing.T) {
	dir := t.TempDir()
	csv := "Path,Name,Type\nPlant/Area A,Temp,Signal\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plant.csv"), []byte(csv), 0o644))
	lookup := "Group,Key,Value\nArea A,Temp,10\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lookup.csv"), []byte(lookup), 0o644))

	a, _ := newTestApp(t, func(cfg *config.Config) {
		cfg.Ingest.Sources = []config.Source{
			{File: "plant.csv", TreeName: "T1", WorkbookName: "W1", Workflow: config.WorkflowItems},
			{File: "lookup.csv", TreeName: "T2", WorkbookName: "W1", Workflow: config.WorkflowLookup},
		}
	})
	a.Paths.WatchDir = dir
	a.Paths.SourceFiles = map[string]string{
		"plant.csv":  filepath.Join(dir, "plant.csv"),
		"lookup.csv": filepath.Join(dir, "lookup.csv"),
	}

	require.NoError(t, a.IngestSources(context.Background()))
	svc := a.TreeService()
	assert.Contains(t, render(t, svc, t1), "Temp (Signal)")
	assert.Contains(t, render(t, svc, ports.SessionRef{TreeName: "T2", WorkbookName: "W1"}), "Area_A_LookupString (Formula)")
}

func TestIngestWatcherRebuildsChangedSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plant.csv")
	require.NoError(t, os.WriteFile(path, []byte("Path,Name,Type\nArea,Temp,Signal\n"), 0o644))

	a, _ := newTestApp(t, func(cfg *config.Config) {
		cfg.Ingest.Debounce = 20 * time.Millisecond
		cfg.Ingest.Sources = []config.Source{{File: "plant.csv", TreeName: "T1", WorkbookName: "W1", Workflow: config.WorkflowItems}}
	})
	a.Paths.WatchDir = dir
	a.Paths.SourceFiles = map[string]string{"plant.csv": path}

	require.NoError(t, a.StartIngestWatcher(context.Background()))
	defer a.StopIngestWatcher()

	require.NoError(t, os.WriteFile(path, []byte("Path,Name,Type\nArea,Temp,Signal\nArea,Flow,Signal\n"), 0o644))
	svc := a.TreeService()
	require.Eventually(t, func() bool {
		res, err := svc.Search(context.Background(), ports.RenderRequest{SessionRef: t1})
		return err == nil && res.Found && assert.ObjectsAreEqual("T1 (Asset)\n  Area (Asset)\n    Temp (Signal)\n    Flow (Signal)\n", res.Content)
	}, 3*time.Second, 25*time.Millisecond)
}
