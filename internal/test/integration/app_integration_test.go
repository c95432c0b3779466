package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"assettree/internal/core/app"
	"assettree/internal/core/config"
	"assettree/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const itemsCSV = `Path,Name,Type,Formula
Plant/Area A,Temp,Signal,
Plant/Area A,Avg Temp,Formula,$Temp.average()
Plant/Area B,Flow,Signal,
`

const lookupCSV = `Unit,Tag,Value
AHU1,Mode,Auto
AHU1,Mode,Manual
AHU2,Mode,Auto
`

func writeProject(t *testing.T, root string) string {
	t.Helper()
	inbox := filepath.Join(root, "inbox")
	require.NoError(t, os.MkdirAll(inbox, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "items.csv"), []byte(itemsCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "lookup.csv"), []byte(lookupCSV), 0o644))

	cfgPath := filepath.Join(root, "assettree.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
version = 1

[paths]
project_root = "`+filepath.ToSlash(root)+`"

[db]
flush_interval = "20ms"

[tree]
delimiter = "/"
lookup_parent_path = "Lookups"

[ingest]
watch_dir = "inbox"
strategy = "keep_first"
debounce = "50ms"

[ingest.roles]
group_column = "Unit"
key_column = "Tag"
value_column = "Value"

[[ingest.sources]]
file = "items.csv"
tree_name = "Plant"
workbook_name = "Ops"
workflow = "items"

[[ingest.sources]]
file = "lookup.csv"
tree_name = "Plant"
workbook_name = "Lookups"
workflow = "lookup"

[remote]
mode = "memory"
`), 0o644))
	return cfgPath
}

func TestFullPipelineIntegration(t *testing.T) {
	root := t.TempDir()
	cfgPath := writeProject(t, root)

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	appInstance, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = appInstance.Close(context.Background()) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := appInstance.TreeService()

	require.NoError(t, appInstance.IngestSources(ctx))

	trees, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, trees, 2)

	ops := ports.SessionRef{TreeName: "Plant", WorkbookName: "Ops"}
	rendered, err := svc.Render(ctx, ports.RenderRequest{SessionRef: ops})
	require.NoError(t, err)
	assert.Contains(t, rendered.Content, "Temp (Signal)")
	assert.Contains(t, rendered.Content, "Avg Temp (Formula)")

	lookups := ports.SessionRef{TreeName: "Plant", WorkbookName: "Lookups"}
	found, err := svc.Find(ctx, ports.FindRequest{SessionRef: lookups, Pattern: "*_LookupString"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Plant/Lookups/AHU1_LookupString", "Plant/Lookups/AHU2_LookupString"}, found.Paths)

	report, err := svc.Push(ctx, ops)
	require.NoError(t, err)
	assert.Empty(t, report.Failed)
	assert.Equal(t, report.Submitted, report.Succeeded)

	remoteTree, err := svc.RemoteSearch(ctx, "Plant")
	require.NoError(t, err)
	assert.True(t, remoteTree.Found)

	require.Eventually(t, func() bool {
		history, err := svc.PushHistory(ctx, ops, 10)
		return err == nil && len(history) == 1 && history[0].PushID == report.PushID
	}, 5*time.Second, 20*time.Millisecond, "push ledger entry was not recorded")

	require.NoError(t, appInstance.StartIngestWatcher(ctx))
	defer appInstance.StopIngestWatcher()

	updated := itemsCSV + "Plant/Area B,Pressure,Signal,\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "inbox", "items.csv"), []byte(updated), 0o644))

	require.Eventually(t, func() bool {
		res, err := svc.Find(ctx, ports.FindRequest{SessionRef: ops, Pattern: "Pressure"})
		return err == nil && len(res.Paths) == 1
	}, 5*time.Second, 25*time.Millisecond, "watcher did not rebuild the items session")

	health := app.NewHealthService(appInstance).Check(ctx)
	assert.Equal(t, "up", health.Status)
	assert.Equal(t, "ok", health.Components["ledger"])
}
