package cli

import (
	"assettree/internal/core/app"
	"assettree/internal/core/config"
	"assettree/internal/core/ports"
	"assettree/internal/engine/dedupe"
	"assettree/internal/remote"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func newTestService(t *testing.T) ports.TreeService {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DB.Enabled = false
	cfg.Tree.Delimiter = "/"
	dir := t.TempDir()
	a, err := app.NewWithDependencies(cfg, app.Dependencies{
		Remote: remote.NewMemoryStore(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Paths: &config.ResolvedPaths{
			ProjectRoot: dir,
			DBPath:      filepath.Join(dir, "ledger.db"),
			SpoolPath:   filepath.Join(dir, "spool.db"),
			SourceFiles: map[string]string{},
		},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a.TreeService()
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseOptions_Build(t *testing.T) {
	opts, err := parseOptions([]string{"build", "--csv", "items.csv", "--tree", "T1", "--workbook", "W1", "--render", "mermaid", "--push", "-v"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.command != commandBuild || opts.csvPath != "items.csv" || opts.treeName != "T1" || opts.workbookName != "W1" {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if opts.render != "mermaid" || !opts.push || !opts.verbose {
		t.Fatalf("unexpected flags: %+v", opts)
	}
	if opts.configPath != defaultConfigPath {
		t.Fatalf("expected default config path, got %q", opts.configPath)
	}
}

func TestParseOptions_Rejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: nil},
		{name: "unknown command", args: []string{"scan"}},
		{name: "flag of another command", args: []string{"serve", "--csv", "x.csv"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseOptions(tt.args); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestValidateOptions(t *testing.T) {
	tests := []struct {
		name    string
		opts    cliOptions
		wantErr string
	}{
		{name: "build ok", opts: cliOptions{command: commandBuild, csvPath: "a.csv", treeName: "T", workbookName: "W"}},
		{name: "build without csv", opts: cliOptions{command: commandBuild, treeName: "T", workbookName: "W"}, wantErr: "requires --csv"},
		{name: "build without session", opts: cliOptions{command: commandBuild, csvPath: "a.csv", treeName: "T"}, wantErr: "--tree and --workbook"},
		{name: "output without render", opts: cliOptions{command: commandBuild, csvPath: "a.csv", treeName: "T", workbookName: "W", output: "t.md"}, wantErr: "--output requires --render"},
		{name: "strategy without lookup", opts: cliOptions{command: commandBuild, csvPath: "a.csv", treeName: "T", workbookName: "W", strategy: "keep_first"}, wantErr: "require --lookup"},
		{name: "keep with strategy", opts: cliOptions{command: commandDuplicates, csvPath: "a.csv", strategy: "keep_last", keep: []string{"A/k=0"}}, wantErr: "cannot be combined"},
		{name: "positional", opts: cliOptions{command: commandServe, args: []string{"extra"}}, wantErr: "positional"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateOptions(tt.opts)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseKeep(t *testing.T) {
	sel, err := parseKeep([]string{"Area A/Temp=1", "Area B/Flow=", "x=y/z=0,2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := dedupe.Selection{
		"Area A/Temp": {1},
		"Area B/Flow": {},
		"x=y/z":       {0, 2},
	}
	if !reflect.DeepEqual(sel, want) {
		t.Fatalf("expected %v, got %v", want, sel)
	}

	for _, bad := range []string{"noequals", "=1", "A/k=one", "A/k=-1"} {
		if _, err := parseKeep([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestLoadConfig_FallsBackToDefaults(t *testing.T) {
	cfg, path, err := loadConfig(defaultConfigPath, t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Fatalf("expected no config path, got %q", path)
	}
	if cfg.MCP.ExposedToolName == "" {
		t.Fatal("expected defaulted config")
	}
}

func TestLoadConfig_DiscoversProjectConfig(t *testing.T) {
	cwd := t.TempDir()
	cfgPath := filepath.Join(cwd, "assettree.toml")
	if err := os.WriteFile(cfgPath, []byte("version = 1\n[tree]\ndelimiter = \"/\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, path, err := loadConfig(defaultConfigPath, cwd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != cfgPath {
		t.Fatalf("expected %s, got %s", cfgPath, path)
	}
	if cfg.Tree.Delimiter != "/" {
		t.Fatalf("expected delimiter from file, got %q", cfg.Tree.Delimiter)
	}
}

func TestLoadConfig_ExplicitMissingPath(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"), t.TempDir()); err == nil {
		t.Fatal("expected error for explicit missing config")
	}
}

func TestRunBuild_RenderPushAndOutput(t *testing.T) {
	svc := newTestService(t)
	csvPath := writeCSV(t, "Path,Name,Type\nPlant/Area A,Temp,Signal\n")
	outPath := filepath.Join(t.TempDir(), "nested", "tree.txt")

	var out, status bytes.Buffer
	code := runBuild(context.Background(), svc, cliOptions{
		command:      commandBuild,
		csvPath:      csvPath,
		treeName:     "T1",
		workbookName: "W1",
		render:       "text",
		output:       outPath,
		push:         true,
	}, &out, &status)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, status.String())
	}
	if out.Len() != 0 {
		t.Fatalf("expected render to go to file, stdout got %q", out.String())
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read render: %v", err)
	}
	if !strings.Contains(string(data), "Temp (Signal)") {
		t.Fatalf("unexpected render: %s", data)
	}
	if !strings.Contains(status.String(), "Pushed T1::W1: submitted=") {
		t.Fatalf("expected push summary, got %s", status.String())
	}

	res, err := svc.RemoteSearch(context.Background(), "T1")
	if err != nil || !res.Found {
		t.Fatalf("expected pushed tree in remote store, found=%v err=%v", res.Found, err)
	}
}

func TestRunBuild_LookupToStdout(t *testing.T) {
	svc := newTestService(t)
	csvPath := writeCSV(t, "Group,Key,Value\nArea A,Temp,10\nArea A,Temp,12\nArea B,Flow,3\n")

	var out, status bytes.Buffer
	code := runBuild(context.Background(), svc, cliOptions{
		command:       commandBuild,
		csvPath:       csvPath,
		treeName:      "T1",
		workbookName:  "W1",
		lookup:        true,
		groupCol:      "Group",
		keyCol:        "Key",
		valueCol:      "Value",
		strategy:      "keep_last",
		defaultParent: "Lookups",
		render:        "text",
	}, &out, &status)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, status.String())
	}
	if !strings.Contains(status.String(), "2 lookup groups") {
		t.Fatalf("unexpected status: %s", status.String())
	}
	if !strings.Contains(out.String(), "Area_A_LookupString (Formula)") {
		t.Fatalf("expected lookup item in render, got %s", out.String())
	}
}

func TestRunBuild_MissingFile(t *testing.T) {
	var out, status bytes.Buffer
	code := runBuild(context.Background(), newTestService(t), cliOptions{
		csvPath:      filepath.Join(t.TempDir(), "missing.csv"),
		treeName:     "T1",
		workbookName: "W1",
	}, &out, &status)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
}

func TestRunDuplicates(t *testing.T) {
	svc := newTestService(t)
	csvPath := writeCSV(t, "Group,Key,Value\nArea A,Temp,10\nArea A,Temp,12\nArea B,Flow,3\n")

	var out bytes.Buffer
	if code := runDuplicates(context.Background(), svc, cliOptions{csvPath: csvPath, groupCol: "Group", keyCol: "Key", valueCol: "Value"}, &out); code != 0 {
		t.Fatalf("detect exit %d: %s", code, out.String())
	}
	if !strings.Contains(out.String(), "Duplicates (1 groups in 3 records)") || !strings.Contains(out.String(), "Area A/Temp") {
		t.Fatalf("unexpected detect output: %s", out.String())
	}

	out.Reset()
	if code := runDuplicates(context.Background(), svc, cliOptions{csvPath: csvPath, groupCol: "Group", keyCol: "Key", valueCol: "Value", keep: []string{"Area A/Temp=0"}}, &out); code != 0 {
		t.Fatalf("resolve exit %d: %s", code, out.String())
	}
	if !strings.Contains(out.String(), "Resolved: 2 records kept, 1 dropped") {
		t.Fatalf("unexpected resolve output: %s", out.String())
	}
}

func TestResolveLogPath_UsesXDGStateHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)
	if got := resolveLogPath(); got != filepath.Join(dir, "assettree", "assettree.log") {
		t.Fatalf("unexpected log path %q", got)
	}
}

func TestInitializeApp_RequiresFactory(t *testing.T) {
	if _, err := initializeApp(config.DefaultConfig(), config.ResolvedPaths{}, nil); err == nil {
		t.Fatal("expected error")
	}
}
