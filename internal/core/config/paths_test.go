package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePaths_DefaultLayout(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "assettree.toml"), []byte("version = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{
		Ingest: Ingest{
			WatchDir: "inbox",
			Sources:  []Source{{File: "plant.csv", TreeName: "T1", WorkbookName: "W"}},
		},
		Templates: Templates{Dir: "templates"},
	}
	applyDefaults(cfg)

	got, err := ResolvePaths(cfg, root)
	if err != nil {
		t.Fatal(err)
	}
	if got.ProjectRoot != filepath.Clean(root) {
		t.Fatalf("expected project root %q, got %q", root, got.ProjectRoot)
	}
	if got.DBPath != filepath.Join(root, "data/database", "ledger.db") {
		t.Fatalf("unexpected db path: %q", got.DBPath)
	}
	if got.SpoolPath != filepath.Join(root, "data/database", "ledger_spool.db") {
		t.Fatalf("unexpected spool path: %q", got.SpoolPath)
	}
	if got.SourceFiles["plant.csv"] != filepath.Join(root, "inbox", "plant.csv") {
		t.Fatalf("unexpected source path: %q", got.SourceFiles["plant.csv"])
	}
	if got.TemplatesDir != filepath.Join(root, "data/config", "templates") {
		t.Fatalf("unexpected templates dir: %q", got.TemplatesDir)
	}
}

func TestResolvePaths_AbsoluteOverrides(t *testing.T) {
	root := t.TempDir()
	dbPath := filepath.Join(root, "custom", "ledger.db")
	cfg := &Config{
		Paths: Paths{
			ProjectRoot: root,
			ConfigDir:   filepath.Join(root, "cfg"),
			DatabaseDir: filepath.Join(root, "db"),
		},
		DB: Database{
			Path: dbPath,
		},
	}
	applyDefaults(cfg)

	got, err := ResolvePaths(cfg, root)
	if err != nil {
		t.Fatal(err)
	}
	if got.ConfigDir != filepath.Join(root, "cfg") {
		t.Fatalf("unexpected config dir: %q", got.ConfigDir)
	}
	if got.DBPath != dbPath {
		t.Fatalf("unexpected db path: %q", got.DBPath)
	}
	if got.WatchDir != "" {
		t.Fatalf("expected no watch dir, got %q", got.WatchDir)
	}
}

func TestDetectProjectRoot_FallbackOrder(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "assettree.toml"), []byte("version = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := DetectProjectRoot([]string{sub})
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Clean(root) {
		t.Fatalf("expected %q, got %q", root, got)
	}
}
