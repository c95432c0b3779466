package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type ResolvedPaths struct {
	ProjectRoot  string
	ConfigDir    string
	StateDir     string
	DatabaseDir  string
	DBPath       string
	SpoolPath    string
	WatchDir     string
	TemplatesDir string
	OpenAPISpec  string
	SourceFiles  map[string]string
}

func ResolvePaths(cfg *Config, cwd string) (ResolvedPaths, error) {
	if strings.TrimSpace(cwd) == "" {
		return ResolvedPaths{}, fmt.Errorf("cwd must not be empty")
	}

	projectRoot := strings.TrimSpace(cfg.Paths.ProjectRoot)
	if projectRoot != "" {
		projectRoot = ResolveRelative(cwd, projectRoot)
	} else {
		root, err := DetectProjectRoot([]string{cwd})
		if err != nil {
			return ResolvedPaths{}, err
		}
		projectRoot = root
	}

	configDir := ResolveRelative(projectRoot, cfg.Paths.ConfigDir)
	stateDir := ResolveRelative(projectRoot, cfg.Paths.StateDir)
	databaseDir := ResolveRelative(projectRoot, cfg.Paths.DatabaseDir)

	resolved := ResolvedPaths{
		ProjectRoot: filepath.Clean(projectRoot),
		ConfigDir:   filepath.Clean(configDir),
		StateDir:    filepath.Clean(stateDir),
		DatabaseDir: filepath.Clean(databaseDir),
		DBPath:      ResolveRelative(databaseDir, cfg.DB.Path),
		SpoolPath:   ResolveRelative(databaseDir, cfg.DB.SpoolPath),
		SourceFiles: make(map[string]string, len(cfg.Ingest.Sources)),
	}
	if dir := strings.TrimSpace(cfg.Ingest.WatchDir); dir != "" {
		resolved.WatchDir = ResolveRelative(projectRoot, dir)
		for _, src := range cfg.Ingest.Sources {
			resolved.SourceFiles[src.File] = ResolveRelative(resolved.WatchDir, src.File)
		}
	}
	if dir := strings.TrimSpace(cfg.Templates.Dir); dir != "" {
		resolved.TemplatesDir = ResolveRelative(configDir, dir)
	}
	if spec := strings.TrimSpace(cfg.MCP.OpenAPISpecPath); spec != "" {
		resolved.OpenAPISpec = ResolveRelative(configDir, spec)
	}
	return resolved, nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

func DetectProjectRoot(candidates []string) (string, error) {
	markers := []string{
		".git",
		"data/config/assettree.toml",
		"assettree.toml",
	}

	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}

		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		root := abs
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			root = filepath.Dir(abs)
		}

		for {
			for _, marker := range markers {
				if _, err := os.Stat(filepath.Join(root, marker)); err == nil {
					return filepath.Clean(root), nil
				}
			}
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Clean(cwd), nil
}
