package config

import (
	"assettree/internal/core/config/helpers"
	"assettree/internal/engine/dedupe"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

func validateVersion(cfg *Config) error {
	if cfg.Version < 1 {
		return fmt.Errorf("version must be >= 1, got %d", cfg.Version)
	}
	if cfg.Version > 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateDatabase(cfg *Config) error {
	driver := strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	if driver != "sqlite" {
		return fmt.Errorf("db.driver must be sqlite, got %q", cfg.DB.Driver)
	}
	if strings.TrimSpace(cfg.DB.Path) == "" {
		return fmt.Errorf("db.path must not be empty")
	}
	if cfg.DB.SpoolEnabled && filepath.Clean(cfg.DB.SpoolPath) == filepath.Clean(cfg.DB.Path) {
		return fmt.Errorf("db.spool_path must differ from db.path")
	}
	if cfg.DB.BatchSize > cfg.DB.QueueCapacity {
		return fmt.Errorf("db.batch_size (%d) must not exceed db.queue_capacity (%d)", cfg.DB.BatchSize, cfg.DB.QueueCapacity)
	}
	return nil
}

func validateTree(cfg *Config) error {
	if cfg.Tree.Delimiter == "" {
		return fmt.Errorf("tree.delimiter must not be blank")
	}
	return nil
}

func validateIngest(cfg *Config) error {
	if _, err := dedupe.ParseStrategy(cfg.Ingest.Strategy); err != nil {
		return fmt.Errorf("ingest.strategy: %w", err)
	}
	if _, err := helpers.CompileGlobs(cfg.Ingest.Patterns); err != nil {
		return fmt.Errorf("ingest.patterns: %w", err)
	}

	lookupSources := false
	seen := make(map[string]bool, len(cfg.Ingest.Sources))
	for i, src := range cfg.Ingest.Sources {
		ref := fmt.Sprintf("ingest.sources[%d]", i)
		if src.File == "" {
			return fmt.Errorf("%s.file must not be empty", ref)
		}
		if helpers.HasWildcard(src.File) {
			return fmt.Errorf("%s.file must name a single file, got %q", ref, src.File)
		}
		if src.TreeName == "" || src.WorkbookName == "" {
			return fmt.Errorf("%s requires tree_name and workbook_name", ref)
		}
		switch src.Workflow {
		case WorkflowItems:
		case WorkflowLookup:
			lookupSources = true
		default:
			return fmt.Errorf("%s.workflow must be one of: items, lookup", ref)
		}
		key := src.TreeName + "::" + src.WorkbookName
		if seen[key] {
			return fmt.Errorf("%s duplicates session %q", ref, key)
		}
		seen[key] = true
	}
	if len(cfg.Ingest.Sources) > 0 && cfg.Ingest.WatchDir == "" {
		return fmt.Errorf("ingest.watch_dir must be set when ingest.sources are configured")
	}
	if lookupSources {
		if err := cfg.Ingest.Roles.Validate(); err != nil {
			return fmt.Errorf("ingest.roles: %w", err)
		}
	}
	return nil
}

func validateRemote(cfg *Config) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Remote.Mode)) {
	case RemoteModeMemory:
	case RemoteModeHTTP:
		endpoint := strings.TrimSpace(cfg.Remote.Endpoint)
		if endpoint == "" {
			return fmt.Errorf("remote.endpoint must not be empty when remote.mode=http")
		}
		u, err := url.Parse(endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("remote.endpoint must be an absolute http(s) URL, got %q", endpoint)
		}
	default:
		return fmt.Errorf("remote.mode must be one of: memory, http")
	}
	if cfg.Remote.RequestsPerSecond < 0 {
		return fmt.Errorf("remote.requests_per_second must be >= 0")
	}
	return nil
}

func validateMCP(cfg *Config) error {
	switch cfg.MCP.Transport {
	case "stdio", "sse":
	default:
		return fmt.Errorf("mcp.transport must be one of: stdio, sse")
	}
	if cfg.MCP.Transport == "sse" && cfg.MCP.Address == "" {
		return fmt.Errorf("mcp.address must not be empty when mcp.transport=sse")
	}
	if cfg.MCP.MaxResponseItems < 0 {
		return fmt.Errorf("mcp.max_response_items must be >= 0")
	}
	if strings.ContainsAny(cfg.MCP.ExposedToolName, " \t") {
		return fmt.Errorf("mcp.exposed_tool_name must not contain whitespace")
	}
	return nil
}

func validateObservability(cfg *Config) error {
	if cfg.Observability.Port < 0 || cfg.Observability.Port > 65535 {
		return fmt.Errorf("observability.port must be between 0 and 65535")
	}
	if cfg.Observability.SampleRatio < 0 || cfg.Observability.SampleRatio > 1 {
		return fmt.Errorf("observability.sample_ratio must be between 0 and 1")
	}
	if cfg.Observability.EnableTracing && strings.TrimSpace(cfg.Observability.OTLPEndpoint) == "" {
		return fmt.Errorf("observability.otlp_endpoint is required when enable_tracing=true")
	}
	return nil
}
