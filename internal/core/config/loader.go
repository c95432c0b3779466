// # internal/core/config/loader.go
package config

import (
	"assettree/internal/shared/version"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	normalizeTree(&cfg)
	normalizeIngest(&cfg)
	normalizeMCP(&cfg)

	if err := validateVersion(&cfg); err != nil {
		return nil, err
	}
	if err := validateDatabase(&cfg); err != nil {
		return nil, err
	}
	if err := validateTree(&cfg); err != nil {
		return nil, err
	}
	if err := validateIngest(&cfg); err != nil {
		return nil, err
	}
	if err := validateRemote(&cfg); err != nil {
		return nil, err
	}
	if err := validateMCP(&cfg); err != nil {
		return nil, err
	}
	if err := validateObservability(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Paths.ConfigDir) == "" {
		cfg.Paths.ConfigDir = "data/config"
	}
	if strings.TrimSpace(cfg.Paths.StateDir) == "" {
		cfg.Paths.StateDir = "data/state"
	}
	if strings.TrimSpace(cfg.Paths.DatabaseDir) == "" {
		cfg.Paths.DatabaseDir = "data/database"
	}

	if strings.TrimSpace(cfg.DB.Driver) == "" {
		cfg.DB.Driver = "sqlite"
	}
	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = "ledger.db"
	}
	if strings.TrimSpace(cfg.DB.SpoolPath) == "" {
		cfg.DB.SpoolPath = "ledger_spool.db"
	}
	if cfg.DB.BusyTimeout <= 0 {
		cfg.DB.BusyTimeout = 5 * time.Second
	}
	if cfg.DB.QueueCapacity <= 0 {
		cfg.DB.QueueCapacity = 256
	}
	if cfg.DB.BatchSize <= 0 {
		cfg.DB.BatchSize = 32
	}
	if cfg.DB.FlushInterval <= 0 {
		cfg.DB.FlushInterval = 200 * time.Millisecond
	}
	if !cfg.DB.Enabled && cfg.Version <= 1 {
		cfg.DB.Enabled = true
	}

	if cfg.Tree.Delimiter == "" {
		cfg.Tree.Delimiter = ">>"
	}
	if strings.TrimSpace(cfg.Tree.RootDescription) == "" {
		cfg.Tree.RootDescription = "Asset tree"
	}

	if strings.TrimSpace(cfg.Ingest.Strategy) == "" {
		cfg.Ingest.Strategy = "user_specific"
	}
	if len(cfg.Ingest.Patterns) == 0 {
		cfg.Ingest.Patterns = []string{"*.csv"}
	}
	if cfg.Ingest.Debounce <= 0 {
		cfg.Ingest.Debounce = 500 * time.Millisecond
	}

	if strings.TrimSpace(cfg.Remote.Mode) == "" {
		cfg.Remote.Mode = RemoteModeMemory
	}
	if cfg.Remote.RequestsPerSecond == 0 {
		cfg.Remote.RequestsPerSecond = 5
	}
	if cfg.Remote.Burst <= 0 {
		cfg.Remote.Burst = 2
	}
	if cfg.Remote.Timeout <= 0 {
		cfg.Remote.Timeout = 30 * time.Second
	}

	if strings.TrimSpace(cfg.MCP.Transport) == "" {
		cfg.MCP.Transport = "stdio"
	}
	if strings.TrimSpace(cfg.MCP.Address) == "" {
		cfg.MCP.Address = "127.0.0.1:8765"
	}
	if strings.TrimSpace(cfg.MCP.ServerName) == "" {
		cfg.MCP.ServerName = "assettree"
	}
	if strings.TrimSpace(cfg.MCP.ServerVersion) == "" {
		cfg.MCP.ServerVersion = version.Version
	}
	if strings.TrimSpace(cfg.MCP.ExposedToolName) == "" {
		cfg.MCP.ExposedToolName = "assettree"
	}
	if cfg.MCP.MaxResponseItems == 0 {
		cfg.MCP.MaxResponseItems = 500
	}
	if cfg.MCP.RequestTimeout <= 0 {
		cfg.MCP.RequestTimeout = 30 * time.Second
	}
	if cfg.MCP.RateLimit.RequestsPerSecond <= 0 {
		cfg.MCP.RateLimit.RequestsPerSecond = 20
	}
	if cfg.MCP.RateLimit.Burst <= 0 {
		cfg.MCP.RateLimit.Burst = 40
	}
	if cfg.MCP.RateLimit.TTL <= 0 {
		cfg.MCP.RateLimit.TTL = 10 * time.Minute
	}

	if cfg.Observability.Port == 0 {
		cfg.Observability.Port = 9464
	}
	if cfg.Observability.SampleRatio == 0 {
		cfg.Observability.SampleRatio = 1
	}

	if cfg.Caches.Renders == 0 {
		cfg.Caches.Renders = 64
	}
}

func normalizeTree(cfg *Config) {
	cfg.Tree.Delimiter = strings.TrimSpace(cfg.Tree.Delimiter)
	cfg.Tree.RootDescription = strings.TrimSpace(cfg.Tree.RootDescription)
	cfg.Tree.LookupParentPath = strings.TrimSpace(cfg.Tree.LookupParentPath)
}

func normalizeIngest(cfg *Config) {
	cfg.Ingest.Roles.Group = strings.TrimSpace(cfg.Ingest.Roles.Group)
	cfg.Ingest.Roles.Key = strings.TrimSpace(cfg.Ingest.Roles.Key)
	cfg.Ingest.Roles.Value = strings.TrimSpace(cfg.Ingest.Roles.Value)
	cfg.Ingest.Columns = cfg.Ingest.Columns.WithDefaults()
	cfg.Ingest.Strategy = strings.ToLower(strings.TrimSpace(cfg.Ingest.Strategy))
	cfg.Ingest.WatchDir = strings.TrimSpace(cfg.Ingest.WatchDir)
	for i := range cfg.Ingest.Sources {
		src := &cfg.Ingest.Sources[i]
		src.File = strings.TrimSpace(src.File)
		src.TreeName = strings.TrimSpace(src.TreeName)
		src.WorkbookName = strings.TrimSpace(src.WorkbookName)
		src.Workflow = strings.ToLower(strings.TrimSpace(src.Workflow))
		if src.Workflow == "" {
			src.Workflow = WorkflowItems
		}
	}
}

func normalizeMCP(cfg *Config) {
	cfg.MCP.Transport = strings.ToLower(strings.TrimSpace(cfg.MCP.Transport))
	cfg.MCP.Address = strings.TrimSpace(cfg.MCP.Address)
	cfg.MCP.OpenAPISpecPath = strings.TrimSpace(cfg.MCP.OpenAPISpecPath)
	cfg.MCP.ServerName = strings.TrimSpace(cfg.MCP.ServerName)
	cfg.MCP.ServerVersion = strings.TrimSpace(cfg.MCP.ServerVersion)
	cfg.MCP.ExposedToolName = strings.TrimSpace(cfg.MCP.ExposedToolName)
	if len(cfg.MCP.OperationAllowlist) == 0 {
		return
	}
	normalized := make([]string, 0, len(cfg.MCP.OperationAllowlist))
	for _, op := range cfg.MCP.OperationAllowlist {
		op = strings.ToLower(strings.TrimSpace(op))
		if op == "" {
			continue
		}
		normalized = append(normalized, op)
	}
	cfg.MCP.OperationAllowlist = normalized
}
