// # internal/core/config/config.go
package config

import (
	"assettree/internal/engine/records"
	"time"
)

type Config struct {
	Version       int           `toml:"version"`
	Paths         Paths         `toml:"paths"`
	DB            Database      `toml:"db"`
	Tree          Tree          `toml:"tree"`
	Ingest        Ingest        `toml:"ingest"`
	Remote        Remote        `toml:"remote"`
	MCP           MCP           `toml:"mcp"`
	Observability Observability `toml:"observability"`
	Templates     Templates     `toml:"templates"`
	Caches        Caches        `toml:"caches"`
}

type Paths struct {
	ProjectRoot string `toml:"project_root"`
	ConfigDir   string `toml:"config_dir"`
	StateDir    string `toml:"state_dir"`
	DatabaseDir string `toml:"database_dir"`
}

// Database configures the push ledger and its write queue.
type Database struct {
	Enabled       bool          `toml:"enabled"`
	Driver        string        `toml:"driver"`
	Path          string        `toml:"path"`
	BusyTimeout   time.Duration `toml:"busy_timeout"`
	QueueCapacity int           `toml:"queue_capacity"`
	BatchSize     int           `toml:"batch_size"`
	FlushInterval time.Duration `toml:"flush_interval"`
	SpoolEnabled  bool          `toml:"spool_enabled"`
	SpoolPath     string        `toml:"spool_path"`
}

type Tree struct {
	Delimiter        string `toml:"delimiter"`
	RootDescription  string `toml:"root_description"`
	LookupParentPath string `toml:"lookup_parent_path"`
}

type Ingest struct {
	Roles    records.ColumnRoles `toml:"roles"`
	Columns  records.ItemColumns `toml:"columns"`
	Strategy string              `toml:"strategy"`
	WatchDir string              `toml:"watch_dir"`
	Patterns []string            `toml:"patterns"`
	Debounce time.Duration       `toml:"debounce"`
	Sources  []Source            `toml:"sources"`
}

// Source binds a watched CSV file to a session.
type Source struct {
	File         string `toml:"file"`
	TreeName     string `toml:"tree_name"`
	WorkbookName string `toml:"workbook_name"`
	Workflow     string `toml:"workflow"`
}

const (
	WorkflowItems  = "items"
	WorkflowLookup = "lookup"
)

type Remote struct {
	Mode              string        `toml:"mode"`
	Endpoint          string        `toml:"endpoint"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
	Burst             int           `toml:"burst"`
	Timeout           time.Duration `toml:"timeout"`
}

const (
	RemoteModeMemory = "memory"
	RemoteModeHTTP   = "http"
)

type MCP struct {
	Transport          string        `toml:"transport"`
	Address            string        `toml:"address"`
	ServerName         string        `toml:"server_name"`
	ServerVersion      string        `toml:"server_version"`
	ExposedToolName    string        `toml:"exposed_tool_name"`
	OperationAllowlist []string      `toml:"operation_allowlist"`
	MaxResponseItems   int           `toml:"max_response_items"`
	RequestTimeout     time.Duration `toml:"request_timeout"`
	OpenAPISpecPath    string        `toml:"openapi_spec_path"`
	RateLimit          RateLimit     `toml:"rate_limit"`
}

type RateLimit struct {
	Enabled           bool          `toml:"enabled"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
	Burst             int           `toml:"burst"`
	TTL               time.Duration `toml:"ttl"`
}

type Observability struct {
	Enabled       bool    `toml:"enabled"`
	Port          int     `toml:"port"`
	OTLPEndpoint  string  `toml:"otlp_endpoint"`
	OTLPInsecure  bool    `toml:"otlp_insecure"`
	EnableTracing bool    `toml:"enable_tracing"`
	EnableMetrics bool    `toml:"enable_metrics"`
	SampleRatio   float64 `toml:"sample_ratio"`
}

type Templates struct {
	Dir string `toml:"dir"`
}

type Caches struct {
	Renders int `toml:"renders"`
}

// DefaultConfig returns a fully defaulted configuration for runs without a
// config file.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	normalizeTree(cfg)
	normalizeIngest(cfg)
	normalizeMCP(cfg)
	return cfg
}
