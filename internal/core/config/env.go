package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: ASSETTREE_[SECTION]_[KEY] (e.g., ASSETTREE_REMOTE_ENDPOINT).
func ApplyEnvOverrides(cfg *Config) {
	// Paths
	setEnvString(&cfg.Paths.ProjectRoot, "ASSETTREE_PATHS_PROJECT_ROOT")
	setEnvString(&cfg.Paths.ConfigDir, "ASSETTREE_PATHS_CONFIG_DIR")
	setEnvString(&cfg.Paths.StateDir, "ASSETTREE_PATHS_STATE_DIR")
	setEnvString(&cfg.Paths.DatabaseDir, "ASSETTREE_PATHS_DATABASE_DIR")

	// Database
	setEnvBool(&cfg.DB.Enabled, "ASSETTREE_DB_ENABLED")
	setEnvString(&cfg.DB.Path, "ASSETTREE_DB_PATH")
	setEnvDuration(&cfg.DB.BusyTimeout, "ASSETTREE_DB_BUSY_TIMEOUT")
	setEnvInt(&cfg.DB.QueueCapacity, "ASSETTREE_DB_QUEUE_CAPACITY")
	setEnvBool(&cfg.DB.SpoolEnabled, "ASSETTREE_DB_SPOOL_ENABLED")

	// Tree
	setEnvString(&cfg.Tree.Delimiter, "ASSETTREE_TREE_DELIMITER")
	setEnvString(&cfg.Tree.LookupParentPath, "ASSETTREE_TREE_LOOKUP_PARENT_PATH")

	// Ingest
	setEnvString(&cfg.Ingest.WatchDir, "ASSETTREE_INGEST_WATCH_DIR")
	setEnvString(&cfg.Ingest.Strategy, "ASSETTREE_INGEST_STRATEGY")
	setEnvDuration(&cfg.Ingest.Debounce, "ASSETTREE_INGEST_DEBOUNCE")

	// Remote
	setEnvString(&cfg.Remote.Mode, "ASSETTREE_REMOTE_MODE")
	setEnvString(&cfg.Remote.Endpoint, "ASSETTREE_REMOTE_ENDPOINT")
	setEnvFloat64(&cfg.Remote.RequestsPerSecond, "ASSETTREE_REMOTE_REQUESTS_PER_SECOND")
	setEnvInt(&cfg.Remote.Burst, "ASSETTREE_REMOTE_BURST")
	setEnvDuration(&cfg.Remote.Timeout, "ASSETTREE_REMOTE_TIMEOUT")

	// MCP
	setEnvString(&cfg.MCP.Transport, "ASSETTREE_MCP_TRANSPORT")
	setEnvString(&cfg.MCP.Address, "ASSETTREE_MCP_ADDRESS")
	setEnvString(&cfg.MCP.ServerName, "ASSETTREE_MCP_SERVER_NAME")
	setEnvInt(&cfg.MCP.MaxResponseItems, "ASSETTREE_MCP_MAX_RESPONSE_ITEMS")
	setEnvDuration(&cfg.MCP.RequestTimeout, "ASSETTREE_MCP_REQUEST_TIMEOUT")

	// Templates
	setEnvString(&cfg.Templates.Dir, "ASSETTREE_TEMPLATES_DIR")

	// Caches
	setEnvInt(&cfg.Caches.Renders, "ASSETTREE_CACHES_RENDERS")

	// Observability
	setEnvBool(&cfg.Observability.Enabled, "ASSETTREE_OBSERVABILITY_ENABLED")
	setEnvInt(&cfg.Observability.Port, "ASSETTREE_OBSERVABILITY_PORT")
	setEnvString(&cfg.Observability.OTLPEndpoint, "ASSETTREE_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.EnableTracing, "ASSETTREE_OBSERVABILITY_ENABLE_TRACING")
	setEnvBool(&cfg.Observability.EnableMetrics, "ASSETTREE_OBSERVABILITY_ENABLE_METRICS")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
