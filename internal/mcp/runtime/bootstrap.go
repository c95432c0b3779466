package runtime

import (
	"assettree/internal/core/config"
	"assettree/internal/mcp/contracts"
	"assettree/internal/mcp/openapi"
	"assettree/internal/mcp/registry"
	"assettree/internal/mcp/schema"
	"assettree/internal/mcp/transport"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Build wires a Server for cfg: operation catalog, allowlist, tool schema and
// the configured transport.
func Build(cfg *config.Config, deps Dependencies) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	allowlist := BuildOperationAllowlist(cfg)
	ops, validator, err := loadOpenAPIOperations(cfg, allowlist)
	if err != nil {
		return nil, err
	}

	toolName := strings.TrimSpace(cfg.MCP.ExposedToolName)
	if toolName == "" {
		toolName = contracts.ToolNameAssetTree
	}
	info := transport.ServerInfo{
		Name:    cfg.MCP.ServerName,
		Version: cfg.MCP.ServerVersion,
		Tools:   schema.BuildToolDefinitions(toolName, ops),
	}
	adapter, err := buildTransport(cfg, info, deps)
	if err != nil {
		return nil, err
	}

	return New(cfg, deps, registry.New(), adapter, toolName, allowlist, validator)
}

func buildTransport(cfg *config.Config, info transport.ServerInfo, deps Dependencies) (transport.Adapter, error) {
	transportName := strings.ToLower(strings.TrimSpace(cfg.MCP.Transport))
	switch transportName {
	case "", "stdio":
		return transport.NewStdio(info, cfg.MCP.RateLimit)
	case "sse", "http":
		addr := cfg.MCP.Address
		if addr == "" {
			addr = "127.0.0.1:8765"
		}
		return transport.NewSSE(addr, info, cfg.MCP.RateLimit, deps.Logger)
	default:
		return nil, fmt.Errorf("unsupported MCP transport: %s", transportName)
	}
}

// loadOpenAPIOperations loads mcp.openapi_spec_path, or the built-in document
// when unset, and keeps the allowlisted operations.
func loadOpenAPIOperations(cfg *config.Config, allowlist OperationAllowlist) ([]contracts.OperationDescriptor, *openapi.Validator, error) {
	var (
		spec *openapi3.T
		err  error
	)
	if source := strings.TrimSpace(cfg.MCP.OpenAPISpecPath); source != "" {
		spec, err = openapi.LoadSpec(source)
	} else {
		spec, err = openapi.LoadDefault()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load MCP OpenAPI spec: %w", err)
	}

	ops, err := openapi.Convert(spec)
	if err != nil {
		return nil, nil, fmt.Errorf("convert MCP OpenAPI operations: %w", err)
	}

	entries := allowlist.Entries()
	if entries != nil && len(entries) == 0 {
		return nil, nil, fmt.Errorf("mcp.operation_allowlist names no known operation")
	}
	filtered := openapi.ApplyAllowlist(ops, entries)
	if len(filtered) == 0 {
		return nil, nil, fmt.Errorf("MCP OpenAPI conversion produced zero allowlisted operations")
	}

	validator, err := openapi.NewValidator(spec)
	if err != nil {
		return nil, nil, fmt.Errorf("build MCP params validator: %w", err)
	}
	return filtered, validator, nil
}
