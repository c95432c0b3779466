package runtime

import (
	"assettree/internal/core/config"
	"assettree/internal/mcp/contracts"
	"strings"
)

type OperationAllowlist struct {
	allowAll bool
	allowed  map[contracts.OperationID]bool
}

// BuildOperationAllowlist restricts the dispatchable operations to
// mcp.operation_allowlist. An empty list allows everything.
func BuildOperationAllowlist(cfg *config.Config) OperationAllowlist {
	if cfg == nil || len(cfg.MCP.OperationAllowlist) == 0 {
		return OperationAllowlist{allowAll: true}
	}

	allowed := make(map[contracts.OperationID]bool)
	for _, entry := range cfg.MCP.OperationAllowlist {
		id := normalizeOperationAlias(entry)
		if id == "" {
			continue
		}
		allowed[id] = true
	}

	return OperationAllowlist{allowed: allowed}
}

func (o OperationAllowlist) Allows(id contracts.OperationID) bool {
	if o.allowAll {
		return true
	}
	return o.allowed[id]
}

// Entries returns the allowed operation ids, or nil when all are allowed.
func (o OperationAllowlist) Entries() []string {
	if o.allowAll {
		return nil
	}
	out := make([]string, 0, len(o.allowed))
	for _, id := range contracts.Operations() {
		if o.allowed[id] {
			out = append(out, string(id))
		}
	}
	return out
}

func normalizeOperationAlias(raw string) contracts.OperationID {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "upload_csv", "build_tree":
		return contracts.OperationTreeBuild
	case "visualize_tree":
		return contracts.OperationTreeRender
	case "get_duplicates":
		return contracts.OperationDuplicatesDetect
	case "resolve_duplicates":
		return contracts.OperationDuplicatesResolve
	case "create_lookup":
		return contracts.OperationLookupBuild
	case "push_tree":
		return contracts.OperationSyncPush
	}
	for _, id := range contracts.Operations() {
		if string(id) == value {
			return id
		}
	}
	return ""
}
