package schema

import (
	"assettree/internal/mcp/contracts"
	"strings"
)

type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
	Version     string         `json:"version"`
}

// BuildToolDefinitions describes the single assettree tool. The per-operation
// params schemas are published under $defs keyed by operation id.
func BuildToolDefinitions(toolName string, ops []contracts.OperationDescriptor) []ToolDefinition {
	if strings.TrimSpace(toolName) == "" {
		toolName = contracts.ToolNameAssetTree
	}

	operations := make([]string, 0, len(ops))
	defs := make(map[string]any, len(ops))
	summaries := make([]string, 0, len(ops))
	for _, op := range ops {
		operations = append(operations, string(op.ID))
		defs[string(op.ID)] = op.InputSchema
		if op.Summary != "" {
			summaries = append(summaries, string(op.ID)+": "+op.Summary)
		}
	}

	description := "Single entry tool for building, editing, rendering and pushing asset trees."
	if len(summaries) > 0 {
		description += " Operations: " + strings.Join(summaries, "; ") + "."
	}

	return []ToolDefinition{
		{
			Name:        toolName,
			Description: description,
			Version:     contracts.ContractVersion,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"operation": map[string]any{
						"type":        "string",
						"description": "Operation identifier (e.g., tree.build).",
						"enum":        operations,
					},
					"params": map[string]any{
						"type":                 "object",
						"description":          "Operation params; see $defs for the schema of each operation.",
						"additionalProperties": true,
					},
				},
				"required": []string{"operation"},
				"$defs":    defs,
			},
		},
	}
}
