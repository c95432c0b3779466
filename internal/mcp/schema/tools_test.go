package schema

import (
	"assettree/internal/mcp/contracts"
	"reflect"
	"testing"
)

func TestBuildToolDefinitions(t *testing.T) {
	ops := []contracts.OperationDescriptor{
		{ID: contracts.OperationTreeBuild, Summary: "Build a tree", InputSchema: map[string]any{"type": "object"}},
		{ID: contracts.OperationSyncPush, InputSchema: map[string]any{"type": "object"}},
	}

	defs := BuildToolDefinitions("", ops)
	if len(defs) != 1 {
		t.Fatalf("expected one tool, got %d", len(defs))
	}
	def := defs[0]
	if def.Name != contracts.ToolNameAssetTree {
		t.Fatalf("expected default tool name, got %q", def.Name)
	}

	props := def.InputSchema["properties"].(map[string]any)
	enum := props["operation"].(map[string]any)["enum"].([]string)
	if !reflect.DeepEqual(enum, []string{"tree.build", "sync.push"}) {
		t.Fatalf("unexpected operation enum %v", enum)
	}
	if _, ok := def.InputSchema["$defs"].(map[string]any)["sync.push"]; !ok {
		t.Fatal("expected per-operation schema for sync.push")
	}
}
