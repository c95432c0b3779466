package runtime

import (
	"assettree/internal/core/config"
	"assettree/internal/mcp/contracts"
	"reflect"
	"testing"
)

func TestBuildOperationAllowlist_Aliases(t *testing.T) {
	cfg := &config.Config{
		MCP: config.MCP{
			OperationAllowlist: []string{"upload_csv", "get_duplicates", "push_tree", "TREE.RENDER", "nonsense"},
		},
	}
	allowlist := BuildOperationAllowlist(cfg)
	for _, id := range []contracts.OperationID{
		contracts.OperationTreeBuild,
		contracts.OperationDuplicatesDetect,
		contracts.OperationSyncPush,
		contracts.OperationTreeRender,
	} {
		if !allowlist.Allows(id) {
			t.Fatalf("expected %s allowed", id)
		}
	}
	if allowlist.Allows(contracts.OperationTreeRemove) {
		t.Fatalf("did not expect tree.remove allowed")
	}

	expected := []string{"tree.build", "tree.render", "duplicates.detect", "sync.push"}
	if got := allowlist.Entries(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected entries %v, got %v", expected, got)
	}
}

func TestBuildOperationAllowlist_EmptyAllowsAll(t *testing.T) {
	allowlist := BuildOperationAllowlist(&config.Config{})
	for _, id := range contracts.Operations() {
		if !allowlist.Allows(id) {
			t.Fatalf("expected %s allowed", id)
		}
	}
	if allowlist.Entries() != nil {
		t.Fatal("expected nil entries for allow-all")
	}
}
