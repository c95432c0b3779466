package openapi

import (
	"assettree/internal/mcp/contracts"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
)

func TestConvert_OpenAPIToOperations(t *testing.T) {
	spec := mustLoadSpecFromData(t, []byte(`
openapi: 3.0.3
info:
  title: assettree
  version: "1.0"
paths:
  /tree/list:
    post:
      operationId: tree.list
      summary: List trees
      responses:
        "200":
          description: ok
  /tree/move:
    post:
      operationId: tree.move
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              properties:
                source_path:
                  type: string
                destination_path:
                  type: string
      responses:
        "200":
          description: ok
`))

	ops, err := Convert(spec)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(ops))
	}
	if ops[0].ID != contracts.OperationTreeList || ops[1].ID != contracts.OperationTreeMove {
		t.Fatalf("unexpected operation order: %+v", ops)
	}
	if ops[0].Summary != "List trees" {
		t.Fatalf("unexpected summary %q", ops[0].Summary)
	}
	if ops[1].InputSchema["type"] != "object" {
		t.Fatalf("expected object schema, got %+v", ops[1].InputSchema)
	}
}

func TestConvert_InvalidSchema(t *testing.T) {
	spec := mustLoadSpecFromData(t, []byte(`
openapi: 3.0.3
info:
  title: assettree
  version: "1.0"
paths:
  /tree/find:
    post:
      operationId: tree.find
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: array
              items:
                type: string
      responses:
        "200":
          description: ok
`))

	_, err := Convert(spec)
	if err == nil {
		t.Fatal("expected conversion error")
	}
	if !strings.Contains(err.Error(), "unsupported schema type") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConvert_MissingOperationID(t *testing.T) {
	spec := mustLoadSpecFromData(t, []byte(`
openapi: 3.0.3
info:
  title: assettree
  version: "1.0"
paths:
  /tree/list:
    post:
      summary: List trees
      responses:
        "200":
          description: ok
`))

	_, err := Convert(spec)
	if err == nil {
		t.Fatal("expected conversion error")
	}
	if !strings.Contains(err.Error(), "missing operationId") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConvert_UnknownOperation(t *testing.T) {
	spec := mustLoadSpecFromData(t, []byte(`
openapi: 3.0.3
info:
  title: assettree
  version: "1.0"
paths:
  /modules:
    get:
      operationId: query.modules
      responses:
        "200":
          description: ok
`))

	_, err := Convert(spec)
	if err == nil || !strings.Contains(err.Error(), "not an assettree operation") {
		t.Fatalf("expected unknown operation error, got %v", err)
	}
}

func TestLoadDefault_DescribesEveryOperation(t *testing.T) {
	spec, err := LoadDefault()
	if err != nil {
		t.Fatalf("load default: %v", err)
	}
	ops, err := Convert(spec)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(ops) != len(contracts.Operations()) {
		t.Fatalf("expected %d operations, got %d", len(contracts.Operations()), len(ops))
	}
}

func TestApplyAllowlist(t *testing.T) {
	ops := []contracts.OperationDescriptor{
		{ID: contracts.OperationTreeRender},
		{ID: contracts.OperationSyncPush},
		{ID: contracts.OperationTreeBuild},
	}

	filtered := ApplyAllowlist(ops, []string{"tree.build", "sync.push"})
	ids := make([]contracts.OperationID, 0, len(filtered))
	for _, op := range filtered {
		ids = append(ids, op.ID)
	}

	expected := []contracts.OperationID{contracts.OperationTreeBuild, contracts.OperationSyncPush}
	if !reflect.DeepEqual(ids, expected) {
		t.Fatalf("expected ids %v, got %v", expected, ids)
	}
}

func TestApplyAllowlist_CatalogOrderWithoutFilter(t *testing.T) {
	ops := []contracts.OperationDescriptor{
		{ID: "zz.custom"},
		{ID: contracts.OperationTemplateApply},
		{ID: contracts.OperationTreeList},
		{ID: contracts.OperationTreeCreateEmpty},
		{ID: contracts.OperationTreeList, Summary: "shadowed"},
		{ID: "aa.custom"},
	}

	filtered := ApplyAllowlist(ops, []string{"  ", ""})
	ids := make([]contracts.OperationID, 0, len(filtered))
	for _, op := range filtered {
		ids = append(ids, op.ID)
	}

	expected := []contracts.OperationID{
		contracts.OperationTreeCreateEmpty,
		contracts.OperationTreeList,
		contracts.OperationTemplateApply,
		"aa.custom",
		"zz.custom",
	}
	if !reflect.DeepEqual(ids, expected) {
		t.Fatalf("expected ids %v, got %v", expected, ids)
	}
	for _, op := range filtered {
		if op.Summary == "shadowed" {
			t.Fatal("expected the first tree.list descriptor to win")
		}
	}
}

func TestValidator(t *testing.T) {
	spec, err := LoadDefault()
	if err != nil {
		t.Fatalf("load default: %v", err)
	}
	v, err := NewValidator(spec)
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}

	ok := map[string]any{"tree_name": "T1", "workbook_name": "W1", "source_path": "T1/A", "destination_path": "T1/B"}
	if err := v.Validate(contracts.OperationTreeMove, ok); err != nil {
		t.Fatalf("expected valid params, got %v", err)
	}

	missing := map[string]any{"tree_name": "T1", "workbook_name": "W1"}
	err = v.Validate(contracts.OperationTreeMove, missing)
	var toolErr contracts.ToolError
	if !errors.As(err, &toolErr) || toolErr.Code != contracts.ErrorInvalidArgument {
		t.Fatalf("expected invalid_argument, got %v", err)
	}

	badFormat := map[string]any{"tree_name": "T1", "workbook_name": "W1", "format": "svg"}
	if err := v.Validate(contracts.OperationTreeRender, badFormat); err == nil {
		t.Fatal("expected format enum violation")
	}

	if err := v.Validate(contracts.OperationTemplateList, nil); err != nil {
		t.Fatalf("expected schemaless operation to pass, got %v", err)
	}
}

func TestLoadSpec_Path(t *testing.T) {
	dir := t.TempDir()
	specPath := filepath.Join(dir, "spec.yaml")
	if err := os.WriteFile(specPath, []byte(`
openapi: 3.0.3
info:
  title: assettree
  version: "1.0"
paths:
  /tree/list:
    post:
      operationId: tree.list
      responses:
        "200":
          description: ok
`), 0o644); err != nil {
		t.Fatal(err)
	}

	spec, err := LoadSpec(specPath)
	if err != nil {
		t.Fatalf("load spec: %v", err)
	}
	if spec == nil {
		t.Fatal("expected loaded spec")
	}
}

func mustLoadSpecFromData(t *testing.T, data []byte) *openapi3.T {
	t.Helper()
	loader := openapi3.NewLoader()
	spec, err := loader.LoadFromData(data)
	if err != nil {
		t.Fatalf("load spec from data: %v", err)
	}
	if err := spec.Validate(loader.Context); err != nil {
		t.Fatalf("validate spec: %v", err)
	}
	return spec
}
