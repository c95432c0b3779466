package openapi

import (
	"assettree/internal/mcp/contracts"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Validator checks tool params against the request schemas of a spec.
type Validator struct {
	schemas map[contracts.OperationID]*openapi3.Schema
}

func NewValidator(spec *openapi3.T) (*Validator, error) {
	if spec == nil || spec.Paths == nil {
		return nil, fmt.Errorf("openapi spec has no paths")
	}
	v := &Validator{schemas: make(map[contracts.OperationID]*openapi3.Schema)}
	for _, pathItem := range spec.Paths.Map() {
		if pathItem == nil {
			continue
		}
		for _, operation := range pathItem.Operations() {
			if operation == nil || operation.RequestBody == nil || operation.RequestBody.Value == nil {
				continue
			}
			content := operation.RequestBody.Value.Content.Get("application/json")
			if content == nil || content.Schema == nil || content.Schema.Value == nil {
				continue
			}
			id := contracts.OperationID(strings.TrimSpace(operation.OperationID))
			v.schemas[id] = content.Schema.Value
		}
	}
	return v, nil
}

// Validate returns an invalid_argument ToolError when params do not satisfy
// the operation's request schema. Operations without a schema always pass.
func (v *Validator) Validate(id contracts.OperationID, params map[string]any) error {
	if v == nil {
		return nil
	}
	schema, ok := v.schemas[id]
	if !ok {
		return nil
	}
	value, err := jsonValue(params)
	if err != nil {
		return contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "invalid params encoding"}
	}
	if err := schema.VisitJSON(value); err != nil {
		return contracts.ToolError{
			Code:    contracts.ErrorInvalidArgument,
			Message: fmt.Sprintf("params do not match the %s schema", id),
			Details: map[string]any{"error": err.Error()},
		}
	}
	return nil
}

func jsonValue(params map[string]any) (any, error) {
	if params == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
