package validate

import (
	"assettree/internal/data/tabular"
	"assettree/internal/engine/dedupe"
	"assettree/internal/mcp/contracts"
	"assettree/internal/ui/report/formats"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	maxNameLength    = 256
	maxPathLength    = 4096
	maxPatternLength = 200
	maxLimitValue    = 5000
	maxRowCount      = 100000
	maxCSVBytes      = 16 << 20
)

func ValidateToolArgs(tool string, raw map[string]any) (any, error) {
	_, input, err := ParseToolArgs(tool, raw)
	return input, err
}

// ParseToolArgs decodes the params of one tool call into the typed input of
// its operation. CSV text in a table input is parsed into header and rows.
func ParseToolArgs(tool string, raw map[string]any) (contracts.OperationID, any, error) {
	if strings.TrimSpace(tool) == "" {
		return "", nil, invalid("tool name is required")
	}
	if tool != contracts.ToolNameAssetTree {
		return "", nil, invalid(fmt.Sprintf("unsupported tool: %s", tool))
	}
	if raw == nil {
		raw = map[string]any{}
	}

	operationRaw, ok := raw["operation"].(string)
	if !ok || strings.TrimSpace(operationRaw) == "" {
		return "", nil, invalid("operation is required")
	}
	operation := contracts.OperationID(strings.ToLower(strings.TrimSpace(operationRaw)))

	params := map[string]any{}
	if rawParams, ok := raw["params"]; ok && rawParams != nil {
		typed, ok := rawParams.(map[string]any)
		if !ok {
			return "", nil, invalid("params must be an object")
		}
		params = typed
	}

	input, err := parseParams(operation, params)
	if err != nil {
		return "", nil, err
	}
	return operation, input, nil
}

func parseParams(operation contracts.OperationID, params map[string]any) (any, error) {
	switch operation {
	case contracts.OperationTreeCreateEmpty:
		var input contracts.TreeCreateEmptyInput
		if err := decodeParams(params, &input); err != nil {
			return nil, err
		}
		if err := session(&input.SessionInput); err != nil {
			return nil, err
		}
		return input, nil
	case contracts.OperationTreeBuild:
		var input contracts.TreeBuildInput
		if err := decodeParams(params, &input); err != nil {
			return nil, err
		}
		if err := session(&input.SessionInput); err != nil {
			return nil, err
		}
		if err := table(&input.TableInput); err != nil {
			return nil, err
		}
		return input, nil
	case contracts.OperationTreeInsert:
		var input contracts.TreeInsertInput
		if err := decodeParams(params, &input); err != nil {
			return nil, err
		}
		if err := session(&input.SessionInput); err != nil {
			return nil, err
		}
		input.ParentPath = strings.TrimSpace(input.ParentPath)
		input.Item.Name = strings.TrimSpace(input.Item.Name)
		if input.Item.Name == "" {
			return nil, invalid("item.name is required")
		}
		if len(input.Item.Name) > maxNameLength || len(input.ParentPath) > maxPathLength {
			return nil, invalid("item.name or parent_path is too long")
		}
		return input, nil
	case contracts.OperationTreeMove:
		var input contracts.TreeMoveInput
		if err := decodeParams(params, &input); err != nil {
			return nil, err
		}
		if err := session(&input.SessionInput); err != nil {
			return nil, err
		}
		input.SourcePath = strings.TrimSpace(input.SourcePath)
		input.DestinationPath = strings.TrimSpace(input.DestinationPath)
		if input.SourcePath == "" || input.DestinationPath == "" {
			return nil, invalid("source_path and destination_path are required")
		}
		return input, nil
	case contracts.OperationTreeRemove:
		var input contracts.TreeRemoveInput
		if err := decodeParams(params, &input); err != nil {
			return nil, err
		}
		if err := session(&input.SessionInput); err != nil {
			return nil, err
		}
		input.ItemPath = strings.TrimSpace(input.ItemPath)
		if input.ItemPath == "" {
			return nil, invalid("item_path is required")
		}
		return input, nil
	case contracts.OperationTreeRender, contracts.OperationTreeSearch:
		var input contracts.TreeRenderInput
		if err := decodeParams(params, &input); err != nil {
			return nil, err
		}
		if err := session(&input.SessionInput); err != nil {
			return nil, err
		}
		f, err := formats.ParseFormat(input.Format)
		if err != nil {
			return nil, invalid(fmt.Sprintf("unsupported format: %s", input.Format))
		}
		input.Format = string(f)
		return input, nil
	case contracts.OperationTreeFind:
		var input contracts.TreeFindInput
		if err := decodeParams(params, &input); err != nil {
			return nil, err
		}
		if err := session(&input.SessionInput); err != nil {
			return nil, err
		}
		input.Pattern = strings.TrimSpace(input.Pattern)
		if input.Pattern == "" {
			return nil, invalid("pattern is required")
		}
		if len(input.Pattern) > maxPatternLength {
			return nil, invalid("pattern is too long")
		}
		return input, limit("limit", input.Limit)
	case contracts.OperationTreeClear:
		var input contracts.TreeClearInput
		if err := decodeParams(params, &input); err != nil {
			return nil, err
		}
		if err := session(&input.SessionInput); err != nil {
			return nil, err
		}
		return input, nil
	case contracts.OperationTreeList:
		var input contracts.TreeListInput
		if err := decodeParams(params, &input); err != nil {
			return nil, err
		}
		return input, limit("limit", input.Limit)
	case contracts.OperationDuplicatesDetect, contracts.OperationDuplicatesResolve, contracts.OperationLookupBuild:
		var input contracts.LookupInput
		if err := decodeParams(params, &input); err != nil {
			return nil, err
		}
		if operation == contracts.OperationLookupBuild {
			if err := session(&input.SessionInput); err != nil {
				return nil, err
			}
		}
		if _, err := dedupe.ParseStrategy(input.Strategy); err != nil {
			return nil, invalid(fmt.Sprintf("unsupported strategy: %s", input.Strategy))
		}
		input.Strategy = strings.ToLower(strings.TrimSpace(input.Strategy))
		if err := limit("limit", input.Limit); err != nil {
			return nil, err
		}
		if err := table(&input.TableInput); err != nil {
			return nil, err
		}
		return input, nil
	case contracts.OperationSyncPush:
		var input contracts.SyncPushInput
		if err := decodeParams(params, &input); err != nil {
			return nil, err
		}
		if err := session(&input.SessionInput); err != nil {
			return nil, err
		}
		return input, nil
	case contracts.OperationSyncRemoteSearch:
		var input contracts.SyncRemoteSearchInput
		if err := decodeParams(params, &input); err != nil {
			return nil, err
		}
		input.Name = strings.TrimSpace(input.Name)
		if input.Name == "" {
			return nil, invalid("name is required")
		}
		if len(input.Name) > maxNameLength {
			return nil, invalid("name is too long")
		}
		return input, nil
	case contracts.OperationSyncHistory:
		var input contracts.SyncHistoryInput
		if err := decodeParams(params, &input); err != nil {
			return nil, err
		}
		if err := session(&input.SessionInput); err != nil {
			return nil, err
		}
		return input, limit("limit", input.Limit)
	case contracts.OperationTemplateList:
		var input contracts.TemplateListInput
		if err := decodeParams(params, &input); err != nil {
			return nil, err
		}
		return input, nil
	case contracts.OperationTemplateApply:
		var input contracts.TemplateApplyInput
		if err := decodeParams(params, &input); err != nil {
			return nil, err
		}
		if err := session(&input.SessionInput); err != nil {
			return nil, err
		}
		input.Template = strings.TrimSpace(input.Template)
		if input.Template == "" {
			return nil, invalid("template is required")
		}
		input.ParentPath = strings.TrimSpace(input.ParentPath)
		return input, nil
	default:
		return nil, invalid(fmt.Sprintf("unsupported operation: %s", operation))
	}
}

func decodeParams(params map[string]any, out any) error {
	data, err := json.Marshal(params)
	if err != nil {
		return invalid("invalid params encoding")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "invalid params", Details: map[string]any{"error": err.Error()}}
	}
	return nil
}

func session(in *contracts.SessionInput) error {
	in.TreeName = strings.TrimSpace(in.TreeName)
	in.WorkbookName = strings.TrimSpace(in.WorkbookName)
	if in.TreeName == "" || in.WorkbookName == "" {
		return invalid("tree_name and workbook_name are required")
	}
	if len(in.TreeName) > maxNameLength || len(in.WorkbookName) > maxNameLength {
		return invalid("tree_name or workbook_name is too long")
	}
	return nil
}

func table(in *contracts.TableInput) error {
	if in.CSV != "" {
		if len(in.CSV) > maxCSVBytes {
			return invalid("csv is too large")
		}
		t, err := tabular.Read(strings.NewReader(in.CSV))
		if err != nil {
			return contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "invalid csv", Details: map[string]any{"error": err.Error()}}
		}
		in.Header, in.Rows, in.CSV = t.Header, t.Rows, ""
	}
	if len(in.Header) == 0 {
		return invalid("header or csv is required")
	}
	if len(in.Rows) > maxRowCount {
		return invalid("too many rows")
	}
	return nil
}

func limit(field string, v int) error {
	if v < 0 || v > maxLimitValue {
		return invalid(fmt.Sprintf("%s is out of range", field))
	}
	return nil
}

func invalid(msg string) error {
	return contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: msg}
}
