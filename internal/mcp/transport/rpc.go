package transport

import (
	"assettree/internal/mcp/contracts"
	"assettree/internal/mcp/schema"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

const protocolVersion = "2025-06-18"

type Handler func(ctx context.Context, tool string, raw map[string]any) (any, error)

type Adapter interface {
	Start(ctx context.Context, handler Handler) error
	Stop() error
}

// ServerInfo is what initialize and tools/list report.
type ServerInfo struct {
	Name    string
	Version string
	Tools   []schema.ToolDefinition
}

type toolRequest struct {
	ID   any            `json:"id,omitempty"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

type toolResponse struct {
	ID     any                  `json:"id,omitempty"`
	OK     bool                 `json:"ok"`
	Result any                  `json:"result,omitempty"`
	Error  *contracts.ToolError `json:"error,omitempty"`
}

type rpcRequest struct {
	JSONRPC string         `json:"jsonrpc,omitempty"`
	ID      any            `json:"id,omitempty"`
	Method  string         `json:"method,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id,omitempty"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

const (
	rpcMethodNotFound = -32601
	rpcRateLimited    = -32005
)

// processMessage answers one decoded message. JSON-RPC messages follow the
// MCP method set; anything else is treated as a legacy {"tool","args"} call.
// A nil response means nothing should be written back.
func processMessage(ctx context.Context, handler Handler, info ServerInfo, raw map[string]any) any {
	method, _ := raw["method"].(string)
	jsonrpc, _ := raw["jsonrpc"].(string)
	if method == "" || jsonrpc == "" {
		req := parseLegacyToolRequest(raw)
		if req.Args == nil {
			req.Args = map[string]any{}
		}
		result, err := handler(ctx, req.Tool, req.Args)
		resp := toolResponse{ID: req.ID}
		if err != nil {
			toolErr := normalizeToolError(err)
			resp.Error = &toolErr
		} else {
			resp.OK = true
			resp.Result = result
		}
		return resp
	}

	req := rpcRequest{JSONRPC: jsonrpc, Method: method, Params: map[string]any{}}
	if id, ok := raw["id"]; ok {
		req.ID = id
	}
	if params, ok := raw["params"].(map[string]any); ok {
		req.Params = params
	}
	if req.Method == "notifications/initialized" {
		return nil
	}

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "initialize":
		resp.Result = map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
			"serverInfo": map[string]any{
				"name":    info.Name,
				"version": info.Version,
			},
		}
	case "ping":
		resp.Result = map[string]any{}
	case "tools/list":
		tools := make([]map[string]any, 0, len(info.Tools))
		for _, def := range info.Tools {
			tools = append(tools, map[string]any{
				"name":        def.Name,
				"description": def.Description,
				"inputSchema": def.InputSchema,
			})
		}
		resp.Result = map[string]any{"tools": tools}
	case "tools/call":
		name, _ := req.Params["name"].(string)
		args, _ := req.Params["arguments"].(map[string]any)
		if args == nil {
			args = map[string]any{}
		}
		result, err := handler(ctx, name, args)
		if err != nil {
			toolErr := normalizeToolError(err)
			resp.Result = map[string]any{
				"isError":           true,
				"structuredContent": map[string]any{"error": toolErr},
				"content": []map[string]any{
					{"type": "text", "text": fmt.Sprintf("%s: %s", toolErr.Code, toolErr.Message)},
				},
			}
		} else {
			resp.Result = map[string]any{
				"isError":           false,
				"structuredContent": result,
				"content": []map[string]any{
					{"type": "text", "text": mustJSONText(result)},
				},
			}
		}
	default:
		resp.Error = &rpcError{Code: rpcMethodNotFound, Message: "Method not found"}
	}
	return resp
}

func rateLimitedResponse(raw map[string]any) any {
	id := raw["id"]
	if _, ok := raw["jsonrpc"].(string); ok {
		return rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: rpcRateLimited, Message: "Rate limit exceeded"}}
	}
	return toolResponse{ID: id, Error: &contracts.ToolError{Code: contracts.ErrorUnavailable, Message: "rate limit exceeded"}}
}

func parseLegacyToolRequest(raw map[string]any) toolRequest {
	req := toolRequest{}
	if id, ok := raw["id"]; ok {
		req.ID = id
	}
	if tool, ok := raw["tool"].(string); ok {
		req.Tool = tool
	}
	if args, ok := raw["args"].(map[string]any); ok {
		req.Args = args
	}
	return req
}

func mustJSONText(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func normalizeToolError(err error) contracts.ToolError {
	var toolErr contracts.ToolError
	if errors.As(err, &toolErr) {
		return toolErr
	}
	return contracts.ToolError{Code: contracts.ErrorInternal, Message: err.Error()}
}
