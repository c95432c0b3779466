package transport

import (
	"assettree/internal/core/config"
	"assettree/internal/mcp/contracts"
	"assettree/internal/mcp/schema"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func testInfo() ServerInfo {
	return ServerInfo{
		Name:    "assettree",
		Version: "test",
		Tools: schema.BuildToolDefinitions("assettree", []contracts.OperationDescriptor{
			{ID: contracts.OperationTreeList, InputSchema: map[string]any{"type": "object"}},
		}),
	}
}

func echoHandler(_ context.Context, tool string, raw map[string]any) (any, error) {
	if tool != "assettree" {
		return nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "unsupported tool: " + tool}
	}
	return map[string]any{"echo": raw["operation"]}, nil
}

func decodeLines(t *testing.T, out string) []map[string]any {
	t.Helper()
	var msgs []map[string]any
	dec := json.NewDecoder(strings.NewReader(out))
	for dec.More() {
		var msg map[string]any
		if err := dec.Decode(&msg); err != nil {
			t.Fatalf("decode output: %v", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func TestStdio_RPCSession(t *testing.T) {
	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"assettree","arguments":{"operation":"tree.list"}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"other","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":5,"method":"bogus"}`,
	}, "\n")
	var out bytes.Buffer
	s := NewStdioIO(strings.NewReader(in), &out, testInfo(), config.RateLimit{})

	if err := s.Start(context.Background(), echoHandler); err != nil {
		t.Fatalf("start: %v", err)
	}

	msgs := decodeLines(t, out.String())
	if len(msgs) != 5 {
		t.Fatalf("expected 5 responses (notification has none), got %d: %s", len(msgs), out.String())
	}

	serverInfo := msgs[0]["result"].(map[string]any)["serverInfo"].(map[string]any)
	if serverInfo["name"] != "assettree" {
		t.Fatalf("unexpected server info %v", serverInfo)
	}
	tools := msgs[1]["result"].(map[string]any)["tools"].([]any)
	if len(tools) != 1 || tools[0].(map[string]any)["name"] != "assettree" {
		t.Fatalf("unexpected tools %v", tools)
	}
	call := msgs[2]["result"].(map[string]any)
	if call["isError"] != false || call["structuredContent"].(map[string]any)["echo"] != "tree.list" {
		t.Fatalf("unexpected call result %v", call)
	}
	failed := msgs[3]["result"].(map[string]any)
	if failed["isError"] != true {
		t.Fatalf("expected tool error, got %v", failed)
	}
	if code := msgs[4]["error"].(map[string]any)["code"]; code != float64(rpcMethodNotFound) {
		t.Fatalf("expected method not found, got %v", code)
	}
}

func TestStdio_LegacyToolRequest(t *testing.T) {
	in := `{"id":"a","tool":"assettree","args":{"operation":"tree.list"}}` + "\n" +
		`{"id":"b","tool":"nope"}`
	var out bytes.Buffer
	s := NewStdioIO(strings.NewReader(in), &out, testInfo(), config.RateLimit{})
	if err := s.Start(context.Background(), echoHandler); err != nil {
		t.Fatalf("start: %v", err)
	}

	msgs := decodeLines(t, out.String())
	if len(msgs) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(msgs))
	}
	if msgs[0]["ok"] != true || msgs[0]["id"] != "a" {
		t.Fatalf("unexpected legacy response %v", msgs[0])
	}
	if msgs[1]["ok"] != false || msgs[1]["error"].(map[string]any)["code"] != string(contracts.ErrorInvalidArgument) {
		t.Fatalf("unexpected legacy error %v", msgs[1])
	}
}

func TestStdio_RateLimited(t *testing.T) {
	in := `{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n" + `{"jsonrpc":"2.0","id":2,"method":"ping"}`
	var out bytes.Buffer
	s := NewStdioIO(strings.NewReader(in), &out, testInfo(), config.RateLimit{Enabled: true, RequestsPerSecond: 0.001, Burst: 1})
	if err := s.Start(context.Background(), echoHandler); err != nil {
		t.Fatalf("start: %v", err)
	}

	msgs := decodeLines(t, out.String())
	if len(msgs) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(msgs))
	}
	if _, ok := msgs[0]["result"]; !ok {
		t.Fatalf("expected first ping to succeed, got %v", msgs[0])
	}
	if code := msgs[1]["error"].(map[string]any)["code"]; code != float64(rpcRateLimited) {
		t.Fatalf("expected rate limit error, got %v", msgs[1])
	}
}
