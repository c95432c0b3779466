package transport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMockAdapter_CallJSONNormalizesArgs(t *testing.T) {
	mock := NewMockAdapter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan map[string]any, 1)
	go func() {
		_ = mock.Start(ctx, func(_ context.Context, tool string, raw map[string]any) (any, error) {
			seen <- raw
			return tool, nil
		})
	}()

	out, err := mock.CallJSON(ctx, "assettree", map[string]any{"limit": 5, "params": struct {
		TreeName string `json:"tree_name"`
	}{TreeName: "T1"}})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if out != "assettree" {
		t.Fatalf("unexpected result %v", out)
	}

	raw := <-seen
	if _, ok := raw["limit"].(float64); !ok {
		t.Fatalf("expected limit decoded as float64, got %T", raw["limit"])
	}
	params, ok := raw["params"].(map[string]any)
	if !ok || params["tree_name"] != "T1" {
		t.Fatalf("expected params decoded as object, got %#v", raw["params"])
	}
}

func TestMockAdapter_StopReleasesCallers(t *testing.T) {
	mock := NewMockAdapter()
	done := make(chan error, 1)
	go func() {
		done <- mock.Start(context.Background(), func(context.Context, string, map[string]any) (any, error) {
			return nil, nil
		})
	}()

	if err := mock.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := mock.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean exit, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}

	if _, err := mock.Call(context.Background(), "assettree", nil); !errors.Is(err, ErrMockStopped) {
		t.Fatalf("expected ErrMockStopped, got %v", err)
	}
}

func TestMockAdapter_CallHonorsContext(t *testing.T) {
	mock := NewMockAdapter()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := mock.Call(ctx, "assettree", nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error without a running handler, got %v", err)
	}
}
