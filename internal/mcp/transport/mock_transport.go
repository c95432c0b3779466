package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrMockStopped is returned by calls made after the mock adapter stopped.
var ErrMockStopped = errors.New("mock adapter stopped")

// MockAdapter is an in-process Adapter. Calls go straight to the runtime
// handler on the Start goroutine, so tests drive the server without stdio or
// HTTP framing.
type MockAdapter struct {
	mu       sync.Mutex
	started  bool
	calls    chan mockCall
	stopped  chan struct{}
	stopOnce sync.Once
}

type mockCall struct {
	ctx   context.Context
	tool  string
	args  map[string]any
	reply chan mockReply
}

type mockReply struct {
	result any
	err    error
}

func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		calls:   make(chan mockCall),
		stopped: make(chan struct{}),
	}
}

func (m *MockAdapter) Start(ctx context.Context, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("mock adapter needs a handler")
	}
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("mock adapter already started")
	}
	m.started = true
	m.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stopped:
			return nil
		case c := <-m.calls:
			res, err := handler(c.ctx, c.tool, c.args)
			c.reply <- mockReply{result: res, err: err}
		}
	}
}

func (m *MockAdapter) Stop() error {
	m.stopOnce.Do(func() { close(m.stopped) })
	return nil
}

// Call hands one tool call to the running handler and waits for its reply.
func (m *MockAdapter) Call(ctx context.Context, tool string, args map[string]any) (any, error) {
	c := mockCall{ctx: ctx, tool: tool, args: args, reply: make(chan mockReply, 1)}
	select {
	case m.calls <- c:
	case <-m.stopped:
		return nil, ErrMockStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-c.reply:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CallJSON encodes args and decodes them again before calling, so numbers
// arrive as float64 and nested values as maps the way a JSON-RPC client sends
// them.
func (m *MockAdapter) CallJSON(ctx context.Context, tool string, args map[string]any) (any, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s args: %w", tool, err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("decode %s args: %w", tool, err)
	}
	return m.Call(ctx, tool, decoded)
}
