// Package registry maps exposed MCP tool names to the handlers that dispatch
// assettree operations.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Handler receives the decoded tool arguments of one tools/call request.
type Handler func(ctx context.Context, input any) (any, error)

// Registry holds one handler per tool. Tool names are matched without regard
// to case or surrounding space, the same way the runtime matches incoming calls.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	names    []string
}

func New() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func toolKey(tool string) string {
	return strings.ToLower(strings.TrimSpace(tool))
}

// Register adds handler under tool. Registering a name twice is an error even
// when the two spellings differ only in case.
func (r *Registry) Register(tool string, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler is required for tool %q", tool)
	}
	key := toolKey(tool)
	if key == "" {
		return fmt.Errorf("tool name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[key]; exists {
		return fmt.Errorf("tool already registered: %s", strings.TrimSpace(tool))
	}
	r.handlers[key] = handler
	r.names = append(r.names, strings.TrimSpace(tool))
	return nil
}

func (r *Registry) HandlerFor(tool string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[toolKey(tool)]
	return h, ok
}

// Tools returns the registered names as they were first spelled, in
// registration order.
func (r *Registry) Tools() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
