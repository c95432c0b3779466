package remote

import (
	"assettree/internal/core/errors"
	"assettree/internal/core/ports"
	"context"
	stderrors "errors"
	"sort"
	"strings"
	"sync"
)

var _ ports.RemoteStore = (*MemoryStore)(nil)

var errUnreachable = stderrors.New("memory store is offline")

type storedTree struct {
	workbook string
	items    map[string]ports.RemoteItem
}

// MemoryStore is an in-process remote store. Calculated items without a
// formula are rejected per item, like the real store does.
type MemoryStore struct {
	mu      sync.Mutex
	trees   map[string]*storedTree
	offline bool
	reject  map[string]string
}

// NewMemoryStore returns an empty, reachable store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{trees: make(map[string]*storedTree), reject: make(map[string]string)}
}

// SetOffline makes every call fail as unreachable.
func (m *MemoryStore) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// RejectName makes items called name fail with reason.
func (m *MemoryStore) RejectName(name, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reject[name] = reason
}

// BulkUpsert stores the accepted items of req under req.TreeName, replacing
// items with the same path and name. Rejected items are listed in the result.
func (m *MemoryStore) BulkUpsert(ctx context.Context, req ports.BulkUpsertRequest) (ports.BulkUpsertResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.BulkUpsertResult{}, errors.RemotePush(err, "push cancelled")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return ports.BulkUpsertResult{}, errors.RemotePush(errUnreachable, "remote store unreachable")
	}

	st, ok := m.trees[req.TreeName]
	if !ok {
		st = &storedTree{items: make(map[string]ports.RemoteItem)}
		m.trees[req.TreeName] = st
	}
	st.workbook = req.WorkbookName

	var result ports.BulkUpsertResult
	for _, item := range req.Items {
		if reason := m.validate(item); reason != "" {
			result.Failures = append(result.Failures, ports.ItemFailure{Path: item.Path, Name: item.Name, Reason: reason})
			continue
		}
		st.items[item.Path+"\x00"+item.Name] = item
		result.Succeeded++
	}
	return result, nil
}

func (m *MemoryStore) validate(item ports.RemoteItem) string {
	if reason, ok := m.reject[item.Name]; ok {
		return reason
	}
	if strings.HasPrefix(item.Type, "Calculated") && strings.TrimSpace(item.Formula) == "" {
		return item.Type + " requires a formula"
	}
	return ""
}

// SearchTree returns the tree called name, or nil when nothing was pushed
// under that name.
func (m *MemoryStore) SearchTree(ctx context.Context, name string) (*ports.RemoteTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.RemotePush(err, "search cancelled")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return nil, errors.RemotePush(errUnreachable, "remote store unreachable")
	}
	st, ok := m.trees[name]
	if !ok {
		return nil, nil
	}
	return &ports.RemoteTree{Name: name, WorkbookName: st.workbook, ItemCount: len(st.items)}, nil
}

// Items returns the stored items of a tree sorted by path then name.
func (m *MemoryStore) Items(treeName string) []ports.RemoteItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.trees[treeName]
	if !ok {
		return nil
	}
	out := make([]ports.RemoteItem, 0, len(st.items))
	for _, it := range st.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Name < out[j].Name
	})
	return out
}
