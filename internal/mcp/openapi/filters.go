package openapi

import (
	"assettree/internal/mcp/contracts"
	"sort"
	"strings"
)

// ApplyAllowlist keeps the descriptors whose id appears in allowlist, or every
// descriptor when allowlist is empty. A descriptor id seen twice is kept once.
// The result follows the catalog order of contracts.Operations so tools/list
// groups tree, duplicate, lookup, sync and template operations together; ids
// the catalog does not know come last in lexical order.
func ApplyAllowlist(ops []contracts.OperationDescriptor, allowlist []string) []contracts.OperationDescriptor {
	if len(ops) == 0 {
		return nil
	}

	allowed := allowedOperations(allowlist)
	seen := make(map[contracts.OperationID]bool, len(ops))
	filtered := make([]contracts.OperationDescriptor, 0, len(ops))
	for _, op := range ops {
		if seen[op.ID] {
			continue
		}
		if allowed != nil && !allowed[op.ID] {
			continue
		}
		seen[op.ID] = true
		filtered = append(filtered, op)
	}
	orderByCatalog(filtered)
	return filtered
}

// allowedOperations returns nil when no entry survives normalization.
func allowedOperations(allowlist []string) map[contracts.OperationID]bool {
	var allowed map[contracts.OperationID]bool
	for _, raw := range allowlist {
		normalized := strings.ToLower(strings.TrimSpace(raw))
		if normalized == "" {
			continue
		}
		if allowed == nil {
			allowed = make(map[contracts.OperationID]bool, len(allowlist))
		}
		allowed[contracts.OperationID(normalized)] = true
	}
	return allowed
}

func orderByCatalog(ops []contracts.OperationDescriptor) {
	rank := make(map[contracts.OperationID]int)
	for i, id := range contracts.Operations() {
		rank[id] = i
	}
	position := func(id contracts.OperationID) int {
		if r, ok := rank[id]; ok {
			return r
		}
		return len(rank)
	}
	sort.SliceStable(ops, func(i, j int) bool {
		pi, pj := position(ops[i].ID), position(ops[j].ID)
		if pi != pj {
			return pi < pj
		}
		return ops[i].ID < ops[j].ID
	})
}
