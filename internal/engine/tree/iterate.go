// # internal/engine/tree/iterate.go
package tree

import (
	"assettree/internal/core/errors"
	"fmt"
	"iter"
	"strings"

	"github.com/gobwas/glob"
)

// Walk yields every node depth-first in child order, with its depth (root = 0).
// Each call starts a fresh traversal.
func (t *Tree) Walk() iter.Seq2[int, *Node] {
	return func(yield func(int, *Node) bool) {
		t.walk(t.root, 0, yield)
	}
}

func (t *Tree) walk(id NodeID, depth int, yield func(int, *Node) bool) bool {
	n, ok := t.nodes[id]
	if !ok {
		return true
	}
	if !yield(depth, n) {
		return false
	}
	for _, child := range n.children {
		if !t.walk(child, depth+1, yield) {
			return false
		}
	}
	return true
}

// Lines renders the tree as indented "name (Type)" lines.
func (t *Tree) Lines() iter.Seq[string] {
	return func(yield func(string) bool) {
		for depth, n := range t.Walk() {
			if !yield(fmt.Sprintf("%s%s (%s)", strings.Repeat("  ", depth), n.name, n.typ)) {
				return
			}
		}
	}
}

// Text joins Lines with newlines.
func (t *Tree) Text() string {
	var b strings.Builder
	for line := range t.Lines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

type NestedNode struct {
	Name          string            `json:"name"`
	Type          NodeType          `json:"type"`
	Description   string            `json:"description,omitempty"`
	Formula       string            `json:"formula,omitempty"`
	FormulaParams map[string]string `json:"formula_params,omitempty"`
	Children      []NestedNode      `json:"children,omitempty"`
}

// Nested returns the tree as a nested value suitable for JSON encoding.
func (t *Tree) Nested() NestedNode {
	return t.nested(t.root)
}

func (t *Tree) nested(id NodeID) NestedNode {
	n := t.nodes[id]
	out := NestedNode{
		Name:          n.name,
		Type:          n.typ,
		Description:   n.description,
		Formula:       n.formula,
		FormulaParams: n.FormulaParams(),
	}
	for _, child := range n.children {
		out.Children = append(out.Children, t.nested(child))
	}
	return out
}

// Find matches node names against a glob pattern and returns full paths in
// traversal order.
func (t *Tree) Find(pattern string) ([]string, error) {
	g, err := glob.Compile(strings.TrimSpace(pattern))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, fmt.Sprintf("invalid name pattern %q", pattern))
	}
	var out []string
	for _, n := range t.Walk() {
		if g.Match(n.name) {
			out = append(out, t.FullPath(n.id))
		}
	}
	return out, nil
}
