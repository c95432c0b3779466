// # internal/engine/tree/tree.go
package tree

import (
	"assettree/internal/core/errors"
	"maps"
	"strings"
)

const DefaultDelimiter = ">>"

// Tree is a rooted asset hierarchy. It is not safe for concurrent mutation;
// callers serialize access per session.
type Tree struct {
	delimiter string
	root      NodeID
	nodes     map[NodeID]*Node
	byName    map[NodeID]map[string]NodeID // parent -> child name -> child
}

// New creates a tree holding a single root Asset.
func New(rootName, description, delimiter string) *Tree {
	if strings.TrimSpace(delimiter) == "" {
		delimiter = DefaultDelimiter
	}
	root := &Node{
		id:          nextNodeID(),
		name:        strings.TrimSpace(rootName),
		typ:         TypeAsset,
		description: strings.TrimSpace(description),
	}
	return &Tree{
		delimiter: strings.TrimSpace(delimiter),
		root:      root.id,
		nodes:     map[NodeID]*Node{root.id: root},
		byName:    map[NodeID]map[string]NodeID{root.id: {}},
	}
}

func (t *Tree) Delimiter() string { return t.delimiter }

func (t *Tree) Root() *Node { return t.nodes[t.root] }

func (t *Tree) Name() string { return t.nodes[t.root].name }

// Len counts all nodes including the root.
func (t *Tree) Len() int { return len(t.nodes) }

func (t *Tree) Node(id NodeID) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Clone returns a deep copy that keeps node ids.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		delimiter: t.delimiter,
		root:      t.root,
		nodes:     make(map[NodeID]*Node, len(t.nodes)),
		byName:    make(map[NodeID]map[string]NodeID, len(t.byName)),
	}
	for id, n := range t.nodes {
		c.nodes[id] = n.clone()
	}
	for id, idx := range t.byName {
		c.byName[id] = maps.Clone(idx)
	}
	return c
}

// SplitPath splits a delimiter-joined path into trimmed, non-empty segments.
func (t *Tree) SplitPath(path string) []string {
	return SplitPath(path, t.delimiter)
}

func SplitPath(path, delimiter string) []string {
	if strings.TrimSpace(delimiter) == "" {
		delimiter = DefaultDelimiter
	}
	raw := strings.Split(path, strings.TrimSpace(delimiter))
	out := make([]string, 0, len(raw))
	for _, seg := range raw {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		out = append(out, seg)
	}
	return out
}

// JoinPath joins segments the way paths are displayed for this delimiter.
func JoinPath(segments []string, delimiter string) string {
	return strings.Join(segments, joiner(delimiter))
}

func joiner(delimiter string) string {
	d := strings.TrimSpace(delimiter)
	if d == "" || d == DefaultDelimiter {
		return " " + DefaultDelimiter + " "
	}
	return d
}

// Resolve finds the node addressed by a root-relative path. "" is the root.
// A leading segment equal to the root name is accepted when no child of the
// root carries that name.
func (t *Tree) Resolve(path string) (NodeID, error) {
	id, ok := t.resolveSegments(t.SplitPath(path))
	if !ok {
		return 0, errors.PathNotFound(path)
	}
	return id, nil
}

func (t *Tree) resolveSegments(segs []string) (NodeID, bool) {
	if id, ok := t.descend(t.root, segs); ok {
		return id, true
	}
	if len(segs) > 0 && segs[0] == t.Name() {
		return t.descend(t.root, segs[1:])
	}
	return 0, false
}

func (t *Tree) descend(from NodeID, segs []string) (NodeID, bool) {
	cur := from
	for _, seg := range segs {
		next, ok := t.byName[cur][seg]
		if !ok {
			return 0, false
		}
		cur = next
	}
	return cur, true
}

// Child looks up a direct child by exact name.
func (t *Tree) Child(parent NodeID, name string) (NodeID, bool) {
	id, ok := t.byName[parent][name]
	return id, ok
}

// ancestors returns the names from the root down to the node's parent.
func (t *Tree) ancestors(id NodeID) []string {
	var names []string
	n := t.nodes[id]
	for n != nil && n.parent != 0 {
		n = t.nodes[n.parent]
		names = append(names, n.name)
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names
}

// Path is the node's ancestor names from the root to its parent. The root's
// path is empty. It is derived on every call.
func (t *Tree) Path(id NodeID) string {
	return JoinPath(t.ancestors(id), t.delimiter)
}

// FullPath is Path followed by the node's own name.
func (t *Tree) FullPath(id NodeID) string {
	n, ok := t.nodes[id]
	if !ok {
		return ""
	}
	return JoinPath(append(t.ancestors(id), n.name), t.delimiter)
}

// Address is the root-relative path accepted by Resolve.
func (t *Tree) Address(id NodeID) string {
	return JoinPath(t.addressSegments(id), t.delimiter)
}

func (t *Tree) addressSegments(id NodeID) []string {
	if id == t.root {
		return nil
	}
	anc := t.ancestors(id)
	return append(anc[1:], t.nodes[id].name)
}

func (t *Tree) isAncestor(ancestor, id NodeID) bool {
	n := t.nodes[id]
	for n != nil && n.parent != 0 {
		if n.parent == ancestor {
			return true
		}
		n = t.nodes[n.parent]
	}
	return false
}

// CountByType tallies nodes per type, root included.
func (t *Tree) CountByType() map[NodeType]int {
	out := make(map[NodeType]int, len(remoteTypes))
	for _, n := range t.nodes {
		out[n.typ]++
	}
	return out
}
