// # internal/engine/tree/mutate.go
package tree

import (
	"assettree/internal/core/errors"
	"fmt"
	"slices"
	"strings"
)

type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeUpdated
	OutcomeUnchanged
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Insert creates a child under parentPath, or updates a same-named sibling of
// the same type in place.
func (t *Tree) Insert(parentPath string, def ItemDef) (NodeID, Outcome, error) {
	parent, err := t.Resolve(parentPath)
	if err != nil {
		return 0, 0, err
	}
	return t.Upsert(parent, def)
}

// Upsert is Insert addressed by parent id.
func (t *Tree) Upsert(parent NodeID, def ItemDef) (NodeID, Outcome, error) {
	def.Name = strings.TrimSpace(def.Name)
	if err := t.validateDef(def); err != nil {
		return 0, 0, err
	}
	if err := t.checkAttachable(parent); err != nil {
		return 0, 0, err
	}

	if existing, ok := t.byName[parent][def.Name]; ok {
		n := t.nodes[existing]
		if n.typ != def.Type {
			return 0, 0, errors.DuplicateName(t.FullPath(existing),
				fmt.Sprintf("sibling %q already exists as %s, cannot add it as %s", def.Name, n.typ, def.Type))
		}
		if sameContent(n, def) {
			return existing, OutcomeUnchanged, nil
		}
		def.apply(n)
		return existing, OutcomeUpdated, nil
	}

	n := &Node{id: nextNodeID(), name: def.Name, typ: def.Type}
	def.apply(n)
	t.attach(parent, n)
	return n.id, OutcomeCreated, nil
}

// EnsureAsset returns the Asset child called name, creating it when missing.
func (t *Tree) EnsureAsset(parent NodeID, name string) (NodeID, bool, error) {
	name = strings.TrimSpace(name)
	if err := t.checkAttachable(parent); err != nil {
		return 0, false, err
	}
	if existing, ok := t.byName[parent][name]; ok {
		n := t.nodes[existing]
		if n.typ != TypeAsset {
			return 0, false, errors.InvalidParentPath(t.FullPath(existing),
				fmt.Sprintf("path segment %q is a %s, expected an Asset", name, n.typ))
		}
		return existing, false, nil
	}
	if err := t.validateDef(ItemDef{Name: name, Type: TypeAsset}); err != nil {
		return 0, false, err
	}
	n := &Node{id: nextNodeID(), name: name, typ: TypeAsset}
	t.attach(parent, n)
	return n.id, true, nil
}

// Move re-parents the node at source under the Asset at destination.
func (t *Tree) Move(source, destination string) error {
	src, err := t.Resolve(source)
	if err != nil {
		return err
	}
	if src == t.root {
		return errors.RootImmutable("move")
	}

	dst, err := t.Resolve(destination)
	if err != nil {
		if t.lexicallyWithin(destination, src) {
			return errors.CyclicMove(source, destination)
		}
		return err
	}
	if dst == src || t.isAncestor(src, dst) {
		return errors.CyclicMove(source, destination)
	}
	if err := t.checkAttachable(dst); err != nil {
		return err
	}

	n := t.nodes[src]
	if n.parent == dst {
		return nil
	}
	if existing, ok := t.byName[dst][n.name]; ok {
		return errors.DuplicateName(t.FullPath(existing),
			fmt.Sprintf("destination already has a child named %q", n.name))
	}

	t.detach(n)
	t.attach(dst, n)
	return nil
}

// Remove destroys the node at path and its whole subtree, returning the
// number of nodes removed.
func (t *Tree) Remove(path string) (int, error) {
	id, err := t.Resolve(path)
	if err != nil {
		return 0, err
	}
	if id == t.root {
		return 0, errors.RootImmutable("remove")
	}

	n := t.nodes[id]
	doomed := t.subtree(id)
	t.detach(n)
	for _, d := range doomed {
		delete(t.nodes, d)
		delete(t.byName, d)
	}
	return len(doomed), nil
}

func (t *Tree) subtree(id NodeID) []NodeID {
	out := []NodeID{id}
	for i := 0; i < len(out); i++ {
		out = append(out, t.nodes[out[i]].children...)
	}
	return out
}

// lexicallyWithin reports whether path names src itself or a location below it.
func (t *Tree) lexicallyWithin(path string, src NodeID) bool {
	srcSegs := t.addressSegments(src)
	segs := t.SplitPath(path)
	if hasSegmentPrefix(segs, srcSegs) {
		return true
	}
	if len(segs) > 0 && segs[0] == t.Name() {
		return hasSegmentPrefix(segs[1:], srcSegs)
	}
	return false
}

func hasSegmentPrefix(segs, prefix []string) bool {
	if len(prefix) == 0 || len(segs) < len(prefix) {
		return false
	}
	return slices.Equal(segs[:len(prefix)], prefix)
}

func (t *Tree) validateDef(def ItemDef) error {
	if def.Name == "" {
		return errors.New(errors.CodeValidationError, "item name is required")
	}
	if strings.Contains(def.Name, t.delimiter) {
		return errors.New(errors.CodeValidationError,
			fmt.Sprintf("item name %q contains the path delimiter %q", def.Name, t.delimiter))
	}
	if _, ok := remoteTypes[def.Type]; !ok {
		return errors.InvalidType(string(def.Type))
	}
	return nil
}

func (t *Tree) checkAttachable(parent NodeID) error {
	p, ok := t.nodes[parent]
	if !ok {
		return errors.PathNotFound(fmt.Sprintf("#%d", parent))
	}
	if p.typ != TypeAsset {
		return errors.InvalidParentPath(t.FullPath(parent),
			fmt.Sprintf("%q is a %s; only Assets can hold children", p.name, p.typ))
	}
	return nil
}

func (t *Tree) attach(parent NodeID, n *Node) {
	n.parent = parent
	p := t.nodes[parent]
	p.children = append(p.children, n.id)
	t.nodes[n.id] = n
	if t.byName[parent] == nil {
		t.byName[parent] = make(map[string]NodeID)
	}
	t.byName[parent][n.name] = n.id
	if _, ok := t.byName[n.id]; !ok {
		t.byName[n.id] = make(map[string]NodeID)
	}
}

func (t *Tree) detach(n *Node) {
	p := t.nodes[n.parent]
	if p == nil {
		return
	}
	if i := slices.Index(p.children, n.id); i >= 0 {
		p.children = slices.Delete(p.children, i, i+1)
	}
	delete(t.byName[p.id], n.name)
	n.parent = 0
}

func sameContent(n *Node, def ItemDef) bool {
	if n.formula != def.Formula {
		return false
	}
	if def.Description != "" && n.description != def.Description {
		return false
	}
	if len(n.formulaParams) != len(def.FormulaParams) {
		return false
	}
	for k, v := range def.FormulaParams {
		if n.formulaParams[k] != v {
			return false
		}
	}
	return true
}
