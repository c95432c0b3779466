// # internal/engine/tree/node.go
package tree

import (
	"assettree/internal/core/errors"
	"maps"
	"strings"
	"sync/atomic"
)

// NodeType is the category of a tree entity. Only assets may have children.
type NodeType string

const (
	TypeAsset     NodeType = "Asset"
	TypeSignal    NodeType = "Signal"
	TypeCondition NodeType = "Condition"
	TypeScalar    NodeType = "Scalar"
	TypeMetric    NodeType = "Metric"
	TypeFormula   NodeType = "Formula"
)

// categoryTypes maps input labels (spreadsheet Type column values, UI categories)
// to node types. Keys are lower case.
var categoryTypes = map[string]NodeType{
	"asset":               TypeAsset,
	"assets":              TypeAsset,
	"signal":              TypeSignal,
	"signals":             TypeSignal,
	"storedsignal":        TypeSignal,
	"calculatedsignal":    TypeSignal,
	"condition":           TypeCondition,
	"conditions":          TypeCondition,
	"storedcondition":     TypeCondition,
	"calculatedcondition": TypeCondition,
	"scalar":              TypeScalar,
	"scalars":             TypeScalar,
	"calculatedscalar":    TypeScalar,
	"metric":              TypeMetric,
	"metrics":             TypeMetric,
	"thresholdmetric":     TypeMetric,
	"formula":             TypeFormula,
	"formulas":            TypeFormula,
	"calculation":         TypeFormula,
	"calculations":        TypeFormula,
}

type remoteTypePair struct {
	plain      string
	calculated string
}

var remoteTypes = map[NodeType]remoteTypePair{
	TypeAsset:     {plain: "Asset", calculated: "Asset"},
	TypeSignal:    {plain: "Signal", calculated: "CalculatedSignal"},
	TypeCondition: {plain: "Condition", calculated: "CalculatedCondition"},
	TypeScalar:    {plain: "Scalar", calculated: "CalculatedScalar"},
	TypeMetric:    {plain: "ThresholdMetric", calculated: "ThresholdMetric"},
	TypeFormula:   {plain: "CalculatedSignal", calculated: "CalculatedSignal"},
}

// ParseNodeType maps a label such as "Calculations" or "StoredSignal" to a NodeType.
func ParseNodeType(raw string) (NodeType, error) {
	key := strings.ToLower(strings.Join(strings.Fields(raw), ""))
	if t, ok := categoryTypes[key]; ok {
		return t, nil
	}
	return "", errors.InvalidType(raw)
}

// RemoteType is the type name the remote store expects for a node of type t.
func RemoteType(t NodeType, hasFormula bool) string {
	pair, ok := remoteTypes[t]
	if !ok {
		return string(t)
	}
	if hasFormula {
		return pair.calculated
	}
	return pair.plain
}

// AllNodeTypes lists the node types in display order.
func AllNodeTypes() []NodeType {
	return []NodeType{TypeAsset, TypeSignal, TypeCondition, TypeScalar, TypeMetric, TypeFormula}
}

// NodeID identifies a node for the life of the process. Ids are never reused,
// and a cloned tree keeps the ids of the tree it was cloned from.
type NodeID int64

var lastNodeID atomic.Int64

func nextNodeID() NodeID {
	return NodeID(lastNodeID.Add(1))
}

// Node is a single tree entity. Structural fields are only changed through Tree.
type Node struct {
	id            NodeID
	name          string
	typ           NodeType
	formula       string
	formulaParams map[string]string
	description   string

	parent   NodeID
	children []NodeID
}

func (n *Node) ID() NodeID { return n.id }

// Name is unique among the node's siblings.
func (n *Node) Name() string { return n.name }

func (n *Node) Type() NodeType { return n.typ }

// Formula is the calculation expression, empty for stored items.
func (n *Node) Formula() string { return n.formula }

func (n *Node) Description() string { return n.description }

// FormulaParams returns a copy of the node's formula parameters.
func (n *Node) FormulaParams() map[string]string {
	if len(n.formulaParams) == 0 {
		return nil
	}
	return maps.Clone(n.formulaParams)
}

// Parent returns the parent id; ok is false for the root.
func (n *Node) Parent() (NodeID, bool) {
	return n.parent, n.parent != 0
}

// Children returns the ordered child ids.
func (n *Node) Children() []NodeID {
	out := make([]NodeID, len(n.children))
	copy(out, n.children)
	return out
}

func (n *Node) clone() *Node {
	c := *n
	c.formulaParams = maps.Clone(n.formulaParams)
	c.children = make([]NodeID, len(n.children))
	copy(c.children, n.children)
	return &c
}

// ItemDef describes a node to create or update.
type ItemDef struct {
	Name          string
	Type          NodeType
	Formula       string
	FormulaParams map[string]string
	Description   string
}

func (d ItemDef) apply(n *Node) {
	n.formula = d.Formula
	n.formulaParams = maps.Clone(d.FormulaParams)
	if d.Description != "" {
		n.description = d.Description
	}
}
