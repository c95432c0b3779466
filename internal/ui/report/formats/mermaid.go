// # internal/ui/report/formats/mermaid.go
package formats

import (
	"assettree/internal/engine/tree"
	"fmt"
	"strings"
)

type MermaidGenerator struct {
	tree *tree.Tree
}

func NewMermaidGenerator(t *tree.Tree) *MermaidGenerator {
	return &MermaidGenerator{tree: t}
}

func (m *MermaidGenerator) Generate() (string, error) {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	ids := walkIDs(m.tree)
	used := make(map[string]bool)
	for _, n := range m.tree.Walk() {
		id := ids[n.ID()]
		class := shapeFor(n.Type())
		used[class] = true
		if n.Type() == tree.TypeAsset {
			fmt.Fprintf(&b, "  %s[\"%s\"]:::%s\n", id, nodeLabel(n), class)
		} else {
			fmt.Fprintf(&b, "  %s([\"%s\"]):::%s\n", id, nodeLabel(n), class)
		}
		if parent, ok := n.Parent(); ok {
			fmt.Fprintf(&b, "  %s --> %s\n", ids[parent], id)
		}
	}

	for _, class := range []string{"asset", "signal", "condition", "scalar"} {
		if !used[class] {
			continue
		}
		fmt.Fprintf(&b, "  classDef %s %s\n", class, mermaidStyles[class])
	}
	return b.String(), nil
}

var mermaidStyles = map[string]string{
	"asset":     "fill:#e8f0fe,stroke:#3b6fd4",
	"signal":    "fill:#eef8ee,stroke:#3c8d3c",
	"condition": "fill:#fff4e5,stroke:#d48a1f",
	"scalar":    "fill:#f3e8fd,stroke:#8a3bd4",
}
