// # internal/ui/report/formats/dot.go
package formats

import (
	"assettree/internal/engine/tree"
	"fmt"
	"strings"
)

type DOTGenerator struct {
	tree *tree.Tree
}

func NewDOTGenerator(t *tree.Tree) *DOTGenerator {
	return &DOTGenerator{tree: t}
}

func (d *DOTGenerator) Generate() (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", d.tree.Name())
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [fontname=\"Helvetica\"];\n")

	ids := walkIDs(d.tree)
	for _, n := range d.tree.Walk() {
		shape := "ellipse"
		if n.Type() == tree.TypeAsset {
			shape = "box"
		}
		fmt.Fprintf(&b, "  %s [label=\"%s\", shape=%s];\n", ids[n.ID()], nodeLabel(n), shape)
	}
	for _, n := range d.tree.Walk() {
		if parent, ok := n.Parent(); ok {
			fmt.Fprintf(&b, "  %s -> %s;\n", ids[parent], ids[n.ID()])
		}
	}
	b.WriteString("}\n")
	return b.String(), nil
}
