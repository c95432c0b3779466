package formats

import (
	"assettree/internal/engine/tree"
	"fmt"
	"strings"
)

// PlantUMLGenerator renders the tree as a PlantUML work breakdown structure.
type PlantUMLGenerator struct {
	tree *tree.Tree
}

func NewPlantUMLGenerator(t *tree.Tree) *PlantUMLGenerator {
	return &PlantUMLGenerator{tree: t}
}

func (p *PlantUMLGenerator) Generate() (string, error) {
	var b strings.Builder
	b.WriteString("@startwbs\n")
	for depth, n := range p.tree.Walk() {
		marker := strings.Repeat("*", depth+1)
		if n.Type() != tree.TypeAsset {
			marker += "_"
		}
		fmt.Fprintf(&b, "%s %s\n", marker, nodeLabel(n))
	}
	b.WriteString("@endwbs\n")
	return b.String(), nil
}
