// # internal/ui/report/formats/markdown.go
package formats

import (
	"assettree/internal/engine/tree"
	"fmt"
	"sort"
	"strings"
)

type MarkdownGenerator struct {
	tree *tree.Tree
}

func NewMarkdownGenerator(t *tree.Tree) *MarkdownGenerator {
	return &MarkdownGenerator{tree: t}
}

// Generate writes a heading, a per-type summary and a nested outline. Formulas
// appear as inline code under their item.
func (m *MarkdownGenerator) Generate() (string, error) {
	var b strings.Builder
	root := m.tree.Root()
	fmt.Fprintf(&b, "# %s\n\n", root.Name())
	if desc := strings.TrimSpace(root.Description()); desc != "" {
		fmt.Fprintf(&b, "%s\n\n", desc)
	}

	counts := m.tree.CountByType()
	types := make([]string, 0, len(counts))
	for typ := range counts {
		types = append(types, string(typ))
	}
	sort.Strings(types)
	b.WriteString("| Type | Count |\n|---|---|\n")
	for _, typ := range types {
		fmt.Fprintf(&b, "| %s | %d |\n", typ, counts[tree.NodeType(typ)])
	}
	b.WriteString("\n")

	for depth, n := range m.tree.Walk() {
		if depth == 0 {
			continue
		}
		indent := strings.Repeat("  ", depth-1)
		name := n.Name()
		if n.Type() == tree.TypeAsset {
			name = "**" + name + "**"
		}
		fmt.Fprintf(&b, "%s- %s _(%s)_\n", indent, name, n.Type())
		if f := strings.TrimSpace(n.Formula()); f != "" {
			fmt.Fprintf(&b, "%s  - `%s`\n", indent, strings.ReplaceAll(f, "`", "'"))
		}
	}
	return b.String(), nil
}
