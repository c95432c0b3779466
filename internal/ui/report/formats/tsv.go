// # internal/ui/report/formats/tsv.go
package formats

import (
	"assettree/internal/engine/tree"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
)

// TableHeader is the flat export layout; it reads back through the item
// workflow unchanged.
var TableHeader = []string{"Path", "Name", "Type", "Formula", "Formula Parameters", "Description"}

type TableGenerator struct {
	tree  *tree.Tree
	comma rune
}

// NewTableGenerator creates a flat exporter; comma is ',' for CSV or '\t' for TSV.
func NewTableGenerator(t *tree.Tree, comma rune) *TableGenerator {
	return &TableGenerator{tree: t, comma: comma}
}

func (g *TableGenerator) Generate() (string, error) {
	var buf strings.Builder
	w := csv.NewWriter(&buf)
	w.Comma = g.comma

	if err := w.Write(TableHeader); err != nil {
		return "", err
	}
	for depth, n := range g.tree.Walk() {
		if depth == 0 {
			continue
		}
		params, err := encodeParams(n.FormulaParams())
		if err != nil {
			return "", err
		}
		row := []string{
			g.tree.Path(n.ID()),
			n.Name(),
			string(n.Type()),
			n.Formula(),
			params,
			n.Description(),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("write table: %w", err)
	}
	return buf.String(), nil
}

func encodeParams(params map[string]string) (string, error) {
	if len(params) == 0 {
		return "", nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode formula parameters: %w", err)
	}
	return string(data), nil
}
