package formats

import (
	"assettree/internal/engine/tree"
	"fmt"
	"strings"
)

// walkIDs assigns diagram ids in traversal order so output does not depend on
// process-wide node ids.
func walkIDs(t *tree.Tree) map[tree.NodeID]string {
	ids := make(map[tree.NodeID]string, t.Len())
	i := 0
	for _, n := range t.Walk() {
		ids[n.ID()] = fmt.Sprintf("n%d", i)
		i++
	}
	return ids
}

func nodeLabel(n *tree.Node) string {
	return fmt.Sprintf("%s (%s)", escapeLabel(n.Name()), n.Type())
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

// shapeFor picks a flowchart shape class per node type.
func shapeFor(typ tree.NodeType) string {
	switch typ {
	case tree.TypeAsset:
		return "asset"
	case tree.TypeCondition:
		return "condition"
	case tree.TypeScalar, tree.TypeMetric:
		return "scalar"
	default:
		return "signal"
	}
}
