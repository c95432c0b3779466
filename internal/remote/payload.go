// Package remote implements the stores trees are pushed to.
package remote

import (
	"assettree/internal/core/ports"
	"assettree/internal/engine/tree"
)

// BuildRequest serializes t for a bulk upsert: the root as the tree's asset,
// then every other node depth-first with its remote type. Item paths name the
// ancestors from the root down to the parent.
func BuildRequest(t *tree.Tree, workbookName string) ports.BulkUpsertRequest {
	req := ports.BulkUpsertRequest{
		TreeName:     t.Name(),
		WorkbookName: workbookName,
		Items:        make([]ports.RemoteItem, 0, t.Len()-1),
	}
	for depth, n := range t.Walk() {
		item := ports.RemoteItem{
			Path:          t.Path(n.ID()),
			Name:          n.Name(),
			Type:          tree.RemoteType(n.Type(), n.Formula() != ""),
			Formula:       n.Formula(),
			FormulaParams: n.FormulaParams(),
			Description:   n.Description(),
		}
		if depth == 0 {
			req.Root = item
			continue
		}
		req.Items = append(req.Items, item)
	}
	return req
}
