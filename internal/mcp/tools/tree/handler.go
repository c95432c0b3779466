package tree

import (
	"assettree/internal/core/ports"
	"assettree/internal/mcp/adapters"
	"assettree/internal/mcp/contracts"
	"context"
)

func HandleCreateEmpty(ctx context.Context, a *adapters.Adapter, in contracts.TreeCreateEmptyInput) (ports.CreateTreeResult, error) {
	return a.CreateEmpty(ctx, in)
}

func HandleBuild(ctx context.Context, a *adapters.Adapter, in contracts.TreeBuildInput) (contracts.TreeBuildOutput, error) {
	return a.Build(ctx, in)
}

func HandleInsert(ctx context.Context, a *adapters.Adapter, in contracts.TreeInsertInput) (ports.MutationResult, error) {
	return a.Insert(ctx, in)
}

func HandleMove(ctx context.Context, a *adapters.Adapter, in contracts.TreeMoveInput) (ports.MutationResult, error) {
	return a.Move(ctx, in)
}

func HandleRemove(ctx context.Context, a *adapters.Adapter, in contracts.TreeRemoveInput) (ports.MutationResult, error) {
	return a.Remove(ctx, in)
}

func HandleRender(ctx context.Context, a *adapters.Adapter, in contracts.TreeRenderInput) (ports.RenderResult, error) {
	return a.Render(ctx, in, false)
}

func HandleSearch(ctx context.Context, a *adapters.Adapter, in contracts.TreeRenderInput) (ports.RenderResult, error) {
	return a.Render(ctx, in, true)
}

func HandleFind(ctx context.Context, a *adapters.Adapter, in contracts.TreeFindInput, maxItems int) (contracts.TreeFindOutput, error) {
	return a.Find(ctx, in, normalizeLimit(in.Limit, maxItems))
}

func HandleClear(ctx context.Context, a *adapters.Adapter, in contracts.TreeClearInput) (contracts.TreeClearOutput, error) {
	return a.Clear(ctx, in)
}

func HandleList(ctx context.Context, a *adapters.Adapter, in contracts.TreeListInput, maxItems int) (contracts.TreeListOutput, error) {
	return a.List(ctx, normalizeLimit(in.Limit, maxItems))
}

func normalizeLimit(limit, maxItems int) int {
	if limit <= 0 || (maxItems > 0 && limit > maxItems) {
		return maxItems
	}
	return limit
}
