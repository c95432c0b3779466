package lookup

import (
	"assettree/internal/mcp/adapters"
	"assettree/internal/mcp/contracts"
	"context"
)

func HandleDetect(ctx context.Context, a *adapters.Adapter, in contracts.LookupInput, maxItems int) (contracts.DuplicatesDetectOutput, error) {
	return a.Detect(ctx, in, normalizeLimit(in.Limit, maxItems))
}

func HandleResolve(ctx context.Context, a *adapters.Adapter, in contracts.LookupInput, maxItems int) (contracts.DuplicatesResolveOutput, error) {
	return a.Resolve(ctx, in, normalizeLimit(in.Limit, maxItems))
}

func HandleBuild(ctx context.Context, a *adapters.Adapter, in contracts.LookupInput) (contracts.LookupBuildOutput, error) {
	return a.BuildLookup(ctx, in)
}

func normalizeLimit(limit, maxItems int) int {
	if limit <= 0 || (maxItems > 0 && limit > maxItems) {
		return maxItems
	}
	return limit
}
