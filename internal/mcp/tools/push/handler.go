package push

import (
	"assettree/internal/core/ports"
	"assettree/internal/mcp/adapters"
	"assettree/internal/mcp/contracts"
	"context"
)

func HandlePush(ctx context.Context, a *adapters.Adapter, in contracts.SyncPushInput) (ports.PushReport, error) {
	return a.Push(ctx, in)
}

func HandleRemoteSearch(ctx context.Context, a *adapters.Adapter, in contracts.SyncRemoteSearchInput) (ports.RemoteSearchResult, error) {
	return a.RemoteSearch(ctx, in)
}

// HandleHistory returns the session's recent pushes, newest first.
func HandleHistory(ctx context.Context, a *adapters.Adapter, in contracts.SyncHistoryInput, maxItems int) (contracts.SyncHistoryOutput, error) {
	limit := in.Limit
	if limit <= 0 || (maxItems > 0 && limit > maxItems) {
		limit = maxItems
	}
	return a.History(ctx, in, limit)
}
