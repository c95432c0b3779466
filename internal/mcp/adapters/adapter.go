package adapters

import (
	"assettree/internal/core/ports"
	"assettree/internal/mcp/contracts"
	"context"
)

// Adapter translates tool contracts to TreeService requests and shapes the
// results for the wire.
type Adapter struct {
	svc ports.TreeService
}

func NewAdapter(svc ports.TreeService) *Adapter {
	return &Adapter{svc: svc}
}

func (a *Adapter) CreateEmpty(ctx context.Context, in contracts.TreeCreateEmptyInput) (ports.CreateTreeResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.CreateTreeResult{}, err
	}
	return a.svc.CreateEmptyTree(ctx, ports.CreateTreeRequest{SessionRef: in.Ref(), Description: in.Description})
}

func (a *Adapter) Build(ctx context.Context, in contracts.TreeBuildInput) (contracts.TreeBuildOutput, error) {
	if err := ctx.Err(); err != nil {
		return contracts.TreeBuildOutput{}, err
	}
	res, err := a.svc.BuildTree(ctx, ports.BuildTreeRequest{
		SessionRef: in.Ref(),
		Header:     in.Header,
		Rows:       in.Rows,
		Columns:    in.Columns,
		Assignment: in.Assignment,
	})
	if err != nil {
		return contracts.TreeBuildOutput{}, err
	}
	return contracts.TreeBuildOutput{Tree: res.Tree, Stats: res.Stats}, nil
}

func (a *Adapter) Insert(ctx context.Context, in contracts.TreeInsertInput) (ports.MutationResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.MutationResult{}, err
	}
	return a.svc.Insert(ctx, ports.InsertRequest{SessionRef: in.Ref(), ParentPath: in.ParentPath, Item: in.Item})
}

func (a *Adapter) Move(ctx context.Context, in contracts.TreeMoveInput) (ports.MutationResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.MutationResult{}, err
	}
	return a.svc.Move(ctx, ports.MoveRequest{SessionRef: in.Ref(), Source: in.SourcePath, Destination: in.DestinationPath})
}

func (a *Adapter) Remove(ctx context.Context, in contracts.TreeRemoveInput) (ports.MutationResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.MutationResult{}, err
	}
	return a.svc.Remove(ctx, ports.RemoveRequest{SessionRef: in.Ref(), Path: in.ItemPath})
}

// Render serializes a session. With search set, a missing session is reported
// as Found=false instead of an error.
func (a *Adapter) Render(ctx context.Context, in contracts.TreeRenderInput, search bool) (ports.RenderResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.RenderResult{}, err
	}
	req := ports.RenderRequest{SessionRef: in.Ref(), Format: in.Format}
	if search {
		return a.svc.Search(ctx, req)
	}
	return a.svc.Render(ctx, req)
}

func (a *Adapter) Find(ctx context.Context, in contracts.TreeFindInput, limit int) (contracts.TreeFindOutput, error) {
	if err := ctx.Err(); err != nil {
		return contracts.TreeFindOutput{}, err
	}
	res, err := a.svc.Find(ctx, ports.FindRequest{SessionRef: in.Ref(), Pattern: in.Pattern})
	if err != nil {
		return contracts.TreeFindOutput{}, err
	}
	paths, truncated := truncate(res.Paths, limit)
	return contracts.TreeFindOutput{Total: len(res.Paths), Paths: paths, Truncated: truncated}, nil
}

func (a *Adapter) Clear(ctx context.Context, in contracts.TreeClearInput) (contracts.TreeClearOutput, error) {
	if err := ctx.Err(); err != nil {
		return contracts.TreeClearOutput{}, err
	}
	cleared, err := a.svc.Clear(ctx, in.Ref())
	if err != nil {
		return contracts.TreeClearOutput{}, err
	}
	return contracts.TreeClearOutput{Cleared: cleared}, nil
}

func (a *Adapter) List(ctx context.Context, limit int) (contracts.TreeListOutput, error) {
	if err := ctx.Err(); err != nil {
		return contracts.TreeListOutput{}, err
	}
	trees, err := a.svc.List(ctx)
	if err != nil {
		return contracts.TreeListOutput{}, err
	}
	out, _ := truncate(trees, limit)
	return contracts.TreeListOutput{Total: len(trees), Trees: out}, nil
}

func (a *Adapter) Detect(ctx context.Context, in contracts.LookupInput, limit int) (contracts.DuplicatesDetectOutput, error) {
	if err := ctx.Err(); err != nil {
		return contracts.DuplicatesDetectOutput{}, err
	}
	res, err := a.svc.DetectDuplicates(ctx, lookupInput(in))
	if err != nil {
		return contracts.DuplicatesDetectOutput{}, err
	}
	groups, _ := truncate(res.Groups, limit)
	return contracts.DuplicatesDetectOutput{Records: res.Records, GroupCount: len(res.Groups), Groups: groups}, nil
}

func (a *Adapter) Resolve(ctx context.Context, in contracts.LookupInput, limit int) (contracts.DuplicatesResolveOutput, error) {
	if err := ctx.Err(); err != nil {
		return contracts.DuplicatesResolveOutput{}, err
	}
	res, err := a.svc.ResolveDuplicates(ctx, lookupInput(in))
	if err != nil {
		return contracts.DuplicatesResolveOutput{}, err
	}
	recs, _ := truncate(res.Records, limit)
	return contracts.DuplicatesResolveOutput{
		RecordCount: len(res.Records),
		Records:     recs,
		Groups:      res.Groups,
		KeptAll:     res.KeptAll,
		Dropped:     res.Dropped,
	}, nil
}

func (a *Adapter) BuildLookup(ctx context.Context, in contracts.LookupInput) (contracts.LookupBuildOutput, error) {
	if err := ctx.Err(); err != nil {
		return contracts.LookupBuildOutput{}, err
	}
	res, err := a.svc.BuildLookup(ctx, ports.BuildLookupRequest{
		SessionRef:    in.Ref(),
		LookupInput:   lookupInput(in),
		Assignment:    in.Assignment,
		DefaultParent: in.DefaultParent,
	})
	if err != nil {
		return contracts.LookupBuildOutput{}, err
	}
	return contracts.LookupBuildOutput{Tree: res.Tree, Stats: res.Stats, Groups: res.Groups, KeptAll: res.KeptAll}, nil
}

func (a *Adapter) Push(ctx context.Context, in contracts.SyncPushInput) (ports.PushReport, error) {
	if err := ctx.Err(); err != nil {
		return ports.PushReport{}, err
	}
	return a.svc.Push(ctx, in.Ref())
}

func (a *Adapter) RemoteSearch(ctx context.Context, in contracts.SyncRemoteSearchInput) (ports.RemoteSearchResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.RemoteSearchResult{}, err
	}
	return a.svc.RemoteSearch(ctx, in.Name)
}

func (a *Adapter) History(ctx context.Context, in contracts.SyncHistoryInput, limit int) (contracts.SyncHistoryOutput, error) {
	if err := ctx.Err(); err != nil {
		return contracts.SyncHistoryOutput{}, err
	}
	rows, err := a.svc.PushHistory(ctx, in.Ref(), limit)
	if err != nil {
		return contracts.SyncHistoryOutput{}, err
	}
	return contracts.SyncHistoryOutput{Pushes: rows}, nil
}

func (a *Adapter) Templates(ctx context.Context) (contracts.TemplateListOutput, error) {
	if err := ctx.Err(); err != nil {
		return contracts.TemplateListOutput{}, err
	}
	list, err := a.svc.ListTemplates(ctx)
	if err != nil {
		return contracts.TemplateListOutput{}, err
	}
	return contracts.TemplateListOutput{Templates: list}, nil
}

func (a *Adapter) ApplyTemplate(ctx context.Context, in contracts.TemplateApplyInput) (contracts.TreeBuildOutput, error) {
	if err := ctx.Err(); err != nil {
		return contracts.TreeBuildOutput{}, err
	}
	res, err := a.svc.ApplyTemplate(ctx, ports.ApplyTemplateRequest{
		SessionRef: in.Ref(),
		Template:   in.Template,
		ParentPath: in.ParentPath,
		Params:     in.Params,
	})
	if err != nil {
		return contracts.TreeBuildOutput{}, err
	}
	return contracts.TreeBuildOutput{Tree: res.Tree, Stats: res.Stats}, nil
}

func lookupInput(in contracts.LookupInput) ports.LookupInput {
	return ports.LookupInput{
		Header:    in.Header,
		Rows:      in.Rows,
		Roles:     in.Roles,
		Selection: in.Selection,
		Strategy:  in.Strategy,
	}
}

func truncate[T any](items []T, limit int) ([]T, bool) {
	if items == nil {
		items = []T{}
	}
	if limit > 0 && len(items) > limit {
		return items[:limit], true
	}
	return items, false
}
