package template

import (
	"assettree/internal/mcp/adapters"
	"assettree/internal/mcp/contracts"
	"context"
)

func HandleList(ctx context.Context, a *adapters.Adapter) (contracts.TemplateListOutput, error) {
	return a.Templates(ctx)
}

func HandleApply(ctx context.Context, a *adapters.Adapter, in contracts.TemplateApplyInput) (contracts.TreeBuildOutput, error) {
	return a.ApplyTemplate(ctx, in)
}
