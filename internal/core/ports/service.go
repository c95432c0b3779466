package ports

import (
	"assettree/internal/data/ledger"
	"assettree/internal/engine/builder"
	"assettree/internal/engine/dedupe"
	"assettree/internal/engine/records"
	"context"
	"time"
)

// SessionRef names one in-memory tree.
type SessionRef struct {
	TreeName     string `json:"tree_name"`
	WorkbookName string `json:"workbook_name"`
}

type TreeSummary struct {
	TreeName     string    `json:"tree_name"`
	WorkbookName string    `json:"workbook_name"`
	Nodes        int       `json:"nodes"`
	Revision     uint64    `json:"revision"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type CreateTreeRequest struct {
	SessionRef
	Description string `json:"description,omitempty"`
}

type CreateTreeResult struct {
	Tree    TreeSummary `json:"tree"`
	Created bool        `json:"created"`
}

// BuildTreeRequest carries parsed rows for the item workflow. A zero Columns
// uses the configured item columns.
type BuildTreeRequest struct {
	SessionRef
	Header     []string                     `json:"header"`
	Rows       []records.Row                `json:"rows"`
	Columns    records.ItemColumns          `json:"columns"`
	Assignment records.ParentPathAssignment `json:"assignment,omitempty"`
}

type BuildTreeResult struct {
	Tree  TreeSummary   `json:"tree"`
	Stats builder.Stats `json:"stats"`
}

// LookupInput is the shared input of the lookup workflow operations. A zero
// Roles uses the configured column roles.
type LookupInput struct {
	Header    []string            `json:"header"`
	Rows      []records.Row       `json:"rows"`
	Roles     records.ColumnRoles `json:"roles"`
	Selection dedupe.Selection    `json:"selection,omitempty"`
	Strategy  string              `json:"strategy,omitempty"`
}

type CandidateView struct {
	Position int               `json:"position"`
	Row      int               `json:"row"`
	Value    string            `json:"value"`
	Attrs    map[string]string `json:"attrs,omitempty"`
}

type DuplicateGroupView struct {
	GroupKey   string          `json:"group_key"`
	Group      string          `json:"group"`
	Key        string          `json:"key"`
	Candidates []CandidateView `json:"candidates"`
}

type DetectDuplicatesResult struct {
	Records int                  `json:"records"`
	Groups  []DuplicateGroupView `json:"groups"`
}

type ResolvedRecord struct {
	Row   int               `json:"row"`
	Group string            `json:"group"`
	Key   string            `json:"key"`
	Value string            `json:"value"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

type ResolveDuplicatesResult struct {
	Records []ResolvedRecord      `json:"records"`
	Groups  []dedupe.GroupSummary `json:"groups"`
	KeptAll []string              `json:"kept_all,omitempty"`
	Dropped int                   `json:"dropped"`
}

type BuildLookupRequest struct {
	SessionRef
	LookupInput
	Assignment    records.ParentPathAssignment `json:"assignment,omitempty"`
	DefaultParent string                       `json:"default_parent,omitempty"`
}

type BuildLookupResult struct {
	Tree    TreeSummary           `json:"tree"`
	Stats   builder.Stats         `json:"stats"`
	Groups  []dedupe.GroupSummary `json:"groups"`
	KeptAll []string              `json:"kept_all,omitempty"`
}

type ItemSpec struct {
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	Formula       string            `json:"formula,omitempty"`
	FormulaParams map[string]string `json:"formula_params,omitempty"`
	Description   string            `json:"description,omitempty"`
}

type InsertRequest struct {
	SessionRef
	ParentPath string   `json:"parent_path"`
	Item       ItemSpec `json:"item"`
}

type MoveRequest struct {
	SessionRef
	Source      string `json:"source_path"`
	Destination string `json:"destination_path"`
}

type RemoveRequest struct {
	SessionRef
	Path string `json:"item_path"`
}

type MutationResult struct {
	Tree    TreeSummary `json:"tree"`
	Outcome string      `json:"outcome"`
	Path    string      `json:"path,omitempty"`
	Removed int         `json:"removed,omitempty"`
}

type RenderRequest struct {
	SessionRef
	Format string `json:"format,omitempty"`
}

type RenderResult struct {
	Found   bool         `json:"found"`
	Tree    *TreeSummary `json:"tree,omitempty"`
	Format  string       `json:"format"`
	Content string       `json:"content,omitempty"`
	Cached  bool         `json:"cached"`
}

type FindRequest struct {
	SessionRef
	Pattern string `json:"pattern"`
}

type FindResult struct {
	Paths []string `json:"paths"`
}

type PushFailure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// PushReport is the outcome of one push. Failed lists per-item rejections;
// an unreachable store is an error instead.
type PushReport struct {
	PushID       string        `json:"push_id"`
	TreeName     string        `json:"tree_name"`
	WorkbookName string        `json:"workbook_name"`
	Submitted    int           `json:"submitted"`
	Succeeded    int           `json:"succeeded"`
	Failed       []PushFailure `json:"failed"`
	Duration     time.Duration `json:"duration_ns"`
}

type RemoteSearchResult struct {
	Found bool        `json:"found"`
	Tree  *RemoteTree `json:"tree,omitempty"`
}

type TemplateParameter struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Default     *string `json:"default,omitempty"`
	Required    bool    `json:"required"`
}

type TemplateInfo struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Parameters  []TemplateParameter `json:"parameters"`
	Items       int                 `json:"items"`
	Source      string              `json:"source"`
}

type ApplyTemplateRequest struct {
	SessionRef
	Template   string            `json:"template"`
	ParentPath string            `json:"parent_path"`
	Params     map[string]string `json:"params,omitempty"`
}

// TreeService is the application boundary every presentation surface uses.
type TreeService interface {
	CreateEmptyTree(ctx context.Context, req CreateTreeRequest) (CreateTreeResult, error)
	BuildTree(ctx context.Context, req BuildTreeRequest) (BuildTreeResult, error)
	DetectDuplicates(ctx context.Context, in LookupInput) (DetectDuplicatesResult, error)
	ResolveDuplicates(ctx context.Context, in LookupInput) (ResolveDuplicatesResult, error)
	BuildLookup(ctx context.Context, req BuildLookupRequest) (BuildLookupResult, error)
	Insert(ctx context.Context, req InsertRequest) (MutationResult, error)
	Move(ctx context.Context, req MoveRequest) (MutationResult, error)
	Remove(ctx context.Context, req RemoveRequest) (MutationResult, error)
	Render(ctx context.Context, req RenderRequest) (RenderResult, error)
	Search(ctx context.Context, req RenderRequest) (RenderResult, error)
	Find(ctx context.Context, req FindRequest) (FindResult, error)
	Clear(ctx context.Context, ref SessionRef) (bool, error)
	List(ctx context.Context) ([]TreeSummary, error)
	Push(ctx context.Context, ref SessionRef) (PushReport, error)
	RemoteSearch(ctx context.Context, name string) (RemoteSearchResult, error)
	PushHistory(ctx context.Context, ref SessionRef, limit int) ([]ledger.PushRecord, error)
	ListTemplates(ctx context.Context) ([]TemplateInfo, error)
	ApplyTemplate(ctx context.Context, req ApplyTemplateRequest) (BuildTreeResult, error)
	Close(ctx context.Context) error
}
