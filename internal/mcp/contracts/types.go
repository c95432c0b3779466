package contracts

import (
	"assettree/internal/core/ports"
	"assettree/internal/data/ledger"
	"assettree/internal/engine/builder"
	"assettree/internal/engine/dedupe"
	"assettree/internal/engine/records"
	"fmt"
)

const (
	ToolNameAssetTree = "assettree"
	ContractVersion   = "v1"
)

type OperationID string

const (
	OperationTreeCreateEmpty   OperationID = "tree.create_empty"
	OperationTreeBuild         OperationID = "tree.build"
	OperationTreeInsert        OperationID = "tree.insert"
	OperationTreeMove          OperationID = "tree.move"
	OperationTreeRemove        OperationID = "tree.remove"
	OperationTreeRender        OperationID = "tree.render"
	OperationTreeSearch        OperationID = "tree.search"
	OperationTreeFind          OperationID = "tree.find"
	OperationTreeClear         OperationID = "tree.clear"
	OperationTreeList          OperationID = "tree.list"
	OperationDuplicatesDetect  OperationID = "duplicates.detect"
	OperationDuplicatesResolve OperationID = "duplicates.resolve"
	OperationLookupBuild       OperationID = "lookup.build"
	OperationSyncPush          OperationID = "sync.push"
	OperationSyncRemoteSearch  OperationID = "sync.remote_search"
	OperationSyncHistory       OperationID = "sync.history"
	OperationTemplateList      OperationID = "template.list"
	OperationTemplateApply     OperationID = "template.apply"
)

// Operations lists every operation in the order tools/list reports them.
func Operations() []OperationID {
	return []OperationID{
		OperationTreeCreateEmpty,
		OperationTreeBuild,
		OperationTreeInsert,
		OperationTreeMove,
		OperationTreeRemove,
		OperationTreeRender,
		OperationTreeSearch,
		OperationTreeFind,
		OperationTreeClear,
		OperationTreeList,
		OperationDuplicatesDetect,
		OperationDuplicatesResolve,
		OperationLookupBuild,
		OperationSyncPush,
		OperationSyncRemoteSearch,
		OperationSyncHistory,
		OperationTemplateList,
		OperationTemplateApply,
	}
}

// AssetTreeToolInput is the envelope of every tool call.
type AssetTreeToolInput struct {
	Operation OperationID    `json:"operation"`
	Params    map[string]any `json:"params,omitempty"`
}

type OperationDescriptor struct {
	ID          OperationID    `json:"id"`
	Summary     string         `json:"summary,omitempty"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// SessionInput addresses one session.
type SessionInput struct {
	TreeName     string `json:"tree_name"`
	WorkbookName string `json:"workbook_name"`
}

func (s SessionInput) Ref() ports.SessionRef {
	return ports.SessionRef{TreeName: s.TreeName, WorkbookName: s.WorkbookName}
}

// TableInput carries tabular rows either pre-parsed or as CSV text. CSV wins
// when both are given.
type TableInput struct {
	Header []string      `json:"header,omitempty"`
	Rows   []records.Row `json:"rows,omitempty"`
	CSV    string        `json:"csv,omitempty"`
}

type TreeCreateEmptyInput struct {
	SessionInput
	Description string `json:"description,omitempty"`
}

type TreeBuildInput struct {
	SessionInput
	TableInput
	Columns    records.ItemColumns          `json:"columns"`
	Assignment records.ParentPathAssignment `json:"assignment,omitempty"`
}

type TreeBuildOutput struct {
	Tree  ports.TreeSummary `json:"tree"`
	Stats builder.Stats     `json:"stats"`
}

type TreeInsertInput struct {
	SessionInput
	ParentPath string         `json:"parent_path"`
	Item       ports.ItemSpec `json:"item"`
}

type TreeMoveInput struct {
	SessionInput
	SourcePath      string `json:"source_path"`
	DestinationPath string `json:"destination_path"`
}

type TreeRemoveInput struct {
	SessionInput
	ItemPath string `json:"item_path"`
}

type TreeRenderInput struct {
	SessionInput
	Format string `json:"format,omitempty"`
}

type TreeFindInput struct {
	SessionInput
	Pattern string `json:"pattern"`
	Limit   int    `json:"limit,omitempty"`
}

type TreeFindOutput struct {
	Total     int      `json:"total"`
	Paths     []string `json:"paths"`
	Truncated bool     `json:"truncated,omitempty"`
}

type TreeClearInput struct {
	SessionInput
}

type TreeClearOutput struct {
	Cleared bool `json:"cleared"`
}

type TreeListInput struct {
	Limit int `json:"limit,omitempty"`
}

type TreeListOutput struct {
	Total int                 `json:"total"`
	Trees []ports.TreeSummary `json:"trees"`
}

// LookupInput is shared by duplicates.detect, duplicates.resolve and
// lookup.build. The session is only used by lookup.build.
type LookupInput struct {
	SessionInput
	TableInput
	Roles         records.ColumnRoles          `json:"roles"`
	Selection     dedupe.Selection             `json:"selection,omitempty"`
	Strategy      string                       `json:"strategy,omitempty"`
	Assignment    records.ParentPathAssignment `json:"assignment,omitempty"`
	DefaultParent string                       `json:"default_parent,omitempty"`
	Limit         int                          `json:"limit,omitempty"`
}

type DuplicatesDetectOutput struct {
	Records    int                        `json:"records"`
	GroupCount int                        `json:"group_count"`
	Groups     []ports.DuplicateGroupView `json:"groups"`
}

type DuplicatesResolveOutput struct {
	RecordCount int                    `json:"record_count"`
	Records     []ports.ResolvedRecord `json:"records"`
	Groups      []dedupe.GroupSummary  `json:"groups"`
	KeptAll     []string               `json:"kept_all,omitempty"`
	Dropped     int                    `json:"dropped"`
}

type LookupBuildOutput struct {
	Tree    ports.TreeSummary     `json:"tree"`
	Stats   builder.Stats         `json:"stats"`
	Groups  []dedupe.GroupSummary `json:"groups"`
	KeptAll []string              `json:"kept_all,omitempty"`
}

type SyncPushInput struct {
	SessionInput
}

type SyncRemoteSearchInput struct {
	Name string `json:"name"`
}

type SyncHistoryInput struct {
	SessionInput
	Limit int `json:"limit,omitempty"`
}

type SyncHistoryOutput struct {
	Pushes []ledger.PushRecord `json:"pushes"`
}

type TemplateListInput struct{}

type TemplateListOutput struct {
	Templates []ports.TemplateInfo `json:"templates"`
}

type TemplateApplyInput struct {
	SessionInput
	Template   string            `json:"template"`
	ParentPath string            `json:"parent_path"`
	Params     map[string]string `json:"params,omitempty"`
}

type ErrorCode string

const (
	ErrorInvalidArgument ErrorCode = "invalid_argument"
	ErrorNotFound        ErrorCode = "not_found"
	ErrorConflict        ErrorCode = "conflict"
	ErrorUnavailable     ErrorCode = "unavailable"
	ErrorInternal        ErrorCode = "internal"
)

type ToolError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
