package runtime

import (
	"assettree/internal/core/config"
	domainerrors "assettree/internal/core/errors"
	"assettree/internal/core/ports"
	"assettree/internal/mcp/adapters"
	"assettree/internal/mcp/contracts"
	"assettree/internal/mcp/openapi"
	"assettree/internal/mcp/registry"
	"assettree/internal/mcp/tools/lookup"
	"assettree/internal/mcp/tools/push"
	"assettree/internal/mcp/tools/template"
	"assettree/internal/mcp/tools/tree"
	"assettree/internal/mcp/transport"
	"assettree/internal/mcp/validate"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

type Dependencies struct {
	Service ports.TreeService
	Logger  *slog.Logger
}

type Server struct {
	cfg       *config.Config
	deps      Dependencies
	registry  *registry.Registry
	transport transport.Adapter
	adapter   *adapters.Adapter
	allowlist OperationAllowlist
	validator *openapi.Validator
	toolName  string

	mu      sync.Mutex
	running bool
}

func New(cfg *config.Config, deps Dependencies, reg *registry.Registry, adapter transport.Adapter, toolName string, allowlist OperationAllowlist, validator *openapi.Validator) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Service == nil {
		return nil, fmt.Errorf("tree service dependency is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if reg == nil {
		reg = registry.New()
	}
	if adapter == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if strings.TrimSpace(toolName) == "" {
		toolName = contracts.ToolNameAssetTree
	}

	return &Server{
		cfg:       cfg,
		deps:      deps,
		registry:  reg,
		transport: adapter,
		adapter:   adapters.NewAdapter(deps.Service),
		allowlist: allowlist,
		validator: validator,
		toolName:  toolName,
	}, nil
}

func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		<-ctx.Done()
		return ctx.Err()
	}
	s.running = true
	s.mu.Unlock()

	s.deps.Logger.Info("mcp runtime active", "transport", s.cfg.MCP.Transport, "tool", s.toolName)

	if err := s.registerDefaultTool(); err != nil {
		return err
	}

	err := s.transport.Start(ctx, s.handleToolCall)

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	return err
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	return s.transport.Stop()
}

func (s *Server) Run(ctx context.Context) error {
	return s.Start(ctx)
}

func (s *Server) registerDefaultTool() error {
	if _, ok := s.registry.HandlerFor(s.toolName); ok {
		return nil
	}
	return s.registry.Register(s.toolName, func(ctx context.Context, input any) (any, error) {
		raw, ok := input.(map[string]any)
		if !ok {
			return nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "tool args must be an object"}
		}
		return s.dispatchOperation(ctx, raw)
	})
}

func (s *Server) handleToolCall(ctx context.Context, tool string, raw map[string]any) (any, error) {
	if strings.TrimSpace(tool) == "" {
		return nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "tool is required"}
	}
	if !strings.EqualFold(tool, s.toolName) {
		return nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: fmt.Sprintf("unsupported tool: %s", tool)}
	}

	handler, ok := s.registry.HandlerFor(s.toolName)
	if !ok {
		return nil, contracts.ToolError{Code: contracts.ErrorUnavailable, Message: "tool handler not registered"}
	}

	timeout := s.cfg.MCP.RequestTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()
	out, err := handler(ctx, raw)
	if err != nil {
		toolErr := toToolError(err)
		s.deps.Logger.Debug("mcp tool call failed", "operation", raw["operation"], "code", toolErr.Code, "error", toolErr.Message, "duration", time.Since(started))
		return nil, toolErr
	}
	s.deps.Logger.Debug("mcp tool call", "operation", raw["operation"], "duration", time.Since(started))
	return out, nil
}

func (s *Server) dispatchOperation(ctx context.Context, raw map[string]any) (any, error) {
	operation, input, err := validate.ParseToolArgs(contracts.ToolNameAssetTree, raw)
	if err != nil {
		return nil, err
	}
	if !s.allowlist.Allows(operation) {
		return nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: fmt.Sprintf("operation not allowlisted: %s", operation)}
	}
	if s.validator != nil {
		params, _ := raw["params"].(map[string]any)
		if err := s.validator.Validate(operation, params); err != nil {
			return nil, err
		}
	}

	maxItems := s.cfg.MCP.MaxResponseItems
	switch operation {
	case contracts.OperationTreeCreateEmpty:
		out, err := tree.HandleCreateEmpty(ctx, s.adapter, input.(contracts.TreeCreateEmptyInput))
		return wrapToolResult(operation, out), err
	case contracts.OperationTreeBuild:
		out, err := tree.HandleBuild(ctx, s.adapter, input.(contracts.TreeBuildInput))
		return wrapToolResult(operation, out), err
	case contracts.OperationTreeInsert:
		out, err := tree.HandleInsert(ctx, s.adapter, input.(contracts.TreeInsertInput))
		return wrapToolResult(operation, out), err
	case contracts.OperationTreeMove:
		out, err := tree.HandleMove(ctx, s.adapter, input.(contracts.TreeMoveInput))
		return wrapToolResult(operation, out), err
	case contracts.OperationTreeRemove:
		out, err := tree.HandleRemove(ctx, s.adapter, input.(contracts.TreeRemoveInput))
		return wrapToolResult(operation, out), err
	case contracts.OperationTreeRender:
		out, err := tree.HandleRender(ctx, s.adapter, input.(contracts.TreeRenderInput))
		return wrapToolResult(operation, out), err
	case contracts.OperationTreeSearch:
		out, err := tree.HandleSearch(ctx, s.adapter, input.(contracts.TreeRenderInput))
		return wrapToolResult(operation, out), err
	case contracts.OperationTreeFind:
		out, err := tree.HandleFind(ctx, s.adapter, input.(contracts.TreeFindInput), maxItems)
		return wrapToolResult(operation, out), err
	case contracts.OperationTreeClear:
		out, err := tree.HandleClear(ctx, s.adapter, input.(contracts.TreeClearInput))
		return wrapToolResult(operation, out), err
	case contracts.OperationTreeList:
		out, err := tree.HandleList(ctx, s.adapter, input.(contracts.TreeListInput), maxItems)
		return wrapToolResult(operation, out), err
	case contracts.OperationDuplicatesDetect:
		out, err := lookup.HandleDetect(ctx, s.adapter, input.(contracts.LookupInput), maxItems)
		return wrapToolResult(operation, out), err
	case contracts.OperationDuplicatesResolve:
		out, err := lookup.HandleResolve(ctx, s.adapter, input.(contracts.LookupInput), maxItems)
		return wrapToolResult(operation, out), err
	case contracts.OperationLookupBuild:
		out, err := lookup.HandleBuild(ctx, s.adapter, input.(contracts.LookupInput))
		return wrapToolResult(operation, out), err
	case contracts.OperationSyncPush:
		out, err := push.HandlePush(ctx, s.adapter, input.(contracts.SyncPushInput))
		return wrapToolResult(operation, out), err
	case contracts.OperationSyncRemoteSearch:
		out, err := push.HandleRemoteSearch(ctx, s.adapter, input.(contracts.SyncRemoteSearchInput))
		return wrapToolResult(operation, out), err
	case contracts.OperationSyncHistory:
		out, err := push.HandleHistory(ctx, s.adapter, input.(contracts.SyncHistoryInput), maxItems)
		return wrapToolResult(operation, out), err
	case contracts.OperationTemplateList:
		out, err := template.HandleList(ctx, s.adapter)
		return wrapToolResult(operation, out), err
	case contracts.OperationTemplateApply:
		out, err := template.HandleApply(ctx, s.adapter, input.(contracts.TemplateApplyInput))
		return wrapToolResult(operation, out), err
	default:
		return nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: fmt.Sprintf("unsupported operation: %s", operation)}
	}
}

func wrapToolResult(operation contracts.OperationID, payload any) any {
	return map[string]any{
		"version":   contracts.ContractVersion,
		"operation": operation,
		"result":    payload,
	}
}

// toToolError maps domain error codes onto tool error codes. Context attached
// to a domain error is passed through as details.
func toToolError(err error) contracts.ToolError {
	var toolErr contracts.ToolError
	if errors.As(err, &toolErr) {
		return toolErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return contracts.ToolError{Code: contracts.ErrorUnavailable, Message: "request timed out"}
	}
	if errors.Is(err, context.Canceled) {
		return contracts.ToolError{Code: contracts.ErrorUnavailable, Message: "request canceled"}
	}

	var de *domainerrors.DomainError
	if !errors.As(err, &de) {
		return contracts.ToolError{Code: contracts.ErrorInternal, Message: err.Error()}
	}

	out := contracts.ToolError{Message: de.Message}
	switch de.Code {
	case domainerrors.CodeValidationError:
		out.Code = contracts.ErrorInvalidArgument
	case domainerrors.CodeNotFound:
		out.Code = contracts.ErrorNotFound
	case domainerrors.CodeConflict:
		out.Code = contracts.ErrorConflict
	case domainerrors.CodeUnavailable, domainerrors.CodeNotSupported:
		out.Code = contracts.ErrorUnavailable
	default:
		out.Code = contracts.ErrorInternal
	}
	if de.Err != nil {
		out.Message = fmt.Sprintf("%s: %v", de.Message, de.Err)
	}
	if len(de.Context) > 0 || de.Kind != nil {
		out.Details = make(map[string]any, len(de.Context)+1)
		for k, v := range de.Context {
			out.Details[k] = v
		}
		if de.Kind != nil {
			out.Details["kind"] = de.Kind.Error()
		}
	}
	return out
}
