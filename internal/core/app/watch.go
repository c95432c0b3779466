// # internal/core/app/watch.go
package app

import (
	"assettree/internal/core/config"
	"assettree/internal/core/ports"
	"assettree/internal/core/watcher"
	"assettree/internal/data/tabular"
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"time"
)

// IngestSources rebuilds every configured [[ingest.sources]] session from its
// file. One failing source does not stop the others; the errors are joined.
func (a *App) IngestSources(ctx context.Context) error {
	var errs []error
	for _, src := range a.Config.Ingest.Sources {
		if err := a.ingestSource(ctx, src); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// StartIngestWatcher watches ingest.watch_dir and rebuilds the sessions bound
// to files that change. It is a no-op when no watch dir is configured.
func (a *App) StartIngestWatcher(ctx context.Context) error {
	if a.Paths.WatchDir == "" {
		return nil
	}
	a.ingestMu.Lock()
	defer a.ingestMu.Unlock()
	if a.ingestWatcher != nil {
		return nil
	}

	bySource := make(map[string][]config.Source, len(a.Config.Ingest.Sources))
	for _, src := range a.Config.Ingest.Sources {
		path := filepath.Clean(a.Paths.SourceFiles[src.File])
		bySource[path] = append(bySource[path], src)
	}

	w, err := watcher.NewWatcher(a.Config.Ingest.Debounce, a.Config.Ingest.Patterns, nil, func(paths []string) {
		for _, path := range paths {
			srcs, ok := bySource[filepath.Clean(path)]
			if !ok {
				a.logger.Debug("ignoring change to unbound file", "path", path)
				continue
			}
			for _, src := range srcs {
				if err := a.ingestSource(ctx, src); err != nil {
					a.logger.Warn("ingest rebuild failed", "path", path, "session", src.TreeName+"::"+src.WorkbookName, "error", err)
				}
			}
		}
	})
	if err != nil {
		return err
	}
	if err := w.Watch([]string{a.Paths.WatchDir}); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", a.Paths.WatchDir, err)
	}
	a.ingestWatcher = w
	a.logger.Info("watching ingest sources", "dir", a.Paths.WatchDir, "sources", len(a.Config.Ingest.Sources))
	return nil
}

func (a *App) StopIngestWatcher() {
	a.ingestMu.Lock()
	defer a.ingestMu.Unlock()
	if a.ingestWatcher == nil {
		return
	}
	if err := a.ingestWatcher.Close(); err != nil {
		a.logger.Warn("close ingest watcher", "error", err)
	}
	a.ingestWatcher = nil
}

func (a *App) ingestSource(ctx context.Context, src config.Source) error {
	path := a.Paths.SourceFiles[src.File]
	if path == "" {
		path = filepath.Join(a.Paths.WatchDir, src.File)
	}
	table, err := tabular.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", src.File, err)
	}

	started := time.Now()
	svc := a.TreeService()
	ref := ports.SessionRef{TreeName: src.TreeName, WorkbookName: src.WorkbookName}
	switch src.Workflow {
	case config.WorkflowLookup:
		res, err := svc.BuildLookup(ctx, ports.BuildLookupRequest{
			SessionRef:  ref,
			LookupInput: ports.LookupInput{Header: table.Header, Rows: table.Rows},
		})
		if err != nil {
			return err
		}
		a.logger.Info("ingest rebuilt session", "file", src.File, "session", res.Tree.TreeName+"::"+res.Tree.WorkbookName,
			"workflow", src.Workflow, "nodes", res.Tree.Nodes, "duration", time.Since(started))
	default:
		res, err := svc.BuildTree(ctx, ports.BuildTreeRequest{SessionRef: ref, Header: table.Header, Rows: table.Rows})
		if err != nil {
			return err
		}
		a.logger.Info("ingest rebuilt session", "file", src.File, "session", res.Tree.TreeName+"::"+res.Tree.WorkbookName,
			"workflow", config.WorkflowItems, "nodes", res.Tree.Nodes, "items_created", res.Stats.ItemsCreated,
			"items_updated", res.Stats.ItemsUpdated, "duration", time.Since(started))
	}
	return nil
}
