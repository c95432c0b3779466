// # internal/core/app/app.go
package app

import (
	"assettree/internal/core/config"
	"assettree/internal/core/ports"
	"assettree/internal/core/watcher"
	"assettree/internal/data/ledger"
	"assettree/internal/data/session"
	"assettree/internal/engine/builder"
	"assettree/internal/engine/templates"
	"assettree/internal/remote"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// App owns the session store and everything an operation needs: the tree
// builder, template registry, remote store and push ledger.
type App struct {
	Config *config.Config
	Paths  config.ResolvedPaths

	cfgMu     sync.RWMutex
	logger    *slog.Logger
	sessions  *session.Store
	renders   *session.RenderCache
	builder   *builder.Builder
	templates *templates.Registry
	remote    ports.RemoteStore
	ledger    ports.PushLedger
	locks     *keyedMutex

	writeQueue   ports.WriteQueuePort[ledger.PushRecord]
	writeSpool   ports.WriteSpoolPort[ledger.PushRecord]
	workerCancel context.CancelFunc
	workerDone   chan struct{}

	ingestMu      sync.Mutex
	ingestWatcher *watcher.Watcher

	now func() time.Time
}

// Dependencies overrides collaborators New would otherwise build from config.
type Dependencies struct {
	Remote ports.RemoteStore
	Ledger ports.PushLedger
	Logger *slog.Logger
	Paths  *config.ResolvedPaths
}

func New(cfg *config.Config) (*App, error) {
	return NewWithDependencies(cfg, Dependencies{})
}

func NewWithDependencies(cfg *config.Config, deps Dependencies) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var paths config.ResolvedPaths
	if deps.Paths != nil {
		paths = *deps.Paths
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		paths, err = config.ResolvePaths(cfg, cwd)
		if err != nil {
			return nil, err
		}
	}

	registry, err := templates.NewRegistry()
	if err != nil {
		return nil, err
	}
	if n, err := registry.LoadDir(paths.TemplatesDir); err != nil {
		return nil, err
	} else if n > 0 {
		logger.Info("loaded templates", "dir", paths.TemplatesDir, "count", n)
	}

	store := deps.Remote
	if store == nil {
		store = newRemoteStore(cfg.Remote)
	}

	a := &App{
		Config:    cfg,
		Paths:     paths,
		logger:    logger,
		sessions:  session.NewStore(),
		renders:   session.NewRenderCache(cfg.Caches.Renders),
		builder:   builder.New(logger),
		templates: registry,
		remote:    store,
		ledger:    deps.Ledger,
		locks:     newKeyedMutex(),
		now:       time.Now,
	}

	if a.ledger == nil && cfg.DB.Enabled {
		l, err := ledger.Open(paths.DBPath, cfg.DB.BusyTimeout)
		if err != nil {
			return nil, err
		}
		a.ledger = l
	}
	if err := a.initWriteQueue(); err != nil {
		if a.ledger != nil {
			_ = a.ledger.Close()
		}
		return nil, err
	}
	return a, nil
}

func newRemoteStore(cfg config.Remote) ports.RemoteStore {
	if strings.EqualFold(cfg.Mode, config.RemoteModeHTTP) {
		return remote.NewClient(cfg.Endpoint, remote.ClientOptions{
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
		})
	}
	return remote.NewMemoryStore()
}

// Remote returns the store trees are pushed to.
func (a *App) Remote() ports.RemoteStore {
	return a.remote
}

// ApplyConfig takes the reloadable parts of cfg: ingest column roles and
// strategy, the tree delimiter, and the remote rate limit.
func (a *App) ApplyConfig(cfg *config.Config) {
	if a == nil || cfg == nil {
		return
	}
	a.cfgMu.Lock()
	a.Config.Ingest.Roles = cfg.Ingest.Roles
	a.Config.Ingest.Columns = cfg.Ingest.Columns
	a.Config.Ingest.Strategy = cfg.Ingest.Strategy
	a.Config.Tree.Delimiter = cfg.Tree.Delimiter
	a.Config.Tree.LookupParentPath = cfg.Tree.LookupParentPath
	a.Config.Remote.RequestsPerSecond = cfg.Remote.RequestsPerSecond
	a.Config.Remote.Burst = cfg.Remote.Burst
	a.cfgMu.Unlock()

	if c, ok := a.remote.(*remote.Client); ok {
		c.SetRateLimit(cfg.Remote.RequestsPerSecond, cfg.Remote.Burst)
	}
	a.logger.Info("configuration reloaded")
}

func (a *App) treeSettings() config.Tree {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.Config.Tree
}

func (a *App) ingestSettings() config.Ingest {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.Config.Ingest
}

// Close stops the ingest watcher, drains the ledger queue and closes the ledger.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	a.StopIngestWatcher()

	drainTimeout := 10 * time.Second
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, drainTimeout)
		defer cancel()
	}
	if err := a.stopWriteWorker(ctx); err != nil {
		return err
	}
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			return err
		}
		a.ledger = nil
	}
	return nil
}
