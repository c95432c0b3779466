package cli

import (
	coreapp "assettree/internal/core/app"
	"assettree/internal/core/config"
	"assettree/internal/core/ports"
	"assettree/internal/data/tabular"
	"assettree/internal/engine/dedupe"
	mcpruntime "assettree/internal/mcp/runtime"
	"assettree/internal/shared/observability"
	"assettree/internal/shared/util"
	"assettree/internal/shared/version"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

func Run(args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		usage(os.Stderr)
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	opts, err := parseOptions(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		usage(os.Stderr)
		return 2
	}
	if opts.command == commandVersion {
		fmt.Printf("assettree %s\n", version.Version)
		return 0
	}
	if err := validateOptions(opts); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 2
	}

	cleanupLogs := configureLogging(opts.command == commandUI, opts.verbose)
	defer cleanupLogs()

	cwd, err := os.Getwd()
	if err != nil {
		slog.Error("failed to detect working directory", "error", err)
		return 1
	}

	cfg, cfgPath, err := loadConfig(opts.configPath, cwd)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	config.ApplyEnvOverrides(cfg)

	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		slog.Error("failed to resolve runtime paths", "error", err)
		return 1
	}

	app, err := initializeApp(cfg, paths, coreAppFactory{})
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return 1
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Close(closeCtx); err != nil {
			slog.Warn("shutdown incomplete", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch opts.command {
	case commandBuild:
		return runBuild(ctx, app.TreeService(), opts, os.Stdout, os.Stderr)
	case commandDuplicates:
		return runDuplicates(ctx, app.TreeService(), opts, os.Stdout)
	case commandServe:
		if err := runServe(ctx, app, cfg, cfgPath, opts); err != nil {
			slog.Error("MCP server failed", "error", err)
			return 1
		}
		return 0
	case commandUI:
		if err := startBackground(ctx, app, opts); err != nil {
			slog.Error("failed to start ingest", "error", err)
			return 1
		}
		defer app.StopIngestWatcher()
		if err := runUI(ctx, app.TreeService()); err != nil {
			slog.Error("failed to run UI", "error", err)
			return 1
		}
		return 0
	}
	return 2
}

func runBuild(ctx context.Context, svc ports.TreeService, opts cliOptions, out, status io.Writer) int {
	table, err := tabular.ReadFile(opts.csvPath)
	if err != nil {
		fmt.Fprintln(status, err.Error())
		return 1
	}
	ref := ports.SessionRef{TreeName: strings.TrimSpace(opts.treeName), WorkbookName: strings.TrimSpace(opts.workbookName)}

	if opts.lookup {
		res, err := svc.BuildLookup(ctx, ports.BuildLookupRequest{
			SessionRef:    ref,
			LookupInput:   ports.LookupInput{Header: table.Header, Rows: table.Rows, Roles: opts.roles(), Strategy: opts.strategy},
			DefaultParent: opts.defaultParent,
		})
		if err != nil {
			fmt.Fprintln(status, err.Error())
			return 1
		}
		fmt.Fprintf(status, "Built %s::%s: %d nodes, %d lookup groups, items created=%d updated=%d\n",
			res.Tree.TreeName, res.Tree.WorkbookName, res.Tree.Nodes, len(res.Groups), res.Stats.ItemsCreated, res.Stats.ItemsUpdated)
		if len(res.KeptAll) > 0 {
			fmt.Fprintf(status, "Kept every value for %d unresolved groups: %s\n", len(res.KeptAll), strings.Join(res.KeptAll, ", "))
		}
	} else {
		res, err := svc.BuildTree(ctx, ports.BuildTreeRequest{SessionRef: ref, Header: table.Header, Rows: table.Rows})
		if err != nil {
			fmt.Fprintln(status, err.Error())
			return 1
		}
		fmt.Fprintf(status, "Built %s::%s: %d nodes, assets created=%d, items created=%d updated=%d\n",
			res.Tree.TreeName, res.Tree.WorkbookName, res.Tree.Nodes, res.Stats.AssetsCreated,
			res.Stats.ItemsCreated, res.Stats.ItemsUpdated)
	}

	if opts.render != "" {
		rendered, err := svc.Render(ctx, ports.RenderRequest{SessionRef: ref, Format: opts.render})
		if err != nil {
			fmt.Fprintln(status, err.Error())
			return 1
		}
		if opts.output != "" {
			if err := writeBytes(opts.output, []byte(rendered.Content)); err != nil {
				fmt.Fprintf(status, "write %s: %v\n", opts.output, err)
				return 1
			}
			fmt.Fprintf(status, "Wrote %s render to %s\n", rendered.Format, opts.output)
		} else {
			fmt.Fprint(out, rendered.Content)
		}
	}

	if opts.push {
		report, err := svc.Push(ctx, ref)
		if err != nil {
			fmt.Fprintln(status, err.Error())
			return 1
		}
		fmt.Fprintf(status, "Pushed %s::%s: submitted=%d succeeded=%d failed=%d (%s)\n",
			report.TreeName, report.WorkbookName, report.Submitted, report.Succeeded, len(report.Failed), report.Duration.Round(time.Millisecond))
		for _, failure := range report.Failed {
			fmt.Fprintf(status, "  %s: %s\n", failure.Path, failure.Reason)
		}
		if len(report.Failed) > 0 {
			return 1
		}
	}
	return 0
}

func runDuplicates(ctx context.Context, svc ports.TreeService, opts cliOptions, out io.Writer) int {
	table, err := tabular.ReadFile(opts.csvPath)
	if err != nil {
		fmt.Fprintln(out, err.Error())
		return 1
	}
	in := ports.LookupInput{Header: table.Header, Rows: table.Rows, Roles: opts.roles(), Strategy: opts.strategy}

	if opts.strategy == "" && len(opts.keep) == 0 {
		res, err := svc.DetectDuplicates(ctx, in)
		if err != nil {
			fmt.Fprintln(out, err.Error())
			return 1
		}
		fmt.Fprintf(out, "Duplicates (%d groups in %d records):\n", len(res.Groups), res.Records)
		for _, group := range res.Groups {
			fmt.Fprintf(out, "  %s\n", group.GroupKey)
			for _, c := range group.Candidates {
				fmt.Fprintf(out, "    [%d] row=%d value=%s\n", c.Position, c.Row, c.Value)
			}
		}
		return 0
	}

	selection, err := parseKeep(opts.keep)
	if err != nil {
		fmt.Fprintln(out, err.Error())
		return 1
	}
	in.Selection = selection
	res, err := svc.ResolveDuplicates(ctx, in)
	if err != nil {
		fmt.Fprintln(out, err.Error())
		return 1
	}
	fmt.Fprintf(out, "Resolved: %d records kept, %d dropped\n", len(res.Records), res.Dropped)
	for _, g := range res.Groups {
		fmt.Fprintf(out, "  %s -> %s (%d pairs)\n", g.Group, g.ItemName, g.Pairs)
	}
	if len(res.KeptAll) > 0 {
		fmt.Fprintf(out, "Kept whole (no selection): %s\n", strings.Join(res.KeptAll, ", "))
	}
	return 0
}

// parseKeep reads --keep values of the form <group_key>=<pos>[,<pos>...].
// An empty position list keeps every value of the group.
func parseKeep(values []string) (dedupe.Selection, error) {
	if len(values) == 0 {
		return nil, nil
	}
	sel := make(dedupe.Selection, len(values))
	for _, raw := range values {
		idx := strings.LastIndex(raw, "=")
		if idx <= 0 {
			return nil, fmt.Errorf("--keep must be formatted as <group_key>=<pos>[,<pos>...], got %q", raw)
		}
		key := strings.TrimSpace(raw[:idx])
		positions := []int{}
		for _, part := range strings.Split(raw[idx+1:], ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("--keep position %q for %s is not a non-negative integer", part, key)
			}
			positions = append(positions, n)
		}
		if existing, ok := sel[key]; ok {
			positions = append(existing, positions...)
		}
		sel[key] = positions
	}
	return sel, nil
}

func runServe(ctx context.Context, app *coreapp.App, cfg *config.Config, cfgPath string, opts cliOptions) error {
	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Observability.Enabled && cfg.Observability.EnableTracing,
		Endpoint:    cfg.Observability.OTLPEndpoint,
		Insecure:    cfg.Observability.OTLPInsecure,
		SampleRatio: cfg.Observability.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	if cfg.Observability.Enabled {
		obs := NewObservabilityServer(fmt.Sprintf(":%d", cfg.Observability.Port), coreapp.NewHealthService(app), cfg.Observability.EnableMetrics)
		if err := obs.Start(ctx); err != nil {
			return fmt.Errorf("start observability server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = obs.Stop(shutdownCtx)
		}()
	}

	if err := startBackground(ctx, app, opts); err != nil {
		return err
	}
	defer app.StopIngestWatcher()

	if cfgPath != "" {
		w := config.NewWatcher(cfgPath, func(next *config.Config) {
			config.ApplyEnvOverrides(next)
			app.ApplyConfig(next)
			slog.Info("config reloaded", "path", cfgPath)
		})
		if err := w.Start(ctx); err != nil {
			slog.Warn("config watcher unavailable", "path", cfgPath, "error", err)
		} else {
			defer w.Stop()
		}
	}

	server, err := mcpruntime.Build(cfg, mcpruntime.Dependencies{
		Service: app.TreeService(),
		Logger:  slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("build MCP runtime: %w", err)
	}
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// startBackground rebuilds the configured ingest sources and, with --watch,
// keeps them current.
func startBackground(ctx context.Context, app *coreapp.App, opts cliOptions) error {
	if err := app.IngestSources(ctx); err != nil {
		slog.Warn("initial ingest incomplete", "error", err)
	}
	if !opts.watch {
		return nil
	}
	return app.StartIngestWatcher(ctx)
}

func loadConfig(path, cwd string) (*config.Config, string, error) {
	if path != defaultConfigPath {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}

	candidates, err := discoverDefaultConfig(cwd)
	if err != nil {
		return nil, "", err
	}
	for _, candidate := range candidates {
		cfg, loadErr := config.Load(candidate)
		if loadErr == nil {
			return cfg, candidate, nil
		}
		if os.IsNotExist(loadErr) {
			continue
		}
		return nil, "", loadErr
	}

	slog.Debug("no config file found, using defaults", "candidates", candidates)
	return config.DefaultConfig(), "", nil
}

func discoverDefaultConfig(cwd string) ([]string, error) {
	if strings.TrimSpace(cwd) == "" {
		return nil, fmt.Errorf("cwd must not be empty")
	}
	return []string{
		filepath.Clean(filepath.Join(cwd, "data/config/assettree.toml")),
		filepath.Clean(filepath.Join(cwd, "assettree.toml")),
		filepath.Clean(filepath.Join(cwd, "data/config/assettree.example.toml")),
	}, nil
}

func writeBytes(path string, data []byte) error {
	return util.WriteFileWithDirs(path, data, 0o644)
}

// configureLogging installs the default logger. Logs go to stderr so stdout
// stays free for renders and the MCP stdio protocol; the TUI logs to a file.
func configureLogging(uiMode, verbose bool) func() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	var output io.Writer = os.Stderr
	closeFn := func() {}
	if uiMode {
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else {
			if fi, err := os.Lstat(logPath); err == nil && (fi.Mode()&os.ModeSymlink) != 0 {
				fmt.Fprintf(os.Stderr, "warning: refusing to write logs to symlink path %s\n", logPath)
			} else {
				f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
				if err == nil {
					output = f
					closeFn = func() { _ = f.Close() }
				} else {
					fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
				}
			}
		}
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return closeFn
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "assettree", "assettree.log")
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "assettree", "assettree.log")
	}

	return "assettree.log"
}
