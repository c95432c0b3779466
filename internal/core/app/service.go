package app

import (
	"assettree/internal/core/errors"
	"assettree/internal/core/ports"
	"assettree/internal/data/ledger"
	"assettree/internal/data/session"
	"assettree/internal/engine/builder"
	"assettree/internal/engine/dedupe"
	"assettree/internal/engine/records"
	"assettree/internal/engine/tree"
	"assettree/internal/remote"
	"assettree/internal/shared/observability"
	"assettree/internal/ui/report/formats"
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type treeService struct {
	app *App
}

var _ ports.TreeService = (*treeService)(nil)

func NewTreeService(app *App) ports.TreeService {
	return &treeService{app: app}
}

func (a *App) TreeService() ports.TreeService {
	return NewTreeService(a)
}

func (s *treeService) Unwrap() *App {
	return s.app
}

func (s *treeService) Close(ctx context.Context) error {
	if s == nil || s.app == nil {
		return nil
	}
	return s.app.Close(ctx)
}

func (s *treeService) start(ctx context.Context, name string, ref *ports.SessionRef) (context.Context, trace.Span, time.Time) {
	var opts []trace.SpanStartOption
	if ref != nil {
		opts = append(opts, trace.WithAttributes(
			attribute.String("tree_name", ref.TreeName),
			attribute.String("workbook_name", ref.WorkbookName),
		))
	}
	ctx, span := observability.Tracer.Start(ctx, "treeService."+name, opts...)
	return ctx, span, time.Now()
}

// finish records the operation metric and span status, and tags err with op.
func (s *treeService) finish(span trace.Span, op string, started time.Time, err error) error {
	outcome := "ok"
	if err != nil {
		outcome = strings.ToLower(string(errors.CodeOf(err)))
		err = errors.AddContext(err, errors.CtxOperation, op)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	observability.OperationDuration.WithLabelValues(op, outcome).Observe(time.Since(started).Seconds())
	return err
}

func (s *treeService) CreateEmptyTree(ctx context.Context, req ports.CreateTreeRequest) (ports.CreateTreeResult, error) {
	ctx, span, started := s.start(ctx, "CreateEmptyTree", &req.SessionRef)
	defer span.End()
	res, err := s.createEmptyTree(ctx, req)
	return res, s.finish(span, "tree.create_empty", started, err)
}

func (s *treeService) createEmptyTree(ctx context.Context, req ports.CreateTreeRequest) (ports.CreateTreeResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.CreateTreeResult{}, err
	}
	key, err := sessionKey(req.SessionRef)
	if err != nil {
		return ports.CreateTreeResult{}, err
	}
	unlock := s.app.locks.Lock(key)
	defer unlock()

	settings := s.app.treeSettings()
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		desc = settings.RootDescription
	}
	sess, created := s.app.sessions.Create(key, tree.New(key.TreeName, desc, settings.Delimiter))
	if created {
		s.app.logger.Info("session created", "session", key.String())
		s.app.trackSession(sess)
	}
	return ports.CreateTreeResult{Tree: summarize(sess), Created: created}, nil
}

func (s *treeService) BuildTree(ctx context.Context, req ports.BuildTreeRequest) (ports.BuildTreeResult, error) {
	ctx, span, started := s.start(ctx, "BuildTree", &req.SessionRef)
	defer span.End()
	res, err := s.buildTree(ctx, req)
	return res, s.finish(span, "tree.build", started, err)
}

func (s *treeService) buildTree(ctx context.Context, req ports.BuildTreeRequest) (ports.BuildTreeResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.BuildTreeResult{}, err
	}
	key, err := sessionKey(req.SessionRef)
	if err != nil {
		return ports.BuildTreeResult{}, err
	}
	cols := req.Columns
	if cols == (records.ItemColumns{}) {
		cols = s.app.ingestSettings().Columns
	}

	unlock := s.app.locks.Lock(key)
	defer unlock()

	base := s.app.baseTree(key)
	items, err := records.NormalizeItems(req.Header, req.Rows, cols.WithDefaults(), base.Delimiter())
	if err != nil {
		return ports.BuildTreeResult{}, err
	}
	sess, stats, err := s.app.applyItems(key, base, items, req.Assignment)
	if err != nil {
		return ports.BuildTreeResult{}, err
	}
	return ports.BuildTreeResult{Tree: summarize(sess), Stats: stats}, nil
}

func (s *treeService) DetectDuplicates(ctx context.Context, in ports.LookupInput) (ports.DetectDuplicatesResult, error) {
	ctx, span, started := s.start(ctx, "DetectDuplicates", nil)
	defer span.End()
	res, err := s.detectDuplicates(ctx, in)
	return res, s.finish(span, "duplicates.detect", started, err)
}

func (s *treeService) detectDuplicates(ctx context.Context, in ports.LookupInput) (ports.DetectDuplicatesResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.DetectDuplicatesResult{}, err
	}
	recs, err := records.NormalizeLookups(in.Header, in.Rows, s.app.roles(in.Roles))
	if err != nil {
		return ports.DetectDuplicatesResult{}, err
	}
	det := dedupe.Detect(recs)
	observability.DuplicateGroupsTotal.Add(float64(det.Len()))

	out := ports.DetectDuplicatesResult{Records: len(recs), Groups: make([]ports.DuplicateGroupView, 0, det.Len())}
	for _, gk := range det.Order {
		g := det.Groups[gk]
		view := ports.DuplicateGroupView{
			GroupKey:   g.GroupKey,
			Group:      g.Group,
			Key:        g.Key,
			Candidates: make([]ports.CandidateView, 0, len(g.Candidates)),
		}
		for _, c := range g.Candidates {
			view.Candidates = append(view.Candidates, ports.CandidateView{
				Position: c.Position,
				Row:      c.Record.Row,
				Value:    c.Record.Value.Value,
				Attrs:    c.Record.Attrs,
			})
		}
		out.Groups = append(out.Groups, view)
	}
	return out, nil
}

func (s *treeService) ResolveDuplicates(ctx context.Context, in ports.LookupInput) (ports.ResolveDuplicatesResult, error) {
	ctx, span, started := s.start(ctx, "ResolveDuplicates", nil)
	defer span.End()
	res, err := s.resolveDuplicates(ctx, in)
	return res, s.finish(span, "duplicates.resolve", started, err)
}

func (s *treeService) resolveDuplicates(ctx context.Context, in ports.LookupInput) (ports.ResolveDuplicatesResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.ResolveDuplicatesResult{}, err
	}
	res, err := s.app.resolve(in)
	if err != nil {
		return ports.ResolveDuplicatesResult{}, err
	}
	out := ports.ResolveDuplicatesResult{
		Records: make([]ports.ResolvedRecord, 0, len(res.Records)),
		Groups:  res.Groups,
		KeptAll: res.KeptAll,
		Dropped: res.Dropped,
	}
	for _, rec := range res.Records {
		out.Records = append(out.Records, ports.ResolvedRecord{
			Row:   rec.Row,
			Group: rec.Group.Value,
			Key:   rec.Key.Value,
			Value: rec.Value.Value,
			Attrs: rec.Attrs,
		})
	}
	return out, nil
}

func (s *treeService) BuildLookup(ctx context.Context, req ports.BuildLookupRequest) (ports.BuildLookupResult, error) {
	ctx, span, started := s.start(ctx, "BuildLookup", &req.SessionRef)
	defer span.End()
	res, err := s.buildLookup(ctx, req)
	return res, s.finish(span, "lookup.build", started, err)
}

func (s *treeService) buildLookup(ctx context.Context, req ports.BuildLookupRequest) (ports.BuildLookupResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.BuildLookupResult{}, err
	}
	key, err := sessionKey(req.SessionRef)
	if err != nil {
		return ports.BuildLookupResult{}, err
	}
	res, err := s.app.resolve(req.LookupInput)
	if err != nil {
		return ports.BuildLookupResult{}, err
	}
	parent := strings.TrimSpace(req.DefaultParent)
	if parent == "" {
		parent = s.app.treeSettings().LookupParentPath
	}
	items := dedupe.BuildLookupItems(res, req.Assignment, parent)

	unlock := s.app.locks.Lock(key)
	defer unlock()

	sess, stats, err := s.app.applyItems(key, s.app.baseTree(key), items, nil)
	if err != nil {
		return ports.BuildLookupResult{}, err
	}
	return ports.BuildLookupResult{Tree: summarize(sess), Stats: stats, Groups: res.Groups, KeptAll: res.KeptAll}, nil
}

func (s *treeService) Insert(ctx context.Context, req ports.InsertRequest) (ports.MutationResult, error) {
	ctx, span, started := s.start(ctx, "Insert", &req.SessionRef)
	defer span.End()
	res, err := s.insert(ctx, req)
	if err != nil {
		err = errors.AddContext(err, errors.CtxPath, req.ParentPath)
	}
	return res, s.finish(span, "tree.insert", started, err)
}

func (s *treeService) insert(ctx context.Context, req ports.InsertRequest) (ports.MutationResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.MutationResult{}, err
	}
	def, err := itemDef(req.Item)
	if err != nil {
		return ports.MutationResult{}, err
	}
	return s.mutate(req.SessionRef, func(t *tree.Tree) (ports.MutationResult, bool, error) {
		id, outcome, err := t.Insert(req.ParentPath, def)
		if err != nil {
			return ports.MutationResult{}, false, err
		}
		return ports.MutationResult{Outcome: outcome.String(), Path: t.FullPath(id)}, outcome != tree.OutcomeUnchanged, nil
	})
}

func (s *treeService) Move(ctx context.Context, req ports.MoveRequest) (ports.MutationResult, error) {
	ctx, span, started := s.start(ctx, "Move", &req.SessionRef)
	defer span.End()
	res, err := s.move(ctx, req)
	if err != nil {
		err = errors.AddContext(err, errors.CtxPath, req.Source)
	}
	return res, s.finish(span, "tree.move", started, err)
}

func (s *treeService) move(ctx context.Context, req ports.MoveRequest) (ports.MutationResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.MutationResult{}, err
	}
	return s.mutate(req.SessionRef, func(t *tree.Tree) (ports.MutationResult, bool, error) {
		src, err := t.Resolve(req.Source)
		if err != nil {
			return ports.MutationResult{}, false, err
		}
		before := t.FullPath(src)
		if err := t.Move(req.Source, req.Destination); err != nil {
			return ports.MutationResult{}, false, err
		}
		after := t.FullPath(src)
		outcome := "moved"
		if after == before {
			outcome = tree.OutcomeUnchanged.String()
		}
		return ports.MutationResult{Outcome: outcome, Path: after}, after != before, nil
	})
}

func (s *treeService) Remove(ctx context.Context, req ports.RemoveRequest) (ports.MutationResult, error) {
	ctx, span, started := s.start(ctx, "Remove", &req.SessionRef)
	defer span.End()
	res, err := s.remove(ctx, req)
	if err != nil {
		err = errors.AddContext(err, errors.CtxPath, req.Path)
	}
	return res, s.finish(span, "tree.remove", started, err)
}

func (s *treeService) remove(ctx context.Context, req ports.RemoveRequest) (ports.MutationResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.MutationResult{}, err
	}
	return s.mutate(req.SessionRef, func(t *tree.Tree) (ports.MutationResult, bool, error) {
		id, err := t.Resolve(req.Path)
		if err != nil {
			return ports.MutationResult{}, false, err
		}
		path := t.FullPath(id)
		n, err := t.Remove(req.Path)
		if err != nil {
			return ports.MutationResult{}, false, err
		}
		return ports.MutationResult{Outcome: "removed", Path: path, Removed: n}, true, nil
	})
}

// mutate runs fn against a clone of the session tree under the session lock
// and swaps the clone in when fn reports a change. Stored trees stay
// immutable, so readers outside the session lock (List) never see a write.
func (s *treeService) mutate(ref ports.SessionRef, fn func(t *tree.Tree) (ports.MutationResult, bool, error)) (ports.MutationResult, error) {
	key, err := sessionKey(ref)
	if err != nil {
		return ports.MutationResult{}, err
	}
	unlock := s.app.locks.Lock(key)
	defer unlock()

	sess, err := s.app.sessions.Get(key)
	if err != nil {
		return ports.MutationResult{}, err
	}
	work := sess.Tree.Clone()
	res, changed, err := fn(work)
	if err != nil {
		return ports.MutationResult{}, err
	}
	if changed {
		sess = s.app.sessions.Put(key, work)
	}
	s.app.trackSession(sess)
	res.Tree = summarize(sess)
	return res, nil
}

func (s *treeService) Render(ctx context.Context, req ports.RenderRequest) (ports.RenderResult, error) {
	ctx, span, started := s.start(ctx, "Render", &req.SessionRef)
	defer span.End()
	res, err := s.render(ctx, req, false)
	return res, s.finish(span, "tree.render", started, err)
}

// Search is Render that reports a missing session as not found instead of
// failing. It never creates a session.
func (s *treeService) Search(ctx context.Context, req ports.RenderRequest) (ports.RenderResult, error) {
	ctx, span, started := s.start(ctx, "Search", &req.SessionRef)
	defer span.End()
	res, err := s.render(ctx, req, true)
	return res, s.finish(span, "tree.search", started, err)
}

func (s *treeService) render(ctx context.Context, req ports.RenderRequest, missingOK bool) (ports.RenderResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.RenderResult{}, err
	}
	key, err := sessionKey(req.SessionRef)
	if err != nil {
		return ports.RenderResult{}, err
	}
	format, err := formats.ParseFormat(req.Format)
	if err != nil {
		return ports.RenderResult{}, err
	}

	unlock := s.app.locks.Lock(key)
	defer unlock()

	sess, err := s.app.sessions.Get(key)
	if err != nil {
		if missingOK && errors.IsCode(err, errors.CodeNotFound) {
			return ports.RenderResult{Found: false, Format: string(format)}, nil
		}
		return ports.RenderResult{}, err
	}
	summary := summarize(sess)
	out := ports.RenderResult{Found: true, Tree: &summary, Format: string(format)}

	rk := session.RenderKey{Session: key, Revision: sess.Revision, Format: string(format)}
	if content, ok := s.app.renders.Get(rk); ok {
		observability.RenderCacheHitsTotal.Inc()
		out.Content = content
		out.Cached = true
		return out, nil
	}
	observability.RenderCacheMissesTotal.Inc()
	content, err := formats.Render(sess.Tree, format)
	if err != nil {
		return ports.RenderResult{}, err
	}
	s.app.renders.Put(rk, content)
	out.Content = content
	return out, nil
}

func (s *treeService) Find(ctx context.Context, req ports.FindRequest) (ports.FindResult, error) {
	ctx, span, started := s.start(ctx, "Find", &req.SessionRef)
	defer span.End()
	res, err := s.find(ctx, req)
	return res, s.finish(span, "tree.find", started, err)
}

func (s *treeService) find(ctx context.Context, req ports.FindRequest) (ports.FindResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.FindResult{}, err
	}
	if strings.TrimSpace(req.Pattern) == "" {
		return ports.FindResult{}, errors.New(errors.CodeValidationError, "pattern is required")
	}
	key, err := sessionKey(req.SessionRef)
	if err != nil {
		return ports.FindResult{}, err
	}
	unlock := s.app.locks.Lock(key)
	defer unlock()

	sess, err := s.app.sessions.Get(key)
	if err != nil {
		return ports.FindResult{}, err
	}
	paths, err := sess.Tree.Find(req.Pattern)
	if err != nil {
		return ports.FindResult{}, err
	}
	if paths == nil {
		paths = []string{}
	}
	return ports.FindResult{Paths: paths}, nil
}

func (s *treeService) Clear(ctx context.Context, ref ports.SessionRef) (bool, error) {
	ctx, span, started := s.start(ctx, "Clear", &ref)
	defer span.End()
	cleared, err := s.clear(ctx, ref)
	return cleared, s.finish(span, "tree.clear", started, err)
}

func (s *treeService) clear(ctx context.Context, ref ports.SessionRef) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	key, err := sessionKey(ref)
	if err != nil {
		return false, err
	}
	unlock := s.app.locks.Lock(key)
	defer unlock()

	if !s.app.sessions.Delete(key) {
		return false, nil
	}
	s.app.renders.Forget(key)
	observability.TreeNodes.DeleteLabelValues(key.String())
	observability.SessionsActive.Set(float64(s.app.sessions.Len()))
	s.app.logger.Info("session cleared", "session", key.String())
	return true, nil
}

func (s *treeService) List(ctx context.Context) ([]ports.TreeSummary, error) {
	_, span, started := s.start(ctx, "List", nil)
	defer span.End()
	if err := ctx.Err(); err != nil {
		return nil, s.finish(span, "tree.list", started, err)
	}
	infos := s.app.sessions.List()
	out := make([]ports.TreeSummary, 0, len(infos))
	for _, info := range infos {
		out = append(out, ports.TreeSummary{
			TreeName:     info.Key.TreeName,
			WorkbookName: info.Key.WorkbookName,
			Nodes:        info.Nodes,
			Revision:     info.Revision,
			CreatedAt:    info.CreatedAt,
			UpdatedAt:    info.UpdatedAt,
		})
	}
	return out, s.finish(span, "tree.list", started, nil)
}

func (s *treeService) Push(ctx context.Context, ref ports.SessionRef) (ports.PushReport, error) {
	ctx, span, started := s.start(ctx, "Push", &ref)
	defer span.End()
	report, err := s.push(ctx, ref)
	return report, s.finish(span, "sync.push", started, err)
}

func (s *treeService) push(ctx context.Context, ref ports.SessionRef) (ports.PushReport, error) {
	if err := ctx.Err(); err != nil {
		return ports.PushReport{}, err
	}
	key, err := sessionKey(ref)
	if err != nil {
		return ports.PushReport{}, err
	}
	unlock := s.app.locks.Lock(key)
	defer unlock()

	sess, err := s.app.sessions.Get(key)
	if err != nil {
		return ports.PushReport{}, err
	}
	req := remote.BuildRequest(sess.Tree, key.WorkbookName)
	report := ports.PushReport{
		PushID:       uuid.NewString(),
		TreeName:     key.TreeName,
		WorkbookName: key.WorkbookName,
		Submitted:    len(req.Items),
		Failed:       []ports.PushFailure{},
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("push_id", report.PushID),
		attribute.Int("submitted", report.Submitted),
	)

	began := s.app.now()
	result, err := s.app.remote.BulkUpsert(ctx, req)
	report.Duration = s.app.now().Sub(began)
	if err != nil {
		observability.PushFailuresTotal.Inc()
		s.app.logger.Warn("push failed", "session", key.String(), "push_id", report.PushID, "error", err)
		s.app.recordPush(report, began, err)
		return ports.PushReport{}, err
	}

	delim := sess.Tree.Delimiter()
	for _, f := range result.Failures {
		segs := append(tree.SplitPath(f.Path, delim), f.Name)
		report.Failed = append(report.Failed, ports.PushFailure{Path: tree.JoinPath(segs, delim), Reason: f.Reason})
	}
	report.Succeeded = result.Succeeded
	observability.PushItemsTotal.WithLabelValues("succeeded").Add(float64(report.Succeeded))
	observability.PushItemsTotal.WithLabelValues("failed").Add(float64(len(report.Failed)))
	s.app.logger.Info("push completed",
		"session", key.String(),
		"push_id", report.PushID,
		"submitted", report.Submitted,
		"succeeded", report.Succeeded,
		"failed", len(report.Failed))
	s.app.recordPush(report, began, nil)
	return report, nil
}

func (s *treeService) RemoteSearch(ctx context.Context, name string) (ports.RemoteSearchResult, error) {
	ctx, span, started := s.start(ctx, "RemoteSearch", nil)
	defer span.End()
	res, err := s.remoteSearch(ctx, name)
	return res, s.finish(span, "sync.remote_search", started, err)
}

func (s *treeService) remoteSearch(ctx context.Context, name string) (ports.RemoteSearchResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.RemoteSearchResult{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ports.RemoteSearchResult{}, errors.New(errors.CodeValidationError, "name is required")
	}
	found, err := s.app.remote.SearchTree(ctx, name)
	if err != nil {
		return ports.RemoteSearchResult{}, err
	}
	return ports.RemoteSearchResult{Found: found != nil, Tree: found}, nil
}

func (s *treeService) PushHistory(ctx context.Context, ref ports.SessionRef, limit int) ([]ledger.PushRecord, error) {
	ctx, span, started := s.start(ctx, "PushHistory", &ref)
	defer span.End()
	rows, err := s.pushHistory(ctx, ref, limit)
	return rows, s.finish(span, "sync.history", started, err)
}

func (s *treeService) pushHistory(ctx context.Context, ref ports.SessionRef, limit int) ([]ledger.PushRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := sessionKey(ref)
	if err != nil {
		return nil, err
	}
	if s.app.ledger == nil {
		return nil, errors.New(errors.CodeNotSupported, "push ledger is disabled (db.enabled = false)")
	}
	rows, err := s.app.ledger.ListPushes(key.TreeName, key.WorkbookName, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "read push ledger")
	}
	if rows == nil {
		rows = []ledger.PushRecord{}
	}
	return rows, nil
}

func (s *treeService) ListTemplates(ctx context.Context) ([]ports.TemplateInfo, error) {
	_, span, started := s.start(ctx, "ListTemplates", nil)
	defer span.End()
	if err := ctx.Err(); err != nil {
		return nil, s.finish(span, "template.list", started, err)
	}
	list := s.app.templates.List()
	out := make([]ports.TemplateInfo, 0, len(list))
	for _, t := range list {
		info := ports.TemplateInfo{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  make([]ports.TemplateParameter, 0, len(t.Parameters)),
			Items:       len(t.Items),
			Source:      t.Source,
		}
		for _, p := range t.Parameters {
			info.Parameters = append(info.Parameters, ports.TemplateParameter{
				Name:        p.Name,
				Description: p.Description,
				Default:     p.Default,
				Required:    p.Required(),
			})
		}
		out = append(out, info)
	}
	return out, s.finish(span, "template.list", started, nil)
}

func (s *treeService) ApplyTemplate(ctx context.Context, req ports.ApplyTemplateRequest) (ports.BuildTreeResult, error) {
	ctx, span, started := s.start(ctx, "ApplyTemplate", &req.SessionRef)
	defer span.End()
	res, err := s.applyTemplate(ctx, req)
	return res, s.finish(span, "template.apply", started, err)
}

func (s *treeService) applyTemplate(ctx context.Context, req ports.ApplyTemplateRequest) (ports.BuildTreeResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.BuildTreeResult{}, err
	}
	key, err := sessionKey(req.SessionRef)
	if err != nil {
		return ports.BuildTreeResult{}, err
	}
	tmpl, err := s.app.templates.Get(req.Template)
	if err != nil {
		return ports.BuildTreeResult{}, err
	}

	unlock := s.app.locks.Lock(key)
	defer unlock()

	sess, err := s.app.sessions.Get(key)
	if err != nil {
		return ports.BuildTreeResult{}, err
	}
	if _, err := sess.Tree.Resolve(req.ParentPath); err != nil {
		return ports.BuildTreeResult{}, err
	}
	items, err := tmpl.Expand(req.Params, req.ParentPath, sess.Tree.Delimiter())
	if err != nil {
		return ports.BuildTreeResult{}, errors.AddContext(err, "template", tmpl.Name)
	}
	sess, stats, err := s.app.applyItems(key, sess.Tree, items, nil)
	if err != nil {
		return ports.BuildTreeResult{}, err
	}
	return ports.BuildTreeResult{Tree: summarize(sess), Stats: stats}, nil
}

// baseTree returns the session tree, or a fresh root when the session does
// not exist yet. Callers hold the session lock.
func (a *App) baseTree(key session.Key) *tree.Tree {
	if sess, err := a.sessions.Get(key); err == nil {
		return sess.Tree
	}
	settings := a.treeSettings()
	return tree.New(key.TreeName, settings.RootDescription, settings.Delimiter)
}

// applyItems builds items onto a copy of base and stores the result. Nothing
// is stored when the build fails. Callers hold the session lock.
func (a *App) applyItems(key session.Key, base *tree.Tree, items []records.ItemRecord, assign records.ParentPathAssignment) (*session.Session, builder.Stats, error) {
	built, stats, err := a.builder.Build(base, items, assign)
	if err != nil {
		return nil, builder.Stats{}, err
	}
	observability.BuildItemsTotal.WithLabelValues("asset_created").Add(float64(stats.AssetsCreated))
	observability.BuildItemsTotal.WithLabelValues("item_created").Add(float64(stats.ItemsCreated))
	observability.BuildItemsTotal.WithLabelValues("item_updated").Add(float64(stats.ItemsUpdated))

	sess, err := a.sessions.Get(key)
	switch {
	case err != nil:
		sess = a.sessions.Put(key, built)
	case stats.Changed():
		sess = a.sessions.Put(key, built)
	}
	a.trackSession(sess)
	return sess, stats, nil
}

func (a *App) roles(in records.ColumnRoles) records.ColumnRoles {
	if in.Group == "" && in.Key == "" && in.Value == "" && len(in.Attrs) == 0 {
		return a.ingestSettings().Roles
	}
	return in
}

func (a *App) resolve(in ports.LookupInput) (dedupe.Resolution, error) {
	recs, err := records.NormalizeLookups(in.Header, in.Rows, a.roles(in.Roles))
	if err != nil {
		return dedupe.Resolution{}, err
	}
	raw := in.Strategy
	if strings.TrimSpace(raw) == "" {
		raw = a.ingestSettings().Strategy
	}
	strategy, err := dedupe.ParseStrategy(raw)
	if err != nil {
		return dedupe.Resolution{}, err
	}
	return dedupe.Resolve(recs, in.Selection, strategy)
}

func (a *App) trackSession(sess *session.Session) {
	if sess == nil {
		return
	}
	observability.TreeNodes.WithLabelValues(sess.Key.String()).Set(float64(sess.Nodes))
	observability.SessionsActive.Set(float64(a.sessions.Len()))
}

func sessionKey(ref ports.SessionRef) (session.Key, error) {
	key, err := session.NewKey(ref.TreeName, ref.WorkbookName)
	if err != nil {
		return session.Key{}, err
	}
	return key, nil
}

func summarize(sess *session.Session) ports.TreeSummary {
	return ports.TreeSummary{
		TreeName:     sess.Key.TreeName,
		WorkbookName: sess.Key.WorkbookName,
		Nodes:        sess.Nodes,
		Revision:     sess.Revision,
		CreatedAt:    sess.CreatedAt,
		UpdatedAt:    sess.UpdatedAt,
	}
}

func itemDef(spec ports.ItemSpec) (tree.ItemDef, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return tree.ItemDef{}, errors.New(errors.CodeValidationError, "item name is required")
	}
	raw := strings.TrimSpace(spec.Type)
	if raw == "" {
		raw = string(tree.TypeAsset)
		if strings.TrimSpace(spec.Formula) != "" {
			raw = string(tree.TypeFormula)
		}
	}
	typ, err := tree.ParseNodeType(raw)
	if err != nil {
		return tree.ItemDef{}, err
	}
	return tree.ItemDef{
		Name:          name,
		Type:          typ,
		Formula:       strings.TrimSpace(spec.Formula),
		FormulaParams: spec.FormulaParams,
		Description:   strings.TrimSpace(spec.Description),
	}, nil
}
