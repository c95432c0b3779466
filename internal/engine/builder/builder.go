// # internal/engine/builder/builder.go

// Package builder turns normalized item records into an asset tree.
package builder

import (
	"assettree/internal/core/errors"
	"assettree/internal/engine/records"
	"assettree/internal/engine/tree"
	"log/slog"
)

type Stats struct {
	AssetsCreated int `json:"assets_created"`
	ItemsCreated  int `json:"items_created"`
	ItemsUpdated  int `json:"items_updated"`
}

func (s Stats) Changed() bool {
	return s.AssetsCreated+s.ItemsCreated+s.ItemsUpdated > 0
}

type Builder struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger}
}

// Build applies items to a copy of base and returns the copy. base is never
// modified; on error the caller keeps its original tree.
func (b *Builder) Build(base *tree.Tree, items []records.ItemRecord, assign records.ParentPathAssignment) (*tree.Tree, Stats, error) {
	t := base.Clone()
	var stats Stats
	for _, rec := range items {
		if err := b.apply(t, rec, assign, &stats); err != nil {
			return nil, Stats{}, errors.AddContext(err, "row", rec.Row)
		}
	}
	b.logger.Debug("tree built",
		"tree", t.Name(),
		"items", len(items),
		"assets_created", stats.AssetsCreated,
		"items_created", stats.ItemsCreated,
		"items_updated", stats.ItemsUpdated)
	return t, stats, nil
}

func (b *Builder) apply(t *tree.Tree, rec records.ItemRecord, assign records.ParentPathAssignment, stats *Stats) error {
	if !rec.Name.Valid {
		return errors.New(errors.CodeValidationError, "item name is required")
	}
	typ, err := itemType(rec)
	if err != nil {
		return err
	}

	parentPath, ok := assign.For(rec.Group)
	if !ok {
		parentPath = rec.Path.Value
	}
	parent, err := b.ensureParent(t, parentPath, stats)
	if err != nil {
		return err
	}

	def := tree.ItemDef{
		Name:          rec.Name.Value,
		Type:          typ,
		Formula:       rec.Formula.Value,
		FormulaParams: rec.FormulaParams,
		Description:   rec.Description.Value,
	}
	if typ == tree.TypeAsset {
		return b.applyAsset(t, parent, def, stats)
	}

	_, outcome, err := t.Upsert(parent, def)
	if err != nil {
		return err
	}
	switch outcome {
	case tree.OutcomeCreated:
		stats.ItemsCreated++
	case tree.OutcomeUpdated:
		stats.ItemsUpdated++
	}
	return nil
}

// applyAsset lets an Asset row name a node that an earlier row already created
// as an intermediate; only the description is taken from the row.
func (b *Builder) applyAsset(t *tree.Tree, parent tree.NodeID, def tree.ItemDef, stats *Stats) error {
	if existing, ok := t.Child(parent, def.Name); ok {
		if n, _ := t.Node(existing); n.Type() == tree.TypeAsset {
			def.Formula = n.Formula()
			def.FormulaParams = n.FormulaParams()
		}
	}
	_, outcome, err := t.Upsert(parent, def)
	if err != nil {
		return err
	}
	switch outcome {
	case tree.OutcomeCreated:
		stats.AssetsCreated++
	case tree.OutcomeUpdated:
		stats.ItemsUpdated++
	}
	return nil
}

// ensureParent walks path from the root, creating missing Assets. A leading
// segment naming the root is dropped when the root has no such child.
func (b *Builder) ensureParent(t *tree.Tree, path string, stats *Stats) (tree.NodeID, error) {
	root := t.Root().ID()
	segs := t.SplitPath(path)
	if len(segs) > 0 && segs[0] == t.Name() {
		if _, ok := t.Child(root, segs[0]); !ok {
			segs = segs[1:]
		}
	}

	current := root
	for _, seg := range segs {
		id, created, err := t.EnsureAsset(current, seg)
		if err != nil {
			return 0, errors.AddContext(err, errors.CtxPath, path)
		}
		if created {
			stats.AssetsCreated++
		}
		current = id
	}
	return current, nil
}

// itemType parses the Type column. Without one, rows carrying a formula are
// Formulas and everything else is an Asset.
func itemType(rec records.ItemRecord) (tree.NodeType, error) {
	if rec.Type.Valid {
		return tree.ParseNodeType(rec.Type.Value)
	}
	if rec.Formula.Valid {
		return tree.TypeFormula, nil
	}
	return tree.TypeAsset, nil
}
