// # internal/engine/tree/tree_test.go
package tree

import (
	"assettree/internal/core/errors"
	stderrors "errors"
	"slices"
	"strings"
	"testing"
)

func newTestTree(t *testing.T) *Tree {
	t.Helper()
	tr := New("T1", "", "/")
	mustInsert(t, tr, "", ItemDef{Name: "Area1", Type: TypeAsset})
	mustInsert(t, tr, "Area1", ItemDef{Name: "Pump1", Type: TypeAsset})
	mustInsert(t, tr, "Area1", ItemDef{Name: "Pump2", Type: TypeAsset})
	mustInsert(t, tr, "Area1/Pump1", ItemDef{Name: "Temp", Type: TypeSignal})
	mustInsert(t, tr, "", ItemDef{Name: "Area2", Type: TypeAsset})
	return tr
}

func mustInsert(t *testing.T, tr *Tree, parent string, def ItemDef) NodeID {
	t.Helper()
	id, _, err := tr.Insert(parent, def)
	if err != nil {
		t.Fatalf("insert %q under %q: %v", def.Name, parent, err)
	}
	return id
}

func TestParseNodeType(t *testing.T) {
	tests := []struct {
		raw  string
		want NodeType
	}{
		{"Asset", TypeAsset},
		{"signal", TypeSignal},
		{"Calculations", TypeFormula},
		{"CalculatedSignal", TypeSignal},
		{"Calculated Condition", TypeCondition},
		{"ThresholdMetric", TypeMetric},
		{" Scalar ", TypeScalar},
	}
	for _, tt := range tests {
		got, err := ParseNodeType(tt.raw)
		if err != nil {
			t.Fatalf("ParseNodeType(%q): %v", tt.raw, err)
		}
		if got != tt.want {
			t.Errorf("ParseNodeType(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}

	if _, err := ParseNodeType("Widget"); !stderrors.Is(err, errors.ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestRemoteType(t *testing.T) {
	if got := RemoteType(TypeFormula, true); got != "CalculatedSignal" {
		t.Errorf("formula remote type = %s", got)
	}
	if got := RemoteType(TypeSignal, false); got != "Signal" {
		t.Errorf("signal remote type = %s", got)
	}
	if got := RemoteType(TypeCondition, true); got != "CalculatedCondition" {
		t.Errorf("calculated condition remote type = %s", got)
	}
}

func TestInsertIntoEmptyTreeRendersChild(t *testing.T) {
	tr := New("T1", "", "/")
	mustInsert(t, tr, "", ItemDef{Name: "Pump1", Type: TypeAsset})

	got := slices.Collect(tr.Lines())
	want := []string{"T1 (Asset)", "  Pump1 (Asset)"}
	if !slices.Equal(got, want) {
		t.Fatalf("lines = %q, want %q", got, want)
	}
}

func TestLinesIsRestartable(t *testing.T) {
	tr := newTestTree(t)
	first := slices.Collect(tr.Lines())
	second := slices.Collect(tr.Lines())
	if !slices.Equal(first, second) {
		t.Fatalf("expected identical traversals, got %q and %q", first, second)
	}
	for line := range tr.Lines() {
		if !strings.Contains(line, "(") {
			t.Fatalf("line without type: %q", line)
		}
		break
	}
}

func TestPathIsAncestorNames(t *testing.T) {
	tr := newTestTree(t)
	id, err := tr.Resolve("Area1/Pump1/Temp")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := tr.Path(id); got != "T1/Area1/Pump1" {
		t.Errorf("path = %q", got)
	}
	if got := tr.FullPath(id); got != "T1/Area1/Pump1/Temp" {
		t.Errorf("full path = %q", got)
	}
	if got := tr.Address(id); got != "Area1/Pump1/Temp" {
		t.Errorf("address = %q", got)
	}

	// root-name prefix is accepted
	again, err := tr.Resolve("T1/Area1/Pump1/Temp")
	if err != nil || again != id {
		t.Fatalf("expected root-prefixed resolve to find %d, got %d (%v)", id, again, err)
	}
}

func TestDefaultDelimiterDisplay(t *testing.T) {
	tr := New("Example", "", "")
	area := mustInsert(t, tr, "", ItemDef{Name: "Cooling Tower 1", Type: TypeAsset})
	mustInsert(t, tr, "Cooling Tower 1", ItemDef{Name: "Area A", Type: TypeAsset})
	id, err := tr.Resolve("Example >> Cooling Tower 1>>Area A")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := tr.Path(id); got != "Example >> Cooling Tower 1" {
		t.Errorf("path = %q", got)
	}
	if got := tr.Path(area); got != "Example" {
		t.Errorf("area path = %q", got)
	}
}

func TestInsertSiblingCollision(t *testing.T) {
	tr := newTestTree(t)
	before := tr.Text()

	_, _, err := tr.Insert("Area1/Pump1", ItemDef{Name: "Temp", Type: TypeCondition})
	if !stderrors.Is(err, errors.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
	if tr.Text() != before {
		t.Fatal("tree changed after failed insert")
	}

	id, outcome, err := tr.Insert("Area1/Pump1", ItemDef{Name: "Temp", Type: TypeSignal, Formula: "$a + 1", FormulaParams: map[string]string{"$a": "Area2"}})
	if err != nil {
		t.Fatalf("same-type insert: %v", err)
	}
	if outcome != OutcomeUpdated {
		t.Fatalf("expected update in place, got %s", outcome)
	}
	n, _ := tr.Node(id)
	if n.Formula() != "$a + 1" || n.FormulaParams()["$a"] != "Area2" {
		t.Fatalf("expected formula to be overwritten, got %q %v", n.Formula(), n.FormulaParams())
	}
	if tr.Len() != 6 {
		t.Fatalf("expected 6 nodes, got %d", tr.Len())
	}
}

func TestInsertErrors(t *testing.T) {
	tr := newTestTree(t)
	before := tr.Text()

	tests := []struct {
		name   string
		parent string
		def    ItemDef
		kind   error
	}{
		{"missing parent", "Area9", ItemDef{Name: "X", Type: TypeAsset}, errors.ErrPathNotFound},
		{"non-asset parent", "Area1/Pump1/Temp", ItemDef{Name: "X", Type: TypeSignal}, errors.ErrInvalidParentPath},
		{"unknown type", "Area1", ItemDef{Name: "X", Type: "Widget"}, errors.ErrInvalidType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tr.Insert(tt.parent, tt.def)
			if !stderrors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
			if tr.Text() != before {
				t.Fatal("tree changed after failed insert")
			}
		})
	}

	if _, _, err := tr.Insert("", ItemDef{Name: "  ", Type: TypeAsset}); !errors.IsCode(err, errors.CodeValidationError) {
		t.Fatalf("expected validation error for empty name, got %v", err)
	}
	if _, _, err := tr.Insert("", ItemDef{Name: "a/b", Type: TypeAsset}); !errors.IsCode(err, errors.CodeValidationError) {
		t.Fatalf("expected validation error for delimiter in name, got %v", err)
	}
}

func TestMoveIntoOwnSubtreeIsCyclic(t *testing.T) {
	tr := New("T1", "", "/")
	mustInsert(t, tr, "", ItemDef{Name: "Area1", Type: TypeAsset})
	mustInsert(t, tr, "Area1", ItemDef{Name: "Pump1", Type: TypeAsset})
	before := tr.Text()

	err := tr.Move("Area1/Pump1", "Area1/Pump1/Sub")
	if !stderrors.Is(err, errors.ErrCyclicMove) {
		t.Fatalf("expected ErrCyclicMove, got %v", err)
	}
	if tr.Text() != before {
		t.Fatal("tree changed after failed move")
	}

	if err := tr.Move("Area1", "Area1/Pump1"); !stderrors.Is(err, errors.ErrCyclicMove) {
		t.Fatalf("expected ErrCyclicMove for existing descendant, got %v", err)
	}
	if err := tr.Move("Area1", "Area1"); !stderrors.Is(err, errors.ErrCyclicMove) {
		t.Fatalf("expected ErrCyclicMove for self, got %v", err)
	}
}

func TestMoveReparentsSubtree(t *testing.T) {
	tr := newTestTree(t)
	temp, _ := tr.Resolve("Area1/Pump1/Temp")

	if err := tr.Move("Area1/Pump1", "Area2"); err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := tr.Path(temp); got != "T1/Area2/Pump1" {
		t.Fatalf("descendant path not recomputed: %q", got)
	}
	if _, err := tr.Resolve("Area1/Pump1"); !stderrors.Is(err, errors.ErrPathNotFound) {
		t.Fatalf("old location should be gone, got %v", err)
	}

	for _, n := range tr.Walk() {
		want := tr.ancestors(n.ID())
		if tr.Path(n.ID()) != JoinPath(want, "/") {
			t.Fatalf("path invariant broken for %s", n.Name())
		}
	}
}

func TestMoveErrorsLeaveTreeUnchanged(t *testing.T) {
	tr := newTestTree(t)
	mustInsert(t, tr, "Area2", ItemDef{Name: "Pump1", Type: TypeAsset})
	before := tr.Text()

	tests := []struct {
		name     string
		src, dst string
		kind     error
	}{
		{"missing source", "Area1/Pump9", "Area2", errors.ErrPathNotFound},
		{"missing destination", "Area1/Pump1", "Area7", errors.ErrPathNotFound},
		{"name taken", "Area1/Pump1", "Area2", errors.ErrDuplicateName},
		{"signal destination", "Area1/Pump2", "Area1/Pump1/Temp", errors.ErrInvalidParentPath},
		{"root", "", "Area2", errors.ErrRootImmutable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tr.Move(tt.src, tt.dst)
			if !stderrors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
			if tr.Text() != before {
				t.Fatal("tree changed after failed move")
			}
		})
	}
}

func TestRemoveDestroysDescendants(t *testing.T) {
	tr := newTestTree(t)
	pump1, _ := tr.Resolve("Area1/Pump1")

	removed, err := tr.Remove("Area1")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed != 4 {
		t.Fatalf("expected 4 removed nodes, got %d", removed)
	}
	text := tr.Text()
	for _, name := range []string{"Area1", "Pump1", "Pump2", "Temp"} {
		if strings.Contains(text, name) {
			t.Fatalf("render still mentions %s:\n%s", name, text)
		}
	}
	if _, ok := tr.Node(pump1); ok {
		t.Fatal("descendant node still addressable by id")
	}

	if _, err := tr.Remove("Area1"); !stderrors.Is(err, errors.ErrPathNotFound) {
		t.Fatalf("expected ErrPathNotFound, got %v", err)
	}
	if _, err := tr.Remove(""); !stderrors.Is(err, errors.ErrRootImmutable) {
		t.Fatalf("expected ErrRootImmutable, got %v", err)
	}
}

func TestIDsAreNeverReused(t *testing.T) {
	tr := New("T1", "", "/")
	first := mustInsert(t, tr, "", ItemDef{Name: "A", Type: TypeAsset})
	if _, err := tr.Remove("A"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	second := mustInsert(t, tr, "", ItemDef{Name: "A", Type: TypeAsset})
	if second <= first {
		t.Fatalf("expected fresh id greater than %d, got %d", first, second)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	tr := newTestTree(t)
	c := tr.Clone()
	if _, err := c.Remove("Area1"); err != nil {
		t.Fatalf("remove on clone: %v", err)
	}
	if _, err := tr.Resolve("Area1/Pump1/Temp"); err != nil {
		t.Fatalf("original lost node after clone mutation: %v", err)
	}
	if c.Len() == tr.Len() {
		t.Fatal("expected clone to diverge")
	}
}

func TestFindAndNested(t *testing.T) {
	tr := newTestTree(t)
	paths, err := tr.Find("Pump*")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	want := []string{"T1/Area1/Pump1", "T1/Area1/Pump2"}
	if !slices.Equal(paths, want) {
		t.Fatalf("find = %q, want %q", paths, want)
	}

	nested := tr.Nested()
	if nested.Name != "T1" || len(nested.Children) != 2 {
		t.Fatalf("unexpected nested root: %+v", nested)
	}
	if nested.Children[0].Children[0].Children[0].Type != TypeSignal {
		t.Fatalf("expected Temp signal at depth 3")
	}
}
