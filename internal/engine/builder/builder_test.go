// # internal/engine/builder/builder_test.go
package builder

import (
	"assettree/internal/core/errors"
	"assettree/internal/engine/records"
	"assettree/internal/engine/tree"
	stderrors "errors"
	"slices"
	"testing"
)

func item(path, name, typ, formula string) records.ItemRecord {
	return records.ItemRecord{
		Path:    records.FieldOf(path),
		Name:    records.FieldOf(name),
		Type:    records.FieldOf(typ),
		Formula: records.FieldOf(formula),
	}
}

func TestBuildCreatesIntermediateAssets(t *testing.T) {
	base := tree.New("T1", "", "/")
	items := []records.ItemRecord{
		item("Plant/Area A", "Temperature", "Signal", ""),
		item("Plant/Area A", "Hot", "Condition", "$t > 80"),
		item("T1/Plant/Area B", "Flow", "", "$a + 1"),
	}

	got, stats, err := New(nil).Build(base, items, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := []string{
		"T1 (Asset)",
		"  Plant (Asset)",
		"    Area A (Asset)",
		"      Temperature (Signal)",
		"      Hot (Condition)",
		"    Area B (Asset)",
		"      Flow (Formula)",
	}
	if lines := slices.Collect(got.Lines()); !slices.Equal(lines, want) {
		t.Fatalf("lines = %q, want %q", lines, want)
	}
	if stats.AssetsCreated != 3 || stats.ItemsCreated != 3 || stats.ItemsUpdated != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if base.Len() != 1 {
		t.Fatalf("base tree was modified: %d nodes", base.Len())
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	items := []records.ItemRecord{
		item("Plant/Area A", "Temperature", "Signal", ""),
		item("Plant", "Area A", "Asset", ""),
		item("Plant/Area A", "Hot", "Condition", "$t > 80"),
	}
	b := New(nil)
	first, _, err := b.Build(tree.New("T1", "", "/"), items, nil)
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	second, stats, err := b.Build(first, items, nil)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if stats.Changed() {
		t.Fatalf("rebuild changed the tree: %+v", stats)
	}
	if first.Text() != second.Text() || first.Len() != second.Len() {
		t.Fatalf("rebuild differs:\n%s\nvs\n%s", first.Text(), second.Text())
	}
}

func TestBuildUsesParentPathAssignment(t *testing.T) {
	rec := item("Ignored/Path", "A_LookupString", "Formula", "[['Temp', '10']]")
	rec.Group = records.Present("A")

	got, _, err := New(nil).Build(tree.New("T1", "", "/"), []records.ItemRecord{rec},
		records.ParentPathAssignment{"A": "Area1"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	id, err := got.Resolve("Area1/A_LookupString")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	n, _ := got.Node(id)
	if n.Formula() != "[['Temp', '10']]" {
		t.Fatalf("formula = %q", n.Formula())
	}
	if _, err := got.Resolve("Ignored"); err == nil {
		t.Fatal("record path must not be used when an assignment exists")
	}
}

func TestBuildUpdatesSameTypeLeaf(t *testing.T) {
	b := New(nil)
	first, _, err := b.Build(tree.New("T1", "", "/"), []records.ItemRecord{item("A", "X", "Formula", "1")}, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	second, stats, err := b.Build(first, []records.ItemRecord{item("A", "X", "Formula", "2")}, nil)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if stats.ItemsUpdated != 1 || stats.ItemsCreated != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	id, _ := second.Resolve("A/X")
	n, _ := second.Node(id)
	if n.Formula() != "2" {
		t.Fatalf("formula = %q", n.Formula())
	}
}

func TestBuildErrorsLeaveBaseUntouched(t *testing.T) {
	tests := []struct {
		name  string
		items []records.ItemRecord
		kind  error
	}{
		{
			name: "non-asset intermediate",
			items: []records.ItemRecord{
				item("A", "X", "Signal", ""),
				item("A/X", "Y", "Signal", ""),
			},
			kind: errors.ErrInvalidParentPath,
		},
		{
			name: "same name other type",
			items: []records.ItemRecord{
				item("A", "X", "Signal", ""),
				item("A", "X", "Scalar", ""),
			},
			kind: errors.ErrDuplicateName,
		},
		{
			name:  "unknown type",
			items: []records.ItemRecord{item("A", "X", "Gadget", "")},
			kind:  errors.ErrInvalidType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := tree.New("T1", "", "/")
			before := base.Text()
			_, _, err := New(nil).Build(base, tt.items, nil)
			if !stderrors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
			if base.Text() != before {
				t.Fatalf("base changed:\n%s", base.Text())
			}
		})
	}
}

func TestBuildRequiresName(t *testing.T) {
	_, _, err := New(nil).Build(tree.New("T1", "", "/"), []records.ItemRecord{item("A", "", "Signal", "")}, nil)
	if !errors.IsCode(err, errors.CodeValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
