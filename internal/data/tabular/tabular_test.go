package tabular

import (
	"assettree/internal/core/errors"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadStripsBOMAndSkipsBlankRows(t *testing.T) {
	input := "\ufeffGroup,Key,Value\nA,Temp,10\n,,\nA,Temp,20\n"
	tbl, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(tbl.Header) != 3 || tbl.Header[0] != "Group" {
		t.Fatalf("header = %q", tbl.Header)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(tbl.Rows))
	}
	if tbl.Rows[1]["Value"] != "20" {
		t.Fatalf("row = %v", tbl.Rows[1])
	}
}

func TestReadRejectsRaggedRows(t *testing.T) {
	_, err := Read(strings.NewReader("Name,Type\nTemp,Signal\nBroken\n"))
	if !errors.IsCode(err, errors.CodeValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var de *errors.DomainError
	if !stderrors.As(err, &de) || de.Context["line"] != 3 {
		t.Fatalf("expected line 3 in context, got %v", err)
	}
}

func TestReadHeaderRules(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"duplicate column", "Name,Name\na,b\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Read(strings.NewReader(tt.input)); !errors.IsCode(err, errors.CodeValidationError) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestReadDropsUnnamedColumns(t *testing.T) {
	tbl, err := Read(strings.NewReader("Name,,Type\nTemp,x,Signal\n"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(tbl.Header) != 2 {
		t.Fatalf("header = %q", tbl.Header)
	}
	if _, ok := tbl.Rows[0][""]; ok {
		t.Fatal("unnamed column must not appear in rows")
	}
}

func TestReadFileAndFromRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.csv")
	if err := os.WriteFile(path, []byte("Path,Name\n\"Plant, North\",Temp\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	tbl, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if tbl.Rows[0]["Path"] != "Plant, North" {
		t.Fatalf("row = %v", tbl.Rows[0])
	}

	built, err := FromRecords([]string{"Path", "Name"}, [][]string{{"Plant, North", "Temp"}})
	if err != nil {
		t.Fatalf("from records: %v", err)
	}
	if built.Rows[0]["Name"] != "Temp" || built.Rows[0]["Path"] != "Plant, North" {
		t.Fatalf("row = %v", built.Rows[0])
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
