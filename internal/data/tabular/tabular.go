// # internal/data/tabular/tabular.go

// Package tabular reads CSV input into header-keyed rows.
package tabular

import (
	"assettree/internal/core/errors"
	"assettree/internal/engine/records"
	"bufio"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const bom = "\ufeff"

// Table is a parsed CSV document. Columns with an empty header are dropped.
type Table struct {
	Header []string
	Rows   []records.Row
}

// Read parses CSV from r. The first record is the header; every data row must
// have the same number of fields as the header.
func Read(r io.Reader) (Table, error) {
	br := bufio.NewReader(r)
	if lead, err := br.Peek(len(bom)); err == nil && string(lead) == bom {
		_, _ = br.Discard(len(bom))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = 0
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if stderrors.Is(err, io.EOF) {
		return Table{}, errors.New(errors.CodeValidationError, "csv input is empty, a header row is required")
	}
	if err != nil {
		return Table{}, wrapParseError(err)
	}

	cols := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	var names []string
	for i, h := range header {
		h = strings.TrimSpace(h)
		cols[i] = h
		if h == "" {
			continue
		}
		if seen[h] {
			return Table{}, errors.New(errors.CodeValidationError, fmt.Sprintf("duplicate column %q in csv header", h))
		}
		seen[h] = true
		names = append(names, h)
	}

	t := Table{Header: names}
	for {
		rec, err := cr.Read()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, wrapParseError(err)
		}
		if blank(rec) {
			continue
		}
		row := make(records.Row, len(names))
		for i, v := range rec {
			if cols[i] != "" {
				row[cols[i]] = v
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// ReadFile parses the CSV file at path.
func ReadFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("open csv %q: %w", path, err)
	}
	defer f.Close()
	t, err := Read(f)
	if err != nil {
		return Table{}, errors.AddContext(err, errors.CtxPath, path)
	}
	return t, nil
}

// FromRecords builds a table from a header and raw string rows, applying the
// same header rules as Read.
func FromRecords(header []string, rows [][]string) (Table, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write(header); err != nil {
		return Table{}, fmt.Errorf("encode header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return Table{}, fmt.Errorf("encode rows: %w", err)
	}
	return Read(strings.NewReader(b.String()))
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func wrapParseError(err error) error {
	var pe *csv.ParseError
	if stderrors.As(err, &pe) {
		return errors.AddContext(errors.Wrap(err, errors.CodeValidationError,
			fmt.Sprintf("malformed csv at line %d", pe.StartLine)), "line", pe.StartLine)
	}
	return errors.Wrap(err, errors.CodeValidationError, "malformed csv")
}
