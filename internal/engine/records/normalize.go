// # internal/engine/records/normalize.go
package records

import (
	"assettree/internal/core/errors"
	"assettree/internal/engine/tree"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// NormalizeLookup turns a row into a LookupRecord. Every configured column must
// be part of the header.
func NormalizeLookup(header []string, row Row, roles ColumnRoles) (LookupRecord, error) {
	if err := roles.Validate(); err != nil {
		return LookupRecord{}, err
	}
	if err := requireColumns(header, roles.columns()...); err != nil {
		return LookupRecord{}, err
	}

	rec := LookupRecord{
		Group: FieldOf(row[roles.Group]),
		Key:   FieldOf(row[roles.Key]),
		Value: FieldOf(row[roles.Value]),
	}
	for _, col := range roles.Attrs {
		f := FieldOf(row[col])
		if !f.Valid {
			continue
		}
		if rec.Attrs == nil {
			rec.Attrs = make(map[string]string, len(roles.Attrs))
		}
		rec.Attrs[col] = f.Value
	}
	return rec, nil
}

// NormalizeLookups normalizes rows in order, stamping each record with its row index.
func NormalizeLookups(header []string, rows []Row, roles ColumnRoles) ([]LookupRecord, error) {
	if err := roles.Validate(); err != nil {
		return nil, err
	}
	if err := requireColumns(header, roles.columns()...); err != nil {
		return nil, err
	}
	out := make([]LookupRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := NormalizeLookup(header, row, roles)
		if err != nil {
			return nil, err
		}
		rec.Row = i
		out = append(out, rec)
	}
	return out, nil
}

// Validate checks that the three mandatory roles are assigned.
func (r ColumnRoles) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Group) == "" {
		missing = append(missing, "group_column")
	}
	if strings.TrimSpace(r.Key) == "" {
		missing = append(missing, "key_column")
	}
	if strings.TrimSpace(r.Value) == "" {
		missing = append(missing, "value_column")
	}
	if len(missing) > 0 {
		return errors.New(errors.CodeValidationError, fmt.Sprintf("column roles not assigned: %s", strings.Join(missing, ", ")))
	}
	return nil
}

func (r ColumnRoles) columns() []string {
	cols := []string{r.Group, r.Key, r.Value}
	return append(cols, r.Attrs...)
}

// NormalizeItem turns a row into an ItemRecord. The Name column is required,
// plus either the Path column or a first level column ("Level 1").
func NormalizeItem(header []string, row Row, cols ItemColumns, delimiter string) (ItemRecord, error) {
	cols = cols.WithDefaults()
	levels, err := itemSchema(header, cols)
	if err != nil {
		return ItemRecord{}, err
	}
	return normalizeItem(header, row, cols, levels, delimiter)
}

// NormalizeItems normalizes rows in order, stamping each record with its row index.
func NormalizeItems(header []string, rows []Row, cols ItemColumns, delimiter string) ([]ItemRecord, error) {
	cols = cols.WithDefaults()
	levels, err := itemSchema(header, cols)
	if err != nil {
		return nil, err
	}
	out := make([]ItemRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := normalizeItem(header, row, cols, levels, delimiter)
		if err != nil {
			return nil, errors.AddContext(err, "row", i)
		}
		rec.Row = i
		out = append(out, rec)
	}
	return out, nil
}

func normalizeItem(header []string, row Row, cols ItemColumns, levels []string, delimiter string) (ItemRecord, error) {
	has := headerSet(header)
	rec := ItemRecord{Name: FieldOf(row[cols.Name])}

	if has[cols.Path] {
		rec.Path = FieldOf(row[cols.Path])
	}
	if !rec.Path.Valid && len(levels) > 0 {
		segs := make([]string, 0, len(levels))
		for _, col := range levels {
			if f := FieldOf(row[col]); f.Valid {
				segs = append(segs, f.Value)
			}
		}
		if len(segs) > 0 {
			rec.Path = Present(tree.JoinPath(segs, delimiter))
		}
	}
	if has[cols.Type] {
		rec.Type = FieldOf(row[cols.Type])
	}
	if has[cols.Formula] {
		rec.Formula = FieldOf(row[cols.Formula])
	}
	if has[cols.Group] {
		rec.Group = FieldOf(row[cols.Group])
	}
	if has[cols.Description] {
		rec.Description = FieldOf(row[cols.Description])
	}
	if has[cols.FormulaParams] {
		params, err := ParseFormulaParams(row[cols.FormulaParams])
		if err != nil {
			return ItemRecord{}, err
		}
		rec.FormulaParams = params
	}
	return rec, nil
}

// itemSchema validates the header and returns level columns in numeric order.
func itemSchema(header []string, cols ItemColumns) ([]string, error) {
	has := headerSet(header)
	if !has[cols.Name] {
		return nil, errors.MissingColumn(cols.Name)
	}

	type level struct {
		n   int
		col string
	}
	var found []level
	for _, col := range header {
		rest, ok := strings.CutPrefix(col, cols.LevelPrefix)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil || n < 1 {
			continue
		}
		found = append(found, level{n: n, col: col})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	if !has[cols.Path] && (len(found) == 0 || found[0].n != 1) {
		return nil, errors.MissingColumn(cols.Path, strings.TrimSpace(cols.LevelPrefix)+" 1")
	}
	levels := make([]string, len(found))
	for i, l := range found {
		levels[i] = l.col
	}
	return levels, nil
}

func requireColumns(header []string, cols ...string) error {
	has := headerSet(header)
	var missing []string
	for _, col := range cols {
		if !has[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return errors.MissingColumn(missing...)
	}
	return nil
}

func headerSet(header []string) map[string]bool {
	set := make(map[string]bool, len(header))
	for _, h := range header {
		set[h] = true
	}
	return set
}

// ParseFormulaParams accepts a JSON object ({"$a": "Area >> Temp"}), the same
// with single quotes, or name=reference pairs separated by ';' or newlines.
func ParseFormulaParams(raw string) (map[string]string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, nil
	}

	if strings.HasPrefix(text, "{") {
		params, err := decodeParamObject(text)
		if err != nil {
			params, err = decodeParamObject(strings.ReplaceAll(text, "'", `"`))
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, "formula parameters are not a valid object")
		}
		return params, nil
	}

	params := make(map[string]string)
	for _, part := range strings.FieldsFunc(text, func(r rune) bool { return r == ';' || r == '\n' }) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, ref, ok := strings.Cut(part, "=")
		name, ref = strings.TrimSpace(name), strings.TrimSpace(ref)
		if !ok || name == "" || ref == "" {
			return nil, errors.New(errors.CodeValidationError, fmt.Sprintf("formula parameter %q must be name=reference", part))
		}
		params[name] = ref
	}
	if len(params) == 0 {
		return nil, nil
	}
	return params, nil
}

func decodeParamObject(text string) (map[string]string, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, err
	}
	if len(obj) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(obj))
	for k, v := range obj {
		switch typed := v.(type) {
		case string:
			params[k] = typed
		case nil:
			return nil, fmt.Errorf("parameter %q has no reference", k)
		default:
			params[k] = fmt.Sprint(typed)
		}
	}
	return params, nil
}
