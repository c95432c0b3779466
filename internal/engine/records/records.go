// # internal/engine/records/records.go
package records

import (
	"strings"
)

// Row is one parsed tabular row keyed by column name.
type Row map[string]string

// Field is an optional trimmed value. Empty input yields an absent field.
type Field struct {
	Value string
	Valid bool
}

func FieldOf(raw string) Field {
	v := strings.TrimSpace(raw)
	return Field{Value: v, Valid: v != ""}
}

func Present(v string) Field { return Field{Value: v, Valid: true} }

// Or returns the value, or fallback when absent.
func (f Field) Or(fallback string) string {
	if f.Valid {
		return f.Value
	}
	return fallback
}

// ColumnRoles assigns lookup-workflow meaning to columns.
type ColumnRoles struct {
	Group string   `json:"group_column" toml:"group_column"`
	Key   string   `json:"key_column" toml:"key_column"`
	Value string   `json:"value_column" toml:"value_column"`
	Attrs []string `json:"attr_columns,omitempty" toml:"attr_columns"`
}

// LookupRecord is the canonical form of a lookup-workflow row.
type LookupRecord struct {
	Row   int
	Group Field
	Key   Field
	Value Field
	Attrs map[string]string
}

// GroupIdentity is the (group, key) pair duplicate detection buckets on.
type GroupIdentity struct {
	Group string
	Key   string
}

// String is the display form, e.g. "A/Temp". Distinct identities can share
// it when a group or key contains "/".
func (id GroupIdentity) String() string {
	return id.Group + "/" + id.Key
}

func (r LookupRecord) Identity() GroupIdentity {
	return GroupIdentity{Group: r.Group.Value, Key: r.Key.Value}
}

// GroupKey is the display form of Identity.
func (r LookupRecord) GroupKey() string {
	return r.Identity().String()
}

// ItemColumns names the columns of the item (non-lookup) workflow.
type ItemColumns struct {
	Path          string `json:"path" toml:"path"`
	LevelPrefix   string `json:"level_prefix" toml:"level_prefix"`
	Name          string `json:"name" toml:"name"`
	Type          string `json:"type" toml:"type"`
	Formula       string `json:"formula" toml:"formula"`
	FormulaParams string `json:"formula_params" toml:"formula_params"`
	Group         string `json:"group" toml:"group"`
	Description   string `json:"description" toml:"description"`
}

func DefaultItemColumns() ItemColumns {
	return ItemColumns{
		Path:          "Path",
		LevelPrefix:   "Level ",
		Name:          "Name",
		Type:          "Type",
		Formula:       "Formula",
		FormulaParams: "Formula Parameters",
		Group:         "Group",
		Description:   "Description",
	}
}

// WithDefaults fills unset column names.
func (c ItemColumns) WithDefaults() ItemColumns {
	d := DefaultItemColumns()
	if strings.TrimSpace(c.Path) == "" {
		c.Path = d.Path
	}
	if c.LevelPrefix == "" {
		c.LevelPrefix = d.LevelPrefix
	}
	if strings.TrimSpace(c.Name) == "" {
		c.Name = d.Name
	}
	if strings.TrimSpace(c.Type) == "" {
		c.Type = d.Type
	}
	if strings.TrimSpace(c.Formula) == "" {
		c.Formula = d.Formula
	}
	if strings.TrimSpace(c.FormulaParams) == "" {
		c.FormulaParams = d.FormulaParams
	}
	if strings.TrimSpace(c.Group) == "" {
		c.Group = d.Group
	}
	if strings.TrimSpace(c.Description) == "" {
		c.Description = d.Description
	}
	return c
}

// ItemRecord is the canonical form of a row destined for the tree builder.
type ItemRecord struct {
	Row           int
	Path          Field
	Name          Field
	Type          Field
	Formula       Field
	FormulaParams map[string]string
	Group         Field
	Description   Field
}

// ParentPathAssignment maps a group identifier to the parent path its items
// attach under.
type ParentPathAssignment map[string]string

// For returns the assigned parent path for group, if any.
func (a ParentPathAssignment) For(group Field) (string, bool) {
	if !group.Valid || a == nil {
		return "", false
	}
	p, ok := a[group.Value]
	return p, ok
}
