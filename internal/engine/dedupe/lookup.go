// # internal/engine/dedupe/lookup.go
package dedupe

import (
	"assettree/internal/engine/records"
	"strings"
)

const lookupSuffix = "_LookupString"

// LookupItemName derives the lookup item name for a group, e.g.
// "Area A" -> "Area_A_LookupString".
func LookupItemName(group string) string {
	return strings.ReplaceAll(group, " ", "_") + lookupSuffix
}

// BuildLookupItems emits one Formula item per group whose formula is the list
// of the group's (key, value) pairs. The parent path comes from the
// assignment, falling back to defaultParent ("" means the root).
func BuildLookupItems(res Resolution, assign records.ParentPathAssignment, defaultParent string) []records.ItemRecord {
	type pair struct{ key, value string }
	byGroup := make(map[string][]pair)
	seen := make(map[string]map[pair]bool)
	var order []string
	for _, rec := range res.Records {
		g := rec.Group.Value
		if _, ok := byGroup[g]; !ok {
			order = append(order, g)
			seen[g] = make(map[pair]bool)
			byGroup[g] = nil
		}
		p := pair{key: rec.Key.Value, value: rec.Value.Value}
		if seen[g][p] {
			continue
		}
		seen[g][p] = true
		byGroup[g] = append(byGroup[g], p)
	}

	items := make([]records.ItemRecord, 0, len(order))
	for _, g := range order {
		var b strings.Builder
		b.WriteByte('[')
		for i, p := range byGroup[g] {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('[')
			b.WriteString(quote(p.key))
			b.WriteString(", ")
			b.WriteString(quote(p.value))
			b.WriteByte(']')
		}
		b.WriteByte(']')

		group := records.FieldOf(g)
		parent, ok := assign.For(group)
		if !ok {
			parent = defaultParent
		}
		items = append(items, records.ItemRecord{
			Path:    records.FieldOf(parent),
			Name:    records.Present(LookupItemName(g)),
			Type:    records.Present("Formula"),
			Formula: records.Present(b.String()),
			Group:   group,
		})
	}
	return items
}

// quote renders s as a single-quoted list literal, switching to double quotes
// when s contains a single quote and no double quote.
func quote(s string) string {
	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}
	var b strings.Builder
	b.WriteByte(q)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' || c == q:
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(q)
	return b.String()
}
