// # internal/engine/dedupe/resolver.go
package dedupe

import (
	"assettree/internal/core/errors"
	"assettree/internal/engine/records"
	"fmt"
	"strings"
)

type Strategy string

const (
	StrategyUserSpecific Strategy = "user_specific"
	StrategyKeepFirst    Strategy = "keep_first"
	StrategyKeepLast     Strategy = "keep_last"
	StrategyRemoveAll    Strategy = "remove_all"
)

func ParseStrategy(raw string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return StrategyUserSpecific, nil
	case StrategyUserSpecific, StrategyKeepFirst, StrategyKeepLast, StrategyRemoveAll:
		return s, nil
	default:
		return "", errors.New(errors.CodeValidationError,
			fmt.Sprintf("unknown duplicate strategy %q (want user_specific, keep_first, keep_last or remove_all)", raw))
	}
}

type Candidate struct {
	Position int                  `json:"position"`
	Record   records.LookupRecord `json:"-"`
}

// DuplicateGroup is a set of records sharing (group, key) but disagreeing on value.
type DuplicateGroup struct {
	GroupKey   string
	Group      string
	Key        string
	Candidates []Candidate
}

// Values lists the distinct candidate values in first-seen order.
func (g *DuplicateGroup) Values() []string {
	return distinctValues(g.Candidates)
}

type Detection struct {
	Groups map[records.GroupIdentity]*DuplicateGroup
	Order  []records.GroupIdentity
}

func (d Detection) Len() int { return len(d.Order) }

// Detect reports every (group, key) with more than one distinct value.
func Detect(recs []records.LookupRecord) Detection {
	buckets := make(map[records.GroupIdentity][]Candidate)
	var order []records.GroupIdentity
	for _, rec := range recs {
		id := rec.Identity()
		if _, seen := buckets[id]; !seen {
			order = append(order, id)
		}
		buckets[id] = append(buckets[id], Candidate{Position: len(buckets[id]), Record: rec})
	}

	det := Detection{Groups: make(map[records.GroupIdentity]*DuplicateGroup)}
	for _, id := range order {
		cands := buckets[id]
		if len(distinctValues(cands)) <= 1 {
			continue
		}
		det.Groups[id] = &DuplicateGroup{
			GroupKey:   id.String(),
			Group:      id.Group,
			Key:        id.Key,
			Candidates: cands,
		}
		det.Order = append(det.Order, id)
	}
	return det
}

// Selection maps a duplicate group key (display form) to the kept candidate
// positions. A key shared by two duplicate groups cannot be selected.
type Selection map[string][]int

type GroupSummary struct {
	Group    string `json:"group"`
	ItemName string `json:"item_name"`
	Pairs    int    `json:"pairs"`
}

type Resolution struct {
	Records []records.LookupRecord
	// Groups is the name-to-group index in first-seen order.
	Groups []GroupSummary
	// KeptAll lists duplicate groups kept whole because of an empty selection.
	KeptAll []string
	// Dropped counts discarded records.
	Dropped int
}

// Resolve applies the strategy to every duplicate group and returns the
// surviving records in input order.
func Resolve(recs []records.LookupRecord, sel Selection, strategy Strategy) (Resolution, error) {
	if strategy == "" {
		strategy = StrategyUserSpecific
	}
	det := Detect(recs)

	shared := make(map[string]int, det.Len())
	for _, id := range det.Order {
		shared[id.String()]++
	}

	keep := make(map[records.GroupIdentity]map[int]bool, det.Len())
	var keptAll []string
	for _, id := range det.Order {
		group := det.Groups[id]
		gk := group.GroupKey
		if strategy == StrategyUserSpecific && shared[gk] > 1 {
			return Resolution{}, errors.Resolution(gk,
				fmt.Sprintf("group key %s names %d different (group, key) pairs; resolve with a strategy or rename the columns", gk, shared[gk]))
		}
		positions, whole, err := keptPositions(group, sel, strategy)
		if err != nil {
			return Resolution{}, err
		}
		if whole {
			keptAll = append(keptAll, gk)
			continue
		}
		set := make(map[int]bool, len(positions))
		kept := make([]Candidate, 0, len(positions))
		for _, p := range positions {
			set[p] = true
			kept = append(kept, group.Candidates[p])
		}
		if vals := distinctValues(kept); len(vals) > 1 {
			return Resolution{}, errors.Resolution(gk,
				fmt.Sprintf("selection for %s keeps %d different values (%s); keep exactly one", gk, len(vals), strings.Join(vals, ", ")))
		}
		keep[id] = set
	}

	res := Resolution{KeptAll: keptAll}
	position := make(map[records.GroupIdentity]int)
	for _, rec := range recs {
		id := rec.Identity()
		pos := position[id]
		position[id]++
		if set, dup := keep[id]; dup && !set[pos] {
			res.Dropped++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	res.Groups = indexGroups(res.Records)
	return res, nil
}

func keptPositions(group *DuplicateGroup, sel Selection, strategy Strategy) ([]int, bool, error) {
	n := len(group.Candidates)
	switch strategy {
	case StrategyKeepFirst:
		return []int{0}, false, nil
	case StrategyKeepLast:
		return []int{n - 1}, false, nil
	case StrategyRemoveAll:
		return nil, false, nil
	case StrategyUserSpecific:
		positions, ok := sel[group.GroupKey]
		if !ok {
			return nil, false, errors.Resolution(group.GroupKey,
				fmt.Sprintf("%s has %d conflicting rows and no selection", group.GroupKey, n))
		}
		if len(positions) == 0 {
			return nil, true, nil
		}
		seen := make(map[int]bool, len(positions))
		out := make([]int, 0, len(positions))
		for _, p := range positions {
			if p < 0 || p >= n {
				return nil, false, errors.Resolution(group.GroupKey,
					fmt.Sprintf("selection index %d out of range for %s (0..%d)", p, group.GroupKey, n-1))
			}
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
		return out, false, nil
	default:
		return nil, false, errors.New(errors.CodeValidationError, fmt.Sprintf("unknown duplicate strategy %q", strategy))
	}
}

func distinctValues(cands []Candidate) []string {
	seen := make(map[records.Field]bool)
	var out []string
	for _, c := range cands {
		f := c.Record.Value
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f.Value)
	}
	return out
}

func indexGroups(recs []records.LookupRecord) []GroupSummary {
	pairs := make(map[string]map[string]bool)
	var order []string
	for _, rec := range recs {
		g := rec.Group.Value
		if _, ok := pairs[g]; !ok {
			pairs[g] = make(map[string]bool)
			order = append(order, g)
		}
		pairs[g][rec.Key.Value+"\x00"+rec.Value.Value] = true
	}
	out := make([]GroupSummary, 0, len(order))
	for _, g := range order {
		out = append(out, GroupSummary{Group: g, ItemName: LookupItemName(g), Pairs: len(pairs[g])})
	}
	return out
}
