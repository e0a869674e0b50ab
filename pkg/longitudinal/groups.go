package longitudinal

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"panelcore/pkg/frame"
)

// OccasionColumn binds one occasion value to the person-level column carrying
// it.
type OccasionColumn struct {
	Occasion int    `json:"occasion" yaml:"occasion"`
	Column   string `json:"column" yaml:"column"`
}

// Group is the statically declared mapping for one time-varying attribute:
// the attribute name, which doubles as the generated long-format value column,
// and its per-occasion columns in ascending occasion order.
type Group struct {
	Attribute string           `json:"attribute" yaml:"attribute"`
	Columns   []OccasionColumn `json:"columns" yaml:"columns"`
}

// ParseGroups discovers the per-occasion columns for each named attribute by
// the naming pattern <attribute>_<occasion> and returns the static mapping,
// validated once, with occasions in ascending order. Every table column that
// starts with an attribute's prefix must carry an integer occasion suffix.
func ParseGroups(t frame.Table, attributes ...string) ([]Group, error) {
	groups := make([]Group, 0, len(attributes))
	for _, attr := range attributes {
		if strings.TrimSpace(attr) == "" {
			return nil, fmt.Errorf("%w: empty attribute name", ErrMalformedColumnPattern)
		}
		prefix := attr + "_"
		var pairs []OccasionColumn
		seen := make(map[int]string)
		for _, name := range t.Names() {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			suffix := strings.TrimPrefix(name, prefix)
			occasion, err := strconv.Atoi(suffix)
			if err != nil {
				return nil, fmt.Errorf("%w: column %s has non-integer occasion suffix %q", ErrMalformedColumnPattern, name, suffix)
			}
			if prev, dup := seen[occasion]; dup {
				return nil, fmt.Errorf("%w: columns %s and %s both declare occasion %d", ErrMalformedColumnPattern, prev, name, occasion)
			}
			seen[occasion] = name
			pairs = append(pairs, OccasionColumn{Occasion: occasion, Column: name})
		}
		if len(pairs) == 0 {
			return nil, fmt.Errorf("%w: no columns match pattern %s_<occasion>", ErrEmptyOccasionSet, attr)
		}
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].Occasion < pairs[j].Occasion })
		groups = append(groups, Group{Attribute: attr, Columns: pairs})
	}
	return groups, nil
}

// validateGroups checks a declared mapping against the table: attributes are
// named and unique, every bound column exists, occasions within a group are
// unique, and every column of a group shares one kind.
func validateGroups(t frame.Table, groups []Group) (map[string]frame.Kind, error) {
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: no time-varying attributes declared", ErrEmptyOccasionSet)
	}
	kinds := make(map[string]frame.Kind, len(groups))
	for _, g := range groups {
		if strings.TrimSpace(g.Attribute) == "" {
			return nil, fmt.Errorf("%w: group with empty attribute name", ErrMalformedColumnPattern)
		}
		if _, dup := kinds[g.Attribute]; dup {
			return nil, fmt.Errorf("%w: attribute %s declared twice", ErrMalformedColumnPattern, g.Attribute)
		}
		if len(g.Columns) == 0 {
			return nil, fmt.Errorf("%w: attribute %s has no occasion columns", ErrEmptyOccasionSet, g.Attribute)
		}
		seen := make(map[int]struct{}, len(g.Columns))
		var kind frame.Kind
		for i, pair := range g.Columns {
			col, ok := t.Column(pair.Column)
			if !ok {
				return nil, fmt.Errorf("%w: attribute %s binds unknown column %s", ErrMalformedColumnPattern, g.Attribute, pair.Column)
			}
			if _, dup := seen[pair.Occasion]; dup {
				return nil, fmt.Errorf("%w: attribute %s declares occasion %d twice", ErrMalformedColumnPattern, g.Attribute, pair.Occasion)
			}
			seen[pair.Occasion] = struct{}{}
			if i == 0 {
				kind = col.Kind()
			} else if col.Kind() != kind {
				return nil, fmt.Errorf("%w: attribute %s mixes column kinds %s and %s", ErrMalformedColumnPattern, g.Attribute, kind, col.Kind())
			}
		}
		kinds[g.Attribute] = kind
	}
	return kinds, nil
}

// occasionUnion returns the sorted union of every group's occasion values.
func occasionUnion(groups []Group) []int {
	set := make(map[int]struct{})
	for _, g := range groups {
		for _, pair := range g.Columns {
			set[pair.Occasion] = struct{}{}
		}
	}
	out := make([]int, 0, len(set))
	for occ := range set {
		out = append(out, occ)
	}
	sort.Ints(out)
	return out
}
