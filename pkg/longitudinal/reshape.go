package longitudinal

import (
	"fmt"
	"sort"

	"panelcore/pkg/frame"
)

// PersonPeriodOptions configures the person-level to person-period transform.
type PersonPeriodOptions struct {
	// Subject names the subject identifier column.
	Subject string
	// Occasion names the generated occasion column.
	Occasion string
	// Groups is the static time-varying mapping. Each group emits one value
	// column named after its attribute.
	Groups []Group
	// FillMisaligned emits a Missing cell when an occasion is present for one
	// attribute but absent for another. When false the transform fails fast
	// with ErrMisalignedOccasions. Silent truncation is not an option.
	FillMisaligned bool
}

// ToPersonPeriod converts one-row-per-subject wide data into one row per
// (subject, occasion) pair. Time-invariant columns are copied unchanged into
// every emitted row; a Missing cell in an occasion column is preserved as a
// Missing row cell, never dropped. Subjects keep their input order and
// occasions ascend within each subject.
//
// The output column order is: subject, occasion, one value column per group,
// then the remaining time-invariant columns in input order.
func ToPersonPeriod(t frame.Table, opts PersonPeriodOptions) (frame.Table, error) {
	subjectCol, ok := t.Column(opts.Subject)
	if !ok {
		return frame.Table{}, fmt.Errorf("longitudinal: subject column %s not found", opts.Subject)
	}
	if opts.Occasion == "" {
		return frame.Table{}, fmt.Errorf("longitudinal: occasion column name required")
	}
	kinds, err := validateGroups(t, opts.Groups)
	if err != nil {
		return frame.Table{}, err
	}

	grouped := make(map[string]struct{})
	for _, g := range opts.Groups {
		for _, pair := range g.Columns {
			grouped[pair.Column] = struct{}{}
		}
	}
	if _, ok := grouped[opts.Subject]; ok {
		return frame.Table{}, fmt.Errorf("longitudinal: subject column %s bound as an occasion column", opts.Subject)
	}

	var invariants []string
	taken := map[string]struct{}{opts.Subject: {}, opts.Occasion: {}}
	for _, g := range opts.Groups {
		taken[g.Attribute] = struct{}{}
	}
	for _, name := range t.Names() {
		if name == opts.Subject {
			continue
		}
		if _, ok := grouped[name]; ok {
			continue
		}
		if _, clash := taken[name]; clash {
			return frame.Table{}, fmt.Errorf("longitudinal: column %s collides with a generated column", name)
		}
		invariants = append(invariants, name)
	}

	occasions := occasionUnion(opts.Groups)
	columnFor := make([]map[int]string, len(opts.Groups))
	for i, g := range opts.Groups {
		columnFor[i] = make(map[int]string, len(g.Columns))
		for _, pair := range g.Columns {
			columnFor[i][pair.Occasion] = pair.Column
		}
		if opts.FillMisaligned {
			continue
		}
		for _, occ := range occasions {
			if _, ok := columnFor[i][occ]; !ok {
				return frame.Table{}, fmt.Errorf("%w: occasion %d has no column for attribute %s", ErrMisalignedOccasions, occ, g.Attribute)
			}
		}
	}

	schema := make([]frame.ColumnInfo, 0, 2+len(opts.Groups)+len(invariants))
	schema = append(schema,
		frame.ColumnInfo{Name: opts.Subject, Kind: subjectCol.Kind()},
		frame.ColumnInfo{Name: opts.Occasion, Kind: frame.KindInteger},
	)
	for _, g := range opts.Groups {
		schema = append(schema, frame.ColumnInfo{Name: g.Attribute, Kind: kinds[g.Attribute]})
	}
	for _, name := range invariants {
		col, _ := t.Column(name)
		schema = append(schema, frame.ColumnInfo{Name: name, Kind: col.Kind()})
	}
	builder, err := frame.NewBuilder(schema)
	if err != nil {
		return frame.Table{}, err
	}

	seenSubjects := make(map[frame.Value]struct{}, t.NumRows())
	row := make([]frame.Value, len(schema))
	for r := 0; r < t.NumRows(); r++ {
		id := subjectCol.Value(r)
		if id.IsMissing() {
			return frame.Table{}, fmt.Errorf("%w: missing subject identifier at row %d", ErrInvariantViolation, r)
		}
		if _, dup := seenSubjects[id]; dup {
			return frame.Table{}, fmt.Errorf("%w: subject %s has more than one person-level row", ErrDuplicateSubjectOccasion, cellText(id))
		}
		seenSubjects[id] = struct{}{}

		for _, occ := range occasions {
			row[0] = id
			row[1] = frame.Integer(int64(occ))
			for gi, g := range opts.Groups {
				name, ok := columnFor[gi][occ]
				if !ok {
					row[2+gi] = frame.Missing(kinds[g.Attribute])
					continue
				}
				cell, _ := t.Cell(r, name)
				row[2+gi] = cell
			}
			for ii, name := range invariants {
				cell, _ := t.Cell(r, name)
				row[2+len(opts.Groups)+ii] = cell
			}
			if err := builder.Append(row...); err != nil {
				return frame.Table{}, err
			}
		}
	}
	return builder.Table()
}

// PersonLevelOptions configures the person-period to person-level transform.
type PersonLevelOptions struct {
	// Subject names the subject identifier column.
	Subject string
	// Occasion names the occasion column to pivot on.
	Occasion string
	// Values names the columns to widen; each yields one generated column per
	// distinct occasion.
	Values []string
	// NameFormat renders generated column names from a value column name and
	// an occasion value. It defaults to "%s_%d".
	NameFormat string
}

// ToPersonLevel converts one-row-per-(subject, occasion) long data into one
// row per subject. A (subject, occasion) pair absent from the input yields a
// Missing cell, never a dropped row or column. Every time-invariant column is
// verified to agree across each subject's rows. Subjects appear in order of
// first occurrence; generated columns ascend by occasion within each value
// column.
//
// The output column order is: subject, time-invariant columns in input order,
// then the generated columns.
func ToPersonLevel(t frame.Table, opts PersonLevelOptions) (frame.Table, error) {
	subjectCol, ok := t.Column(opts.Subject)
	if !ok {
		return frame.Table{}, fmt.Errorf("longitudinal: subject column %s not found", opts.Subject)
	}
	occasionCol, ok := t.Column(opts.Occasion)
	if !ok {
		return frame.Table{}, fmt.Errorf("longitudinal: occasion column %s not found", opts.Occasion)
	}
	if len(opts.Values) == 0 {
		return frame.Table{}, fmt.Errorf("longitudinal: at least one value column required")
	}
	valueKinds := make(map[string]frame.Kind, len(opts.Values))
	for _, name := range opts.Values {
		if name == opts.Subject || name == opts.Occasion {
			return frame.Table{}, fmt.Errorf("longitudinal: value column %s is the subject or occasion column", name)
		}
		if _, dup := valueKinds[name]; dup {
			return frame.Table{}, fmt.Errorf("longitudinal: value column %s listed twice", name)
		}
		col, ok := t.Column(name)
		if !ok {
			return frame.Table{}, fmt.Errorf("longitudinal: value column %s not found", name)
		}
		valueKinds[name] = col.Kind()
	}
	nameFormat := opts.NameFormat
	if nameFormat == "" {
		nameFormat = "%s_%d"
	}

	var invariants []string
	for _, name := range t.Names() {
		if name == opts.Subject || name == opts.Occasion {
			continue
		}
		if _, isValue := valueKinds[name]; isValue {
			continue
		}
		invariants = append(invariants, name)
	}

	type subjectRows struct {
		first   int
		indexes []int
		byOcc   map[int]int
	}
	var order []frame.Value
	subjects := make(map[frame.Value]*subjectRows)
	occasionSet := make(map[int]struct{})
	for r := 0; r < t.NumRows(); r++ {
		id := subjectCol.Value(r)
		if id.IsMissing() {
			return frame.Table{}, fmt.Errorf("%w: missing subject identifier at row %d", ErrInvariantViolation, r)
		}
		occ64, ok := occasionCol.Value(r).AsInteger()
		if !ok {
			return frame.Table{}, fmt.Errorf("%w: row %d has a missing or non-integer occasion", ErrInvariantViolation, r)
		}
		occ := int(occ64)
		acc, exists := subjects[id]
		if !exists {
			acc = &subjectRows{first: r, byOcc: make(map[int]int)}
			subjects[id] = acc
			order = append(order, id)
		}
		if _, dup := acc.byOcc[occ]; dup {
			return frame.Table{}, fmt.Errorf("%w: subject %s repeats occasion %d", ErrDuplicateSubjectOccasion, cellText(id), occ)
		}
		acc.byOcc[occ] = r
		acc.indexes = append(acc.indexes, r)
		occasionSet[occ] = struct{}{}
	}
	occasions := make([]int, 0, len(occasionSet))
	for occ := range occasionSet {
		occasions = append(occasions, occ)
	}
	sort.Ints(occasions)

	for _, id := range order {
		acc := subjects[id]
		for _, name := range invariants {
			ref, _ := t.Cell(acc.first, name)
			for _, r := range acc.indexes {
				cell, _ := t.Cell(r, name)
				if !cell.Equal(ref) {
					return frame.Table{}, fmt.Errorf("%w: column %s varies for subject %s", ErrTimeInvariantConflict, name, cellText(id))
				}
			}
		}
	}

	schema := make([]frame.ColumnInfo, 0, 1+len(invariants)+len(opts.Values)*len(occasions))
	schema = append(schema, frame.ColumnInfo{Name: opts.Subject, Kind: subjectCol.Kind()})
	for _, name := range invariants {
		col, _ := t.Column(name)
		schema = append(schema, frame.ColumnInfo{Name: name, Kind: col.Kind()})
	}
	existing := make(map[string]struct{}, len(schema))
	for _, info := range schema {
		existing[info.Name] = struct{}{}
	}
	type generated struct {
		value    string
		occasion int
	}
	var gens []generated
	for _, value := range opts.Values {
		for _, occ := range occasions {
			name := fmt.Sprintf(nameFormat, value, occ)
			if _, clash := existing[name]; clash {
				return frame.Table{}, fmt.Errorf("longitudinal: generated column %s collides with an existing column", name)
			}
			existing[name] = struct{}{}
			schema = append(schema, frame.ColumnInfo{Name: name, Kind: valueKinds[value]})
			gens = append(gens, generated{value: value, occasion: occ})
		}
	}
	builder, err := frame.NewBuilder(schema)
	if err != nil {
		return frame.Table{}, err
	}

	row := make([]frame.Value, len(schema))
	for _, id := range order {
		acc := subjects[id]
		row[0] = id
		for i, name := range invariants {
			cell, _ := t.Cell(acc.first, name)
			row[1+i] = cell
		}
		base := 1 + len(invariants)
		for gi, gen := range gens {
			r, present := acc.byOcc[gen.occasion]
			if !present {
				row[base+gi] = frame.Missing(valueKinds[gen.value])
				continue
			}
			cell, _ := t.Cell(r, gen.value)
			row[base+gi] = cell
		}
		if err := builder.Append(row...); err != nil {
			return frame.Table{}, err
		}
	}
	return builder.Table()
}

func cellText(v frame.Value) string {
	if v.IsMissing() {
		return "<missing>"
	}
	return fmt.Sprint(v.Interface())
}
