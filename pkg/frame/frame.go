package frame

import (
	"fmt"
)

// ColumnInfo describes one column of a table schema.
type ColumnInfo struct {
	Name string `json:"name"`
	Kind Kind   `json:"type"`
}

// Column is a named, typed vector of cells with an explicit missing mask.
// Constructors copy their inputs; a Column never aliases caller slices.
type Column struct {
	name    string
	kind    Kind
	nums    []float64
	ints    []int64
	strs    []string
	bools   []bool
	missing []bool
}

// NumberColumn builds a numeric column. missing may be nil when every cell is
// present; otherwise it must match len(values).
func NumberColumn(name string, values []float64, missing []bool) Column {
	return Column{name: name, kind: KindNumber, nums: cloneFloats(values), missing: cloneMask(missing, len(values))}
}

// IntegerColumn builds an integer column.
func IntegerColumn(name string, values []int64, missing []bool) Column {
	return Column{name: name, kind: KindInteger, ints: cloneInts(values), missing: cloneMask(missing, len(values))}
}

// StringColumn builds a string column.
func StringColumn(name string, values []string, missing []bool) Column {
	return Column{name: name, kind: KindString, strs: cloneStrings(values), missing: cloneMask(missing, len(values))}
}

// BoolColumn builds a boolean column.
func BoolColumn(name string, values []bool, missing []bool) Column {
	return Column{name: name, kind: KindBool, bools: cloneBools(values), missing: cloneMask(missing, len(values))}
}

// Name returns the column name.
func (c Column) Name() string { return c.name }

// Kind returns the declared column type.
func (c Column) Kind() Kind { return c.kind }

// Len returns the number of cells.
func (c Column) Len() int {
	switch c.kind {
	case KindNumber:
		return len(c.nums)
	case KindInteger:
		return len(c.ints)
	case KindString:
		return len(c.strs)
	case KindBool:
		return len(c.bools)
	}
	return 0
}

// Value returns the cell at index i.
func (c Column) Value(i int) Value {
	if c.missing[i] {
		return Missing(c.kind)
	}
	switch c.kind {
	case KindNumber:
		return Number(c.nums[i])
	case KindInteger:
		return Integer(c.ints[i])
	case KindString:
		return String(c.strs[i])
	case KindBool:
		return Bool(c.bools[i])
	}
	return Missing(c.kind)
}

// Values returns a copy of every cell in order.
func (c Column) Values() []Value {
	out := make([]Value, c.Len())
	for i := range out {
		out[i] = c.Value(i)
	}
	return out
}

func (c Column) equal(o Column) bool {
	if c.name != o.name || c.kind != o.kind || c.Len() != o.Len() {
		return false
	}
	for i := 0; i < c.Len(); i++ {
		if !c.Value(i).Equal(o.Value(i)) {
			return false
		}
	}
	return true
}

// Table is an ordered collection of equal-length columns with unique names.
type Table struct {
	cols  []Column
	index map[string]int
}

// New assembles a table from columns, validating name uniqueness, declared
// kinds, and equal column lengths.
func New(cols ...Column) (Table, error) {
	t := Table{cols: append([]Column(nil), cols...), index: make(map[string]int, len(cols))}
	rows := -1
	for i, col := range t.cols {
		if col.name == "" {
			return Table{}, fmt.Errorf("frame: column %d has empty name", i)
		}
		if !col.kind.Valid() {
			return Table{}, fmt.Errorf("frame: column %s has invalid kind %q", col.name, col.kind)
		}
		if _, dup := t.index[col.name]; dup {
			return Table{}, fmt.Errorf("frame: duplicate column %s", col.name)
		}
		if len(col.missing) != col.Len() {
			return Table{}, fmt.Errorf("frame: column %s has %d cells but %d mask entries", col.name, col.Len(), len(col.missing))
		}
		if rows == -1 {
			rows = col.Len()
		} else if col.Len() != rows {
			return Table{}, fmt.Errorf("frame: column %s has %d cells, want %d", col.name, col.Len(), rows)
		}
		t.index[col.name] = i
	}
	return t, nil
}

// NumRows returns the row count.
func (t Table) NumRows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return t.cols[0].Len()
}

// NumCols returns the column count.
func (t Table) NumCols() int { return len(t.cols) }

// Names returns the column names in order.
func (t Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, col := range t.cols {
		out[i] = col.name
	}
	return out
}

// Schema returns the ordered column descriptors.
func (t Table) Schema() []ColumnInfo {
	out := make([]ColumnInfo, len(t.cols))
	for i, col := range t.cols {
		out[i] = ColumnInfo{Name: col.name, Kind: col.kind}
	}
	return out
}

// HasColumn reports whether a column with the given name exists.
func (t Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column.
func (t Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.cols[i], true
}

// ColumnAt returns the column at position i.
func (t Table) ColumnAt(i int) Column { return t.cols[i] }

// Cell returns the cell at (row, column name).
func (t Table) Cell(row int, name string) (Value, bool) {
	i, ok := t.index[name]
	if !ok {
		return Value{}, false
	}
	return t.cols[i].Value(row), true
}

// Row returns a copy of row i in column order.
func (t Table) Row(i int) []Value {
	out := make([]Value, len(t.cols))
	for c, col := range t.cols {
		out[c] = col.Value(i)
	}
	return out
}

// Select returns a new table holding the named columns in the given order.
func (t Table) Select(names ...string) (Table, error) {
	cols := make([]Column, 0, len(names))
	for _, name := range names {
		col, ok := t.Column(name)
		if !ok {
			return Table{}, fmt.Errorf("frame: unknown column %s", name)
		}
		cols = append(cols, col)
	}
	return New(cols...)
}

// Equal reports exact equality: same columns in the same order with the same
// cells. Callers comparing up to ordering should Select a shared column order
// first.
func (t Table) Equal(o Table) bool {
	if len(t.cols) != len(o.cols) {
		return false
	}
	for i := range t.cols {
		if !t.cols[i].equal(o.cols[i]) {
			return false
		}
	}
	return true
}

// Builder assembles a table row by row against a fixed schema.
type Builder struct {
	schema []ColumnInfo
	cols   []Column
	rows   int
}

// NewBuilder validates the schema and returns an empty builder for it.
func NewBuilder(schema []ColumnInfo) (*Builder, error) {
	seen := make(map[string]struct{}, len(schema))
	cols := make([]Column, len(schema))
	for i, info := range schema {
		if info.Name == "" {
			return nil, fmt.Errorf("frame: schema column %d has empty name", i)
		}
		if !info.Kind.Valid() {
			return nil, fmt.Errorf("frame: schema column %s has invalid kind %q", info.Name, info.Kind)
		}
		if _, dup := seen[info.Name]; dup {
			return nil, fmt.Errorf("frame: duplicate schema column %s", info.Name)
		}
		seen[info.Name] = struct{}{}
		cols[i] = Column{name: info.Name, kind: info.Kind}
	}
	return &Builder{schema: append([]ColumnInfo(nil), schema...), cols: cols}, nil
}

// Append adds one row. Cells must match the schema arity and kinds; missing
// cells must carry the column kind.
func (b *Builder) Append(row ...Value) error {
	if len(row) != len(b.cols) {
		return fmt.Errorf("frame: row has %d cells, want %d", len(row), len(b.cols))
	}
	for i, v := range row {
		if v.kind != b.cols[i].kind {
			return fmt.Errorf("frame: cell %d has kind %q, column %s wants %q", i, v.kind, b.cols[i].name, b.cols[i].kind)
		}
	}
	for i, v := range row {
		col := &b.cols[i]
		col.missing = append(col.missing, v.missing)
		switch col.kind {
		case KindNumber:
			col.nums = append(col.nums, v.num)
		case KindInteger:
			col.ints = append(col.ints, v.integer)
		case KindString:
			col.strs = append(col.strs, v.str)
		case KindBool:
			col.bools = append(col.bools, v.boolean)
		}
	}
	b.rows++
	return nil
}

// Len returns the number of appended rows.
func (b *Builder) Len() int { return b.rows }

// Table finalizes the builder into an immutable table.
func (b *Builder) Table() (Table, error) {
	cols := make([]Column, len(b.cols))
	for i, col := range b.cols {
		cols[i] = Column{
			name:    col.name,
			kind:    col.kind,
			nums:    cloneFloats(col.nums),
			ints:    cloneInts(col.ints),
			strs:    cloneStrings(col.strs),
			bools:   cloneBools(col.bools),
			missing: append([]bool(nil), col.missing...),
		}
	}
	return New(cols...)
}

func cloneFloats(in []float64) []float64 {
	if in == nil {
		return nil
	}
	return append([]float64(nil), in...)
}

func cloneInts(in []int64) []int64 {
	if in == nil {
		return nil
	}
	return append([]int64(nil), in...)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneBools(in []bool) []bool {
	if in == nil {
		return nil
	}
	return append([]bool(nil), in...)
}

func cloneMask(in []bool, n int) []bool {
	if in == nil {
		return make([]bool, n)
	}
	return append([]bool(nil), in...)
}
