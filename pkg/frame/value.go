// Package frame defines the in-memory tabular model shared by the catalog and
// the longitudinal reshaping operations: typed named columns, explicit missing
// cells, and a delimited-text codec.
//
// Tables are immutable once constructed; every transform produces a new table.
package frame

// Kind identifies the declared type of a column.
type Kind string

const (
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindString  Kind = "string"
	KindBool    Kind = "boolean"
)

// Valid reports whether k is one of the declared column kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindNumber, KindInteger, KindString, KindBool:
		return true
	}
	return false
}

// Value is a single cell: either present with a typed value, or missing.
// The zero Value is a missing cell of unspecified kind.
type Value struct {
	kind    Kind
	missing bool
	num     float64
	integer int64
	str     string
	boolean bool
}

// Number returns a present numeric cell.
func Number(v float64) Value { return Value{kind: KindNumber, num: v} }

// Integer returns a present integer cell.
func Integer(v int64) Value { return Value{kind: KindInteger, integer: v} }

// String returns a present string cell.
func String(v string) Value { return Value{kind: KindString, str: v} }

// Bool returns a present boolean cell.
func Bool(v bool) Value { return Value{kind: KindBool, boolean: v} }

// Missing returns a missing cell of the given kind.
func Missing(kind Kind) Value { return Value{kind: kind, missing: true} }

// Kind returns the declared type of the cell.
func (v Value) Kind() Kind { return v.kind }

// IsMissing reports whether the cell carries no value.
func (v Value) IsMissing() bool { return v.missing }

// AsNumber returns the cell as a float64. Integer cells convert losslessly;
// ok is false for missing or non-numeric cells.
func (v Value) AsNumber() (float64, bool) {
	if v.missing {
		return 0, false
	}
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindInteger:
		return float64(v.integer), true
	}
	return 0, false
}

// AsInteger returns the cell as an int64. Numeric cells convert only when the
// value is integral; ok is false otherwise.
func (v Value) AsInteger() (int64, bool) {
	if v.missing {
		return 0, false
	}
	switch v.kind {
	case KindInteger:
		return v.integer, true
	case KindNumber:
		if v.num == float64(int64(v.num)) {
			return int64(v.num), true
		}
	}
	return 0, false
}

// AsString returns the cell as a string; ok is false for missing or
// non-string cells.
func (v Value) AsString() (string, bool) {
	if v.missing || v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsBool returns the cell as a bool; ok is false for missing or non-boolean
// cells.
func (v Value) AsBool() (bool, bool) {
	if v.missing || v.kind != KindBool {
		return false, false
	}
	return v.boolean, true
}

// Interface returns the cell as a plain Go value for JSON encoding: nil for
// missing cells, otherwise float64, int64, string or bool.
func (v Value) Interface() any {
	if v.missing {
		return nil
	}
	switch v.kind {
	case KindNumber:
		return v.num
	case KindInteger:
		return v.integer
	case KindString:
		return v.str
	case KindBool:
		return v.boolean
	}
	return nil
}

// Equal reports whether two cells agree on kind, presence and value.
func (v Value) Equal(o Value) bool { return v == o }
