package frame

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadCSV decodes a delimited-text table: one header row of column names,
// comma separators, UTF-8. Column kinds are inferred per column: integer when
// every present cell parses as int64, number when every present cell parses
// as float64, boolean for true/false cells, string otherwise. Empty fields
// decode as Missing (the format cannot distinguish a present empty string).
func ReadCSV(r io.Reader) (Table, error) {
	header, records, err := readRecords(r)
	if err != nil {
		return Table{}, err
	}
	cols := make([]Column, len(header))
	for i, name := range header {
		cells := make([]string, len(records))
		for j, record := range records {
			cells[j] = record[i]
		}
		cols[i] = inferColumn(name, cells)
	}
	return New(cols...)
}

// ReadCSVSchema decodes a delimited-text table against a declared schema. The
// header must match the schema names in order, and every present cell must
// parse as its declared kind.
func ReadCSVSchema(r io.Reader, schema []ColumnInfo) (Table, error) {
	header, records, err := readRecords(r)
	if err != nil {
		return Table{}, err
	}
	if len(header) != len(schema) {
		return Table{}, fmt.Errorf("frame: header has %d columns, schema declares %d", len(header), len(schema))
	}
	for i, info := range schema {
		if header[i] != info.Name {
			return Table{}, fmt.Errorf("frame: header column %d is %s, schema declares %s", i, header[i], info.Name)
		}
	}
	builder, err := NewBuilder(schema)
	if err != nil {
		return Table{}, err
	}
	for rowIdx, record := range records {
		row := make([]Value, len(schema))
		for i, info := range schema {
			v, err := parseCell(record[i], info.Kind)
			if err != nil {
				return Table{}, fmt.Errorf("frame: row %d column %s: %w", rowIdx+1, info.Name, err)
			}
			row[i] = v
		}
		if err := builder.Append(row...); err != nil {
			return Table{}, err
		}
	}
	return builder.Table()
}

// WriteCSV encodes the table as delimited text: header row then one row per
// record. Missing cells encode as empty fields.
func WriteCSV(w io.Writer, t Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Names()); err != nil {
		return err
	}
	record := make([]string, t.NumCols())
	for row := 0; row < t.NumRows(); row++ {
		for col := 0; col < t.NumCols(); col++ {
			record[col] = encodeCell(t.cols[col].Value(row))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func readRecords(r io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	all, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("frame: read csv: %w", err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("frame: csv input has no header row")
	}
	return all[0], all[1:], nil
}

func parseCell(raw string, kind Kind) (Value, error) {
	if raw == "" {
		return Missing(kind), nil
	}
	switch kind {
	case KindNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse %q as number", raw)
		}
		return Number(f), nil
	case KindInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse %q as integer", raw)
		}
		return Integer(n), nil
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Value{}, fmt.Errorf("parse %q as boolean", raw)
		}
		return Bool(b), nil
	case KindString:
		return String(raw), nil
	}
	return Value{}, fmt.Errorf("invalid kind %q", kind)
}

func encodeCell(v Value) string {
	if v.IsMissing() {
		return ""
	}
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindInteger:
		return strconv.FormatInt(v.integer, 10)
	case KindBool:
		return strconv.FormatBool(v.boolean)
	case KindString:
		return v.str
	}
	return ""
}

func inferColumn(name string, cells []string) Column {
	allInt, allNum, allBool := true, true, true
	for _, cell := range cells {
		if cell == "" {
			continue
		}
		if allInt {
			if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
				allInt = false
			}
		}
		if allNum {
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				allNum = false
			}
		}
		if allBool && !strings.EqualFold(cell, "true") && !strings.EqualFold(cell, "false") {
			allBool = false
		}
		if !allInt && !allNum && !allBool {
			break
		}
	}
	kind := KindString
	switch {
	case allInt:
		kind = KindInteger
	case allNum:
		kind = KindNumber
	case allBool:
		kind = KindBool
	}
	n := len(cells)
	missing := make([]bool, n)
	switch kind {
	case KindInteger:
		vals := make([]int64, n)
		for i, cell := range cells {
			if cell == "" {
				missing[i] = true
				continue
			}
			vals[i], _ = strconv.ParseInt(cell, 10, 64)
		}
		return IntegerColumn(name, vals, missing)
	case KindNumber:
		vals := make([]float64, n)
		for i, cell := range cells {
			if cell == "" {
				missing[i] = true
				continue
			}
			vals[i], _ = strconv.ParseFloat(cell, 64)
		}
		return NumberColumn(name, vals, missing)
	case KindBool:
		vals := make([]bool, n)
		for i, cell := range cells {
			if cell == "" {
				missing[i] = true
				continue
			}
			vals[i] = strings.EqualFold(cell, "true")
		}
		return BoolColumn(name, vals, missing)
	default:
		vals := make([]string, n)
		for i, cell := range cells {
			if cell == "" {
				missing[i] = true
				continue
			}
			vals[i] = cell
		}
		return StringColumn(name, vals, missing)
	}
}
