package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"panelcore/pkg/frame"
)

// parquetSchema renders the table schema as the JSON schema document the
// parquet-go JSON writer expects. Every column is OPTIONAL so missing cells
// become nulls.
func parquetSchema(table frame.Table) (string, error) {
	type field struct {
		Tag string `json:"Tag"`
	}
	type root struct {
		Tag    string  `json:"Tag"`
		Fields []field `json:"Fields"`
	}
	doc := root{Tag: "name=parquet_go_root, repetitiontype=REQUIRED"}
	for _, info := range table.Schema() {
		var typ string
		switch info.Kind {
		case frame.KindInteger:
			typ = "type=INT64"
		case frame.KindNumber:
			typ = "type=DOUBLE"
		case frame.KindBool:
			typ = "type=BOOLEAN"
		case frame.KindString:
			typ = "type=BYTE_ARRAY, convertedtype=UTF8"
		default:
			return "", fmt.Errorf("export: column %s has unknown kind %s", info.Name, info.Kind)
		}
		doc.Fields = append(doc.Fields, field{Tag: fmt.Sprintf("name=%s, %s, repetitiontype=OPTIONAL", info.Name, typ)})
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// writeParquet streams the table to w as a snappy-compressed parquet file.
// Rows are fed to the JSON writer with missing cells omitted, which the
// OPTIONAL schema turns into nulls.
func writeParquet(w io.Writer, table frame.Table) error {
	schema, err := parquetSchema(table)
	if err != nil {
		return err
	}
	fw := writerfile.NewWriterFile(w)
	pw, err := writer.NewJSONWriter(schema, fw, 4)
	if err != nil {
		return err
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for i := 0; i < table.NumRows(); i++ {
		row := make(map[string]any, table.NumCols())
		for j := 0; j < table.NumCols(); j++ {
			col := table.ColumnAt(j)
			v := col.Value(i)
			if v.IsMissing() {
				continue
			}
			row[col.Name()] = v.Interface()
		}
		rec, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if err := pw.Write(string(rec)); err != nil {
			return err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return err
	}
	return fw.Close()
}
