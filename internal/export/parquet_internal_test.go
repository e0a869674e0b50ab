package export

import (
	"bytes"
	"strings"
	"testing"

	"panelcore/pkg/frame"
)

func sampleTable(t *testing.T) frame.Table {
	t.Helper()
	table, err := frame.New(
		frame.IntegerColumn("id", []int64{1, 2}, nil),
		frame.NumberColumn("score", []float64{2.5, 0}, []bool{false, true}),
		frame.StringColumn("arm", []string{"control", "treated"}, nil),
		frame.BoolColumn("flag", []bool{true, false}, nil),
	)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	return table
}

func TestParquetSchemaCoversAllKinds(t *testing.T) {
	schema, err := parquetSchema(sampleTable(t))
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	for _, want := range []string{
		"name=id, type=INT64, repetitiontype=OPTIONAL",
		"name=score, type=DOUBLE, repetitiontype=OPTIONAL",
		"name=arm, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL",
		"name=flag, type=BOOLEAN, repetitiontype=OPTIONAL",
	} {
		if !strings.Contains(schema, want) {
			t.Fatalf("schema missing %q: %s", want, schema)
		}
	}
}

func TestWriteParquetEmitsMagicBytes(t *testing.T) {
	var buf bytes.Buffer
	if err := writeParquet(&buf, sampleTable(t)); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.Bytes()
	if !bytes.HasPrefix(out, []byte("PAR1")) || !bytes.HasSuffix(out, []byte("PAR1")) {
		t.Fatalf("expected parquet magic framing, got %d bytes", len(out))
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	if _, err := Render(Format("yaml"), "d", "raw", sampleTable(t)); err == nil {
		t.Fatalf("expected unknown format error")
	}
}
