package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"panelcore/pkg/frame"
)

// jsonEnvelope is the shape of JSON artifacts: schema plus row objects with
// null for missing cells.
type jsonEnvelope struct {
	Dataset string             `json:"dataset"`
	View    string             `json:"view"`
	Rows    int                `json:"rows"`
	Schema  []frame.ColumnInfo `json:"schema"`
	Data    []map[string]any   `json:"data"`
}

// Render materializes a table in the given format. The export worker uses it
// for artifacts and the HTTP layer for synchronous table downloads.
func Render(format Format, dataset, view string, table frame.Table) ([]byte, error) {
	switch format {
	case FormatCSV:
		return renderCSV(table)
	case FormatJSON:
		return renderJSON(dataset, view, table)
	case FormatParquet:
		return renderParquet(table)
	default:
		return nil, fmt.Errorf("export: unknown format %q", format)
	}
}

func renderCSV(table frame.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := frame.WriteCSV(&buf, table); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderJSON(dataset, view string, table frame.Table) ([]byte, error) {
	env := jsonEnvelope{
		Dataset: dataset,
		View:    view,
		Rows:    table.NumRows(),
		Schema:  table.Schema(),
		Data:    make([]map[string]any, 0, table.NumRows()),
	}
	for i := 0; i < table.NumRows(); i++ {
		row := make(map[string]any, table.NumCols())
		for j := 0; j < table.NumCols(); j++ {
			col := table.ColumnAt(j)
			row[col.Name()] = col.Value(i).Interface()
		}
		env.Data = append(env.Data, row)
	}
	return json.Marshal(env)
}

func renderParquet(table frame.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeParquet(&buf, table); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
