package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"

	"github.com/serisow/datalens/tabular"
)

// CSVRenderer writes a header row followed by every data row; null cells
// render empty.
type CSVRenderer struct{}

func (r *CSVRenderer) ContentType() string   { return "text/csv" }
func (r *CSVRenderer) FileExtension() string { return "csv" }

func (r *CSVRenderer) Render(t *tabular.Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(t.ColumnNames()); err != nil {
		return nil, err
	}
	for _, row := range t.Rows {
		record := make([]string, len(row))
		for i, cell := range row {
			record[i] = cell.Display(t.Columns[i].Kind)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// JSONRenderer emits an array of objects keyed by column name; null cells
// become JSON null.
type JSONRenderer struct{}

func (r *JSONRenderer) ContentType() string   { return "application/json" }
func (r *JSONRenderer) FileExtension() string { return "json" }

func (r *JSONRenderer) Render(t *tabular.Table) ([]byte, error) {
	return json.MarshalIndent(t.Records(), "", "  ")
}
