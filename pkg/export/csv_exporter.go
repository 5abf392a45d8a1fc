package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset is the tabular form every register export is reduced to
// before rendering. Rows are keyed by header so a column missing from a
// row renders as an empty cell rather than shifting the line.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders a register dataset as CSV, the default download
// format for asset and repair exports.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render writes the header line followed by one line per row, in the
// column order Headers gives.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
