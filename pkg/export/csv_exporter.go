package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Report is a titled table prepared for export. Rows are keyed by column name
// so callers can build them without caring about column order.
type Report struct {
	Title   string
	Columns []string
	Rows    []map[string]string
}

// CSVExporter renders reports as CSV bytes. The title is not part of the CSV
// output; it only matters for formats that carry a heading.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render encodes the report rows in column order.
func (e *CSVExporter) Render(report Report) ([]byte, error) {
	if len(report.Columns) == 0 {
		return nil, fmt.Errorf("csv requires at least one column")
	}

	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(report.Columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(report.Columns))
	for _, row := range report.Rows {
		for i, column := range report.Columns {
			record[i] = row[column]
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
