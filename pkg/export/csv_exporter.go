package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// Dataset is a table keyed by header. Footer, when set, is rendered after the body as a summary row.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
	Footer  map[string]string
}

func (d Dataset) record(row map[string]string) []string {
	out := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		out[i] = row[header]
	}
	return out
}

// CSVExporter writes datasets as RFC 4180 CSV that spreadsheet tools open as plain text.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// ContentType reports the MIME type of rendered output.
func (e *CSVExporter) ContentType() string { return "text/csv; charset=utf-8" }

// Render writes the header line, every row and the optional footer. CSV has no title slot, so the
// title is ignored.
func (e *CSVExporter) Render(data Dataset, _ string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	write := func(cells []string, what string) error {
		for i, cell := range cells {
			cells[i] = neutralizeFormula(cell)
		}
		if err := writer.Write(cells); err != nil {
			return fmt.Errorf("write csv %s: %w", what, err)
		}
		return nil
	}

	if err := write(append([]string(nil), data.Headers...), "headers"); err != nil {
		return nil, err
	}
	for _, row := range data.Rows {
		if err := write(data.record(row), "row"); err != nil {
			return nil, err
		}
	}
	if data.Footer != nil {
		if err := write(data.record(data.Footer), "footer"); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// neutralizeFormula quotes cells a spreadsheet would evaluate as a formula. Signed numbers pass through.
func neutralizeFormula(cell string) string {
	if cell == "" {
		return cell
	}
	switch cell[0] {
	case '=', '+', '-', '@', '\t', '\r':
		if isNumeric(cell) {
			return cell
		}
		return "'" + cell
	}
	return cell
}

func isNumeric(cell string) bool {
	digits := strings.TrimLeft(cell, "+-")
	if digits == "" || len(cell)-len(digits) > 1 {
		return false
	}
	return strings.Trim(digits, "0123456789.") == ""
}
