package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
)

// Dataset is a titled table. Rows are keyed by header; missing cells render empty.
type Dataset struct {
	Title   string
	Notes   []string
	Headers []string
	Rows    []map[string]string
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVExporter writes spreadsheet-friendly CSV: BOM-prefixed UTF-8 with CRLF line endings
// so Excel opens regional names correctly. Title and notes are not written.
type CSVExporter struct {
	Delimiter rune
	// NoBOM drops the byte order mark for consumers that choke on it.
	NoBOM bool
}

func NewCSVExporter() *CSVExporter {
	return &CSVExporter{Delimiter: ','}
}

func (e *CSVExporter) ContentType() string { return "text/csv; charset=utf-8" }

func (e *CSVExporter) Extension() string { return "csv" }

func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, errors.New("csv export needs headers")
	}
	var buf bytes.Buffer
	if !e.NoBOM {
		buf.Write(utf8BOM)
	}
	w := csv.NewWriter(&buf)
	w.UseCRLF = true
	if e.Delimiter != 0 {
		w.Comma = e.Delimiter
	}

	if err := w.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}
	line := make([]string, len(data.Headers))
	for n, row := range data.Rows {
		for i, h := range data.Headers {
			line[i] = neutralizeFormula(row[h])
		}
		if err := w.Write(line); err != nil {
			return nil, fmt.Errorf("csv row %d: %w", n+1, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv flush: %w", err)
	}
	return buf.Bytes(), nil
}

// neutralizeFormula quotes cells a spreadsheet would evaluate. Names and reasons come from
// user input, so "=HYPERLINK(...)" must stay text.
func neutralizeFormula(cell string) string {
	if cell != "" && strings.ContainsRune("=+-@\t\r", rune(cell[0])) {
		return "'" + cell
	}
	return cell
}
