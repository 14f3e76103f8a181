package source

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV parses CSV bytes into a Dataset.
//
// Behavior:
//   - A UTF-8 BOM on the first header cell is stripped.
//   - Header cells and data cells are whitespace-trimmed.
//   - Ragged rows (cell count != header count) are skipped, not fatal;
//     FieldsPerRecord is disabled so the reader does not error on them.
func ReadCSV(data []byte, delimiter rune) (*Dataset, error) {
	data = bytes.TrimPrefix(bytes.TrimSpace(data), utf8BOM)
	if len(data) == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}

	r := csv.NewReader(bytes.NewReader(data))
	if delimiter != 0 {
		r.Comma = delimiter
	}
	r.FieldsPerRecord = -1 // ragged rows are validated manually
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	ds := &Dataset{Columns: columns}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(rec) != len(columns) {
			continue
		}
		row := make([]string, len(rec))
		for i, cell := range rec {
			row[i] = strings.TrimSpace(cell)
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}
