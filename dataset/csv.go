package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ============================================================================
// CSV LOADER: Parses CSV into []Record
// ============================================================================
// The header row names the fields. Numeric cells become float64 so that
// sentinel matching and formulas see the same types as JSON data does.
// ============================================================================

// ParseCSV reads CSV data with a header row into Records.
// Malformed rows are skipped; empty cells leave the field absent.
func ParseCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		rows = append(rows, row)
	}
	return recordsFromRows(headers, rows), nil
}

// recordsFromRows maps a header + rows table onto Records.
// Shared by the CSV and XLSX loaders.
func recordsFromRows(headers []string, rows [][]string) []Record {
	keys := make([]string, len(headers))
	for i, h := range headers {
		keys[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := make(Record, len(keys))
		for i, cell := range row {
			if i >= len(keys) || keys[i] == "" {
				break
			}
			if v, ok := parseCell(cell); ok {
				rec[keys[i]] = v
			}
		}
		records = append(records, rec)
	}
	return records
}
