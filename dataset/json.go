package dataset

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"
)

// ParseJSON reads a JSON array of flat objects into Records.
// Nested values are flattened to their string form; nulls are dropped.
func ParseJSON(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode JSON records: %w", err)
	}

	records := make([]Record, 0, len(raw))
	for _, obj := range raw {
		rec := make(Record, len(obj))
		for k, v := range obj {
			if nv, ok := Normalize(v); ok {
				rec[k] = nv
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
