package dataset

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// QuerySQL runs a query and returns one Record per result row.
// Column names become field names; NULL columns are absent.
func QuerySQL(ctx context.Context, db *sqlx.DB, query string, args ...any) ([]Record, error) {
	rows, err := db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		raw := make(map[string]any)
		if err := rows.MapScan(raw); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec := make(Record, len(raw))
		for k, v := range raw {
			if nv, ok := Normalize(v); ok {
				rec[k] = nv
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}
