package dataset

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// ============================================================================
// DATASET: The shared, load-once record collection
// ============================================================================
// Records are loaded exactly once and are read-only afterwards. Every facet,
// dimension and widget holds the same *Dataset; nothing copies records.
// ============================================================================

// ErrAlreadyLoaded is returned by Load when the dataset already holds data.
var ErrAlreadyLoaded = errors.New("dataset already loaded")

// DefaultIDField is the record field used to cross-reference external geometry.
const DefaultIDField = "gid"

// Record is a single raw data row: field name → raw scalar (string or float64).
// Records are never mutated once they are part of a Dataset.
type Record map[string]any

// Get returns the raw value stored under field.
func (r Record) Get(field string) (any, bool) {
	v, ok := r[field]
	return v, ok
}

// Dataset is the ordered, shared record collection.
// Not safe for concurrent use; load it before handing it to other components.
type Dataset struct {
	records []Record
	fields  []string
	loaded  bool

	idField string
	logger  *slog.Logger
}

// New creates an empty dataset.
func New(opts ...Option) *Dataset {
	cfg := applyOptions(opts)
	return &Dataset{
		idField: cfg.IDField,
		logger:  cfg.Logger,
	}
}

// Load bulk-loads records. It may be called once per dataset.
func (d *Dataset) Load(records []Record) error {
	if d.loaded {
		return ErrAlreadyLoaded
	}
	d.records = records
	d.loaded = true
	d.cacheFields()

	d.logger.Info("dataset loaded",
		"records", len(records),
		"fields", len(d.fields),
		"id_field", d.idField)
	return nil
}

// Loaded reports whether Load has completed.
func (d *Dataset) Loaded() bool { return d.loaded }

// Len returns the number of records; zero before Load.
func (d *Dataset) Len() int { return len(d.records) }

// At returns record i, or nil when i is out of range.
func (d *Dataset) At(i int) Record {
	if i < 0 || i >= len(d.records) {
		return nil
	}
	return d.records[i]
}

// Records returns the backing slice. Callers must treat it as read-only.
func (d *Dataset) Records() []Record { return d.records }

// Fields returns every field name seen in the dataset, sorted.
func (d *Dataset) Fields() []string { return d.fields }

// IDField returns the identifier field name.
func (d *Dataset) IDField() string { return d.idField }

// ID returns the identifier of record i as a string, or "" if it has none.
func (d *Dataset) ID(i int) string {
	return IDOf(d.At(i), d.idField)
}

// IDOf formats the identifier field of a record.
func IDOf(r Record, idField string) string {
	v, ok := r[idField]
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return formatNumber(x)
	default:
		return fmt.Sprint(x)
	}
}

func (d *Dataset) cacheFields() {
	seen := make(map[string]bool)
	d.fields = d.fields[:0]
	for _, r := range d.records {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				d.fields = append(d.fields, k)
			}
		}
	}
	sort.Strings(d.fields)
}
