package session

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	json "github.com/goccy/go-json"
	"github.com/montanaflynn/stats"

	"github.com/spektr-org/crossfacet/dataset"
	"github.com/spektr-org/crossfacet/facet"
)

// ============================================================================
// AUTO-DISCOVERY
// ============================================================================
// Inspects loaded records and proposes a facet per useful field.
//
// Pipeline per field:
//   1. Collect values, counting empties and text markers like "N/A"
//   2. Detect type (numeric when 80%+ of values are numbers)
//   3. Type + cardinality → role (continuous, categorical, skip)
//   4. Continuous: domain from min/max, log binning for wide positive ranges
//   5. Categorical: one exact-match rule per distinct value
// ============================================================================

// DiscoverOptions controls discovery behavior.
type DiscoverOptions struct {
	SampleSize    int      // Max records to inspect (0 = all)
	RecoverFields []string // Force-include fields that were auto-skipped
	Name          string   // Session name
	Dataset       DatasetRef
}

// Discover proposes a session for the records in ds.
func Discover(ds *dataset.Dataset, opts ...DiscoverOptions) (*Session, error) {
	var opt DiscoverOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	records := ds.Records()
	if opt.SampleSize > 0 && len(records) > opt.SampleSize {
		records = records[:opt.SampleSize]
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset has no records")
	}

	recoverSet := make(map[string]bool)
	for _, f := range opt.RecoverFields {
		recoverSet[strings.ToLower(f)] = true
	}

	s := &Session{
		Name:    opt.Name,
		Dataset: opt.Dataset,
	}
	if s.Name == "" {
		s.Name = "Auto-discovered Session"
	}
	if s.Dataset.IDField == "" && ds.IDField() != dataset.DefaultIDField {
		s.Dataset.IDField = ds.IDField()
	}

	for _, field := range ds.Fields() {
		a := analyzeField(field, records, ds.IDField())
		recovered := recoverSet[strings.ToLower(field)] || recoverSet[a.key]

		switch {
		case a.role == roleContinuous:
			s.Facets = append(s.Facets, a.toContinuous())
		case a.role == roleCategorical:
			s.Facets = append(s.Facets, a.toCategorical())
		case recovered && a.recoverable:
			s.Facets = append(s.Facets, a.toCategorical())
		default:
			s.Skipped = append(s.Skipped, SkippedField{Field: field, Reason: a.skipReason})
		}
	}

	if len(s.Facets) > 0 {
		s.Widgets = []Widget{{Type: "barchart", Primary: s.Facets[0].Name}}
	}
	s.DiscoveredAt = time.Now().Format(time.RFC3339)
	return s, nil
}

// ============================================================================
// FIELD ANALYSIS
// ============================================================================

type fieldRole int

const (
	roleContinuous fieldRole = iota
	roleCategorical
	roleSkipped
)

// maxCategories caps the rules discovery writes for one categorical facet.
const maxCategories = 50

// logDecades is the range, in powers of ten, from which positive numeric
// fields get log binning.
const logDecades = 3

type fieldAnalysis struct {
	field       string
	key         string
	role        fieldRole
	skipReason  string
	recoverable bool

	totalCount  int
	nullCount   int
	uniqueCount int

	numeric     bool
	hasDecimals bool
	numbers     []float64
	markers     []string // non-numeric text found in a numeric field
	values      []string // distinct values, sorted
}

var nullMarkers = map[string]bool{"": true, "null": true, "NULL": true, "N/A": true, "n/a": true}

func analyzeField(field string, records []dataset.Record, idField string) fieldAnalysis {
	a := fieldAnalysis{
		field:      field,
		key:        toSnakeCase(field),
		totalCount: len(records),
	}
	if field == idField {
		a.role = roleSkipped
		a.skipReason = "Record identifier"
		return a
	}

	uniqueSet := make(map[string]bool)
	markerSet := make(map[string]bool)
	texts := 0

	for _, r := range records {
		raw, ok := r.Get(field)
		if !ok {
			a.nullCount++
			continue
		}
		switch v := raw.(type) {
		case float64:
			a.numbers = append(a.numbers, v)
			if v != math.Trunc(v) {
				a.hasDecimals = true
			}
			uniqueSet[strconv.FormatFloat(v, 'f', -1, 64)] = true
		case string:
			s := strings.TrimSpace(v)
			if nullMarkers[s] {
				a.nullCount++
				markerSet[v] = true
				continue
			}
			texts++
			markerSet[v] = true
			uniqueSet[s] = true
		}
	}

	a.uniqueCount = len(uniqueSet)
	present := len(a.numbers) + texts
	if present == 0 {
		a.role = roleSkipped
		a.skipReason = "All values are empty/null"
		return a
	}

	a.numeric = len(a.numbers) >= int(float64(present)*0.8)
	if a.numeric {
		a.markers = sortedKeys(markerSet)
	}
	a.values = sortedKeys(uniqueSet)
	a.classifyRole()
	return a
}

// classifyRole decides between continuous, categorical and skip.
func (a *fieldAnalysis) classifyRole() {
	total := a.totalCount
	if a.numeric {
		if a.uniqueCount == total && total > 10 && !a.hasDecimals {
			a.role = roleSkipped
			a.skipReason = "Unique per record, likely an ID field"
			return
		}
		if a.hasDecimals {
			a.role = roleContinuous
			return
		}
		// Few distinct integers relative to the record count read as codes
		ratio := float64(a.uniqueCount) / float64(total)
		if a.uniqueCount < 20 && ratio < 0.3 {
			a.role = roleCategorical
			return
		}
		a.role = roleContinuous
		return
	}

	switch {
	case a.uniqueCount == total && total > 10:
		a.role = roleSkipped
		a.skipReason = "Unique per record, likely an identifier"
	case a.uniqueCount > maxCategories:
		a.role = roleSkipped
		a.skipReason = fmt.Sprintf("High cardinality (%d unique values), not useful for grouping", a.uniqueCount)
		a.recoverable = true
	default:
		a.role = roleCategorical
	}
}

func (a *fieldAnalysis) toContinuous() facet.Config {
	cfg := facet.DefaultConfig(a.key)
	cfg.Accessor = a.field
	cfg.Description = toDisplayName(a.field)

	lo, _ := stats.Min(a.numbers)
	hi, _ := stats.Max(a.numbers)
	median, _ := stats.Median(a.numbers)
	if hi == lo {
		hi = lo + 1
	}
	cfg.MinvalText = strconv.FormatFloat(lo, 'g', -1, 64)
	cfg.MaxvalText = strconv.FormatFloat(hi, 'g', -1, 64)
	cfg.Description = fmt.Sprintf("%s (median %s)", cfg.Description, strconv.FormatFloat(RoundTo(median, 2), 'f', -1, 64))

	if lo > 0 && math.Log10(hi/lo) >= logDecades {
		cfg.Grouping = "log"
	}
	if len(a.markers) > 0 {
		cfg.MisvalText = quoteList(a.markers)
	}
	return cfg
}

func (a *fieldAnalysis) toCategorical() facet.Config {
	cfg := facet.DefaultConfig(a.key)
	cfg.Type = "categorical"
	cfg.Accessor = a.field
	cfg.Description = toDisplayName(a.field)
	cfg.Grouping = ""
	cfg.Bins = 0
	cfg.MinvalText, cfg.MaxvalText = "", ""

	values := a.values
	if len(values) > maxCategories {
		values = values[:maxCategories]
	}
	for _, v := range values {
		cfg.Categories = append(cfg.Categories, facet.CategoryConfig{
			Category: "^" + regexp.QuoteMeta(v) + "$",
			Group:    v,
		})
	}
	return cfg
}

// ============================================================================
// HELPERS
// ============================================================================

// RoundTo rounds f to the given number of decimals.
func RoundTo(f float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(f*p) / p
}

// quoteList renders values as the body of a JSON array of strings.
func quoteList(values []string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		parts = append(parts, string(b))
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// toSnakeCase converts a field name to a facet name.
// "StoryPoints" → "story_points", "Total Spend" → "total_spend"
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) && i > 0 {
			prev := rune(s[i-1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				result.WriteRune('_')
			}
		}
		result.WriteRune(r)
	}

	s = strings.ToLower(result.String())
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "__", "_")
	return strings.Trim(s, "_")
}

// toDisplayName cleans a field name for human display.
// "story_points" → "Story Points", "assignee" → "Assignee"
func toDisplayName(s string) string {
	if strings.Contains(s, " ") {
		return strings.TrimSpace(s)
	}
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")

	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
