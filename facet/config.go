package facet

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// ============================================================================
// CONFIG: Facet configuration as an editor stores it
// ============================================================================
// Every field is kept in its textual form; Compile turns a Config into a
// Facet. Field names follow the stored session format so older sessions
// (type "categorial", kind "math") keep loading.
// ============================================================================

// Config is the editable, serializable description of a facet.
type Config struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Units       string `yaml:"units,omitempty" json:"units,omitempty"`

	Type     string `yaml:"type" json:"type"`         // continuous | categorical
	Kind     string `yaml:"kind" json:"kind"`         // property | formula
	Accessor string `yaml:"accessor" json:"accessor"` // field name or expression

	MisvalText string `yaml:"misval_astext,omitempty" json:"misval_astext,omitempty"`
	MinvalText string `yaml:"minval_astext,omitempty" json:"minval_astext,omitempty"`
	MaxvalText string `yaml:"maxval_astext,omitempty" json:"maxval_astext,omitempty"`

	Bins     float64 `yaml:"grouping_continuous_bins,omitempty" json:"grouping_continuous_bins,omitempty"`
	Grouping string  `yaml:"grouping_continuous,omitempty" json:"grouping_continuous,omitempty"`

	Reduction     string `yaml:"reduction,omitempty" json:"reduction,omitempty"`
	ReductionType string `yaml:"reduction_type,omitempty" json:"reduction_type,omitempty"`

	Categories []CategoryConfig `yaml:"categories,omitempty" json:"categories,omitempty"`
}

// CategoryConfig is one (pattern, group) rule in declared order.
type CategoryConfig struct {
	Category string `yaml:"category" json:"category"`
	Group    string `yaml:"group" json:"group"`
}

// Defaults used when a field is left empty.
const (
	DefaultMisval = "Infinity"
	DefaultMinval = 0.0
	DefaultMaxval = 100.0
	DefaultBins   = 20.0
)

// DefaultConfig returns the configuration a freshly created facet starts with.
func DefaultConfig(name string) Config {
	return Config{
		Name:          name,
		Type:          "continuous",
		Kind:          "property",
		Accessor:      name,
		MisvalText:    DefaultMisval,
		MinvalText:    "0",
		MaxvalText:    "100",
		Bins:          DefaultBins,
		Grouping:      "fixedn",
		Reduction:     "count",
		ReductionType: "absolute",
	}
}

// parseType maps the stored type string, accepting the legacy spelling.
func parseType(s string) (Type, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "continuous":
		return TypeContinuous, true
	case "categorical", "categorial":
		return TypeCategorical, true
	default:
		return 0, false
	}
}

func parseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "property":
		return KindProperty, true
	case "formula", "math":
		return KindFormula, true
	default:
		return 0, false
	}
}

func parseStrategy(s string) (Strategy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fixedn":
		return FixedN, true
	case "fixeds":
		return FixedWidth, true
	case "fixedsc":
		return FixedWidthCentered, true
	case "log":
		return Log, true
	default:
		return 0, false
	}
}

func parseReduction(stat, mode string) (Reduction, bool) {
	var r Reduction
	switch strings.ToLower(strings.TrimSpace(stat)) {
	case "", "count":
		r.Statistic = Count
	case "sum":
		r.Statistic = Sum
	case "average", "avg", "mean":
		r.Statistic = Average
	default:
		return r, false
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "absolute":
		r.Mode = Absolute
	case "percentage", "percent":
		r.Mode = Percentage
	default:
		return r, false
	}
	return r, true
}

// parseMisval reads the sentinel list as the body of a JSON array. Strings
// must be quoted, numbers bare. A malformed list falls back to ["Missing"].
func parseMisval(text string, logger *slog.Logger) []any {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	dec := json.NewDecoder(strings.NewReader("[" + text + "]"))
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		level := slog.LevelWarn
		if text == DefaultMisval {
			level = slog.LevelDebug
		}
		logger.Log(context.Background(), level, "malformed missing-value list, using default",
			"misval", text, "error", err)
		return []any{"Missing"}
	}

	out := make([]any, 0, len(raw))
	for _, v := range raw {
		switch x := v.(type) {
		case json.Number:
			if f, err := x.Float64(); err == nil {
				out = append(out, f)
			}
		case string, float64:
			out = append(out, x)
		case bool:
			out = append(out, strconv.FormatBool(x))
		}
	}
	return out
}

// parseBound parses a domain bound, falling back to def on failure.
func parseBound(text string, def float64, logger *slog.Logger, which string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		if strings.TrimSpace(text) != "" {
			logger.Warn("malformed domain bound, using default",
				"bound", which, "text", text, "default", def)
		}
		return def
	}
	return f
}
