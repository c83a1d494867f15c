// Package facet turns raw dataset records into display values.
//
// A Facet is compiled from a Config and is immutable: editing a facet means
// compiling a new one. Evaluation never fails; anything that cannot be
// turned into a usable value becomes Missing.
package facet

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"github.com/spektr-org/crossfacet/dataset"
)

var (
	// ErrUnsupported is returned for a type, kind, grouping or reduction
	// string that has no implementation.
	ErrUnsupported = errors.New("unsupported facet configuration")

	// ErrLogDomain is returned for logarithmic binning over a domain that
	// includes zero or negative numbers.
	ErrLogDomain = errors.New("logarithmic binning requires minval > 0")

	// ErrBinParam is returned for a zero or non-finite bin width.
	ErrBinParam = errors.New("invalid binning parameter")

	// ErrTooManyBins is returned when a grouping would produce more than MaxBins bins.
	ErrTooManyBins = errors.New("too many bins")
)

// ====== ENUMS ======

type Type int

const (
	TypeContinuous Type = iota
	TypeCategorical
)

func (t Type) String() string {
	if t == TypeCategorical {
		return "categorical"
	}
	return "continuous"
}

type Kind int

const (
	KindProperty Kind = iota
	KindFormula
)

func (k Kind) String() string {
	if k == KindFormula {
		return "formula"
	}
	return "property"
}

// Strategy selects how a continuous facet is cut into bins.
type Strategy int

const (
	FixedN             Strategy = iota // N equal bins over [min, max]
	FixedWidth                         // bins of a fixed width aligned on multiples of it
	FixedWidthCentered                 // bins of a fixed width centered on multiples of it
	Log                                // N bins of equal width in log10 space
)

func (s Strategy) String() string {
	switch s {
	case FixedWidth:
		return "fixeds"
	case FixedWidthCentered:
		return "fixedsc"
	case Log:
		return "log"
	default:
		return "fixedn"
	}
}

type Statistic int

const (
	Count Statistic = iota
	Sum
	Average
)

func (s Statistic) String() string {
	switch s {
	case Sum:
		return "sum"
	case Average:
		return "average"
	default:
		return "count"
	}
}

type Mode int

const (
	Absolute Mode = iota
	Percentage
)

func (m Mode) String() string {
	if m == Percentage {
		return "percentage"
	}
	return "absolute"
}

// Reduction is how a facet's values are aggregated within a bin.
type Reduction struct {
	Statistic Statistic
	Mode      Mode
}

// ====== VARIANTS ======

// Variant holds the fields specific to a facet type. It is either
// Continuous or Categorical.
type Variant interface {
	variant()
}

// Continuous is a numeric facet with a domain and a binning.
type Continuous struct {
	Min, Max float64
	Binning  *Binning
}

// Categorical maps base values onto groups with ordered rules.
type Categorical struct {
	Rules []Rule
}

func (Continuous) variant()  {}
func (Categorical) variant() {}

// Rule assigns Group to base values whose text matches Pattern.
type Rule struct {
	Pattern *regexp.Regexp
	Group   string
}

// ====== FACET ======

// Facet is a compiled, immutable facet.
type Facet struct {
	cfg Config

	kind      Kind
	accessor  string
	misval    []any
	formula   *formula
	reduction Reduction
	variant   Variant
	scale     Scale
}

// Compile validates cfg and builds the facet's value, group and scale
// functions. Malformed text fields fall back to defaults with a warning;
// unknown type, kind, grouping or reduction strings return ErrUnsupported.
func Compile(cfg Config, opts ...Option) (*Facet, error) {
	c := applyOptions(opts)
	log := c.Logger.With("facet", cfg.Name)

	typ, ok := parseType(cfg.Type)
	if !ok {
		log.Error("facet type not implemented", "type", cfg.Type)
		return nil, fmt.Errorf("%w: type %q", ErrUnsupported, cfg.Type)
	}
	kind, ok := parseKind(cfg.Kind)
	if !ok {
		log.Error("facet kind not implemented", "kind", cfg.Kind)
		return nil, fmt.Errorf("%w: kind %q", ErrUnsupported, cfg.Kind)
	}
	red, ok := parseReduction(cfg.Reduction, cfg.ReductionType)
	if !ok {
		log.Error("facet reduction not implemented",
			"reduction", cfg.Reduction, "reduction_type", cfg.ReductionType)
		return nil, fmt.Errorf("%w: reduction %q/%q", ErrUnsupported, cfg.Reduction, cfg.ReductionType)
	}

	f := &Facet{
		cfg:       cfg,
		kind:      kind,
		accessor:  cfg.Accessor,
		misval:    parseMisval(cfg.MisvalText, log),
		reduction: red,
	}
	if f.accessor == "" {
		f.accessor = cfg.Name
	}
	if kind == KindFormula {
		f.formula = compileFormula(f.accessor, log)
	}

	switch typ {
	case TypeContinuous:
		strategy, ok := parseStrategy(cfg.Grouping)
		if !ok {
			log.Error("grouping not implemented", "grouping", cfg.Grouping)
			return nil, fmt.Errorf("%w: grouping %q", ErrUnsupported, cfg.Grouping)
		}

		lo := parseBound(cfg.MinvalText, DefaultMinval, log, "minval")
		hi := parseBound(cfg.MaxvalText, DefaultMaxval, log, "maxval")
		if lo > hi {
			log.Warn("minval above maxval, swapping", "minval", lo, "maxval", hi)
			lo, hi = hi, lo
		}

		param := cfg.Bins
		if param == 0 && strategy != FixedWidth && strategy != FixedWidthCentered {
			param = DefaultBins
		}
		bins, err := NewBinning(strategy, param, lo, hi)
		if err != nil {
			log.Error("cannot build bins", "grouping", strategy, "param", param, "error", err)
			return nil, fmt.Errorf("facet %q: %w", cfg.Name, err)
		}

		cont := Continuous{Min: lo, Max: hi, Binning: bins}
		sc, err := newContinuousScale(cont)
		if err != nil {
			return nil, fmt.Errorf("facet %q: %w", cfg.Name, err)
		}
		f.variant = cont
		f.scale = sc

	case TypeCategorical:
		cat := Categorical{Rules: compileRules(cfg.Categories, log)}
		f.variant = cat
		f.scale = newOrdinalScale(cat.domain())
	}

	return f, nil
}

// MustCompile is like Compile but panics on error. Intended for tests and
// static configurations.
func MustCompile(cfg Config, opts ...Option) *Facet {
	f, err := Compile(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

func compileRules(cats []CategoryConfig, log *slog.Logger) []Rule {
	rules := make([]Rule, 0, len(cats))
	for _, c := range cats {
		re, err := regexp.Compile(c.Category)
		if err != nil {
			log.Warn("invalid category pattern, matching literally",
				"pattern", c.Category, "error", err)
			re = regexp.MustCompile(regexp.QuoteMeta(c.Category))
		}
		rules = append(rules, Rule{Pattern: re, Group: c.Group})
	}
	return rules
}

// domain is the sorted set of groups the rules can produce.
func (c Categorical) domain() []string {
	seen := make(map[string]bool, len(c.Rules))
	var out []string
	for _, r := range c.Rules {
		if !seen[r.Group] {
			seen[r.Group] = true
			out = append(out, r.Group)
		}
	}
	sort.Strings(out)
	return out
}

// ====== ACCESSORS ======

func (f *Facet) Name() string         { return f.cfg.Name }
func (f *Facet) Config() Config       { return f.cfg }
func (f *Facet) Kind() Kind           { return f.kind }
func (f *Facet) Reduction() Reduction { return f.reduction }
func (f *Facet) Variant() Variant     { return f.variant }
func (f *Facet) Scale() Scale         { return f.scale }

func (f *Facet) Type() Type {
	if _, ok := f.variant.(Categorical); ok {
		return TypeCategorical
	}
	return TypeContinuous
}

func (f *Facet) IsContinuous() bool  { return f.Type() == TypeContinuous }
func (f *Facet) IsCategorical() bool { return f.Type() == TypeCategorical }

// Min returns the lower domain bound; zero for categorical facets.
func (f *Facet) Min() float64 {
	if c, ok := f.variant.(Continuous); ok {
		return c.Min
	}
	return 0
}

// Max returns the upper domain bound; zero for categorical facets.
func (f *Facet) Max() float64 {
	if c, ok := f.variant.(Continuous); ok {
		return c.Max
	}
	return 0
}

// Binning returns the bins of a continuous facet, or nil.
func (f *Facet) Binning() *Binning {
	if c, ok := f.variant.(Continuous); ok {
		return c.Binning
	}
	return nil
}

// ====== VALUE PIPELINE ======

// BaseValue is the facet's raw value for r: the accessor field, or the
// formula result. Absent fields and sentinel values are Missing.
func (f *Facet) BaseValue(r dataset.Record) Value {
	if f.kind == KindFormula {
		if f.formula == nil {
			return Missing()
		}
		return f.formula.eval(r)
	}

	raw, ok := r[f.accessor]
	if !ok {
		return Missing()
	}
	for _, m := range f.misval {
		if raw == m {
			return Missing()
		}
	}
	return fromRaw(raw)
}

// Value is the facet's value for r. Continuous facets return a finite
// Number or Missing. Categorical facets return the group of the first
// matching rule, or the base value when no rule matches.
func (f *Facet) Value(r dataset.Record) Value {
	base := f.BaseValue(r)
	switch v := f.variant.(type) {
	case Continuous:
		return parseNumber(base)
	case Categorical:
		if base.IsMissing() {
			return base
		}
		text := base.Text()
		for _, rule := range v.Rules {
			if rule.Pattern.MatchString(text) {
				return Label(rule.Group)
			}
		}
		return base
	}
	return Missing()
}

// Group maps a value to its group key: the bin center for continuous
// facets, the value itself for categorical ones.
func (f *Facet) Group(v Value) Value {
	switch c := f.variant.(type) {
	case Continuous:
		x, ok := v.Float()
		if !ok {
			return Missing()
		}
		return c.Binning.Bin(x)
	case Categorical:
		return v
	}
	return Missing()
}

// Key is Group(Value(r)).
func (f *Facet) Key(r dataset.Record) Value {
	return f.Group(f.Value(r))
}

// Domain lists the group keys in axis order: bin centers for continuous
// facets, the sorted rule groups for categorical ones.
func (f *Facet) Domain() []Value {
	switch c := f.variant.(type) {
	case Continuous:
		out := make([]Value, len(c.Binning.Centers))
		for i, x := range c.Binning.Centers {
			out[i] = Number(x)
		}
		return out
	case Categorical:
		groups := c.domain()
		out := make([]Value, len(groups))
		for i, g := range groups {
			out[i] = Label(g)
		}
		return out
	}
	return nil
}

// OutsideDomain is the position just outside the valid domain where
// renderers place Missing or empty groups: minval - 1 for continuous
// facets, the empty label for categorical ones.
func (f *Facet) OutsideDomain() Value {
	if c, ok := f.variant.(Continuous); ok {
		return Number(c.Min - 1)
	}
	return Label("")
}

// ParseKey reads a group key from text, as typed on a command line or
// stored in a session. Continuous facets parse numbers.
func (f *Facet) ParseKey(s string) Value {
	if f.IsContinuous() {
		return parseNumber(Label(s))
	}
	return Label(s)
}
