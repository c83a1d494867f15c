package facet

import (
	"bytes"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/crossfacet/dataset"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func ageConfig() Config {
	return Config{
		Name:       "age",
		Type:       "continuous",
		Kind:       "property",
		Accessor:   "age",
		MinvalText: "0",
		MaxvalText: "100",
		Bins:       10,
		Grouping:   "fixedn",
	}
}

// ============================================================================
// VALUE PIPELINE
// ============================================================================

func TestAgeBins(t *testing.T) {
	f, err := Compile(ageConfig())
	require.NoError(t, err)

	records := []dataset.Record{{"age": 5.0}, {"age": 95.0}, {"age": "x"}}
	assert.Equal(t, Number(5), f.Key(records[0]))
	assert.Equal(t, Number(95), f.Key(records[1]))
	assert.True(t, f.Key(records[2]).IsMissing(), "unparseable value must be missing")
}

func TestCategoryRules(t *testing.T) {
	f, err := Compile(Config{
		Name:     "fruit",
		Type:     "categorical",
		Accessor: "fruit",
		Categories: []CategoryConfig{
			{Category: "^A", Group: "groupA"},
			{Category: "^B", Group: "groupB"},
		},
	})
	require.NoError(t, err)

	var got []Value
	for _, name := range []string{"Apple", "Banana", "Cherry"} {
		got = append(got, f.Value(dataset.Record{"fruit": name}))
	}
	assert.Equal(t, []Value{Label("groupA"), Label("groupB"), Label("Cherry")}, got)
}

func TestCategoryRuleOrder(t *testing.T) {
	f := MustCompile(Config{
		Name: "word",
		Type: "categorical",
		Categories: []CategoryConfig{
			{Category: "an", Group: "first"},
			{Category: "ana", Group: "second"},
		},
	})
	for i := 0; i < 10; i++ {
		assert.Equal(t, Label("first"), f.Value(dataset.Record{"word": "banana"}))
	}
}

func TestCategoricalMissingAndNumbers(t *testing.T) {
	f := MustCompile(Config{
		Name:       "code",
		Type:       "categorial",
		MisvalText: `"unknown"`,
		Categories: []CategoryConfig{{Category: "^1", Group: "ones"}},
	})

	assert.True(t, f.Value(dataset.Record{}).IsMissing())
	assert.True(t, f.Value(dataset.Record{"code": "unknown"}).IsMissing())
	assert.Equal(t, Label("ones"), f.Value(dataset.Record{"code": 12.0}))
	assert.Equal(t, Number(7), f.Value(dataset.Record{"code": 7.0}), "unmatched base passes through")
	assert.True(t, f.IsCategorical())
}

func TestInvalidPatternMatchesLiterally(t *testing.T) {
	f := MustCompile(Config{
		Name:       "tag",
		Type:       "categorical",
		Categories: []CategoryConfig{{Category: "a(b", Group: "literal"}},
	}, WithLogger(quietLogger()))

	assert.Equal(t, Label("literal"), f.Value(dataset.Record{"tag": "xa(by"}))
	assert.Equal(t, Label("ab"), f.Value(dataset.Record{"tag": "ab"}))
}

func TestSentinels(t *testing.T) {
	cfg := ageConfig()
	cfg.MisvalText = `-99, "NA"`
	f := MustCompile(cfg)

	assert.True(t, f.BaseValue(dataset.Record{"age": -99.0}).IsMissing())
	assert.True(t, f.BaseValue(dataset.Record{"age": "NA"}).IsMissing())
	assert.True(t, f.BaseValue(dataset.Record{"name": "x"}).IsMissing(), "absent field")

	// Sentinel matching is type-strict.
	assert.Equal(t, Label("-99"), f.BaseValue(dataset.Record{"age": "-99"}))
}

func TestMalformedSentinelsFallBack(t *testing.T) {
	var buf bytes.Buffer
	cfg := ageConfig()
	cfg.MisvalText = `[oops`
	f := MustCompile(cfg, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	assert.True(t, f.BaseValue(dataset.Record{"age": "Missing"}).IsMissing())
	assert.Equal(t, Number(12), f.Value(dataset.Record{"age": 12.0}))
	assert.Contains(t, buf.String(), "malformed missing-value list")
	assert.Equal(t, 1, strings.Count(buf.String(), "facet=age"))
}

func TestDefaultSentinelsCompileQuietly(t *testing.T) {
	var buf bytes.Buffer
	f := MustCompile(DefaultConfig("density"), WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	assert.True(t, f.BaseValue(dataset.Record{"density": "Missing"}).IsMissing())
	assert.NotContains(t, buf.String(), "level=WARN")
}

func TestContinuousValueIsFiniteOrMissing(t *testing.T) {
	f := MustCompile(ageConfig())

	inputs := []any{"NaN", "Inf", "-Infinity", "1e400", "", "  ", "12abc", math.NaN(), math.Inf(1), 3.5, " 42 ", "-7"}
	for _, in := range inputs {
		v := f.Value(dataset.Record{"age": in})
		if v.IsMissing() {
			continue
		}
		x, ok := v.Float()
		require.True(t, ok, "input %v", in)
		assert.False(t, math.IsNaN(x) || math.IsInf(x, 0), "input %v gave %v", in, x)
	}
	assert.Equal(t, Number(42), f.Value(dataset.Record{"age": " 42 "}))
	assert.Equal(t, Number(-7), f.Value(dataset.Record{"age": "-7"}))
}

func TestFormula(t *testing.T) {
	f, err := Compile(Config{
		Name:       "ratio",
		Kind:       "formula",
		Accessor:   "a / b",
		MinvalText: "0",
		MaxvalText: "10",
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		record dataset.Record
		want   Value
	}{
		{"numbers", dataset.Record{"a": 10.0, "b": 4.0}, Number(2.5)},
		{"numeric text", dataset.Record{"a": "6", "b": "3"}, Number(2)},
		{"division by zero", dataset.Record{"a": 1.0, "b": 0.0}, Missing()},
		{"type mismatch", dataset.Record{"a": "x", "b": 1.0}, Missing()},
		{"undefined variable", dataset.Record{"b": 1.0}, Missing()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Value(tt.record))
		})
	}
}

func TestFormulaFunctions(t *testing.T) {
	f := MustCompile(Config{Name: "root", Kind: "math", Accessor: "sqrt(area) + log10(pop)"})
	x, ok := f.Value(dataset.Record{"area": 16.0, "pop": 1000.0}).Float()
	require.True(t, ok)
	assert.InDelta(t, 7, x, 1e-9)
	assert.True(t, f.Value(dataset.Record{"area": -1.0, "pop": 10.0}).IsMissing())
}

func TestFormulaThatDoesNotCompile(t *testing.T) {
	f, err := Compile(Config{Name: "broken", Kind: "formula", Accessor: "a +"},
		WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.True(t, f.Value(dataset.Record{"a": 1.0}).IsMissing())
}

// ============================================================================
// CONFIGURATION
// ============================================================================

func TestUnsupportedConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"type", func(c *Config) { c.Type = "histogram" }},
		{"kind", func(c *Config) { c.Kind = "sql" }},
		{"grouping", func(c *Config) { c.Grouping = "quantile" }},
		{"reduction", func(c *Config) { c.Reduction = "median" }},
		{"reduction type", func(c *Config) { c.ReductionType = "ratio" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ageConfig()
			tt.mutate(&cfg)
			_, err := Compile(cfg, WithLogger(quietLogger()))
			assert.ErrorIs(t, err, ErrUnsupported)
		})
	}
}

func TestLogDomainRejected(t *testing.T) {
	cfg := ageConfig()
	cfg.Grouping = "log"
	_, err := Compile(cfg, WithLogger(quietLogger()))
	assert.ErrorIs(t, err, ErrLogDomain)

	cfg.MinvalText = "1"
	f, err := Compile(cfg)
	require.NoError(t, err)
	assert.Equal(t, Log, f.Binning().Strategy)
}

func TestBoundsFallback(t *testing.T) {
	cfg := ageConfig()
	cfg.MinvalText = "abc"
	cfg.MaxvalText = ""
	var buf bytes.Buffer
	f := MustCompile(cfg, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	assert.Equal(t, 0.0, f.Min())
	assert.Equal(t, 100.0, f.Max())
	assert.Contains(t, buf.String(), "bound=minval")
	assert.Equal(t, 1, strings.Count(buf.String(), "facet=age"))

	cfg.MinvalText, cfg.MaxvalText = "50", "10"
	f = MustCompile(cfg, WithLogger(quietLogger()))
	assert.Equal(t, 10.0, f.Min())
	assert.Equal(t, 50.0, f.Max())
}

func TestDefaultConfig(t *testing.T) {
	f, err := Compile(DefaultConfig("density"))
	require.NoError(t, err)

	assert.True(t, f.IsContinuous())
	assert.Equal(t, KindProperty, f.Kind())
	assert.Equal(t, 20, f.Binning().Len())
	assert.Equal(t, Reduction{Statistic: Count, Mode: Absolute}, f.Reduction())
	assert.Equal(t, Number(7.5), f.Key(dataset.Record{"density": 9.0}))
}

func TestReductionParsing(t *testing.T) {
	cfg := ageConfig()
	cfg.Reduction, cfg.ReductionType = "average", "percentage"
	f := MustCompile(cfg)
	assert.Equal(t, Reduction{Statistic: Average, Mode: Percentage}, f.Reduction())
}

func TestDomainAndOutside(t *testing.T) {
	cat := MustCompile(Config{
		Name: "fruit",
		Type: "categorical",
		Categories: []CategoryConfig{
			{Category: "^C", Group: "c"},
			{Category: "^A", Group: "a"},
			{Category: "^Av", Group: "a"},
		},
	})
	assert.Equal(t, []Value{Label("a"), Label("c")}, cat.Domain())
	assert.Equal(t, Label(""), cat.OutsideDomain())
	assert.Equal(t, Label("3"), cat.ParseKey("3"))

	age := MustCompile(ageConfig())
	assert.Len(t, age.Domain(), 10)
	assert.Equal(t, Number(-1), age.OutsideDomain())
	assert.Equal(t, Number(35), age.ParseKey("35"))
	assert.True(t, age.ParseKey("abc").IsMissing())
}

// ============================================================================
// VALUES & SCALES
// ============================================================================

func TestValue(t *testing.T) {
	assert.True(t, Number(math.NaN()).IsMissing())
	assert.True(t, Number(math.Inf(-1)).IsMissing())
	assert.Equal(t, Missing(), Value{})

	keys := map[Value]int{Number(1): 1, Label("1"): 2, Missing(): 3}
	assert.Len(t, keys, 3, "numbers, labels and missing are distinct keys")

	assert.Negative(t, Compare(Number(3), Number(4)))
	assert.Negative(t, Compare(Number(1e9), Label("a")))
	assert.Negative(t, Compare(Label("z"), Missing()))
	assert.Zero(t, Compare(Missing(), Missing()))

	for _, tt := range []struct {
		v    Value
		want string
	}{
		{Number(2.5), "2.5"},
		{Label("a"), `"a"`},
		{Missing(), "null"},
	} {
		b, err := tt.v.MarshalJSON()
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(b))
	}
}

func TestScales(t *testing.T) {
	lin := MustCompile(ageConfig()).Scale()
	assert.InDelta(t, 0.5, lin.Map(Number(50)), 1e-9)
	assert.True(t, math.IsNaN(lin.Map(Missing())))
	ticks := lin.Ticks(6)
	assert.NotEmpty(t, ticks)
	assert.LessOrEqual(t, len(ticks), 6)
	assert.Equal(t, 5, lin.Units(Number(0), Number(50)))

	cfg := ageConfig()
	cfg.Grouping, cfg.MinvalText, cfg.Bins = "log", "1", 2
	logScale := MustCompile(cfg).Scale()
	assert.InDelta(t, 0.5, logScale.Map(Number(10)), 1e-9)

	ord := MustCompile(Config{
		Name: "c",
		Type: "categorical",
		Categories: []CategoryConfig{
			{Category: "x", Group: "a"},
			{Category: "y", Group: "b"},
			{Category: "z", Group: "c"},
		},
	}).Scale()
	assert.InDelta(t, 0.5, ord.Map(Label("b")), 1e-9)
	assert.Equal(t, []Value{Label("a"), Label("b"), Label("c")}, ord.Ticks(10))
	assert.Equal(t, 2, ord.Units(Label("a"), Label("c")))
}
