package facet

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/spektr-org/crossfacet/dataset"
)

// formula is a compiled expression evaluated once per record. Record fields
// are variables; numeric text is presented as a number.
type formula struct {
	source  string
	program *vm.Program
}

var mathFunctions = []expr.Option{
	unary("sqrt", math.Sqrt),
	unary("log", math.Log),
	unary("log10", math.Log10),
	unary("exp", math.Exp),
	expr.Function("pow", func(params ...any) (any, error) {
		x, err := toFloat(params[0])
		if err != nil {
			return nil, err
		}
		y, err := toFloat(params[1])
		if err != nil {
			return nil, err
		}
		return math.Pow(x, y), nil
	}, new(func(float64, float64) float64)),
}

func unary(name string, fn func(float64) float64) expr.Option {
	return expr.Function(name, func(params ...any) (any, error) {
		x, err := toFloat(params[0])
		if err != nil {
			return nil, err
		}
		return fn(x), nil
	}, new(func(float64) float64))
}

// compileFormula returns nil when source does not compile; the facet then
// evaluates to Missing for every record.
func compileFormula(source string, log *slog.Logger) *formula {
	program, err := expr.Compile(source, mathFunctions...)
	if err != nil {
		log.Warn("formula does not compile", "formula", source, "error", err)
		return nil
	}
	return &formula{source: source, program: program}
}

func (f *formula) eval(r dataset.Record) (out Value) {
	defer func() {
		if recover() != nil {
			out = Missing()
		}
	}()

	env := make(map[string]any, len(r))
	for k, v := range r {
		if s, ok := v.(string); ok {
			if x, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				env[k] = x
				continue
			}
		}
		env[k] = v
	}

	res, err := expr.Run(f.program, env)
	if err != nil {
		return Missing()
	}
	return scalar(res)
}

// scalar converts an expression result into a Value.
func scalar(v any) Value {
	switch x := v.(type) {
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case uint:
		return Number(float64(x))
	case uint64:
		return Number(float64(x))
	case string:
		return Label(x)
	case bool:
		return Label(strconv.FormatBool(x))
	default:
		return Missing()
	}
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case float32:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
