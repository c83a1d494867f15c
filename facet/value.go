package facet

import (
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// ============================================================================
// VALUE: The outcome of evaluating a facet against a record
// ============================================================================
// A Value is a finite number, a label, or the Missing marker. The zero Value
// is Missing. Values are comparable, so they serve directly as group keys.
// ============================================================================

type valueKind uint8

const (
	kindMissing valueKind = iota
	kindNumber
	kindLabel
)

// Value is a facet value or group key.
type Value struct {
	kind  valueKind
	num   float64
	label string
}

// Missing returns the missing-value marker.
func Missing() Value { return Value{} }

// Number returns a numeric Value. NaN and ±Inf become Missing.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Missing()
	}
	return Value{kind: kindNumber, num: f}
}

// Label returns a categorical Value.
func Label(s string) Value {
	return Value{kind: kindLabel, label: s}
}

func (v Value) IsMissing() bool { return v.kind == kindMissing }
func (v Value) IsNumber() bool  { return v.kind == kindNumber }
func (v Value) IsLabel() bool   { return v.kind == kindLabel }

// Float returns the numeric value and true, or 0 and false for labels and Missing.
func (v Value) Float() (float64, bool) {
	if v.kind != kindNumber {
		return 0, false
	}
	return v.num, true
}

// Text is the string form used for category matching. Missing has no text.
func (v Value) Text() string {
	switch v.kind {
	case kindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case kindLabel:
		return v.label
	default:
		return ""
	}
}

func (v Value) String() string {
	if v.kind == kindMissing {
		return "(missing)"
	}
	return v.Text()
}

// MarshalJSON encodes numbers as JSON numbers, labels as strings and
// Missing as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindNumber:
		return json.Marshal(v.num)
	case kindLabel:
		return json.Marshal(v.label)
	default:
		return []byte("null"), nil
	}
}

// Compare orders Values: numbers ascending, then labels lexically, then Missing.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		return rank(a.kind) - rank(b.kind)
	}
	switch a.kind {
	case kindNumber:
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
		return 0
	case kindLabel:
		return strings.Compare(a.label, b.label)
	default:
		return 0
	}
}

func rank(k valueKind) int {
	switch k {
	case kindNumber:
		return 0
	case kindLabel:
		return 1
	default:
		return 2
	}
}

// fromRaw wraps a raw record scalar without any parsing.
func fromRaw(raw any) Value {
	switch x := raw.(type) {
	case float64:
		return Number(x)
	case string:
		return Label(x)
	case nil:
		return Missing()
	default:
		return Missing()
	}
}

// parseNumber is the continuous-value parse step: numbers pass, labels are
// parsed as floats, anything else is Missing.
func parseNumber(v Value) Value {
	switch v.kind {
	case kindNumber:
		return v
	case kindLabel:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.label), 64)
		if err != nil {
			return Missing()
		}
		return Number(f)
	default:
		return Missing()
	}
}
