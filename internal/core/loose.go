package core

import (
	"encoding/json"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

var numericString = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// LooseEqual compares two field values with type coercion, so that a value
// that only changed type (42 vs "42", "1.0" vs "1") is not a change.
//
// Rules, first match wins:
//   - nil equals nil
//   - numbers and numeric strings compare as int64 when both are integers,
//     as digit strings when both are integers beyond int64, else as float64
//   - a bool compares against the truthiness of the other side
//   - nil equals "", zero and empty lists or maps
//   - a number and a non-numeric string compare as text
//   - lists and maps compare element-wise with LooseEqual
//   - anything else falls back to reflect.DeepEqual
func LooseEqual(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}

	na, aNum := toNumber(a)
	nb, bNum := toNumber(b)
	if aNum && bNum {
		return na.equal(nb)
	}

	if ab, ok := a.(bool); ok {
		return ab == truthy(b)
	}
	if bb, ok := b.(bool); ok {
		return bb == truthy(a)
	}

	if a == nil {
		return isEmptyValue(b)
	}
	if b == nil {
		return isEmptyValue(a)
	}

	as, aStr := a.(string)
	bs, bStr := b.(string)
	switch {
	case aStr && bStr:
		return as == bs
	case aNum && bStr:
		return na.String() == bs
	case bNum && aStr:
		return nb.String() == as
	}

	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if isList(av) && isList(bv) {
		if av.Len() != bv.Len() {
			return false
		}
		for i := 0; i < av.Len(); i++ {
			if !LooseEqual(av.Index(i).Interface(), bv.Index(i).Interface()) {
				return false
			}
		}
		return true
	}
	if isStringMap(av) && isStringMap(bv) {
		if av.Len() != bv.Len() {
			return false
		}
		iter := av.MapRange()
		for iter.Next() {
			other := bv.MapIndex(iter.Key())
			if !other.IsValid() || !LooseEqual(iter.Value().Interface(), other.Interface()) {
				return false
			}
		}
		return true
	}

	return reflect.DeepEqual(a, b)
}

type numberKind int

const (
	kindInt    numberKind = iota // fits int64
	kindBigInt                   // integer digits beyond int64, kept as text
	kindFloat
)

// number is a coerced numeric field value
type number struct {
	kind numberKind
	i    int64
	f    float64
	text string // normalized digits of a kindBigInt
}

func (n number) float() float64 {
	switch n.kind {
	case kindInt:
		return float64(n.i)
	case kindBigInt:
		f, _ := strconv.ParseFloat(n.text, 64)
		return f
	}
	return n.f
}

func (n number) isZero() bool {
	switch n.kind {
	case kindInt:
		return n.i == 0
	case kindBigInt:
		return false
	}
	return n.f == 0
}

func (n number) equal(o number) bool {
	switch {
	case n.kind == kindInt && o.kind == kindInt:
		return n.i == o.i
	case n.kind == kindBigInt && o.kind == kindBigInt:
		return n.text == o.text
	case n.kind == kindBigInt && o.kind == kindInt, n.kind == kindInt && o.kind == kindBigInt:
		// one side is outside int64, the other inside
		return false
	}
	return n.float() == o.float()
}

func (n number) String() string {
	switch n.kind {
	case kindInt:
		return strconv.FormatInt(n.i, 10)
	case kindBigInt:
		return n.text
	}
	return strconv.FormatFloat(n.f, 'f', -1, 64)
}

// toNumber coerces Go numbers, json.Number and numeric strings
func toNumber(v interface{}) (number, bool) {
	switch n := v.(type) {
	case int:
		return number{kind: kindInt, i: int64(n)}, true
	case int8:
		return number{kind: kindInt, i: int64(n)}, true
	case int16:
		return number{kind: kindInt, i: int64(n)}, true
	case int32:
		return number{kind: kindInt, i: int64(n)}, true
	case int64:
		return number{kind: kindInt, i: n}, true
	case uint:
		return fromUint(uint64(n)), true
	case uint8:
		return number{kind: kindInt, i: int64(n)}, true
	case uint16:
		return number{kind: kindInt, i: int64(n)}, true
	case uint32:
		return number{kind: kindInt, i: int64(n)}, true
	case uint64:
		return fromUint(n), true
	case float32:
		return number{kind: kindFloat, f: float64(n)}, true
	case float64:
		return number{kind: kindFloat, f: n}, true
	case json.Number:
		return parseNumber(string(n))
	case string:
		return parseNumber(n)
	}
	return number{}, false
}

func fromUint(u uint64) number {
	if u <= math.MaxInt64 {
		return number{kind: kindInt, i: int64(u)}
	}
	return number{kind: kindBigInt, text: strconv.FormatUint(u, 10)}
}

// parseNumber reads a numeric string. Strings without a fraction or exponent
// are integers.
func parseNumber(raw string) (number, bool) {
	s := strings.TrimSpace(raw)
	if !numericString.MatchString(s) {
		return number{}, false
	}
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return number{kind: kindInt, i: i}, true
		}
		return number{kind: kindBigInt, text: normalizeDigits(s)}, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return number{}, false
	}
	return number{kind: kindFloat, f: f}, true
}

// normalizeDigits drops a leading plus sign and leading zeros
func normalizeDigits(s string) string {
	sign := ""
	switch s[0] {
	case '-':
		sign, s = "-", s[1:]
	case '+':
		s = s[1:]
	}
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "0"
	}
	return sign + s
}

func truthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	if s, ok := v.(string); ok {
		return s != "" && s != "0"
	}
	if n, ok := toNumber(v); ok {
		return !n.isZero()
	}
	rv := reflect.ValueOf(v)
	if isList(rv) || rv.Kind() == reflect.Map {
		return rv.Len() > 0
	}
	return true
}

// isEmptyValue reports whether v loosely equals nil
func isEmptyValue(v interface{}) bool {
	if s, ok := v.(string); ok {
		return s == ""
	}
	if n, ok := toNumber(v); ok {
		return n.isZero()
	}
	rv := reflect.ValueOf(v)
	if isList(rv) || rv.Kind() == reflect.Map {
		return rv.Len() == 0
	}
	return false
}

func isList(v reflect.Value) bool {
	return v.Kind() == reflect.Slice || v.Kind() == reflect.Array
}

func isStringMap(v reflect.Value) bool {
	return v.Kind() == reflect.Map && v.Type().Key().Kind() == reflect.String
}
