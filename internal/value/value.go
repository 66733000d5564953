package value

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface representing attribute values.
// Only Null, String, Int, Float, Bool, Array and Object implement this.
type Value interface {
	value() // Sealed - only these types implement it
	String() string
}

// Null is the absent value, delivered by sources that report a change with no
// readable payload (e.g. an error notification).
type Null struct{}

func (Null) value() {}

func (Null) String() string { return "null" }

// String is a text value.
type String string

func (String) value() {}

func (s String) String() string { return string(s) }

// Int is an integer value. Enum ordinals arrive as Int.
type Int int64

func (Int) value() {}

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Float is a floating point value.
type Float float64

func (Float) value() {}

func (f Float) String() string { return strconv.FormatFloat(float64(f), 'g', -1, 64) }

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}

func (b Bool) String() string { return strconv.FormatBool(bool(b)) }

// Array is an ordered list of values (spectrum and image attributes).
type Array []Value

func (Array) value() {}

func (a Array) String() string {
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = render(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Object is a map of string keys to values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) value() {}

func (o Object) String() string {
	keys := o.SortedKeys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + render(o[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// render is String() with nil mapped to Null.
func render(v Value) string {
	if v == nil {
		return Null{}.String()
	}
	return v.String()
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 which produces a different order.
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Equal reports whether a and b hold the same value.
//
// Int and Float are compared numerically, so Int(1) equals Float(1).
// NaN never equals anything, including itself. A nil Value equals Null.
func Equal(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}

	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Int, Float:
		af, aok := numeric(a)
		bf, bok := numeric(b)
		if !aok || !bok {
			return false
		}
		// Compare ints exactly to avoid float rounding on large ordinals.
		if ai, ok := a.(Int); ok {
			if bi, ok := b.(Int); ok {
				return ai == bi
			}
		}
		return af == bf
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	}
	return false
}

func numeric(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	}
	return 0, false
}

// Of converts a Go value to a Value.
//
// Supported inputs are nil, Value, string, bool, every sized int and uint,
// float32, float64, []any, []Value, map[string]any and map[string]Value.
// Typed slices such as []float64 are common in spectrum attributes and are
// converted element by element.
func Of(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return fromUint(uint64(val))
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		return fromUint(val)
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case []Value:
		return Array(val), nil
	case []any:
		return ofSlice(len(val), func(i int) any { return val[i] })
	case []string:
		return ofSlice(len(val), func(i int) any { return val[i] })
	case []int:
		return ofSlice(len(val), func(i int) any { return val[i] })
	case []int64:
		return ofSlice(len(val), func(i int) any { return val[i] })
	case []float64:
		return ofSlice(len(val), func(i int) any { return val[i] })
	case []bool:
		return ofSlice(len(val), func(i int) any { return val[i] })
	case map[string]Value:
		return Object(val), nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			w, err := Of(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = w
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// MustOf is like Of but panics on unsupported input.
// Intended for tests and literals.
func MustOf(v any) Value {
	w, err := Of(v)
	if err != nil {
		panic(err)
	}
	return w
}

func fromUint(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("unsigned value %d overflows int64", u)
	}
	return Int(int64(u)), nil
}

func ofSlice(n int, at func(int) any) (Value, error) {
	arr := make(Array, n)
	for i := 0; i < n; i++ {
		w, err := Of(at(i))
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		arr[i] = w
	}
	return arr, nil
}

// AsInt returns v as an int64 when it is an Int or an integral Float.
// Used by label lookups, which key on enum ordinals.
func AsInt(v Value) (int64, bool) {
	switch n := v.(type) {
	case Int:
		return int64(n), true
	case Float:
		f := float64(n)
		if f == math.Trunc(f) && f >= -(1<<63) && f < (1<<63) {
			return int64(f), true
		}
	}
	return 0, false
}
