package d1

import (
	"bytes"
	"encoding/json"
	"math"
	"slices"
)

// MaxSafeInteger is the largest integer the host can represent exactly.
const MaxSafeInteger = 1<<53 - 1

// Undefined is the host's "undefined" marker. It compares loosely equal to
// null.
type Undefined struct{}

// Value is an owned, immutable host value with its classified TypeInfo.
type Value struct {
	raw any
	ti  TypeInfo
}

// NewValue wraps a raw host payload.
func NewValue(raw any) Value {
	return Value{raw: raw, ti: Classify(raw)}
}

// NullValue returns the null host value.
func NullValue() Value {
	return Value{raw: nil, ti: TypeNull}
}

// Raw returns the host payload.
func (v Value) Raw() any { return v.raw }

// TypeInfo returns the class of the payload.
func (v Value) TypeInfo() TypeInfo { return v.ti }

// IsNull reports whether the payload is loosely equal to null.
func (v Value) IsNull() bool { return IsNullish(v.raw) }

// Ref borrows v.
func (v *Value) Ref() ValueRef {
	return ValueRef{v: v, ordinal: -1}
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsNull() {
		return []byte("null"), nil
	}
	return json.Marshal(v.raw)
}

// Equal reports whether two values carry the same payload.
func (v Value) Equal(o Value) bool {
	if v.IsNull() || o.IsNull() {
		return v.IsNull() && o.IsNull()
	}
	a, errA := json.Marshal(unwrap(v.raw))
	b, errB := json.Marshal(unwrap(o.raw))
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

// ValueRef is a borrowed view of a Value, usually one cell of a Row.
type ValueRef struct {
	v       *Value
	column  string
	ordinal int
}

// Raw returns the borrowed payload.
func (r ValueRef) Raw() any {
	if r.v == nil {
		return nil
	}
	return r.v.raw
}

// TypeInfo returns the class of the borrowed payload.
func (r ValueRef) TypeInfo() TypeInfo {
	if r.v == nil {
		return TypeNull
	}
	return r.v.ti
}

// IsNull reports whether the borrowed payload is loosely equal to null.
func (r ValueRef) IsNull() bool {
	return r.v == nil || r.v.IsNull()
}

// ToOwned copies the payload into an independent Value.
func (r ValueRef) ToOwned() Value {
	if r.v == nil {
		return NullValue()
	}
	return Value{raw: clonePayload(r.v.raw), ti: r.v.ti}
}

func (r ValueRef) decodeError(err error) *DecodeError {
	return &DecodeError{Column: r.column, Ordinal: r.ordinal, Value: r.Raw(), Err: err}
}

func clonePayload(raw any) any {
	switch v := raw.(type) {
	case []byte:
		return slices.Clone(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = clonePayload(e)
		}
		return out
	}
	return raw
}

// IsNullish is the host's loose null test: nil, Undefined and any
// wrapped null all qualify.
func IsNullish(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case Undefined, *Undefined:
		return true
	case Value:
		return IsNullish(v.raw)
	case *Value:
		return v == nil || IsNullish(v.raw)
	case ValueRef:
		return v.IsNull()
	}
	return false
}

// unwrap strips Value wrappers so a doubly wrapped payload classifies as its
// contents.
func unwrap(raw any) any {
	for {
		switch v := raw.(type) {
		case Value:
			raw = v.raw
		case *Value:
			if v == nil {
				return nil
			}
			raw = v.raw
		case ValueRef:
			raw = v.Raw()
		default:
			return raw
		}
	}
}

// Classify assigns a TypeInfo to a raw host payload. Booleans classify as
// the Boolean logical class, numbers as Integer when they are safe integers
// and Real otherwise. Anything else without a SQL analogue is a Blob.
func Classify(raw any) TypeInfo {
	if IsNullish(raw) {
		return TypeNull
	}
	switch v := unwrap(raw).(type) {
	case string:
		return TypeText
	case bool:
		return TypeBoolean
	case float64:
		return classifyFloat(v)
	case float32:
		return classifyFloat(float64(v))
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return classifyFloat(f)
		}
		return TypeReal
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		if f, ok := asFloat(v); ok {
			return classifyFloat(f)
		}
	}
	return unknownType
}

func classifyFloat(f float64) TypeInfo {
	if isSafeInteger(f) {
		return TypeInteger
	}
	return TypeReal
}

func isSafeInteger(f float64) bool {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	return f == math.Trunc(f) && math.Abs(f) <= MaxSafeInteger
}

// asFloat reads any numeric payload as the host's double.
func asFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// asInt64 reads an integral numeric payload exactly.
func asInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
	}
	f, ok := asFloat(raw)
	if !ok || math.IsNaN(f) || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// asBytes reads a blob payload, either raw bytes or an array of byte numbers.
func asBytes(raw any) ([]byte, bool) {
	switch v := raw.(type) {
	case []byte:
		return v, true
	case []any:
		out := make([]byte, len(v))
		for i, e := range v {
			n, ok := asInt64(e)
			if !ok || n < 0 || n > 255 {
				return nil, false
			}
			out[i] = byte(n)
		}
		return out, true
	}
	return nil, false
}
