package d1

import (
	"database/sql/driver"
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Buffer collects the host values produced while encoding parameters.
type Buffer struct {
	values []Value
}

// Push appends one host value.
func (b *Buffer) Push(v Value) {
	b.values = append(b.values, v)
}

// Len returns the number of values pushed so far.
func (b *Buffer) Len() int { return len(b.values) }

func (b *Buffer) truncate(n int) {
	clear(b.values[n:])
	b.values = b.values[:n]
}

// Encoder is implemented by types that bind as one or more host values.
// isNull reports that the encoded value is SQL NULL.
type Encoder interface {
	EncodeD1(buf *Buffer) (isNull bool, err error)
}

// Encode appends the host representation of v to buf. Pointers are the
// optional form: nil encodes as null, anything else as the pointee.
func Encode(buf *Buffer, v any) (isNull bool, err error) {
	if v == nil {
		buf.Push(NullValue())
		return true, nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			buf.Push(NullValue())
			return true, nil
		}
		if !hasPointerMethod(rv.Type()) {
			return Encode(buf, rv.Elem().Interface())
		}
	}

	switch x := v.(type) {
	case Encoder:
		return x.EncodeD1(buf)
	case Value:
		buf.Push(x)
		return x.IsNull(), nil
	case Undefined:
		buf.Push(NullValue())
		return true, nil
	case bool:
		if x {
			buf.Push(NewValue(int64(1)))
		} else {
			buf.Push(NewValue(int64(0)))
		}
		return false, nil
	case int:
		return encodeInt(buf, int64(x))
	case int8:
		return encodeInt(buf, int64(x))
	case int16:
		return encodeInt(buf, int64(x))
	case int32:
		return encodeInt(buf, int64(x))
	case int64:
		return encodeInt(buf, x)
	case uint:
		return encodeUint(buf, uint64(x))
	case uint8:
		return encodeUint(buf, uint64(x))
	case uint16:
		return encodeUint(buf, uint64(x))
	case uint32:
		return encodeUint(buf, uint64(x))
	case uint64:
		return encodeUint(buf, x)
	case float32:
		return encodeFloat(buf, float64(x))
	case float64:
		return encodeFloat(buf, x)
	case string:
		buf.Push(NewValue(x))
		return false, nil
	case json.RawMessage:
		buf.Push(NewValue(string(x)))
		return false, nil
	case []byte:
		buf.Push(NewValue(slices.Clone(x)))
		return false, nil
	case uuid.UUID:
		buf.Push(NewValue(slices.Clone(x[:])))
		return false, nil
	case HyphenatedUUID:
		buf.Push(NewValue(x.String()))
		return false, nil
	case SimpleUUID:
		buf.Push(NewValue(x.String()))
		return false, nil
	case time.Time:
		buf.Push(NewValue(FormatDateTime(x)))
		return false, nil
	case Date:
		buf.Push(NewValue(x.String()))
		return false, nil
	case TimeOfDay:
		buf.Push(NewValue(x.String()))
		return false, nil
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return false, err
		}
		if _, again := dv.(driver.Valuer); again {
			return false, fmt.Errorf("driver.Valuer %T returned another Valuer", v)
		}
		return Encode(buf, dv)
	case encoding.TextMarshaler:
		text, err := x.MarshalText()
		if err != nil {
			return false, err
		}
		buf.Push(NewValue(string(text)))
		return false, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return Encode(buf, rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return encodeInt(buf, rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return encodeUint(buf, rv.Uint())
	case reflect.Float32, reflect.Float64:
		return encodeFloat(buf, rv.Float())
	case reflect.String:
		buf.Push(NewValue(rv.String()))
		return false, nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			buf.Push(NewValue(slices.Clone(rv.Bytes())))
			return false, nil
		}
	}
	return false, fmt.Errorf("unsupported parameter type %T", v)
}

var encodingInterfaces = []reflect.Type{
	reflect.TypeFor[Encoder](),
	reflect.TypeFor[driver.Valuer](),
	reflect.TypeFor[encoding.TextMarshaler](),
}

// hasPointerMethod reports whether pointer type t encodes through a method
// declared on the pointer receiver. Methods promoted from the pointee do not
// count: those pointers encode as their pointee.
func hasPointerMethod(t reflect.Type) bool {
	for _, iface := range encodingInterfaces {
		if t.Implements(iface) && !t.Elem().Implements(iface) {
			return true
		}
	}
	return false
}

func encodeInt(buf *Buffer, n int64) (bool, error) {
	if n > MaxSafeInteger || n < -MaxSafeInteger {
		return false, fmt.Errorf("integer %d is outside the host's safe integer range", n)
	}
	buf.Push(NewValue(n))
	return false, nil
}

func encodeUint(buf *Buffer, n uint64) (bool, error) {
	if n > MaxSafeInteger {
		return false, fmt.Errorf("integer %d is outside the host's safe integer range", n)
	}
	buf.Push(NewValue(int64(n)))
	return false, nil
}

func encodeFloat(buf *Buffer, f float64) (bool, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false, fmt.Errorf("non-finite float %v cannot be bound", f)
	}
	buf.Push(NewValue(f))
	return false, nil
}
