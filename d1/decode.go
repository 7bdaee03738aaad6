package d1

import (
	"database/sql"
	"database/sql/driver"
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/google/uuid"
)

// Decoder is implemented by pointer types that decode themselves from a
// host value.
type Decoder interface {
	DecodeD1(ref ValueRef) error
}

var errUnexpectedNull = errors.New("unexpected null; try decoding as a pointer")

func errMismatch(want string, raw any) error {
	return fmt.Errorf("mismatched types; cannot decode %T into %s", raw, want)
}

// Decode converts ref into dest, which must be a non-nil pointer. It does
// not check type compatibility first; Row.Get does.
func Decode(ref ValueRef, dest any) error {
	if err := decodeInto(ref, dest); err != nil {
		var decErr *DecodeError
		if errors.As(err, &decErr) {
			return err
		}
		return ref.decodeError(err)
	}
	return nil
}

// DecodeAs is Decode returning the value.
func DecodeAs[T any](ref ValueRef) (T, error) {
	var v T
	err := Decode(ref, &v)
	return v, err
}

func decodeInto(ref ValueRef, dest any) error {
	switch d := dest.(type) {
	case nil:
		return errors.New("destination is nil")
	case *any:
		if ref.IsNull() {
			*d = nil
		} else {
			*d = clonePayload(unwrap(ref.Raw()))
		}
		return nil
	case *Value:
		*d = ref.ToOwned()
		return nil
	case Decoder:
		return d.DecodeD1(ref)
	case sql.Scanner:
		return d.Scan(DriverValue(ref))
	}

	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("destination must be a non-nil pointer, got %T", dest)
	}
	target := rv.Elem()
	if ref.IsNull() {
		switch target.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
			target.SetZero()
			return nil
		}
		return errUnexpectedNull
	}
	if target.Kind() == reflect.Pointer {
		nv := reflect.New(target.Type().Elem())
		if err := decodeInto(ref, nv.Interface()); err != nil {
			return err
		}
		target.Set(nv)
		return nil
	}
	return decodeValue(ref, target)
}

func decodeValue(ref ValueRef, target reflect.Value) error {
	raw := unwrap(ref.Raw())
	t := target.Type()

	switch t {
	case timeType:
		v, err := decodeDateTime(raw, ref.TypeInfo())
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(v))
		return nil
	case dateType:
		s, ok := raw.(string)
		if !ok {
			return errMismatch("d1.Date", raw)
		}
		v, err := ParseDate(s)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(v))
		return nil
	case timeOfDayType:
		s, ok := raw.(string)
		if !ok {
			return errMismatch("d1.TimeOfDay", raw)
		}
		v, err := ParseTimeOfDay(s)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(v))
		return nil
	case uuidType:
		v, err := decodeUUID(raw)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(v))
		return nil
	case hyphenatedType, simpleType:
		s, ok := raw.(string)
		if !ok {
			return errMismatch(t.String(), raw)
		}
		v, err := uuid.Parse(s)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(v).Convert(t))
		return nil
	}

	if s, ok := raw.(string); ok && target.Kind() != reflect.String {
		if u, ok := target.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return u.UnmarshalText([]byte(s))
		}
	}

	switch target.Kind() {
	case reflect.Bool:
		if b, ok := raw.(bool); ok {
			target.SetBool(b)
			return nil
		}
		if f, ok := asFloat(raw); ok {
			target.SetBool(f != 0)
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if b, ok := raw.(bool); ok {
			target.SetInt(boolInt(b))
			return nil
		}
		n, ok := asInt64(raw)
		if !ok {
			break
		}
		if target.OverflowInt(n) {
			return fmt.Errorf("value %d overflows %s", n, t)
		}
		target.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if b, ok := raw.(bool); ok {
			target.SetUint(uint64(boolInt(b)))
			return nil
		}
		n, ok := asInt64(raw)
		if !ok {
			break
		}
		if n < 0 || target.OverflowUint(uint64(n)) {
			return fmt.Errorf("value %d overflows %s", n, t)
		}
		target.SetUint(uint64(n))
		return nil
	case reflect.Float32, reflect.Float64:
		f, ok := asFloat(raw)
		if !ok {
			break
		}
		if target.OverflowFloat(f) {
			return fmt.Errorf("value %v overflows %s", f, t)
		}
		target.SetFloat(f)
		return nil
	case reflect.String:
		if s, ok := raw.(string); ok {
			target.SetString(s)
			return nil
		}
	case reflect.Slice:
		if t.Elem().Kind() != reflect.Uint8 {
			break
		}
		if b, ok := asBytes(raw); ok {
			target.SetBytes(slices.Clone(b))
			return nil
		}
		if s, ok := raw.(string); ok {
			target.SetBytes([]byte(s))
			return nil
		}
	case reflect.Interface:
		if t.NumMethod() == 0 {
			target.Set(reflect.ValueOf(clonePayload(raw)))
			return nil
		}
	default:
		return fmt.Errorf("unsupported destination type %s", t)
	}
	return errMismatch(t.String(), raw)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// DriverValue converts ref into a driver.Value for sql.Scanner
// destinations and the database/sql driver.
func DriverValue(ref ValueRef) driver.Value {
	if ref.IsNull() {
		return nil
	}
	raw := unwrap(ref.Raw())
	switch ref.TypeInfo() {
	case TypeInteger:
		if n, ok := asInt64(raw); ok {
			return n
		}
	case TypeReal:
		if f, ok := asFloat(raw); ok {
			return f
		}
	case TypeBoolean:
		if b, ok := raw.(bool); ok {
			return b
		}
	case TypeText:
		if s, ok := raw.(string); ok {
			return s
		}
	}
	if b, ok := asBytes(raw); ok {
		return slices.Clone(b)
	}
	return fmt.Sprint(raw)
}
