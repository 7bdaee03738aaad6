package d1

import (
	"database/sql"
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/google/uuid"
)

var (
	timeType       = reflect.TypeFor[time.Time]()
	dateType       = reflect.TypeFor[Date]()
	timeOfDayType  = reflect.TypeFor[TimeOfDay]()
	uuidType       = reflect.TypeFor[uuid.UUID]()
	hyphenatedType = reflect.TypeFor[HyphenatedUUID]()
	simpleType     = reflect.TypeFor[SimpleUUID]()
	valueType      = reflect.TypeFor[Value]()
	jsonTextType   = reflect.TypeFor[jsonText]()
	scannerType    = reflect.TypeFor[sql.Scanner]()
	decoderType    = reflect.TypeFor[Decoder]()
)

// acceptedClasses lists the column classes a Go type decodes from, declared
// class first. ok is false for types that accept any class.
func acceptedClasses(t reflect.Type) (classes []TypeInfo, ok bool) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t {
	case timeType:
		return []TypeInfo{TypeDateTime, TypeText, TypeInteger, TypeReal}, true
	case dateType:
		return []TypeInfo{TypeDate, TypeText}, true
	case timeOfDayType:
		return []TypeInfo{TypeTime, TypeText}, true
	case uuidType:
		return []TypeInfo{TypeBlob, TypeText}, true
	case hyphenatedType, simpleType:
		return []TypeInfo{TypeText}, true
	case valueType:
		return nil, false
	}
	if t.Implements(jsonTextType) {
		return []TypeInfo{TypeText}, true
	}
	if ptr := reflect.PointerTo(t); ptr.Implements(scannerType) || ptr.Implements(decoderType) {
		return nil, false
	}
	switch t.Kind() {
	case reflect.Bool:
		return []TypeInfo{TypeBoolean, TypeInteger}, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return []TypeInfo{TypeInteger, TypeBoolean}, true
	case reflect.Float32, reflect.Float64:
		return []TypeInfo{TypeReal, TypeInteger}, true
	case reflect.String:
		return []TypeInfo{TypeText, TypeDate, TypeTime, TypeDateTime}, true
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return []TypeInfo{TypeBlob, TypeText}, true
		}
	}
	return nil, false
}

// TypeInfoFor returns the class a Go type is declared as. ok is false for
// types with no fixed class.
func TypeInfoFor(t reflect.Type) (TypeInfo, bool) {
	classes, ok := acceptedClasses(t)
	if !ok {
		return TypeNull, false
	}
	return classes[0], true
}

// Compatible reports whether values of class ti may be decoded into t. Null
// is compatible with everything here; decoding decides what a null means
// for the destination.
func Compatible(t reflect.Type, ti TypeInfo) bool {
	if ti == TypeNull {
		return true
	}
	classes, ok := acceptedClasses(t)
	if !ok {
		return true
	}
	return slices.Contains(classes, ti)
}

// GoTypeName is the Go type suggested for a column of class ti.
func GoTypeName(ti TypeInfo) string {
	switch ti {
	case TypeInteger:
		return "int64"
	case TypeReal:
		return "float64"
	case TypeText:
		return "string"
	case TypeBlob:
		return "[]byte"
	case TypeBoolean:
		return "bool"
	case TypeDate:
		return "d1.Date"
	case TypeTime:
		return "d1.TimeOfDay"
	case TypeDateTime:
		return "time.Time"
	}
	return "any"
}

func errIncompatible(t reflect.Type, ti TypeInfo) error {
	return fmt.Errorf("mismatched types; Go type %s is not compatible with SQL type %s", t, ti)
}
