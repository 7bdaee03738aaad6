package d1

import (
	"database/sql"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTypeInfoFor(t *testing.T) {
	cases := []struct {
		typ  reflect.Type
		want TypeInfo
		ok   bool
	}{
		{reflect.TypeFor[bool](), TypeBoolean, true},
		{reflect.TypeFor[int](), TypeInteger, true},
		{reflect.TypeFor[int8](), TypeInteger, true},
		{reflect.TypeFor[int64](), TypeInteger, true},
		{reflect.TypeFor[uint32](), TypeInteger, true},
		{reflect.TypeFor[float32](), TypeReal, true},
		{reflect.TypeFor[float64](), TypeReal, true},
		{reflect.TypeFor[string](), TypeText, true},
		{reflect.TypeFor[[]byte](), TypeBlob, true},
		{reflect.TypeFor[uuid.UUID](), TypeBlob, true},
		{reflect.TypeFor[HyphenatedUUID](), TypeText, true},
		{reflect.TypeFor[SimpleUUID](), TypeText, true},
		{reflect.TypeFor[Date](), TypeDate, true},
		{reflect.TypeFor[TimeOfDay](), TypeTime, true},
		{reflect.TypeFor[time.Time](), TypeDateTime, true},
		{reflect.TypeFor[JSON[map[string]int]](), TypeText, true},
		{reflect.TypeFor[*int64](), TypeInteger, true},
		{reflect.TypeFor[Value](), TypeNull, false},
		{reflect.TypeFor[sql.NullString](), TypeNull, false},
	}
	for _, tc := range cases {
		t.Run(tc.typ.String(), func(t *testing.T) {
			got, ok := TypeInfoFor(tc.typ)
			if got != tc.want || ok != tc.ok {
				t.Errorf("TypeInfoFor(%s) = %s, %v; want %s, %v", tc.typ, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestTypeInfoForIsCompatible(t *testing.T) {
	for _, typ := range []reflect.Type{
		reflect.TypeFor[bool](),
		reflect.TypeFor[int64](),
		reflect.TypeFor[float64](),
		reflect.TypeFor[string](),
		reflect.TypeFor[[]byte](),
		reflect.TypeFor[uuid.UUID](),
		reflect.TypeFor[Date](),
		reflect.TypeFor[TimeOfDay](),
		reflect.TypeFor[time.Time](),
	} {
		ti, ok := TypeInfoFor(typ)
		if !ok || !Compatible(typ, ti) {
			t.Errorf("%s is not compatible with its own class %s", typ, ti)
		}
	}
}
