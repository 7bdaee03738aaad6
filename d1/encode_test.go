package d1

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
)

func encodeOne(t *testing.T, v any) (Value, bool) {
	t.Helper()
	var buf Buffer
	isNull, err := Encode(&buf, v)
	if err != nil {
		t.Fatalf("Encode(%#v): %v", v, err)
	}
	if buf.Len() != 1 {
		t.Fatalf("Encode(%#v) pushed %d values", v, buf.Len())
	}
	return buf.values[0], isNull
}

func TestEncodeScalars(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want any
	}{
		{"true", true, int64(1)},
		{"false", false, int64(0)},
		{"int", 42, int64(42)},
		{"uint8", uint8(7), int64(7)},
		{"float", 2.5, 2.5},
		{"string", "hi", "hi"},
		{"bytes", []byte{1, 2}, []byte{1, 2}},
		{"uuid blob", uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"), nil},
		{"hyphenated uuid", HyphenatedUUID(uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")), "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{"simple uuid", SimpleUUID(uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")), "6ba7b8109dad11d180b400c04fd430c8"},
		{"date", Date{2024, time.January, 15}, "2024-01-15"},
		{"time of day", TimeOfDay{Hour: 10, Minute: 30, Second: 5, Nanosecond: 250_000_000}, "10:30:05.25"},
		{"utc datetime", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), "2024-01-15T10:30:00"},
		{"zoned datetime", time.Date(2024, 1, 15, 10, 30, 0, 0, time.FixedZone("", 9*3600)), "2024-01-15T10:30:00+09:00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, isNull := encodeOne(t, tc.in)
			if isNull {
				t.Fatal("reported null")
			}
			if tc.name == "uuid blob" {
				b, ok := v.Raw().([]byte)
				if !ok || len(b) != 16 || v.TypeInfo() != TypeBlob {
					t.Fatalf("uuid encoded as %#v", v.Raw())
				}
				return
			}
			if !reflect.DeepEqual(v.Raw(), tc.want) {
				t.Errorf("Encode(%#v) = %#v, want %#v", tc.in, v.Raw(), tc.want)
			}
		})
	}
}

func TestEncodeBoolClassifiesAsInteger(t *testing.T) {
	v, _ := encodeOne(t, true)
	if v.TypeInfo() != TypeInteger {
		t.Errorf("encoded bool classified as %s", v.TypeInfo())
	}
}

func TestEncodeOptional(t *testing.T) {
	x := int64(5)
	direct, _ := encodeOne(t, x)
	some, isNull := encodeOne(t, &x)
	if isNull || !reflect.DeepEqual(direct, some) {
		t.Errorf("encoding &x = %#v, x = %#v", some, direct)
	}

	var none *int64
	v, isNull := encodeOne(t, none)
	if !isNull || !v.IsNull() {
		t.Errorf("nil pointer encoded as %#v (isNull=%v)", v.Raw(), isNull)
	}
}

func TestEncodePointerMatchesPointee(t *testing.T) {
	u := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	d := Date{Year: 2024, Month: time.January, Day: 15}
	h := HyphenatedUUID(u)
	s := SimpleUUID(u)
	j := JSON[map[string]int]{V: map[string]int{"a": 1}}

	cases := []struct {
		name           string
		value, pointer any
	}{
		{"uuid", u, &u},
		{"time", ts, &ts},
		{"date", d, &d},
		{"hyphenated uuid", h, &h},
		{"simple uuid", s, &s},
		{"json", j, &j},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			direct, _ := encodeOne(t, tc.value)
			some, isNull := encodeOne(t, tc.pointer)
			if isNull || !reflect.DeepEqual(direct, some) {
				t.Errorf("pointer encoded as %#v, value as %#v", some.Raw(), direct.Raw())
			}
		})
	}

	v, _ := encodeOne(t, &u)
	if !reflect.DeepEqual(v.Raw(), u[:]) {
		t.Errorf("*uuid.UUID encoded as %#v, want its 16-byte blob", v.Raw())
	}
}

type ptrEncoder struct{ n int64 }

func (p *ptrEncoder) EncodeD1(buf *Buffer) (bool, error) {
	buf.Push(NewValue(p.n * 2))
	return false, nil
}

func TestEncodeUsesPointerReceiverMethods(t *testing.T) {
	v, _ := encodeOne(t, &ptrEncoder{n: 21})
	if v.Raw() != int64(42) {
		t.Errorf("pointer-receiver encoder produced %#v", v.Raw())
	}
}

func TestEncodeRejects(t *testing.T) {
	for _, v := range []any{
		int64(MaxSafeInteger + 1),
		int64(-MaxSafeInteger - 1),
		uint64(math.MaxUint64),
		math.NaN(),
		math.Inf(1),
		struct{ A int }{1},
	} {
		var buf Buffer
		if _, err := Encode(&buf, v); err == nil {
			t.Errorf("Encode(%#v) succeeded", v)
		}
	}
}

func TestArgumentsAddTruncatesOnFailure(t *testing.T) {
	args, err := NewArguments("a", 1)
	if err != nil {
		t.Fatalf("NewArguments: %v", err)
	}
	before := append([]Value(nil), args.Values()...)

	err = args.Add(math.Inf(-1))
	var encErr *EncodeError
	if !errors.As(err, &encErr) {
		t.Fatalf("expected *EncodeError, got %v", err)
	}
	if encErr.Index != 2 {
		t.Errorf("EncodeError.Index = %d, want 2", encErr.Index)
	}
	if !reflect.DeepEqual(args.Values(), before) {
		t.Errorf("arguments changed after a failed Add: %#v", args.Values())
	}

	// A multi-value encoder failing halfway must also leave no trace.
	if err := args.Add(halfEncoder{}); err == nil {
		t.Fatal("expected halfEncoder to fail")
	}
	if args.Len() != 2 {
		t.Errorf("Len() = %d after failed multi-value Add, want 2", args.Len())
	}
}

type halfEncoder struct{}

func (halfEncoder) EncodeD1(buf *Buffer) (bool, error) {
	buf.Push(NewValue("first"))
	return false, errors.New("second half failed")
}

func TestArgumentsRaw(t *testing.T) {
	args, err := NewArguments(nil, "x", []byte{3}, true)
	if err != nil {
		t.Fatalf("NewArguments: %v", err)
	}
	want := []any{nil, "x", []byte{3}, int64(1)}
	if got := args.Raw(); !reflect.DeepEqual(got, want) {
		t.Errorf("Raw() = %#v, want %#v", got, want)
	}
	var empty *Arguments
	if empty.Len() != 0 || empty.Raw() != nil {
		t.Error("nil Arguments should be empty")
	}
}

func TestQueryKeepsFirstEncodeError(t *testing.T) {
	q := NewQuery("INSERT INTO t VALUES (?, ?)", 1, math.NaN())
	q.Bind("later")
	if _, err := q.Arguments(); err == nil {
		t.Fatal("expected the encode error")
	}
}

func TestJSONWrapper(t *testing.T) {
	v, _ := encodeOne(t, JSON[map[string]int]{V: map[string]int{"a": 1}})
	if v.Raw() != `{"a":1}` {
		t.Errorf("JSON encoded as %#v", v.Raw())
	}
	var back JSON[map[string]int]
	if err := Decode(v.Ref(), &back); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if back.V["a"] != 1 {
		t.Errorf("decoded %#v", back.V)
	}
}
