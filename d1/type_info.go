package d1

import (
	"fmt"
	"strings"
)

// TypeInfo is the closed set of SQL classes a value or column can carry.
// Boolean, Date, Time and DateTime are logical refinements; on the wire they
// are stored as Integer or Text.
type TypeInfo uint8

const (
	TypeNull TypeInfo = iota
	TypeInteger
	TypeReal
	TypeText
	TypeBlob
	TypeBoolean
	TypeDate
	TypeTime
	TypeDateTime
)

var typeNames = [...]string{
	TypeNull:     "NULL",
	TypeInteger:  "INTEGER",
	TypeReal:     "REAL",
	TypeText:     "TEXT",
	TypeBlob:     "BLOB",
	TypeBoolean:  "BOOLEAN",
	TypeDate:     "DATE",
	TypeTime:     "TIME",
	TypeDateTime: "DATETIME",
}

// Name returns the canonical SQL type name.
func (t TypeInfo) Name() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("TypeInfo(%d)", t)
}

func (t TypeInfo) String() string {
	return t.Name()
}

// IsNull reports whether t is the NULL class.
func (t TypeInfo) IsNull() bool {
	return t == TypeNull
}

// StorageClass collapses logical classes onto the class the host actually
// stores.
func (t TypeInfo) StorageClass() TypeInfo {
	switch t {
	case TypeBoolean:
		return TypeInteger
	case TypeDate, TypeTime, TypeDateTime:
		return TypeText
	}
	return t
}

func (t TypeInfo) MarshalText() ([]byte, error) {
	return []byte(t.Name()), nil
}

func (t *TypeInfo) UnmarshalText(text []byte) error {
	name := strings.ToUpper(string(text))
	for i, n := range typeNames {
		if n == name {
			*t = TypeInfo(i)
			return nil
		}
	}
	return fmt.Errorf("d1: unknown type name %q", text)
}

// TypeInfoFromName maps an embedded SQLite engine's declared type name onto
// a TypeInfo. Unknown names fall back to Blob.
func TypeInfoFromName(name string) TypeInfo {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "NULL":
		return TypeNull
	case "TEXT":
		return TypeText
	case "REAL":
		return TypeReal
	case "BLOB":
		return TypeBlob
	case "INTEGER", "NUMERIC":
		return TypeInteger
	case "BOOLEAN":
		return TypeBoolean
	case "DATE":
		return TypeDate
	case "TIME":
		return TypeTime
	case "DATETIME":
		return TypeDateTime
	}
	return unknownType
}

// unknownType is the least-bad class for payloads with no SQL analogue.
const unknownType = TypeBlob
