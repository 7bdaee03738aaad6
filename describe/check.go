package describe

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tomyedwab/d1sql/d1"
)

var goTypes = map[string]reflect.Type{
	"bool":              reflect.TypeFor[bool](),
	"int":               reflect.TypeFor[int](),
	"int8":              reflect.TypeFor[int8](),
	"int16":             reflect.TypeFor[int16](),
	"int32":             reflect.TypeFor[int32](),
	"int64":             reflect.TypeFor[int64](),
	"uint":              reflect.TypeFor[uint](),
	"uint8":             reflect.TypeFor[uint8](),
	"uint16":            reflect.TypeFor[uint16](),
	"uint32":            reflect.TypeFor[uint32](),
	"uint64":            reflect.TypeFor[uint64](),
	"float32":           reflect.TypeFor[float32](),
	"float64":           reflect.TypeFor[float64](),
	"string":            reflect.TypeFor[string](),
	"[]byte":            reflect.TypeFor[[]byte](),
	"any":               reflect.TypeFor[any](),
	"time.Time":         reflect.TypeFor[time.Time](),
	"uuid.UUID":         reflect.TypeFor[uuid.UUID](),
	"json.RawMessage":   reflect.TypeFor[json.RawMessage](),
	"sql.NullBool":      reflect.TypeFor[sql.NullBool](),
	"sql.NullInt64":     reflect.TypeFor[sql.NullInt64](),
	"sql.NullFloat64":   reflect.TypeFor[sql.NullFloat64](),
	"sql.NullString":    reflect.TypeFor[sql.NullString](),
	"sql.NullTime":      reflect.TypeFor[sql.NullTime](),
	"d1.Date":           reflect.TypeFor[d1.Date](),
	"d1.TimeOfDay":      reflect.TypeFor[d1.TimeOfDay](),
	"d1.HyphenatedUUID": reflect.TypeFor[d1.HyphenatedUUID](),
	"d1.SimpleUUID":     reflect.TypeFor[d1.SimpleUUID](),
	"d1.JSON":           reflect.TypeFor[d1.JSON[any]](),
	"d1.Value":          reflect.TypeFor[d1.Value](),
}

// ParseGoType resolves a Go type name as written in a query manifest, such
// as "int64", "*string" or "d1.Date". A leading * marks a nullable type.
func ParseGoType(name string) (reflect.Type, error) {
	name = strings.TrimSpace(name)
	if elem, ok := strings.CutPrefix(name, "*"); ok {
		t, err := ParseGoType(elem)
		if err != nil {
			return nil, err
		}
		return reflect.PointerTo(t), nil
	}
	if t, ok := goTypes[name]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("unsupported Go type %q", name)
}

// ColumnType is a declared result column.
type ColumnType struct {
	Name string
	Type reflect.Type
}

// Check compares declared parameter and column types with desc. A nil
// params or columns skips that half of the check. Every mismatch found is
// reported.
func Check(desc *d1.Describe, params []reflect.Type, columns []ColumnType) error {
	var errs []error
	if params != nil && desc.Parameters != nil {
		errs = append(errs, checkParams(desc.Parameters, params)...)
	}
	if columns != nil {
		errs = append(errs, checkColumns(desc, columns)...)
	}
	return errors.Join(errs...)
}

func checkParams(p *d1.Parameters, params []reflect.Type) []error {
	if len(params) != p.Count {
		return []error{fmt.Errorf("expected %d parameters, got %d", p.Count, len(params))}
	}
	var errs []error
	for i, ti := range p.Types {
		if i >= len(params) || d1.Compatible(params[i], ti) {
			continue
		}
		err := fmt.Errorf("parameter %d: mismatched types; Go type %s is not compatible with SQL type %s", i+1, params[i], ti)
		if declared, ok := d1.TypeInfoFor(params[i]); ok {
			err = fmt.Errorf("%w (%s binds as %s)", err, params[i], declared)
		}
		errs = append(errs, err)
	}
	return errs
}

func checkColumns(desc *d1.Describe, columns []ColumnType) []error {
	if len(columns) != len(desc.Columns) {
		return []error{fmt.Errorf("expected %d columns, got %d", len(desc.Columns), len(columns))}
	}
	var errs []error
	for i, col := range desc.Columns {
		decl := columns[i]
		if decl.Name != "" && decl.Name != col.Name() {
			errs = append(errs, fmt.Errorf("column %d is %q, declared as %q", i, col.Name(), decl.Name))
		}
		if !d1.Compatible(decl.Type, col.TypeInfo()) {
			errs = append(errs, fmt.Errorf("column %q: mismatched types; Go type %s is not compatible with SQL type %s", col.Name(), decl.Type, col.TypeInfo()))
		}
		if i < len(desc.Nullable) && desc.Nullable[i] != nil && *desc.Nullable[i] && !acceptsNull(decl.Type) {
			errs = append(errs, fmt.Errorf("column %q is nullable; declare it as *%s", col.Name(), decl.Type))
		}
	}
	return errs
}

var (
	scannerType = reflect.TypeFor[sql.Scanner]()
	decoderType = reflect.TypeFor[d1.Decoder]()
	valueType   = reflect.TypeFor[d1.Value]()
)

func acceptsNull(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface:
		return true
	}
	if t == valueType {
		return true
	}
	ptr := reflect.PointerTo(t)
	return ptr.Implements(scannerType) || ptr.Implements(decoderType)
}

// SuggestGoType is the Go type to declare for column i of desc.
func SuggestGoType(desc *d1.Describe, i int) string {
	name := d1.GoTypeName(desc.Columns[i].TypeInfo())
	if i < len(desc.Nullable) && desc.Nullable[i] != nil && *desc.Nullable[i] {
		return "*" + name
	}
	return name
}
