package d1

import (
	"encoding/json"
	"fmt"
	"reflect"
	"unique"

	"github.com/tomyedwab/d1sql/sqlproxy/types"
)

// Column describes one result column.
type Column struct {
	ordinal  int
	name     unique.Handle[string]
	typeInfo TypeInfo
}

// NewColumn returns a column. Names are interned, so the same name across
// many rows shares storage.
func NewColumn(ordinal int, name string, ti TypeInfo) Column {
	return Column{ordinal: ordinal, name: unique.Make(name), typeInfo: ti}
}

func (c Column) Ordinal() int       { return c.ordinal }
func (c Column) TypeInfo() TypeInfo { return c.typeInfo }

func (c Column) Name() string {
	if c.name == (unique.Handle[string]{}) {
		return ""
	}
	return c.name.Value()
}

type columnJSON struct {
	Ordinal  int      `json:"ordinal"`
	Name     string   `json:"name"`
	TypeInfo TypeInfo `json:"type_info"`
}

func (c Column) MarshalJSON() ([]byte, error) {
	return json.Marshal(columnJSON{c.ordinal, c.Name(), c.typeInfo})
}

func (c *Column) UnmarshalJSON(data []byte) error {
	var cj columnJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return err
	}
	*c = NewColumn(cj.Ordinal, cj.Name, cj.TypeInfo)
	return nil
}

// Row is one decoded result row. Columns keep the enumeration order of the
// host record they came from.
type Row struct {
	columns []Column
	values  []Value
}

// RowFromRecord builds a row from a host record. Each column's ordinal is
// its position in the record.
func RowFromRecord(rec types.Record) *Row {
	r := &Row{
		columns: make([]Column, len(rec)),
		values:  make([]Value, len(rec)),
	}
	for i, f := range rec {
		v := NewValue(f.Value)
		r.values[i] = v
		r.columns[i] = NewColumn(i, f.Name, v.TypeInfo())
	}
	return r
}

// Columns returns the row's columns in order.
func (r *Row) Columns() []Column { return r.columns }

// Len returns the number of columns.
func (r *Row) Len() int { return len(r.columns) }

// Index resolves a column index, either an int ordinal or a string name.
func (r *Row) Index(index any) (int, error) {
	switch i := index.(type) {
	case int:
		if i < 0 || i >= len(r.columns) {
			return 0, &ColumnIndexOutOfBoundsError{Index: i, Len: len(r.columns)}
		}
		return i, nil
	case string:
		for _, c := range r.columns {
			if c.Name() == i {
				return c.ordinal, nil
			}
		}
		return 0, &ColumnNotFoundError{Name: i}
	}
	return 0, fmt.Errorf("d1: unsupported column index type %T", index)
}

// TryGetRaw borrows the value at index.
func (r *Row) TryGetRaw(index any) (ValueRef, error) {
	i, err := r.Index(index)
	if err != nil {
		return ValueRef{}, err
	}
	return ValueRef{v: &r.values[i], column: r.columns[i].Name(), ordinal: i}, nil
}

// Get decodes the value at index into dest after checking that the value's
// class is compatible with dest's type.
func (r *Row) Get(index any, dest any) error {
	ref, err := r.TryGetRaw(index)
	if err != nil {
		return err
	}
	if t := reflect.TypeOf(dest); t != nil && t.Kind() == reflect.Pointer && !ref.IsNull() {
		if !Compatible(t.Elem(), ref.TypeInfo()) {
			return ref.decodeError(errIncompatible(t.Elem(), ref.TypeInfo()))
		}
	}
	return Decode(ref, dest)
}

// GetUnchecked decodes the value at index into dest without the
// compatibility check.
func (r *Row) GetUnchecked(index any, dest any) error {
	ref, err := r.TryGetRaw(index)
	if err != nil {
		return err
	}
	return Decode(ref, dest)
}

// Scan decodes the row positionally into dest, like sql.Rows.Scan.
func (r *Row) Scan(dest ...any) error {
	if len(dest) != len(r.columns) {
		return fmt.Errorf("d1: expected %d destination arguments in Scan, not %d", len(r.columns), len(dest))
	}
	for i, d := range dest {
		if err := r.Get(i, d); err != nil {
			return err
		}
	}
	return nil
}

// Get decodes the value at index of r as T.
func Get[T any](r *Row, index any) (T, error) {
	var v T
	err := r.Get(index, &v)
	return v, err
}
