package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// --- Host records ---

// Field is one key/value pair of a host record.
type Field struct {
	Name  string
	Value any
}

// Record is a host-returned row object. Field order is the object's own
// enumeration order and is preserved through JSON round trips.
type Record []Field

// Get returns the first field named name.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

func (r Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping its key order. Numbers become
// float64, matching the host's number semantics.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*r = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("sqlproxy: record must be a JSON object, got %v", tok)
	}
	out := Record{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("sqlproxy: unexpected record key %v", keyTok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return fmt.Errorf("sqlproxy: field %q: %w", key, err)
		}
		out = append(out, Field{Name: key, Value: val})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '[':
			arr := []any{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			_, err := dec.Token()
			return arr, err
		case '{':
			// Nested objects only appear in JSON-typed columns returned as
			// structured values; keep their order too.
			obj := Record{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj = append(obj, Field{Name: keyTok.(string), Value: v})
			}
			_, err := dec.Token()
			return obj, err
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case json.Number:
		return strconv.ParseFloat(string(t), 64)
	default:
		return t, nil
	}
}

// --- JSON structures for host communication ---

// Meta carries the host's execution summary for one statement.
type Meta struct {
	Changes     int64   `json:"changes"`
	LastRowID   int64   `json:"last_row_id"`
	Duration    float64 `json:"duration"`
	RowsRead    int64   `json:"rows_read"`
	RowsWritten int64   `json:"rows_written"`
	ChangedDB   bool    `json:"changed_db"`
}

// Result is the outcome of executing one statement with all().
type Result struct {
	Results []Record `json:"results"`
	Meta    Meta     `json:"meta"`
	Success bool     `json:"success"`
}

// Statement is a prepared and bound statement as sent to the host.
type Statement struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args,omitempty"`
}

// Commands understood by the host.
const (
	CommandAll   = "all"
	CommandFirst = "first"
	CommandRun   = "run"
	CommandBatch = "batch"
	CommandExec  = "exec"
)

// SQLRequest defines the structure for requests sent to the host.
type SQLRequest struct {
	Command    string      `json:"command"`
	SQL        string      `json:"sql,omitempty"`
	Args       []any       `json:"args,omitempty"` // Blobs travel as arrays of byte numbers
	Statements []Statement `json:"statements,omitempty"`
}

// SQLResponse is the host's reply to any SQLRequest. Exactly one of the
// payload fields is meaningful depending on the command.
type SQLResponse struct {
	Result *Result  `json:"result,omitempty"` // all, run, exec
	Record Record   `json:"record,omitempty"` // first; absent or null when there is no row
	Batch  []Result `json:"batch,omitempty"`  // batch
	Error  string   `json:"error,omitempty"`
}

// BlobArg converts a byte slice into the array-of-numbers form the host
// binds as a BLOB.
func BlobArg(b []byte) []any {
	out := make([]any, len(b))
	for i, c := range b {
		out[i] = float64(c)
	}
	return out
}

// BlobBytes converts an array of byte numbers back into bytes. ok is false
// if any element is not an integer in 0..255.
func BlobBytes(arr []any) (b []byte, ok bool) {
	out := make([]byte, len(arr))
	for i, v := range arr {
		var n float64
		switch x := v.(type) {
		case float64:
			n = x
		case int:
			n = float64(x)
		case int64:
			n = float64(x)
		case uint8:
			n = float64(x)
		default:
			return nil, false
		}
		if n < 0 || n > 255 || n != float64(int(n)) {
			return nil, false
		}
		out[i] = byte(n)
	}
	return out, true
}
