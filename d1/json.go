package d1

import (
	"encoding/json"
	"fmt"
)

// JSON binds V as JSON text and decodes it back from a Text column.
type JSON[V any] struct {
	V V
}

func (JSON[V]) jsonText() {}

func (j JSON[V]) EncodeD1(buf *Buffer) (bool, error) {
	b, err := json.Marshal(j.V)
	if err != nil {
		return false, err
	}
	buf.Push(NewValue(string(b)))
	return false, nil
}

func (j *JSON[V]) DecodeD1(ref ValueRef) error {
	s, ok := ref.Raw().(string)
	if !ok {
		return fmt.Errorf("expected JSON text, got %s", ref.TypeInfo())
	}
	return json.Unmarshal([]byte(s), &j.V)
}

type jsonText interface{ jsonText() }
