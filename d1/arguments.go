package d1

import "slices"

// Arguments is the ordered list of host values bound to one statement.
type Arguments struct {
	buf Buffer
}

// NewArguments encodes each of args in order.
func NewArguments(args ...any) (*Arguments, error) {
	a := &Arguments{}
	a.Reserve(len(args), 0)
	for _, v := range args {
		if err := a.Add(v); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Reserve grows capacity for additional values. The size hint is accepted
// for symmetry with other drivers and ignored.
func (a *Arguments) Reserve(additional, size int) {
	a.buf.values = slices.Grow(a.buf.values, additional)
}

// Add encodes v and appends the resulting values. If encoding fails the
// list is left exactly as it was before the call.
func (a *Arguments) Add(v any) error {
	n := a.buf.Len()
	if _, err := Encode(&a.buf, v); err != nil {
		a.buf.truncate(n)
		return &EncodeError{Index: n, Value: v, Err: err}
	}
	return nil
}

// Len returns the number of host values.
func (a *Arguments) Len() int {
	if a == nil {
		return 0
	}
	return a.buf.Len()
}

// Values returns the encoded values in bind order.
func (a *Arguments) Values() []Value {
	if a == nil {
		return nil
	}
	return a.buf.values
}

// Raw returns the host payloads in bind order, as handed to a binding.
func (a *Arguments) Raw() []any {
	if a.Len() == 0 {
		return nil
	}
	out := make([]any, len(a.buf.values))
	for i, v := range a.buf.values {
		out[i] = v.Raw()
	}
	return out
}
