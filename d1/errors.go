package d1

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a host failure.
type ErrorKind int

const (
	// ErrorKindOther is any failure not recognized below.
	ErrorKindOther ErrorKind = iota
	ErrorKindUniqueViolation
	ErrorKindForeignKeyViolation
	ErrorKindNotNullViolation
	ErrorKindCheckViolation
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindUniqueViolation:
		return "unique violation"
	case ErrorKindForeignKeyViolation:
		return "foreign key violation"
	case ErrorKindNotNullViolation:
		return "not null violation"
	case ErrorKindCheckViolation:
		return "check violation"
	}
	return "other"
}

// HostError wraps a failure reported by a host binding call.
type HostError struct {
	Op      string // prepare, bind, all, first, batch, exec
	Message string // the host's own message
	Kind    ErrorKind
	Cause   error
}

func (e *HostError) Error() string {
	return fmt.Sprintf("d1: host %s failed: %s", e.Op, e.Message)
}

func (e *HostError) Unwrap() error {
	return e.Cause
}

// NewHostError wraps err as returned by the host for op. An err that already
// is a *HostError is returned unchanged.
func NewHostError(op string, err error) *HostError {
	var hostErr *HostError
	if errors.As(err, &hostErr) {
		return hostErr
	}
	msg := err.Error()
	return &HostError{Op: op, Message: msg, Kind: kindOf(msg), Cause: err}
}

func kindOf(msg string) ErrorKind {
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return ErrorKindUniqueViolation
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return ErrorKindForeignKeyViolation
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return ErrorKindNotNullViolation
	case strings.Contains(msg, "CHECK constraint failed"):
		return ErrorKindCheckViolation
	}
	return ErrorKindOther
}

// EncodeError reports a parameter that could not be serialized into a host
// value.
type EncodeError struct {
	Index int // zero-based parameter position
	Value any
	Err   error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("d1: error encoding parameter %d (%#v): %v", e.Index+1, e.Value, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// DecodeError reports a column value that could not be converted into the
// requested Go type. Value is the literal host payload.
type DecodeError struct {
	Column  string
	Ordinal int
	Value   any
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Column == "" && e.Ordinal < 0 {
		return fmt.Sprintf("d1: error decoding value %#v: %v", e.Value, e.Err)
	}
	return fmt.Sprintf("d1: error decoding column %d (%q) from %#v: %v", e.Ordinal, e.Column, e.Value, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ColumnNotFoundError is returned when a row has no column with the
// requested name.
type ColumnNotFoundError struct {
	Name string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("d1: no column found for name: %s", e.Name)
}

// ColumnIndexOutOfBoundsError is returned when a positional lookup is past
// the end of a row.
type ColumnIndexOutOfBoundsError struct {
	Index int
	Len   int
}

func (e *ColumnIndexOutOfBoundsError) Error() string {
	return fmt.Sprintf("d1: column index out of bounds: the len is %d, but the index is %d", e.Len, e.Index)
}

// ConfigurationError reports missing or ambiguous local state and operations
// the host binding cannot support.
type ConfigurationError struct {
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("d1: configuration: %s: %v", e.Message, e.Err)
	}
	return "d1: configuration: " + e.Message
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

var (
	// ErrDescribeUnsupported is returned by Describe against a live host.
	ErrDescribeUnsupported = &ConfigurationError{Message: "describe is only available against the local D1 emulator; a live binding exposes no schema introspection"}

	// ErrURLUnsupported is returned when a connection is requested from a URL.
	ErrURLUnsupported = &ConfigurationError{Message: "D1 connections cannot be created from a URL; construct ConnectOptions from a binding instead"}

	// ErrTransactionDone is returned when a transaction is finished twice.
	ErrTransactionDone = errors.New("d1: transaction has already been committed or rolled back")

	// ErrStreamConsumed is returned when a fetch stream is read after it ended.
	ErrStreamConsumed = errors.New("d1: stream already consumed")

	// ErrNoRows is returned by FetchOne when the query produced no row.
	ErrNoRows = errors.New("d1: no rows returned by a query that expected to return at least one row")
)

// IsHostError reports whether err came from the host binding.
func IsHostError(err error) bool {
	var hostErr *HostError
	return errors.As(err, &hostErr)
}

// IsConfigurationError reports whether err is a configuration error.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
