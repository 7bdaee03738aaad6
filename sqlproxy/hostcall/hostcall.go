// Package hostcall is a d1.Binding that forwards every binding call to the
// host as a JSON request through a single call function. Inside a
// WebAssembly guest that function is the imported host handler; see
// wasi/guest.
package hostcall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tomyedwab/d1sql/d1"
	"github.com/tomyedwab/d1sql/sqlproxy/types"
)

// CallFunc sends one request payload to the host and returns its response.
type CallFunc func(requestPayload []byte) (responsePayload []byte, err error)

// CallHost is the process-wide host handler used by Default.
var CallHost CallFunc

// SetHostHandler allows the WASI application to set the function used to
// proxy binding calls to the host. This must be called before any database
// operations.
func SetHostHandler(handler CallFunc) {
	CallHost = handler
}

// Binding implements d1.Binding over a CallFunc.
type Binding struct {
	call CallFunc
}

// New returns a binding that sends requests through call.
func New(call CallFunc) *Binding {
	return &Binding{call: call}
}

// Default returns a binding over the handler set with SetHostHandler.
func Default() (*Binding, error) {
	if CallHost == nil {
		return nil, &d1.ConfigurationError{Message: "sqlproxy: CallHost function is not set"}
	}
	return New(CallHost), nil
}

func (b *Binding) roundTrip(ctx context.Context, req types.SQLRequest) (types.SQLResponse, error) {
	if err := ctx.Err(); err != nil {
		return types.SQLResponse{}, err
	}
	reqPayload, err := json.Marshal(req)
	if err != nil {
		return types.SQLResponse{}, fmt.Errorf("sqlproxy: failed to marshal %s request: %w", req.Command, err)
	}

	respPayload, err := b.call(reqPayload)
	if err != nil {
		return types.SQLResponse{}, fmt.Errorf("sqlproxy: CallHost for %s failed: %w", req.Command, err)
	}

	var resp types.SQLResponse
	if err := json.Unmarshal(respPayload, &resp); err != nil {
		return types.SQLResponse{}, fmt.Errorf("sqlproxy: failed to unmarshal %s response: %w", req.Command, err)
	}
	if resp.Error != "" {
		// The host's message is kept verbatim so callers can classify it.
		return types.SQLResponse{}, errors.New(resp.Error)
	}
	return resp, nil
}

func (b *Binding) Prepare(query string) d1.PreparedStatement {
	return &statement{b: b, sql: query}
}

func (b *Binding) Batch(ctx context.Context, stmts []d1.PreparedStatement) ([]types.Result, error) {
	req := types.SQLRequest{Command: types.CommandBatch, Statements: make([]types.Statement, len(stmts))}
	for i, s := range stmts {
		st, ok := s.(*statement)
		if !ok || st.b != b {
			return nil, fmt.Errorf("sqlproxy: batch statement %d was not prepared by this binding", i)
		}
		req.Statements[i] = types.Statement{SQL: st.sql, Args: st.args}
	}
	resp, err := b.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Batch) != len(stmts) {
		return nil, fmt.Errorf("sqlproxy: host returned %d batch results for %d statements", len(resp.Batch), len(stmts))
	}
	return resp.Batch, nil
}

func (b *Binding) Exec(ctx context.Context, query string) (types.Result, error) {
	resp, err := b.roundTrip(ctx, types.SQLRequest{Command: types.CommandExec, SQL: query})
	if err != nil {
		return types.Result{}, err
	}
	return resultOf(resp)
}

func resultOf(resp types.SQLResponse) (types.Result, error) {
	if resp.Result == nil {
		return types.Result{}, fmt.Errorf("sqlproxy: host response carried no result")
	}
	return *resp.Result, nil
}

type statement struct {
	b    *Binding
	sql  string
	args []any
}

// Bind converts blobs to arrays of byte numbers, the form the host binds
// as BLOB.
func (s *statement) Bind(values ...any) (d1.PreparedStatement, error) {
	args := make([]any, len(values))
	for i, v := range values {
		if blob, ok := v.([]byte); ok {
			args[i] = types.BlobArg(blob)
		} else {
			args[i] = v
		}
	}
	return &statement{b: s.b, sql: s.sql, args: args}, nil
}

func (s *statement) request(command string) types.SQLRequest {
	return types.SQLRequest{Command: command, SQL: s.sql, Args: s.args}
}

func (s *statement) All(ctx context.Context) (types.Result, error) {
	resp, err := s.b.roundTrip(ctx, s.request(types.CommandAll))
	if err != nil {
		return types.Result{}, err
	}
	return resultOf(resp)
}

func (s *statement) First(ctx context.Context) (types.Record, error) {
	resp, err := s.b.roundTrip(ctx, s.request(types.CommandFirst))
	if err != nil {
		return nil, err
	}
	return resp.Record, nil
}

func (s *statement) Run(ctx context.Context) (types.Result, error) {
	resp, err := s.b.roundTrip(ctx, s.request(types.CommandRun))
	if err != nil {
		return types.Result{}, err
	}
	return resultOf(resp)
}
