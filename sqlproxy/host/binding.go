package host

import (
	"context"
	"fmt"

	"github.com/tomyedwab/d1sql/d1"
	"github.com/tomyedwab/d1sql/sqlproxy/types"
)

// Binding exposes an SQLHost to a d1.Connection in the same process. It
// also implements d1.Describer.
type Binding struct {
	h *SQLHost
}

// Binding returns an in-process binding for h.
func (h *SQLHost) Binding() *Binding {
	return &Binding{h: h}
}

func (b *Binding) Prepare(query string) d1.PreparedStatement {
	return &statement{h: b.h, sql: query}
}

func (b *Binding) Batch(ctx context.Context, stmts []d1.PreparedStatement) ([]types.Result, error) {
	out := make([]types.Statement, len(stmts))
	for i, s := range stmts {
		st, ok := s.(*statement)
		if !ok {
			return nil, fmt.Errorf("sqlproxy: batch statement %d was not prepared by this binding", i)
		}
		out[i] = types.Statement{SQL: st.sql, Args: st.args}
	}
	return b.h.Batch(ctx, out)
}

func (b *Binding) Exec(ctx context.Context, query string) (types.Result, error) {
	return b.h.Exec(ctx, query)
}

func (b *Binding) Describe(ctx context.Context, query string) (*d1.Describe, error) {
	return b.h.Describe(ctx, query)
}

type statement struct {
	h    *SQLHost
	sql  string
	args []any
}

func (s *statement) Bind(values ...any) (d1.PreparedStatement, error) {
	if _, err := bindArgs(values); err != nil {
		return nil, err
	}
	return &statement{h: s.h, sql: s.sql, args: values}, nil
}

func (s *statement) All(ctx context.Context) (types.Result, error) {
	return s.h.All(ctx, s.sql, s.args)
}

func (s *statement) First(ctx context.Context) (types.Record, error) {
	return s.h.First(ctx, s.sql, s.args)
}

func (s *statement) Run(ctx context.Context) (types.Result, error) {
	res, err := s.h.All(ctx, s.sql, s.args)
	res.Results = nil
	return res, err
}
