package d1

import (
	"context"
	"errors"
	"sync"

	"github.com/tomyedwab/d1sql/sqlproxy/types"
)

// fakeBinding records every host call and answers from canned results.
type fakeBinding struct {
	mu    sync.Mutex
	calls []string
	execs []string
	batch [][]types.Statement

	results map[string]types.Result // keyed by SQL
	failOn  string                  // SQL that fails at execution
}

func newFakeBinding() *fakeBinding {
	return &fakeBinding{results: map[string]types.Result{}}
}

func (f *fakeBinding) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBinding) callCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == prefix {
			n++
		}
	}
	return n
}

func (f *fakeBinding) Prepare(query string) PreparedStatement {
	f.record("prepare")
	return &fakeStatement{b: f, sql: query}
}

func (f *fakeBinding) Batch(ctx context.Context, stmts []PreparedStatement) ([]types.Result, error) {
	f.record("batch")
	var sent []types.Statement
	var out []types.Result
	for _, s := range stmts {
		fs := s.(*fakeStatement)
		sent = append(sent, types.Statement{SQL: fs.sql, Args: fs.args})
		out = append(out, f.results[fs.sql])
	}
	f.mu.Lock()
	f.batch = append(f.batch, sent)
	f.mu.Unlock()
	return out, nil
}

func (f *fakeBinding) Exec(ctx context.Context, query string) (types.Result, error) {
	f.record("exec")
	f.mu.Lock()
	f.execs = append(f.execs, query)
	f.mu.Unlock()
	return types.Result{Success: true}, nil
}

type fakeStatement struct {
	b    *fakeBinding
	sql  string
	args []any
}

func (s *fakeStatement) Bind(values ...any) (PreparedStatement, error) {
	s.b.record("bind")
	return &fakeStatement{b: s.b, sql: s.sql, args: values}, nil
}

func (s *fakeStatement) result() (types.Result, error) {
	if s.sql == s.b.failOn {
		return types.Result{}, errors.New("D1_ERROR: UNIQUE constraint failed: users.email")
	}
	return s.b.results[s.sql], nil
}

func (s *fakeStatement) All(ctx context.Context) (types.Result, error) {
	s.b.record("all")
	return s.result()
}

func (s *fakeStatement) First(ctx context.Context) (types.Record, error) {
	s.b.record("first")
	res, err := s.result()
	if err != nil || len(res.Results) == 0 {
		return nil, err
	}
	return res.Results[0], nil
}

func (s *fakeStatement) Run(ctx context.Context) (types.Result, error) {
	s.b.record("run")
	return s.result()
}
