package d1

import (
	"github.com/tomyedwab/d1sql/sqlproxy/types"
)

// Statement is a prepared statement. D1 reports nothing about a statement
// before it runs, so Parameters is always nil and Columns always empty.
type Statement struct {
	sql string
}

// SQL returns the statement text.
func (s *Statement) SQL() string { return s.sql }

// Parameters returns the declared parameter types, which a live host never
// provides.
func (s *Statement) Parameters() []TypeInfo { return nil }

// Columns returns the declared result columns, which a live host never
// provides.
func (s *Statement) Columns() []Column { return nil }

// Query starts a query from the statement with args bound in order.
func (s *Statement) Query(args ...any) *Query {
	return NewQuery(s.sql, args...)
}

// Query is a SQL string plus the arguments bound so far. The first encode
// failure is kept and reported when the query runs.
type Query struct {
	sql  string
	args *Arguments
	err  error
}

// NewQuery returns a query with args bound in order.
func NewQuery(sql string, args ...any) *Query {
	q := &Query{sql: sql}
	for _, a := range args {
		q.Bind(a)
	}
	return q
}

// Bind appends one argument.
func (q *Query) Bind(v any) *Query {
	if q.err != nil {
		return q
	}
	if q.args == nil {
		q.args = &Arguments{}
	}
	if err := q.args.Add(v); err != nil {
		q.err = err
	}
	return q
}

// SQL returns the query text.
func (q *Query) SQL() string { return q.sql }

// Arguments returns the bound arguments, or the first encode error. A query
// with no arguments returns nil.
func (q *Query) Arguments() (*Arguments, error) {
	if q.err != nil {
		return nil, q.err
	}
	return q.args, nil
}

// QueryResult summarizes a statement that modified the database.
type QueryResult struct {
	RowsAffected    int64 `json:"rows_affected"`
	LastInsertRowID int64 `json:"last_insert_rowid"`
}

// Extend folds later results into r: affected rows add up and the last
// insert id is the latest one seen.
func (r *QueryResult) Extend(others ...QueryResult) {
	for _, o := range others {
		r.RowsAffected += o.RowsAffected
		r.LastInsertRowID = o.LastInsertRowID
	}
}

func resultFromMeta(m types.Meta) QueryResult {
	return QueryResult{RowsAffected: m.Changes, LastInsertRowID: m.LastRowID}
}

// Describe is what an introspecting host reports about a statement.
type Describe struct {
	Columns    []Column    `json:"columns"`
	Parameters *Parameters `json:"parameters,omitempty"`
	Nullable   []*bool     `json:"nullable"`
}

// Parameters describes a statement's placeholders. Types is nil when only
// the count is known.
type Parameters struct {
	Types []TypeInfo `json:"types,omitempty"`
	Count int        `json:"count"`
}
