package d1

import (
	"context"
	"log/slog"

	"github.com/tomyedwab/d1sql/affinity"
	"github.com/tomyedwab/d1sql/sqlproxy/types"
)

// Connection is a logical connection to a D1 database. Host calls run on
// the connection's executor. A Connection is not safe for concurrent use;
// Clone it instead. Clones share the binding and the executor but not the
// transaction state.
type Connection struct {
	exec      *affinity.Executor
	db        *affinity.Local[Binding]
	logger    *slog.Logger
	stmtLevel slog.Level

	// Pseudo-transaction state. Statements executed while inTx are held
	// here and sent in one batch on commit.
	inTx    bool
	txGen   uint64
	pending []*affinity.Local[PreparedStatement]
}

// Clone returns a connection sharing c's binding, with no open transaction.
func (c *Connection) Clone() *Connection {
	return &Connection{
		exec:      c.exec,
		db:        c.db,
		logger:    c.logger,
		stmtLevel: c.stmtLevel,
	}
}

// Close releases nothing; the binding outlives its connections.
func (c *Connection) Close(ctx context.Context) error { return nil }

// Ping always succeeds.
func (c *Connection) Ping(ctx context.Context) error { return nil }

// InTransaction reports whether statements are currently being batched.
func (c *Connection) InTransaction() bool { return c.inTx }

func (c *Connection) logStatement(ctx context.Context, op, sql string, args int) {
	c.logger.Log(ctx, c.stmtLevel, "d1: statement", "op", op, "sql", sql, "args", args)
}

// bound prepares sql and binds args. It must run on the executor.
func (c *Connection) bound(t *affinity.Turn, sql string, args *Arguments) (PreparedStatement, error) {
	stmt := c.db.Get(t).Prepare(sql)
	if args.Len() == 0 {
		return stmt, nil
	}
	stmt, err := stmt.Bind(args.Raw()...)
	if err != nil {
		return nil, NewHostError("bind", err)
	}
	return stmt, nil
}

// runStatement prepares and binds q on the executor and hands the bound
// statement to fn.
func runStatement[R any](ctx context.Context, c *Connection, op string, q *Query, fn func(context.Context, PreparedStatement) (R, error)) (R, error) {
	var zero R
	args, err := q.Arguments()
	if err != nil {
		return zero, err
	}
	c.logStatement(ctx, op, q.SQL(), args.Len())
	return affinity.Run(ctx, c.exec, func(ctx context.Context, t *affinity.Turn) (R, error) {
		stmt, err := c.bound(t, q.SQL(), args)
		if err != nil {
			return zero, err
		}
		v, err := fn(ctx, stmt)
		if err != nil {
			return zero, NewHostError(op, err)
		}
		return v, nil
	})
}

func (c *Connection) all(ctx context.Context, q *Query) (types.Result, error) {
	return runStatement(ctx, c, types.CommandAll, q, func(ctx context.Context, s PreparedStatement) (types.Result, error) {
		return s.All(ctx)
	})
}

// FetchMany runs q and streams its rows followed by one QueryResult. The
// host is not contacted until the stream is first read. Reads inside a
// transaction go straight to the host and see only committed state.
func (c *Connection) FetchMany(ctx context.Context, q *Query) *Stream {
	return &Stream{ctx: ctx, conn: c, query: q}
}

// FetchAll runs q and returns every row.
func (c *Connection) FetchAll(ctx context.Context, q *Query) ([]*Row, error) {
	s := c.FetchMany(ctx, q)
	var rows []*Row
	for s.Next() {
		if row := s.Step().Row; row != nil {
			rows = append(rows, row)
		}
	}
	return rows, s.Err()
}

// FetchOptional runs q and returns its first row, or nil if there is none.
func (c *Connection) FetchOptional(ctx context.Context, q *Query) (*Row, error) {
	rec, err := runStatement(ctx, c, types.CommandFirst, q, func(ctx context.Context, s PreparedStatement) (types.Record, error) {
		return s.First(ctx)
	})
	if err != nil || rec == nil {
		return nil, err
	}
	return RowFromRecord(rec), nil
}

// FetchOne is FetchOptional that returns ErrNoRows instead of nil.
func (c *Connection) FetchOne(ctx context.Context, q *Query) (*Row, error) {
	row, err := c.FetchOptional(ctx, q)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrNoRows
	}
	return row, nil
}

// Execute runs q for its side effects. Inside a transaction the bound
// statement is queued instead and a zero QueryResult is returned.
func (c *Connection) Execute(ctx context.Context, q *Query) (QueryResult, error) {
	if c.inTx {
		return QueryResult{}, c.enqueue(ctx, q)
	}
	res, err := runStatement(ctx, c, types.CommandRun, q, func(ctx context.Context, s PreparedStatement) (types.Result, error) {
		return s.Run(ctx)
	})
	if err != nil {
		return QueryResult{}, err
	}
	return resultFromMeta(res.Meta), nil
}

func (c *Connection) enqueue(ctx context.Context, q *Query) error {
	args, err := q.Arguments()
	if err != nil {
		return err
	}
	c.logger.DebugContext(ctx, "d1: queueing statement for commit", "sql", q.SQL(), "args", args.Len(), "pending", len(c.pending))
	stmt, err := affinity.Run(ctx, c.exec, func(ctx context.Context, t *affinity.Turn) (*affinity.Local[PreparedStatement], error) {
		s, err := c.bound(t, q.SQL(), args)
		if err != nil {
			return nil, err
		}
		return affinity.Bind(c.exec, s), nil
	})
	if err != nil {
		return err
	}
	c.pending = append(c.pending, stmt)
	return nil
}

// Prepare returns a Statement for sql. Nothing is sent to the host.
func (c *Connection) Prepare(ctx context.Context, sql string) (*Statement, error) {
	return c.PrepareWith(ctx, sql, nil)
}

// PrepareWith is Prepare with caller-declared parameter types. The types
// are accepted but not checked.
func (c *Connection) PrepareWith(ctx context.Context, sql string, params []TypeInfo) (*Statement, error) {
	return &Statement{sql: sql}, nil
}

// Describe reports the parameters and result columns of sql. Only bindings
// implementing Describer can answer; others return ErrDescribeUnsupported.
func (c *Connection) Describe(ctx context.Context, sql string) (*Describe, error) {
	return affinity.Run(ctx, c.exec, func(ctx context.Context, t *affinity.Turn) (*Describe, error) {
		d, ok := c.db.Get(t).(Describer)
		if !ok {
			return nil, ErrDescribeUnsupported
		}
		return d.Describe(ctx, sql)
	})
}
