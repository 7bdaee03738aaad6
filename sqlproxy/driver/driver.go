package driver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/tomyedwab/d1sql/d1"
)

// DriverName is the name the driver registers under.
const DriverName = "d1"

func init() {
	sql.Register(DriverName, &Driver{})
	sqlx.BindDriver(DriverName, sqlx.QUESTION)
}

var (
	bindingsMu sync.RWMutex
	bindings   = map[string]d1.Binding{}
)

// RegisterBinding makes b available to sql.Open under the DSN name.
func RegisterBinding(name string, b d1.Binding) {
	bindingsMu.Lock()
	defer bindingsMu.Unlock()
	bindings[name] = b
}

// SetBinding registers b under the empty DSN.
func SetBinding(b d1.Binding) {
	RegisterBinding("", b)
}

// --- Driver implementation ---

// Driver is the database/sql driver for D1 bindings. The DSN names a
// binding registered with RegisterBinding.
type Driver struct{}

// Open returns a new connection to the database.
func (d *Driver) Open(name string) (driver.Conn, error) {
	c, err := d.OpenConnector(name)
	if err != nil {
		return nil, err
	}
	return c.Connect(context.Background())
}

// OpenConnector resolves name to a registered binding. URLs are rejected.
func (d *Driver) OpenConnector(name string) (driver.Connector, error) {
	if strings.Contains(name, "://") {
		return nil, d1.ErrURLUnsupported
	}
	bindingsMu.RLock()
	b, ok := bindings[name]
	bindingsMu.RUnlock()
	if !ok {
		return nil, &d1.ConfigurationError{Message: fmt.Sprintf("no D1 binding registered under %q", name)}
	}
	return NewConnector(d1.NewConnectOptions(b)), nil
}

// Connector opens pool connections that all share one d1.Connection's
// executor, so host calls never run concurrently.
type Connector struct {
	opts d1.ConnectOptions

	mu   sync.Mutex
	base *d1.Connection
}

// NewConnector returns a connector for opts. PRAGMAs in opts are sent once,
// when the first pool connection opens.
func NewConnector(opts d1.ConnectOptions) *Connector {
	return &Connector{opts: opts}
}

func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.base == nil {
		base, err := c.opts.Connect(ctx)
		if err != nil {
			return nil, err
		}
		c.base = base
	}
	return &Conn{conn: c.base.Clone()}, nil
}

func (c *Connector) Driver() driver.Driver {
	return &Driver{}
}

// Open returns a *sqlx.DB over opts.
func Open(opts d1.ConnectOptions) *sqlx.DB {
	return sqlx.NewDb(sql.OpenDB(NewConnector(opts)), DriverName)
}

// --- Connection implementation ---

// Conn implements the driver.Conn interface over a d1.Connection.
type Conn struct {
	conn *d1.Connection
}

var (
	_ driver.ConnPrepareContext = (*Conn)(nil)
	_ driver.ExecerContext      = (*Conn)(nil)
	_ driver.QueryerContext     = (*Conn)(nil)
	_ driver.ConnBeginTx        = (*Conn)(nil)
	_ driver.Pinger             = (*Conn)(nil)
	_ driver.NamedValueChecker  = (*Conn)(nil)
)

// Connection returns the underlying d1 connection.
func (c *Conn) Connection() *d1.Connection { return c.conn }

// Prepare returns a prepared statement, suitable for query or execution.
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *Conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	stmt, err := c.conn.Prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	return &Stmt{conn: c, stmt: stmt}, nil
}

// Close invalidates the connection. The binding stays usable.
func (c *Conn) Close() error {
	return c.conn.Close(context.Background())
}

// Begin starts and returns a new transaction.
func (c *Conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// BeginTx starts batching. Statements executed before Commit are sent to
// the host in one batch; queries run immediately against committed state.
func (c *Conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

func (c *Conn) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// CheckNamedValue passes every argument through unchanged; the d1 encoder
// decides what it can bind.
func (c *Conn) CheckNamedValue(nv *driver.NamedValue) error {
	return nil
}

func buildQuery(query string, args []driver.NamedValue) (*d1.Query, error) {
	q := d1.NewQuery(query)
	for _, a := range args {
		if a.Name != "" {
			return nil, fmt.Errorf("d1: named parameter %q is not supported; use ?NNN placeholders", a.Name)
		}
		q.Bind(a.Value)
	}
	return q, nil
}

func (c *Conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	q, err := buildQuery(query, args)
	if err != nil {
		return nil, err
	}
	res, err := c.conn.Execute(ctx, q)
	if err != nil {
		return nil, err
	}
	return result(res), nil
}

func (c *Conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	q, err := buildQuery(query, args)
	if err != nil {
		return nil, err
	}
	rows, err := c.conn.FetchAll(ctx, q)
	if err != nil {
		return nil, err
	}
	return &Rows{rows: rows}, nil
}

// --- Statement implementation ---

// Stmt implements the driver.Stmt interface.
type Stmt struct {
	conn *Conn
	stmt *d1.Statement
}

// Close is a no-op; statements hold no host resources.
func (s *Stmt) Close() error { return nil }

// NumInput returns -1; placeholder counts are not known before execution.
func (s *Stmt) NumInput() int { return -1 }

func namedValues(args []driver.Value) []driver.NamedValue {
	out := make([]driver.NamedValue, len(args))
	for i, v := range args {
		out[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return out
}

func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), namedValues(args))
}

func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), namedValues(args))
}

func (s *Stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	return s.conn.ExecContext(ctx, s.stmt.SQL(), args)
}

func (s *Stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return s.conn.QueryContext(ctx, s.stmt.SQL(), args)
}

// --- Transaction implementation ---

// Tx implements the driver.Tx interface over a pseudo-transaction.
type Tx struct {
	tx *d1.Transaction
}

func (t *Tx) Commit() error {
	return t.tx.Commit(context.Background())
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback(context.Background())
}

// --- Result implementation ---

type result d1.QueryResult

func (r result) LastInsertId() (int64, error) { return r.LastInsertRowID, nil }
func (r result) RowsAffected() (int64, error) { return r.RowsAffected, nil }

// --- Rows implementation ---

// Rows implements driver.Rows over fetched d1 rows. Column names come from
// the first row; a query with no rows reports no columns.
type Rows struct {
	rows []*d1.Row
	pos  int
}

func (r *Rows) Columns() []string {
	if len(r.rows) == 0 {
		return []string{}
	}
	cols := r.rows[0].Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name()
	}
	return names
}

func (r *Rows) Close() error {
	r.rows = nil
	return nil
}

func (r *Rows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	row := r.rows[r.pos]
	r.pos++
	for i := range dest {
		ref, err := row.TryGetRaw(i)
		if err != nil {
			return err
		}
		dest[i] = d1.DriverValue(ref)
	}
	return nil
}

// ColumnTypeDatabaseTypeName reports the class of the first row's value.
func (r *Rows) ColumnTypeDatabaseTypeName(index int) string {
	if len(r.rows) == 0 {
		return ""
	}
	return r.rows[0].Columns()[index].TypeInfo().Name()
}
