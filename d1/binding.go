package d1

import (
	"context"

	"github.com/tomyedwab/d1sql/sqlproxy/types"
)

// Binding is the host's database object. Every method must be called from
// the connection's executor; the Connection takes care of that.
type Binding interface {
	// Prepare creates an unbound statement. Errors in the SQL surface when
	// the statement runs.
	Prepare(query string) PreparedStatement
	// Batch runs the statements in order as one implicit transaction.
	Batch(ctx context.Context, stmts []PreparedStatement) ([]types.Result, error)
	// Exec runs one or more newline separated statements without
	// parameters.
	Exec(ctx context.Context, query string) (types.Result, error)
}

// PreparedStatement is a host statement handle.
type PreparedStatement interface {
	// Bind returns a copy of the statement with values bound positionally.
	Bind(values ...any) (PreparedStatement, error)
	All(ctx context.Context) (types.Result, error)
	// First returns nil when the statement produced no row.
	First(ctx context.Context) (types.Record, error)
	Run(ctx context.Context) (types.Result, error)
}

// Describer is implemented by bindings that can introspect SQL, such as
// the local emulator.
type Describer interface {
	Describe(ctx context.Context, query string) (*Describe, error)
}
