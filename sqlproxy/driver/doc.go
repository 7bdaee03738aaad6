// Package driver implements a database/sql/driver for D1 bindings, so
// database/sql and sqlx code can run against a D1 database.
//
// A D1 database has no address. The application receives a binding object
// from its runtime and registers it under a name, which is then used as the
// DSN. DSNs that look like URLs are rejected.
//
// Usage:
//
//  1. Import the driver package. This will register the driver with the name "d1".
//     import "github.com/tomyedwab/d1sql/sqlproxy/driver"
//
//  2. Register the binding. Inside a WebAssembly guest this is the hostcall
//     binding over the imported host handler:
//
//     b, err := hostcall.Default()
//     driver.RegisterBinding("DB", b)
//
//  3. Open a database connection using sqlx:
//
//     db := sqlx.MustOpen("d1", "DB")
//     defer db.Close()
//
// Alternatively Open builds a *sqlx.DB from d1.ConnectOptions directly,
// which is how PRAGMA toggles are set.
//
// Transactions:
//
// D1 has no interactive transactions. Begin starts queueing Exec calls and
// Commit sends them to the host as one atomic batch. Queries inside a
// transaction are not queued; they run immediately and do not see the
// queued writes. Rollback discards the queue without contacting the host.
//
// Implemented Interfaces:
//
// The driver implements the following core `database/sql/driver` interfaces:
// - driver.Driver, driver.DriverContext, driver.Connector
// - driver.Conn with ExecerContext, QueryerContext, ConnBeginTx, Pinger
// - driver.NamedValueChecker, so any value the d1 encoder accepts can be bound
// - driver.Stmt, driver.Tx, driver.Result, driver.Rows
//
// Limitations:
//
//   - Named parameters are not supported; use ? or ?NNN placeholders.
//   - A query that returns no rows reports no columns.
//   - All pool connections share one executor, so host calls are serialized.
package driver
