/*
Package d1 connects Go code to a Cloudflare D1 database through a host
binding.

A D1 database is not reached over the network. The runtime hands the
program a binding object, and every query is a call on it: prepare a
statement, bind positional values, then fetch all rows, the first row, or
run it. This package turns that surface into a small SQL toolkit.

# Connecting

	conn, err := d1.NewConnectOptions(binding).
		ForeignKeys(true).
		Connect(ctx)

Connections cannot be opened from a URL. Enabled PRAGMA toggles are sent
once, joined by newlines, through the binding's exec call.

# Values

Host values are classified into a TypeInfo: null, text, boolean, numbers
that are safe integers (|n| <= 2^53-1) as Integer and other numbers as
Real. Anything else is a Blob. Go values are bound with Arguments.Add,
which leaves the argument list untouched when encoding fails. Nil pointers
bind as NULL.

	var id int64
	var name *string
	row, err := conn.FetchOne(ctx, d1.NewQuery("SELECT id, name FROM users WHERE id = ?", 7))
	if err == nil {
		err = row.Scan(&id, &name)
	}

Rows keep the column order of the record the host returned. time.Time,
Date and TimeOfDay travel as text. time.Time also decodes from unix
seconds (integers) and Julian days (reals).

# Transactions

D1 has no interactive transactions. Begin starts queueing writes,
Commit sends them as one atomic batch, and Rollback throws them away
without a host call. Reads issued while a transaction is open are not
queued and see only committed state.

# Describe

A live binding cannot introspect SQL. Describe works only when the
binding implements Describer, as the emulator-backed host in sqlproxy/host
does.
*/
package d1
