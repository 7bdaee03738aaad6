// Package describe resolves the parameters and result columns of SQL
// statements at build time, before any D1 binding exists.
//
// Two sources are consulted. The local D1 emulator that wrangler keeps under
// .wrangler/state/v3/d1 is opened directly with SQLite and asked to prepare
// each statement. When no emulator is present, for example in CI, answers
// come from the query cache: one JSON file per statement under .d1sql,
// written by `d1sql prepare` on a machine that has the emulator.
//
// A Context carries the project roots and the emulator connection for one
// build and is passed to every call; nothing is kept in package state.
package describe
