package d1

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/tomyedwab/d1sql/sqlproxy/types"
)

func connect(t *testing.T, b Binding) *Connection {
	t.Helper()
	conn, err := Connect(context.Background(), b)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return conn
}

func TestConnectSendsPragmas(t *testing.T) {
	fb := newFakeBinding()
	_, err := NewConnectOptions(fb).
		CaseSensitiveLike(true).
		ForeignKeys(true).
		Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	want := []string{"PRAGMA case_sensitive_like = on\nPRAGMA foreign_keys = on"}
	if !reflect.DeepEqual(fb.execs, want) {
		t.Errorf("execs = %q, want %q", fb.execs, want)
	}
}

func TestConnectWithoutPragmasSkipsExec(t *testing.T) {
	fb := newFakeBinding()
	connect(t, fb)
	opts := NewConnectOptions(fb).ForeignKeys(true).ForeignKeys(false)
	if _, err := opts.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if fb.callCount("exec") != 0 {
		t.Errorf("exec called %d times", fb.callCount("exec"))
	}
}

func TestParseConnectOptionsRejectsURLs(t *testing.T) {
	_, err := ParseConnectOptions("d1://my-db")
	if !errors.Is(err, ErrURLUnsupported) || !IsConfigurationError(err) {
		t.Errorf("ParseConnectOptions error = %v", err)
	}
}

func TestFetchManyYieldsRowsThenResult(t *testing.T) {
	fb := newFakeBinding()
	fb.results["SELECT * FROM users"] = types.Result{
		Results: []types.Record{
			{{Name: "id", Value: 1.0}},
			{{Name: "id", Value: 2.0}},
			{{Name: "id", Value: 3.0}},
		},
		Meta: types.Meta{Changes: 0, LastRowID: 9},
	}
	conn := connect(t, fb)

	s := conn.FetchMany(context.Background(), NewQuery("SELECT * FROM users"))
	if fb.callCount("all") != 0 {
		t.Fatal("FetchMany contacted the host before the first read")
	}
	var ids []int64
	var results int
	for s.Next() {
		step := s.Step()
		switch {
		case step.Row != nil:
			id, err := Get[int64](step.Row, "id")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			ids = append(ids, id)
		case step.Result != nil:
			results++
			if step.Result.LastInsertRowID != 9 {
				t.Errorf("result = %+v", step.Result)
			}
		}
	}
	if err := s.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
	if !reflect.DeepEqual(ids, []int64{1, 2, 3}) || results != 1 {
		t.Errorf("ids = %v, results = %d", ids, results)
	}
	if s.Next() || !errors.Is(s.Err(), ErrStreamConsumed) {
		t.Errorf("second read: err = %v", s.Err())
	}
	if fb.callCount("all") != 1 {
		t.Errorf("all called %d times", fb.callCount("all"))
	}
}

func TestFetchOneAndOptional(t *testing.T) {
	fb := newFakeBinding()
	fb.results["SELECT 1 AS one"] = types.Result{Results: []types.Record{{{Name: "one", Value: 1.0}}}}
	conn := connect(t, fb)
	ctx := context.Background()

	row, err := conn.FetchOne(ctx, NewQuery("SELECT 1 AS one"))
	if err != nil || row == nil {
		t.Fatalf("FetchOne: %v", err)
	}
	row, err = conn.FetchOptional(ctx, NewQuery("SELECT nothing"))
	if err != nil || row != nil {
		t.Errorf("FetchOptional = %v, %v", row, err)
	}
	if _, err := conn.FetchOne(ctx, NewQuery("SELECT nothing")); !errors.Is(err, ErrNoRows) {
		t.Errorf("FetchOne on no rows = %v", err)
	}
}

func TestEncodeErrorNeverReachesHost(t *testing.T) {
	fb := newFakeBinding()
	conn := connect(t, fb)
	_, err := conn.Execute(context.Background(), NewQuery("INSERT INTO t VALUES (?)", math.NaN()))
	var encErr *EncodeError
	if !errors.As(err, &encErr) {
		t.Fatalf("expected an EncodeError, got %v", err)
	}
	if len(fb.calls) != 0 {
		t.Errorf("host calls = %v", fb.calls)
	}
}

func TestHostErrorKind(t *testing.T) {
	fb := newFakeBinding()
	fb.failOn = "INSERT INTO users (email) VALUES (?)"
	conn := connect(t, fb)
	_, err := conn.Execute(context.Background(), NewQuery(fb.failOn, "a@example.com"))
	var hostErr *HostError
	if !errors.As(err, &hostErr) {
		t.Fatalf("expected a HostError, got %v", err)
	}
	if hostErr.Kind != ErrorKindUniqueViolation || hostErr.Op != "run" {
		t.Errorf("HostError = %+v", hostErr)
	}
}

func TestTransactionCommitSendsOneBatch(t *testing.T) {
	fb := newFakeBinding()
	fb.results["INSERT INTO t VALUES (?)"] = types.Result{Meta: types.Meta{Changes: 1, LastRowID: 10}}
	fb.results["UPDATE t SET v = ?"] = types.Result{Meta: types.Meta{Changes: 3, LastRowID: 11}}
	conn := connect(t, fb)
	ctx := context.Background()

	tx, err := conn.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	for _, q := range []*Query{
		NewQuery("INSERT INTO t VALUES (?)", 1),
		NewQuery("UPDATE t SET v = ?", "x"),
	} {
		res, err := conn.Execute(ctx, q)
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if res != (QueryResult{}) {
			t.Errorf("queued Execute returned %+v", res)
		}
	}
	if fb.callCount("run") != 0 || fb.callCount("batch") != 0 {
		t.Fatalf("statements reached the host before commit: %v", fb.calls)
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if fb.callCount("batch") != 1 {
		t.Fatalf("batch called %d times", fb.callCount("batch"))
	}
	sent := fb.batch[0]
	if len(sent) != 2 || sent[0].SQL != "INSERT INTO t VALUES (?)" || sent[1].SQL != "UPDATE t SET v = ?" {
		t.Errorf("batch = %+v", sent)
	}
	if !reflect.DeepEqual(sent[0].Args, []any{int64(1)}) {
		t.Errorf("batch args = %#v", sent[0].Args)
	}
	if got := tx.Result(); got.RowsAffected != 4 || got.LastInsertRowID != 11 {
		t.Errorf("merged result = %+v", got)
	}
	if conn.InTransaction() {
		t.Error("connection still batching after commit")
	}
	if err := tx.Commit(ctx); !errors.Is(err, ErrTransactionDone) {
		t.Errorf("second Commit = %v", err)
	}
}

func TestTransactionRollbackNeverContactsHost(t *testing.T) {
	fb := newFakeBinding()
	conn := connect(t, fb)
	ctx := context.Background()

	tx, _ := conn.Begin(ctx)
	before := fb.callCount("batch") + fb.callCount("run")
	if _, err := conn.Execute(ctx, NewQuery("DELETE FROM t")); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if after := fb.callCount("batch") + fb.callCount("run"); after != before {
		t.Errorf("rollback ran statements: %v", fb.calls)
	}
	if err := tx.Rollback(ctx); !errors.Is(err, ErrTransactionDone) {
		t.Errorf("second Rollback = %v", err)
	}
}

func TestReadsInsideTransactionGoToHost(t *testing.T) {
	fb := newFakeBinding()
	conn := connect(t, fb)
	ctx := context.Background()

	tx, _ := conn.Begin(ctx)
	defer tx.Rollback(ctx)
	if _, err := conn.FetchAll(ctx, NewQuery("SELECT 1")); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if fb.callCount("all") != 1 {
		t.Errorf("read inside a transaction was not sent: %v", fb.calls)
	}
}

func TestBeginTwiceWarnsAndDiscards(t *testing.T) {
	var logs bytes.Buffer
	fb := newFakeBinding()
	conn, err := NewConnectOptions(fb).
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))).
		Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	ctx := context.Background()

	first, _ := conn.Begin(ctx)
	conn.Execute(ctx, NewQuery("DELETE FROM a"))
	second, _ := conn.Begin(ctx)
	conn.Execute(ctx, NewQuery("DELETE FROM b"))

	if !strings.Contains(logs.String(), "level=WARN") {
		t.Errorf("no warning logged: %s", logs.String())
	}
	if err := first.Commit(ctx); !errors.Is(err, ErrTransactionDone) {
		t.Errorf("superseded Commit = %v", err)
	}
	if err := second.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(fb.batch) != 1 || len(fb.batch[0]) != 1 || fb.batch[0][0].SQL != "DELETE FROM b" {
		t.Errorf("batch = %+v", fb.batch)
	}
}

func TestEmptyCommitSkipsHost(t *testing.T) {
	fb := newFakeBinding()
	conn := connect(t, fb)
	tx, _ := conn.Begin(context.Background())
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if fb.callCount("batch") != 0 {
		t.Error("empty commit sent a batch")
	}
}

func TestCloneHasOwnTransactionState(t *testing.T) {
	fb := newFakeBinding()
	conn := connect(t, fb)
	ctx := context.Background()
	conn.Begin(ctx)
	clone := conn.Clone()
	if clone.InTransaction() {
		t.Fatal("clone inherited the open transaction")
	}
	if _, err := clone.Execute(ctx, NewQuery("DELETE FROM t")); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if fb.callCount("run") != 1 {
		t.Errorf("clone Execute was queued: %v", fb.calls)
	}
}

func TestDescribeUnsupportedOnLiveHost(t *testing.T) {
	conn := connect(t, newFakeBinding())
	if _, err := conn.Describe(context.Background(), "SELECT 1"); !errors.Is(err, ErrDescribeUnsupported) {
		t.Errorf("Describe = %v", err)
	}
}

func TestPrepareIsLocal(t *testing.T) {
	fb := newFakeBinding()
	conn := connect(t, fb)
	stmt, err := conn.PrepareWith(context.Background(), "SELECT ?", []TypeInfo{TypeText})
	if err != nil {
		t.Fatalf("PrepareWith: %v", err)
	}
	if stmt.SQL() != "SELECT ?" || stmt.Parameters() != nil || len(stmt.Columns()) != 0 {
		t.Errorf("statement = %+v", stmt)
	}
	if len(fb.calls) != 0 {
		t.Errorf("host calls = %v", fb.calls)
	}
}

func TestCanceledContext(t *testing.T) {
	conn := connect(t, newFakeBinding())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := conn.Execute(ctx, NewQuery("SELECT 1")); !errors.Is(err, context.Canceled) {
		t.Errorf("Execute = %v", err)
	}
}
