package hostcall

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"reflect"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/tomyedwab/d1sql/d1"
	"github.com/tomyedwab/d1sql/sqlproxy/host"
	"github.com/tomyedwab/d1sql/sqlproxy/types"
)

func setupBinding(t *testing.T) *Binding {
	t.Helper()
	db := sqlx.MustConnect("sqlite3", path.Join(t.TempDir(), "d1.sqlite"))
	db.MustExec("CREATE TABLE files (id INTEGER PRIMARY KEY, name TEXT NOT NULL, data BLOB)")
	t.Cleanup(func() { db.Close() })
	return New(host.NewSQLHost(db).HandleRequest)
}

func TestRoundTripThroughHost(t *testing.T) {
	ctx := context.Background()
	conn, err := d1.Connect(ctx, setupBinding(t))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	res, err := conn.Execute(ctx, d1.NewQuery("INSERT INTO files (name, data) VALUES (?, ?)", "a.bin", []byte{0, 127, 255}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.RowsAffected != 1 || res.LastInsertRowID != 1 {
		t.Errorf("result = %+v", res)
	}

	row, err := conn.FetchOne(ctx, d1.NewQuery("SELECT data, name, id FROM files WHERE name = ?", "a.bin"))
	if err != nil {
		t.Fatalf("FetchOne: %v", err)
	}
	data, err := d1.Get[[]byte](row, "data")
	if err != nil || !reflect.DeepEqual(data, []byte{0, 127, 255}) {
		t.Errorf("data = %v, %v", data, err)
	}
	if row.Columns()[0].Name() != "data" || row.Columns()[2].Name() != "id" {
		t.Errorf("columns = %+v", row.Columns())
	}
}

func TestHostErrorsKeepTheirMessage(t *testing.T) {
	ctx := context.Background()
	conn, err := d1.Connect(ctx, setupBinding(t))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	_, err = conn.Execute(ctx, d1.NewQuery("INSERT INTO files (name) VALUES (NULL)"))
	var hostErr *d1.HostError
	if !errors.As(err, &hostErr) {
		t.Fatalf("expected a HostError, got %v", err)
	}
	if hostErr.Kind != d1.ErrorKindNotNullViolation {
		t.Errorf("kind = %s (%s)", hostErr.Kind, hostErr.Message)
	}
}

func TestBindSendsBlobsAsByteArrays(t *testing.T) {
	var sent types.SQLRequest
	b := New(func(payload []byte) ([]byte, error) {
		if err := json.Unmarshal(payload, &sent); err != nil {
			return nil, err
		}
		return []byte(`{"result":{"results":[],"meta":{"changes":0},"success":true}}`), nil
	})
	stmt, err := b.Prepare("INSERT INTO files (data) VALUES (?)").Bind([]byte{7, 8})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if _, err := stmt.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sent.Command != types.CommandRun || !reflect.DeepEqual(sent.Args, []any{[]any{7.0, 8.0}}) {
		t.Errorf("sent = %+v", sent)
	}
}

func TestCallHostFailure(t *testing.T) {
	b := New(func(payload []byte) ([]byte, error) {
		return nil, errors.New("guest memory exhausted")
	})
	if _, err := b.Exec(context.Background(), "PRAGMA foreign_keys = on"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestDefaultRequiresHandler(t *testing.T) {
	saved := CallHost
	defer func() { CallHost = saved }()
	CallHost = nil
	if _, err := Default(); !d1.IsConfigurationError(err) {
		t.Errorf("Default() error = %v", err)
	}
	SetHostHandler(func([]byte) ([]byte, error) { return nil, nil })
	if _, err := Default(); err != nil {
		t.Errorf("Default() with a handler: %v", err)
	}
}

func TestDescribeIsUnsupported(t *testing.T) {
	conn, err := d1.Connect(context.Background(), setupBinding(t))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := conn.Describe(context.Background(), "SELECT 1"); !errors.Is(err, d1.ErrDescribeUnsupported) {
		t.Errorf("Describe = %v", err)
	}
}
