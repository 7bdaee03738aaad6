package host

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path"
	"testing"

	"github.com/jmoiron/sqlx"
	sqlhost "github.com/tomyedwab/d1sql/sqlproxy/host"
	"github.com/tomyedwab/d1sql/sqlproxy/types"
)

// fakeMemory is a flat guest memory with a bump allocator.
type fakeMemory struct {
	data   []byte
	next   uint32
	allocs int
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{data: make([]byte, 1<<16), next: 1024}
}

func (f *fakeMemory) Read(offset, n uint32) ([]byte, bool) {
	if uint64(offset)+uint64(n) > uint64(len(f.data)) {
		return nil, false
	}
	return f.data[offset : offset+n], true
}

func (f *fakeMemory) Write(offset uint32, data []byte) bool {
	if uint64(offset)+uint64(len(data)) > uint64(len(f.data)) {
		return false
	}
	copy(f.data[offset:], data)
	return true
}

func (f *fakeMemory) WriteUint32Le(offset, v uint32) bool {
	if uint64(offset)+4 > uint64(len(f.data)) {
		return false
	}
	binary.LittleEndian.PutUint32(f.data[offset:], v)
	return true
}

func (f *fakeMemory) Alloc(ctx context.Context, size uint32) (uint32, error) {
	ptr := f.next
	f.next += (size + 7) &^ 7
	f.allocs++
	return ptr, nil
}

// call places request in memory, serves it and reads back the response
// the way the guest does.
func call(t *testing.T, mem *fakeMemory, handler Handler, request []byte) ([]byte, bool) {
	t.Helper()
	const reqOffset, destPtr = 16, 8
	if !mem.Write(reqOffset, request) {
		t.Fatal("request does not fit")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	size := serve(context.Background(), mem, handler, logger, reqOffset, uint32(len(request)), destPtr)
	failed := size < 0
	if failed {
		size = -size
	}
	ptr := binary.LittleEndian.Uint32(mem.data[destPtr:])
	out, ok := mem.Read(ptr, uint32(size))
	if !ok {
		t.Fatalf("response at %d (%d bytes) out of range", ptr, size)
	}
	return append([]byte(nil), out...), failed
}

func TestServeEchoesThroughHandler(t *testing.T) {
	mem := newFakeMemory()
	var got string
	resp, failed := call(t, mem, func(req []byte) ([]byte, error) {
		got = string(req)
		return []byte(`{"ok":true}`), nil
	}, []byte(`{"command":"all"}`))
	if failed {
		t.Fatal("unexpected failure")
	}
	if got != `{"command":"all"}` {
		t.Errorf("handler saw %q", got)
	}
	if string(resp) != `{"ok":true}` {
		t.Errorf("response = %q", resp)
	}
}

func TestServeReportsHandlerErrors(t *testing.T) {
	mem := newFakeMemory()
	resp, failed := call(t, mem, func([]byte) ([]byte, error) {
		return nil, errors.New("database is locked")
	}, []byte("{}"))
	if !failed || string(resp) != "database is locked" {
		t.Errorf("response = %q, failed = %v", resp, failed)
	}
}

func TestServeEmptyResponseSkipsAllocation(t *testing.T) {
	mem := newFakeMemory()
	resp, failed := call(t, mem, func([]byte) ([]byte, error) { return nil, nil }, []byte("{}"))
	if failed || len(resp) != 0 || mem.allocs != 0 {
		t.Errorf("response = %q, failed = %v, allocs = %d", resp, failed, mem.allocs)
	}
}

func TestServePanicsOnBadRequestRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic")
		}
	}()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	serve(context.Background(), newFakeMemory(), func([]byte) ([]byte, error) { return nil, nil }, logger, 1<<20, 10, 0)
}

func TestServeWithSQLHost(t *testing.T) {
	db := sqlx.MustConnect("sqlite3", path.Join(t.TempDir(), "d1.sqlite"))
	t.Cleanup(func() { db.Close() })
	h := sqlhost.NewSQLHost(db)

	mem := newFakeMemory()
	req, _ := json.Marshal(types.SQLRequest{Command: types.CommandAll, SQL: "SELECT 1 AS one, 'x' AS two"})
	resp, failed := call(t, mem, h.HandleRequest, req)
	if failed {
		t.Fatalf("request failed: %s", resp)
	}
	var out types.SQLResponse
	if err := json.Unmarshal(resp, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Result == nil || len(out.Result.Results) != 1 {
		t.Fatalf("response = %s", resp)
	}
	if v, _ := out.Result.Results[0].Get("two"); v != "x" {
		t.Errorf("two = %v", v)
	}
}
