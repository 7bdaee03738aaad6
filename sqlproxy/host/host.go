package host

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/tomyedwab/d1sql/sqlproxy/types"
)

// SQLHost answers D1 binding calls from a local SQLite database, the way
// the D1 emulator does. Calls are serialized: a D1 database runs one
// statement at a time.
type SQLHost struct {
	db     *sqlx.DB
	mu     sync.Mutex
	logger *slog.Logger
}

// NewSQLHost creates a new SQLHost instance.
// The provided db must be an active connection to an SQLite database.
func NewSQLHost(db *sqlx.DB) *SQLHost {
	return &SQLHost{db: db, logger: slog.Default()}
}

// WithLogger sets the logger used for failed requests.
func (h *SQLHost) WithLogger(l *slog.Logger) *SQLHost {
	h.logger = l
	return h
}

// DB returns the underlying database.
func (h *SQLHost) DB() *sqlx.DB { return h.db }

// HandleRequest processes a raw SQL request payload and returns a raw response payload.
// Operational errors are reported inside the response, not as the returned error.
func (h *SQLHost) HandleRequest(requestPayload []byte) ([]byte, error) {
	var req types.SQLRequest
	if err := json.Unmarshal(requestPayload, &req); err != nil {
		return marshalErrorResponse(fmt.Sprintf("failed to unmarshal request: %v", err))
	}

	ctx := context.Background()
	var resp types.SQLResponse
	var opErr error

	switch req.Command {
	case types.CommandAll, types.CommandRun:
		var res types.Result
		res, opErr = h.All(ctx, req.SQL, req.Args)
		if req.Command == types.CommandRun {
			res.Results = nil
		}
		resp.Result = &res
	case types.CommandFirst:
		resp.Record, opErr = h.First(ctx, req.SQL, req.Args)
	case types.CommandBatch:
		resp.Batch, opErr = h.Batch(ctx, req.Statements)
	case types.CommandExec:
		var res types.Result
		res, opErr = h.Exec(ctx, req.SQL)
		resp.Result = &res
	default:
		opErr = fmt.Errorf("unknown command: %s", req.Command)
	}

	if opErr != nil {
		h.logger.Debug("sqlproxy: request failed", "command", req.Command, "sql", req.SQL, "error", opErr)
		return marshalErrorResponse(opErr.Error())
	}
	return json.Marshal(resp)
}

func marshalErrorResponse(errMsg string) ([]byte, error) {
	payload, err := json.Marshal(types.SQLResponse{Error: errMsg})
	if err != nil {
		return []byte(`{"error":"critical: failed to marshal error response"}`),
			fmt.Errorf("failed to marshal error response for '%s': %w", errMsg, err)
	}
	return payload, nil
}

// All runs one statement and returns every row plus its meta.
func (h *SQLHost) All(ctx context.Context, query string, args []any) (types.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, err := h.db.Connx(ctx)
	if err != nil {
		return types.Result{}, fmt.Errorf("acquire connection failed: %w", err)
	}
	defer conn.Close()
	return runStatement(ctx, conn, query, args)
}

// First runs one statement and returns its first row, or nil.
func (h *SQLHost) First(ctx context.Context, query string, args []any) (types.Record, error) {
	res, err := h.All(ctx, query, args)
	if err != nil || len(res.Results) == 0 {
		return nil, err
	}
	return res.Results[0], nil
}

// Batch runs the statements in order inside one transaction. Any failure
// rolls back the whole batch.
func (h *SQLHost) Batch(ctx context.Context, stmts []types.Statement) ([]types.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tx, err := h.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction failed: %w", err)
	}
	defer tx.Rollback()

	out := make([]types.Result, 0, len(stmts))
	for i, s := range stmts {
		res, err := runStatement(ctx, tx, s.SQL, s.Args)
		if err != nil {
			return nil, fmt.Errorf("batch statement %d: %w", i, err)
		}
		out = append(out, res)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit failed: %w", err)
	}
	return out, nil
}

// Exec runs newline separated statements without parameters.
func (h *SQLHost) Exec(ctx context.Context, query string) (types.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, err := h.db.Connx(ctx)
	if err != nil {
		return types.Result{}, fmt.Errorf("acquire connection failed: %w", err)
	}
	defer conn.Close()

	start := time.Now()
	before, err := totalChanges(ctx, conn)
	if err != nil {
		return types.Result{}, err
	}
	if _, err := conn.ExecContext(ctx, query); err != nil {
		return types.Result{}, fmt.Errorf("exec failed: %w", err)
	}
	meta, err := finishMeta(ctx, conn, before, start, 0)
	if err != nil {
		return types.Result{}, err
	}
	return types.Result{Meta: meta, Success: true}, nil
}

// queryer is satisfied by both *sqlx.Conn and *sqlx.Tx, so every statement
// of a call runs on the same SQLite connection.
type queryer interface {
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
}

func runStatement(ctx context.Context, q queryer, query string, args []any) (types.Result, error) {
	bound, err := bindArgs(args)
	if err != nil {
		return types.Result{}, err
	}
	start := time.Now()
	before, err := totalChanges(ctx, q)
	if err != nil {
		return types.Result{}, err
	}

	rows, err := q.QueryxContext(ctx, query, bound...)
	if err != nil {
		return types.Result{}, fmt.Errorf("query failed: %w", err)
	}
	records, err := readRecords(rows)
	if err != nil {
		return types.Result{}, err
	}

	meta, err := finishMeta(ctx, q, before, start, int64(len(records)))
	if err != nil {
		return types.Result{}, err
	}
	return types.Result{Results: records, Meta: meta, Success: true}, nil
}

func readRecords(rows *sqlx.Rows) ([]types.Record, error) {
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	records := []types.Record{}
	scanArgs := make([]any, len(colTypes))
	scanPtrs := make([]any, len(colTypes))
	for i := range scanArgs {
		scanPtrs[i] = &scanArgs[i]
	}
	for rows.Next() {
		if err := rows.Scan(scanPtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec := make(types.Record, 0, len(colTypes))
		for i, ct := range colTypes {
			rec = setField(rec, ct.Name(), hostValue(scanArgs[i], ct.DatabaseTypeName()))
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

// setField mirrors object assignment: a repeated column name keeps its
// first position and takes the later value.
func setField(rec types.Record, name string, v any) types.Record {
	for i := range rec {
		if rec[i].Name == name {
			rec[i].Value = v
			return rec
		}
	}
	return append(rec, types.Field{Name: name, Value: v})
}

func totalChanges(ctx context.Context, q queryer) (int64, error) {
	var n int64
	if err := q.QueryRowxContext(ctx, "SELECT total_changes()").Scan(&n); err != nil {
		return 0, fmt.Errorf("read total_changes failed: %w", err)
	}
	return n, nil
}

func finishMeta(ctx context.Context, q queryer, before int64, start time.Time, rowsRead int64) (types.Meta, error) {
	var after, lastID int64
	if err := q.QueryRowxContext(ctx, "SELECT total_changes(), last_insert_rowid()").Scan(&after, &lastID); err != nil {
		return types.Meta{}, fmt.Errorf("read meta failed: %w", err)
	}
	changes := after - before
	return types.Meta{
		Changes:     changes,
		LastRowID:   lastID,
		Duration:    float64(time.Since(start).Microseconds()) / 1000,
		RowsRead:    rowsRead,
		RowsWritten: changes,
		ChangedDB:   changes > 0,
	}, nil
}

// bindArgs converts host values into SQLite driver values. Integral
// numbers bind as INTEGER and arrays of byte numbers as BLOB.
func bindArgs(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case nil, string, []byte, int64:
			out[i] = v
		case int:
			out[i] = int64(v)
		case bool:
			if v {
				out[i] = int64(1)
			} else {
				out[i] = int64(0)
			}
		case float64:
			if v == math.Trunc(v) && math.Abs(v) <= 1<<53-1 {
				out[i] = int64(v)
			} else {
				out[i] = v
			}
		case []any:
			b, ok := types.BlobBytes(v)
			if !ok {
				return nil, fmt.Errorf("argument %d: array is not a list of bytes", i)
			}
			out[i] = b
		default:
			return nil, fmt.Errorf("argument %d: unsupported type %T", i, a)
		}
	}
	return out, nil
}

// hostValue converts a scanned SQLite value into the form D1 returns:
// numbers as doubles, blobs as arrays of byte numbers.
func hostValue(v any, declType string) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int64:
		return float64(x)
	case float64, string:
		return x
	case bool:
		if x {
			return float64(1)
		}
		return float64(0)
	case []byte:
		return types.BlobArg(x)
	case time.Time:
		// go-sqlite3 parses DATE and DATETIME columns; hand back text.
		if strings.EqualFold(declType, "DATE") {
			return x.Format("2006-01-02")
		}
		return strings.TrimSuffix(x.Format(time.RFC3339Nano), "Z")
	}
	return fmt.Sprint(v)
}
