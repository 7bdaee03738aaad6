package host

import (
	"context"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"github.com/tomyedwab/d1sql/d1"
)

// Describe reports the placeholder count and result columns of query
// without running it. Column classes come from the declared column types.
// The statement is opened inside a transaction that is always rolled back.
func (h *SQLHost) Describe(ctx context.Context, query string) (*d1.Describe, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, err := h.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection failed: %w", err)
	}
	defer conn.Close()

	var nparams int
	err = conn.Raw(func(driverConn any) error {
		sc, ok := driverConn.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("describe needs a go-sqlite3 connection, got %T", driverConn)
		}
		stmt, err := sc.Prepare(query)
		if err != nil {
			return err
		}
		defer stmt.Close()
		nparams = stmt.NumInput()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("prepare failed: %w", err)
	}

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction failed: %w", err)
	}
	defer tx.Rollback()

	// Bind NULL for every placeholder; the rows are never stepped.
	rows, err := tx.QueryxContext(ctx, query, make([]any, nparams)...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	colTypes, err := rows.ColumnTypes()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	desc := &d1.Describe{
		Columns:    make([]d1.Column, len(colTypes)),
		Parameters: &d1.Parameters{Count: nparams},
		Nullable:   make([]*bool, len(colTypes)),
	}
	// go-sqlite3 reports every column as nullable, so nullability stays
	// unknown.
	for i, ct := range colTypes {
		desc.Columns[i] = d1.NewColumn(i, ct.Name(), d1.TypeInfoFromName(ct.DatabaseTypeName()))
	}
	return desc, nil
}
