package d1

import (
	"context"

	"github.com/tomyedwab/d1sql/affinity"
	"github.com/tomyedwab/d1sql/sqlproxy/types"
)

// Transaction is a pseudo-transaction. D1 has no interactive transactions,
// so writes are queued on the connection and sent as a single batch on
// Commit, which the host runs atomically. Reads issued meanwhile are not
// batched and do not see the queued writes.
type Transaction struct {
	conn   *Connection
	gen    uint64
	done   bool
	result QueryResult
}

// Begin starts batching. Beginning while a transaction is already open
// logs a warning and discards the statements queued so far.
func (c *Connection) Begin(ctx context.Context) (*Transaction, error) {
	if c.inTx {
		c.logger.WarnContext(ctx, "d1: begin called inside an open transaction; discarding queued statements",
			"pending", len(c.pending))
	}
	c.inTx = true
	c.pending = nil
	c.txGen++
	return &Transaction{conn: c, gen: c.txGen}, nil
}

func (tx *Transaction) finish() error {
	if tx.done || tx.conn.txGen != tx.gen || !tx.conn.inTx {
		return ErrTransactionDone
	}
	tx.done = true
	return nil
}

// Commit sends every queued statement in one batch call. An empty
// transaction commits without contacting the host.
func (tx *Transaction) Commit(ctx context.Context) error {
	if err := tx.finish(); err != nil {
		return err
	}
	res, err := tx.conn.commit(ctx)
	tx.result = res
	return err
}

// Rollback discards the queued statements. The host is never contacted.
func (tx *Transaction) Rollback(ctx context.Context) error {
	if err := tx.finish(); err != nil {
		return err
	}
	c := tx.conn
	c.logger.DebugContext(ctx, "d1: rollback", "discarded", len(c.pending))
	c.inTx = false
	c.pending = nil
	return nil
}

// Result returns the merged outcome of a committed batch.
func (tx *Transaction) Result() QueryResult { return tx.result }

// Conn returns the connection the transaction batches on.
func (tx *Transaction) Conn() *Connection { return tx.conn }

func (c *Connection) commit(ctx context.Context) (QueryResult, error) {
	pending := c.pending
	c.inTx = false
	c.pending = nil
	if len(pending) == 0 {
		return QueryResult{}, nil
	}
	c.logStatement(ctx, types.CommandBatch, "", len(pending))
	results, err := affinity.Run(ctx, c.exec, func(ctx context.Context, t *affinity.Turn) ([]types.Result, error) {
		stmts := make([]PreparedStatement, len(pending))
		for i, p := range pending {
			stmts[i] = p.Get(t)
		}
		res, err := c.db.Get(t).Batch(ctx, stmts)
		if err != nil {
			return nil, NewHostError(types.CommandBatch, err)
		}
		return res, nil
	})
	if err != nil {
		return QueryResult{}, err
	}
	var merged QueryResult
	for _, r := range results {
		merged.Extend(resultFromMeta(r.Meta))
	}
	return merged, nil
}
