package d1

import (
	"context"

	"github.com/tomyedwab/d1sql/sqlproxy/types"
)

// Step is one item of a Stream: either a Row or, last, a QueryResult.
type Step struct {
	Row    *Row
	Result *QueryResult
}

type streamState int

const (
	streamPending streamState = iota
	streamOpen
	streamDone
)

// Stream yields the rows of a query in host order and then one QueryResult
// built from the host's meta. It can be read once.
type Stream struct {
	ctx   context.Context
	conn  *Connection
	query *Query

	state      streamState
	records    []types.Record
	pos        int
	meta       types.Meta
	resultSent bool
	cur        Step
	err        error
}

// Next advances the stream. The host call happens on the first Next.
// Reading again after Next returned false fails with ErrStreamConsumed.
func (s *Stream) Next() bool {
	switch s.state {
	case streamDone:
		if s.err == nil {
			s.err = ErrStreamConsumed
		}
		return false
	case streamPending:
		s.state = streamOpen
		res, err := s.conn.all(s.ctx, s.query)
		if err != nil {
			s.err = err
			s.state = streamDone
			return false
		}
		s.records = res.Results
		s.meta = res.Meta
	}

	if s.pos < len(s.records) {
		rec := s.records[s.pos]
		s.records[s.pos] = nil
		s.pos++
		s.cur = Step{Row: RowFromRecord(rec)}
		return true
	}
	if !s.resultSent {
		s.resultSent = true
		qr := resultFromMeta(s.meta)
		s.cur = Step{Result: &qr}
		return true
	}
	s.state = streamDone
	s.cur = Step{}
	return false
}

// Step returns the item Next advanced to.
func (s *Stream) Step() Step { return s.cur }

// Err returns the error that ended the stream, if any.
func (s *Stream) Err() error { return s.err }

// Close drops any unread rows.
func (s *Stream) Close() error {
	s.records = nil
	s.resultSent = true
	s.state = streamDone
	return nil
}
