package adapters

import (
	"context"
	"sync"
	"time"

	"etfcli/pkg/contracts/domain"
)

// Scripted is a canned adapter for tests: it answers with a fixed field map
// or a fixed error, optionally after a delay, and records every call. Safe
// for concurrent use.
type Scripted struct {
	ID     domain.SourceID
	Fields map[domain.Field]domain.FieldValue
	Err    error
	Delay  time.Duration

	mu    sync.Mutex
	calls []ScriptedCall
}

// ScriptedCall records one Fetch invocation.
type ScriptedCall struct {
	Ticker string
	Fields []domain.Field
}

// Source implements Adapter.
func (s *Scripted) Source() domain.SourceID {
	return s.ID
}

// Fetch implements Adapter. Only requested fields present in the script are
// returned, mirroring a real source answering a field-filtered query.
func (s *Scripted) Fetch(ctx context.Context, ticker string, fields []domain.Field) (map[domain.Field]domain.FieldValue, error) {
	s.mu.Lock()
	s.calls = append(s.calls, ScriptedCall{Ticker: ticker, Fields: append([]domain.Field(nil), fields...)})
	s.mu.Unlock()

	if s.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, Classify(s.ID, ctx.Err())
		case <-time.After(s.Delay):
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}

	out := make(map[domain.Field]domain.FieldValue, len(fields))
	for _, f := range fields {
		if fv, ok := s.Fields[f]; ok {
			out[f] = fv
		}
	}
	return out, nil
}

// Calls returns a copy of the recorded invocations.
func (s *Scripted) Calls() []ScriptedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ScriptedCall(nil), s.calls...)
}

// CallCount returns how many times Fetch ran.
func (s *Scripted) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
