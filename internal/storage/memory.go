package storage

import (
	"context"
	"strings"
	"sync"

	"etfcli/pkg/contracts/domain"
)

// Memory keeps last-known values in process memory only. It is the fallback
// when persistence is disabled: stale substitution still works within one
// process lifetime, nothing survives a restart.
type Memory struct {
	mu     sync.RWMutex
	fields map[string]map[domain.Field]domain.FieldValue
}

// NewMemory creates an empty in-memory last-known store.
func NewMemory() *Memory {
	return &Memory{fields: make(map[string]map[domain.Field]domain.FieldValue)}
}

// SaveLastKnown merges the given field values into the ticker's last-known set.
func (m *Memory) SaveLastKnown(_ context.Context, ticker string, fields map[domain.Field]domain.FieldValue) error {
	if len(fields) == 0 {
		return nil
	}
	key := strings.ToUpper(ticker)

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.fields[key]
	if !ok {
		existing = make(map[domain.Field]domain.FieldValue, len(fields))
		m.fields[key] = existing
	}
	for field, fv := range fields {
		existing[field] = fv
	}
	return nil
}

// LastKnown returns a copy of the ticker's last-known field values. A ticker
// with no history yields an empty map.
func (m *Memory) LastKnown(_ context.Context, ticker string) (map[domain.Field]domain.FieldValue, error) {
	key := strings.ToUpper(ticker)

	m.mu.RLock()
	defer m.mu.RUnlock()

	existing := m.fields[key]
	out := make(map[domain.Field]domain.FieldValue, len(existing))
	for field, fv := range existing {
		out[field] = fv
	}
	return out, nil
}
