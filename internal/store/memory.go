package store

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"
)

// Memory keeps documents in process memory. It backs local runs without
// cloud credentials; contents are lost on restart.
type Memory struct {
	mu      sync.Mutex
	records []Record
	err     error
}

func NewMemory() *Memory {
	return &Memory{}
}

// FailWith makes every subsequent call return err. Passing nil clears it.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Memory) Add(_ context.Context, doc Document) (string, error) {
	if len(doc) == 0 {
		return "", ErrEmptyDocument
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}

	id := uuid.NewString()
	m.records = append(m.records, Record{ID: id, Data: maps.Clone(doc)})
	return id, nil
}

func (m *Memory) List(_ context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	out := make([]Record, len(m.records))
	for i, r := range m.records {
		out[i] = Record{ID: r.ID, Data: maps.Clone(r.Data)}
	}
	return out, nil
}

func (m *Memory) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Memory) Close() error { return nil }

// Len reports how many documents have been written.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
