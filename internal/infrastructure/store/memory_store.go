package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. Used in tests and for
// single-node development runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]Record // kind -> id -> record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]map[string]Record),
	}
}

func (s *MemoryStore) Get(ctx context.Context, kind, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[kind][id]
	if !ok {
		return nil, ErrNotFound
	}
	out := rec
	out.State = append(json.RawMessage(nil), rec.State...)
	return &out, nil
}

func (s *MemoryStore) List(ctx context.Context, kind string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]Record, 0, len(s.records[kind]))
	for _, rec := range s.records[kind] {
		out := rec
		out.State = append(json.RawMessage(nil), rec.State...)
		rows = append(rows, out)
	}
	return rows, nil
}

func (s *MemoryStore) Put(ctx context.Context, kind, id string, state any, expectedVersion int) (*Record, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records[kind] == nil {
		s.records[kind] = make(map[string]Record)
	}

	current, exists := s.records[kind][id]
	switch {
	case expectedVersion == 0 && exists:
		return nil, ErrVersionConflict
	case expectedVersion > 0 && !exists:
		return nil, ErrNotFound
	case expectedVersion > 0 && current.Version != expectedVersion:
		return nil, ErrVersionConflict
	}

	rec := Record{
		Kind:      kind,
		ID:        id,
		State:     data,
		Version:   expectedVersion + 1,
		UpdatedAt: time.Now(),
	}
	s.records[kind][id] = rec

	out := rec
	out.State = append(json.RawMessage(nil), rec.State...)
	return &out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[kind][id]; !ok {
		return ErrNotFound
	}
	delete(s.records[kind], id)
	return nil
}
