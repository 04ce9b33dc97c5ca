package mocks

import (
	"context"

	"github.com/example/ec-inventory-engine/internal/infrastructure/store"
)

// MockStateStore wraps an in-memory store and records every write, with
// hooks for injecting failures in tests.
type MockStateStore struct {
	backing *store.MemoryStore

	PutCalls    []PutCall
	PutErr      error
	PutCallback func(ctx context.Context, kind, id string, state any, expectedVersion int) (*store.Record, error)
	GetErr      error
	ListErr     error
}

// PutCall records the parameters of a Put invocation.
type PutCall struct {
	Kind            string
	ID              string
	State           any
	ExpectedVersion int
}

func NewMockStateStore() *MockStateStore {
	return &MockStateStore{
		backing:  store.NewMemoryStore(),
		PutCalls: make([]PutCall, 0),
	}
}

func (m *MockStateStore) Get(ctx context.Context, kind, id string) (*store.Record, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return m.backing.Get(ctx, kind, id)
}

func (m *MockStateStore) List(ctx context.Context, kind string) ([]store.Record, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.backing.List(ctx, kind)
}

func (m *MockStateStore) Put(ctx context.Context, kind, id string, state any, expectedVersion int) (*store.Record, error) {
	m.PutCalls = append(m.PutCalls, PutCall{
		Kind:            kind,
		ID:              id,
		State:           state,
		ExpectedVersion: expectedVersion,
	})

	if m.PutCallback != nil {
		return m.PutCallback(ctx, kind, id, state, expectedVersion)
	}
	if m.PutErr != nil {
		return nil, m.PutErr
	}
	return m.backing.Put(ctx, kind, id, state, expectedVersion)
}

func (m *MockStateStore) Delete(ctx context.Context, kind, id string) error {
	return m.backing.Delete(ctx, kind, id)
}

// Seed writes a record directly to the backing store, bypassing call
// recording.
func (m *MockStateStore) Seed(kind, id string, state any) error {
	_, err := m.backing.Put(context.Background(), kind, id, state, 0)
	return err
}

// Reset clears recorded calls and injected errors, keeping stored data.
func (m *MockStateStore) Reset() {
	m.PutCalls = make([]PutCall, 0)
	m.PutErr = nil
	m.PutCallback = nil
	m.GetErr = nil
	m.ListErr = nil
}
