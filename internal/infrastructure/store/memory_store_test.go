package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testState struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryStore_InsertAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec, err := s.Put(ctx, "widgets", "w-1", testState{Name: "a", Count: 1}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Version)

	got, err := s.Get(ctx, "widgets", "w-1")
	require.NoError(t, err)

	var state testState
	require.NoError(t, got.Unmarshal(&state))
	assert.Equal(t, "a", state.Name)
	assert.Equal(t, 1, got.Version)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get(context.Background(), "widgets", "nope")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_InsertTwiceConflicts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Put(ctx, "widgets", "w-1", testState{}, 0)
	require.NoError(t, err)

	_, err = s.Put(ctx, "widgets", "w-1", testState{}, 0)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestMemoryStore_UpdateRequiresMatchingVersion(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Put(ctx, "widgets", "w-1", testState{Count: 1}, 0)
	require.NoError(t, err)

	rec, err := s.Put(ctx, "widgets", "w-1", testState{Count: 2}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)

	// Stale version loses.
	_, err = s.Put(ctx, "widgets", "w-1", testState{Count: 3}, 1)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestMemoryStore_UpdateMissingRow(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Put(context.Background(), "widgets", "nope", testState{}, 3)

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_List(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Put(ctx, "widgets", "w-1", testState{Name: "a"}, 0)
	require.NoError(t, err)
	_, err = s.Put(ctx, "widgets", "w-2", testState{Name: "b"}, 0)
	require.NoError(t, err)
	_, err = s.Put(ctx, "gadgets", "g-1", testState{Name: "c"}, 0)
	require.NoError(t, err)

	rows, err := s.List(ctx, "widgets")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Put(ctx, "widgets", "w-1", testState{}, 0)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "widgets", "w-1"))
	assert.ErrorIs(t, s.Delete(ctx, "widgets", "w-1"), ErrNotFound)

	_, err = s.Get(ctx, "widgets", "w-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ConcurrentCASWritersOneWinnerPerVersion(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Put(ctx, "widgets", "w-1", testState{Count: 0}, 0)
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Put(ctx, "widgets", "w-1", testState{Count: 1}, 1)
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)

	rec, err := s.Get(ctx, "widgets", "w-1")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)
}
