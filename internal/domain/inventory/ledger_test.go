package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-inventory-engine/internal/infrastructure/store"
	"github.com/example/ec-inventory-engine/internal/infrastructure/store/mocks"
)

func newTestLedger(t *testing.T) (*Ledger, *mocks.MockStateStore) {
	t.Helper()
	st := mocks.NewMockStateStore()
	return NewLedger(st, nil), st
}

func mustCreate(t *testing.T, l *Ledger, productID string, qty int) *Record {
	t.Helper()
	rec, err := l.Create(context.Background(), productID, qty)
	require.NoError(t, err)
	return rec
}

func TestRecord_AvailableQuantity(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		reserved int
		want     int
	}{
		{"no reservations", 100, 0, 100},
		{"some reserved", 100, 30, 70},
		{"all reserved", 50, 50, 0},
		{"zero stock", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Record{ProductID: "prod-1", TotalQuantity: tt.total, ReservedQuantity: tt.reserved}
			assert.Equal(t, tt.want, rec.AvailableQuantity())
		})
	}
}

func TestLedger_Create(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	rec, err := ledger.Create(ctx, "prod-1", 100)

	require.NoError(t, err)
	assert.Equal(t, 100, rec.TotalQuantity)
	assert.Equal(t, 0, rec.ReservedQuantity)
	assert.Equal(t, 1, rec.Version)
}

func TestLedger_CreateDuplicate(t *testing.T) {
	ledger, _ := newTestLedger(t)
	mustCreate(t, ledger, "prod-1", 100)

	_, err := ledger.Create(context.Background(), "prod-1", 50)

	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestLedger_CreateNegativeQuantity(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.Create(context.Background(), "prod-1", -1)

	assert.ErrorIs(t, err, ErrValidation)
}

func TestLedger_Reserve(t *testing.T) {
	ledger, _ := newTestLedger(t)
	mustCreate(t, ledger, "prod-1", 10)

	rec, err := ledger.Reserve(context.Background(), "prod-1", 6)

	require.NoError(t, err)
	assert.Equal(t, 10, rec.TotalQuantity)
	assert.Equal(t, 6, rec.ReservedQuantity)
	assert.Equal(t, 4, rec.AvailableQuantity())
}

func TestLedger_ReserveInsufficientStockHasNoEffect(t *testing.T) {
	ledger, _ := newTestLedger(t)
	mustCreate(t, ledger, "prod-1", 10)
	ctx := context.Background()

	_, err := ledger.Reserve(ctx, "prod-1", 11)

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "requested 11")
	assert.Contains(t, err.Error(), "available 10")

	rec, err := ledger.Get(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.ReservedQuantity)
}

func TestLedger_ReserveCountsHeldStock(t *testing.T) {
	ledger, _ := newTestLedger(t)
	mustCreate(t, ledger, "prod-1", 10)
	ctx := context.Background()

	_, err := ledger.Reserve(ctx, "prod-1", 7)
	require.NoError(t, err)

	_, err = ledger.Reserve(ctx, "prod-1", 4)
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestLedger_ReserveInvalidQuantity(t *testing.T) {
	ledger, _ := newTestLedger(t)
	mustCreate(t, ledger, "prod-1", 10)

	for _, qty := range []int{0, -5} {
		_, err := ledger.Reserve(context.Background(), "prod-1", qty)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}
}

func TestLedger_ReserveMissingProduct(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.Reserve(context.Background(), "ghost", 1)

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedger_ReleaseClampsAtZero(t *testing.T) {
	ledger, _ := newTestLedger(t)
	mustCreate(t, ledger, "prod-1", 10)
	ctx := context.Background()

	_, err := ledger.Reserve(ctx, "prod-1", 3)
	require.NoError(t, err)

	rec, err := ledger.Release(ctx, "prod-1", 5)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.ReservedQuantity)
	assert.Equal(t, 10, rec.TotalQuantity)
}

func TestLedger_Commit(t *testing.T) {
	ledger, _ := newTestLedger(t)
	mustCreate(t, ledger, "prod-1", 10)
	ctx := context.Background()

	_, err := ledger.Reserve(ctx, "prod-1", 4)
	require.NoError(t, err)

	rec, err := ledger.Commit(ctx, "prod-1", 4)
	require.NoError(t, err)
	assert.Equal(t, 6, rec.TotalQuantity)
	assert.Equal(t, 0, rec.ReservedQuantity)
}

func TestLedger_CommitMoreThanReserved(t *testing.T) {
	ledger, _ := newTestLedger(t)
	mustCreate(t, ledger, "prod-1", 10)
	ctx := context.Background()

	_, err := ledger.Reserve(ctx, "prod-1", 2)
	require.NoError(t, err)

	_, err = ledger.Commit(ctx, "prod-1", 3)
	assert.ErrorIs(t, err, ErrInvariantViolation)

	rec, err := ledger.Get(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 10, rec.TotalQuantity)
	assert.Equal(t, 2, rec.ReservedQuantity)
}

func TestLedger_Adjust(t *testing.T) {
	ledger, _ := newTestLedger(t)
	mustCreate(t, ledger, "prod-1", 10)

	rec, err := ledger.Adjust(context.Background(), "prod-1", 5, "restock")

	require.NoError(t, err)
	assert.Equal(t, 15, rec.TotalQuantity)
}

func TestLedger_AdjustRejectsNegativeResult(t *testing.T) {
	ledger, _ := newTestLedger(t)
	mustCreate(t, ledger, "prod-1", 10)

	_, err := ledger.Adjust(context.Background(), "prod-1", -11, "correction")

	assert.ErrorIs(t, err, ErrValidation)
}

func TestLedger_AdjustRejectsDropBelowReserved(t *testing.T) {
	ledger, _ := newTestLedger(t)
	mustCreate(t, ledger, "prod-1", 10)
	ctx := context.Background()

	_, err := ledger.Reserve(ctx, "prod-1", 6)
	require.NoError(t, err)

	_, err = ledger.Adjust(ctx, "prod-1", -5, "correction")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLedger_AdjustCreatesMissingRow(t *testing.T) {
	ledger, _ := newTestLedger(t)

	rec, err := ledger.Adjust(context.Background(), "prod-new", 25, "import")

	require.NoError(t, err)
	assert.Equal(t, 25, rec.TotalQuantity)
}

func TestLedger_AdjustNegativeDeltaOnMissingRow(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.Adjust(context.Background(), "ghost", -5, "import")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedger_SetTotal(t *testing.T) {
	ledger, _ := newTestLedger(t)
	mustCreate(t, ledger, "prod-1", 10)

	rec, err := ledger.SetTotal(context.Background(), "prod-1", 3)

	require.NoError(t, err)
	assert.Equal(t, 3, rec.TotalQuantity)
}

func TestLedger_SetTotalBelowReserved(t *testing.T) {
	ledger, _ := newTestLedger(t)
	mustCreate(t, ledger, "prod-1", 10)
	ctx := context.Background()

	_, err := ledger.Reserve(ctx, "prod-1", 6)
	require.NoError(t, err)

	_, err = ledger.SetTotal(ctx, "prod-1", 5)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLedger_RetriesOnVersionConflict(t *testing.T) {
	st := mocks.NewMockStateStore()
	ledger := NewLedger(st, nil)
	ctx := context.Background()

	mustCreate(t, ledger, "prod-1", 10)
	st.Reset()

	conflicts := 0
	st.PutCallback = func(ctx context.Context, kind, id string, state any, expectedVersion int) (*store.Record, error) {
		if conflicts < 2 {
			conflicts++
			return nil, store.ErrVersionConflict
		}
		st.PutCallback = nil
		return st.Put(ctx, kind, id, state, expectedVersion)
	}

	rec, err := ledger.Reserve(ctx, "prod-1", 2)

	require.NoError(t, err)
	assert.Equal(t, 2, rec.ReservedQuantity)
	assert.Equal(t, 2, conflicts)
}

func TestLedger_SurfacesConflictAfterRetriesExhausted(t *testing.T) {
	st := mocks.NewMockStateStore()
	ledger := NewLedger(st, nil)
	ctx := context.Background()

	mustCreate(t, ledger, "prod-1", 10)
	st.PutErr = store.ErrVersionConflict

	_, err := ledger.Reserve(ctx, "prod-1", 2)

	assert.ErrorIs(t, err, store.ErrVersionConflict)
}

// Two concurrent reserve(6) calls against total=10: exactly one wins.
func TestLedger_ConcurrentReservesNeverOversell(t *testing.T) {
	st := store.NewMemoryStore()
	ledger := NewLedger(st, nil)
	ctx := context.Background()

	_, err := ledger.Create(ctx, "prod-1", 10)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = ledger.Reserve(ctx, "prod-1", 6)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientStock)
		}
	}
	assert.Equal(t, 1, succeeded)

	rec, err := ledger.Get(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 6, rec.ReservedQuantity)
	assert.Equal(t, 10, rec.TotalQuantity)
}

func TestLedger_ConcurrentReservesBoundedByTotal(t *testing.T) {
	st := store.NewMemoryStore()
	ledger := NewLedger(st, nil)
	ctx := context.Background()

	const total = 20
	_, err := ledger.Create(ctx, "prod-1", total)
	require.NoError(t, err)

	const workers = 30
	var wg sync.WaitGroup
	var mu sync.Mutex
	reserved := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Reserve(ctx, "prod-1", 1); err == nil {
				mu.Lock()
				reserved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	rec, err := ledger.Get(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, reserved, rec.ReservedQuantity)
	assert.LessOrEqual(t, rec.ReservedQuantity, total)
	assert.GreaterOrEqual(t, rec.AvailableQuantity(), 0)
}

func TestLedger_NotFoundError(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.Get(context.Background(), "ghost")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}
