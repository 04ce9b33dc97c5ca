package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Collection names used across the engine.
const (
	KindInventory = "inventory"
	KindCart      = "carts"
	KindOrder     = "orders"
	KindProduct   = "products"
	KindCustomer  = "customers"
)

var (
	// ErrNotFound is returned when no record exists for the given kind/id.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when a conditional write loses an
	// optimistic-concurrency race.
	ErrVersionConflict = errors.New("version conflict")
)

// Record is a versioned state row. Version starts at 1 on insert and
// increments by one on every successful write.
type Record struct {
	Kind      string          `json:"kind"`
	ID        string          `json:"id"`
	State     json.RawMessage `json:"state"`
	Version   int             `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Unmarshal decodes the record state into v.
func (r *Record) Unmarshal(v any) error {
	return json.Unmarshal(r.State, v)
}

// StateStore persists JSON documents with per-row optimistic concurrency.
//
// Put with expectedVersion == 0 inserts a new row and fails with
// ErrVersionConflict if one already exists. Put with expectedVersion > 0
// updates the row conditionally on the stored version matching; a mismatch
// returns ErrVersionConflict and a missing row returns ErrNotFound.
type StateStore interface {
	Get(ctx context.Context, kind, id string) (*Record, error)
	List(ctx context.Context, kind string) ([]Record, error)
	Put(ctx context.Context, kind, id string, state any, expectedVersion int) (*Record, error)
	Delete(ctx context.Context, kind, id string) error
}
