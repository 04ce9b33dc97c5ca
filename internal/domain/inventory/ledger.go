package inventory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/example/ec-inventory-engine/internal/events"
	"github.com/example/ec-inventory-engine/internal/infrastructure/store"
)

const Kind = store.KindInventory

// EntityType tags ledger events on the wire.
const EntityType = "Inventory"

const (
	// maxAttempts bounds CAS retries before the conflict is surfaced.
	maxAttempts    = 3
	retryBaseDelay = 10 * time.Millisecond
	retryJitterMs  = 40
)

var (
	ErrNotFound           = errors.New("inventory not found")
	ErrAlreadyExists      = errors.New("inventory already exists")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvariantViolation = errors.New("inventory invariant violation")
	ErrValidation         = errors.New("invalid inventory update")
)

// Record is the authoritative stock row for one product.
// Invariant: 0 <= ReservedQuantity <= TotalQuantity. Available stock is
// always derived, never stored.
type Record struct {
	ProductID        string    `json:"product_id"`
	TotalQuantity    int       `json:"total_quantity"`
	ReservedQuantity int       `json:"reserved_quantity"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Version          int       `json:"-"`
}

func (r *Record) AvailableQuantity() int {
	return r.TotalQuantity - r.ReservedQuantity
}

// Ledger is the only writer of stock quantities. Every mutation is a
// load-mutate-CAS cycle with bounded, jittered retries on version conflicts.
type Ledger struct {
	store     store.StateStore
	publisher events.Publisher
}

func NewLedger(st store.StateStore, pub events.Publisher) *Ledger {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Ledger{store: st, publisher: pub}
}

func (l *Ledger) Create(ctx context.Context, productID string, quantity int) (*Record, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("%w: initial quantity must not be negative", ErrValidation)
	}

	now := time.Now()
	rec := &Record{
		ProductID:     productID,
		TotalQuantity: quantity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	stored, err := l.store.Put(ctx, Kind, productID, rec, 0)
	if errors.Is(err, store.ErrVersionConflict) {
		return nil, fmt.Errorf("%w: product %s", ErrAlreadyExists, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("create inventory %s: %w", productID, err)
	}
	rec.Version = stored.Version

	l.publish(ctx, productID, EventInventoryCreated, InventoryCreated{
		ProductID:     productID,
		TotalQuantity: quantity,
		CreatedAt:     now,
	})
	return rec, nil
}

// Reserve places a hold on available stock. It fails without effect when
// fewer than qty units are available.
func (l *Ledger) Reserve(ctx context.Context, productID string, qty int) (*Record, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	rec, err := l.update(ctx, productID, func(r *Record) error {
		if r.AvailableQuantity() < qty {
			return fmt.Errorf("%w: product %s: requested %d, available %d",
				ErrInsufficientStock, productID, qty, r.AvailableQuantity())
		}
		r.ReservedQuantity += qty
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.publish(ctx, productID, EventStockReserved, StockReserved{
		ProductID:  productID,
		Quantity:   qty,
		Reserved:   rec.ReservedQuantity,
		Available:  rec.AvailableQuantity(),
		ReservedAt: rec.UpdatedAt,
	})
	return rec, nil
}

// Release gives a hold back. Clamped at zero so compensating a partial or
// already-released reservation is always safe.
func (l *Ledger) Release(ctx context.Context, productID string, qty int) (*Record, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	rec, err := l.update(ctx, productID, func(r *Record) error {
		r.ReservedQuantity -= qty
		if r.ReservedQuantity < 0 {
			r.ReservedQuantity = 0
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.publish(ctx, productID, EventStockReleased, StockReleased{
		ProductID:  productID,
		Quantity:   qty,
		Reserved:   rec.ReservedQuantity,
		ReleasedAt: rec.UpdatedAt,
	})
	return rec, nil
}

// Commit turns a hold into a permanent sale: both reserved and total shrink.
func (l *Ledger) Commit(ctx context.Context, productID string, qty int) (*Record, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	rec, err := l.update(ctx, productID, func(r *Record) error {
		if r.ReservedQuantity < qty || r.TotalQuantity < qty {
			return fmt.Errorf("%w: product %s: commit %d with reserved %d, total %d",
				ErrInvariantViolation, productID, qty, r.ReservedQuantity, r.TotalQuantity)
		}
		r.ReservedQuantity -= qty
		r.TotalQuantity -= qty
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.publish(ctx, productID, EventStockCommitted, StockCommitted{
		ProductID:   productID,
		Quantity:    qty,
		Total:       rec.TotalQuantity,
		CommittedAt: rec.UpdatedAt,
	})
	return rec, nil
}

// Adjust applies a manual or bulk correction to total quantity. A missing
// row is created on the fly so imports can stock new products.
func (l *Ledger) Adjust(ctx context.Context, productID string, delta int, reason string) (*Record, error) {
	rec, err := l.update(ctx, productID, func(r *Record) error {
		return applyDelta(r, delta)
	})
	if errors.Is(err, ErrNotFound) && delta >= 0 {
		rec, err = l.Create(ctx, productID, delta)
		if errors.Is(err, store.ErrVersionConflict) || errors.Is(err, ErrAlreadyExists) {
			// Lost the creation race; retry as a plain update.
			rec, err = l.update(ctx, productID, func(r *Record) error {
				return applyDelta(r, delta)
			})
		}
	}
	if err != nil {
		return nil, err
	}

	l.publish(ctx, productID, EventStockAdjusted, StockAdjusted{
		ProductID:  productID,
		Delta:      delta,
		Total:      rec.TotalQuantity,
		Reason:     reason,
		AdjustedAt: rec.UpdatedAt,
	})
	return rec, nil
}

func applyDelta(r *Record, delta int) error {
	next := r.TotalQuantity + delta
	if next < 0 {
		return fmt.Errorf("%w: product %s: total would become %d",
			ErrValidation, r.ProductID, next)
	}
	if next < r.ReservedQuantity {
		return fmt.Errorf("%w: product %s: total %d would drop below reserved %d",
			ErrValidation, r.ProductID, next, r.ReservedQuantity)
	}
	r.TotalQuantity = next
	return nil
}

// SetTotal replaces total quantity outright. The new total must cover the
// currently reserved stock.
func (l *Ledger) SetTotal(ctx context.Context, productID string, newQuantity int) (*Record, error) {
	if newQuantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrValidation)
	}

	var delta int
	rec, err := l.update(ctx, productID, func(r *Record) error {
		if newQuantity < r.ReservedQuantity {
			return fmt.Errorf("%w: product %s: new total %d is below reserved %d",
				ErrValidation, productID, newQuantity, r.ReservedQuantity)
		}
		delta = newQuantity - r.TotalQuantity
		r.TotalQuantity = newQuantity
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.publish(ctx, productID, EventStockAdjusted, StockAdjusted{
		ProductID:  productID,
		Delta:      delta,
		Total:      rec.TotalQuantity,
		Reason:     "manual update",
		AdjustedAt: rec.UpdatedAt,
	})
	return rec, nil
}

func (l *Ledger) Get(ctx context.Context, productID string) (*Record, error) {
	return l.load(ctx, productID)
}

func (l *Ledger) List(ctx context.Context) ([]Record, error) {
	recs, err := l.store.List(ctx, Kind)
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(recs))
	for _, stored := range recs {
		var rec Record
		if err := stored.Unmarshal(&rec); err != nil {
			return nil, err
		}
		rec.Version = stored.Version
		out = append(out, rec)
	}
	return out, nil
}

func (l *Ledger) load(ctx context.Context, productID string) (*Record, error) {
	stored, err := l.store.Get(ctx, Kind, productID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, productID)
	}
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := stored.Unmarshal(&rec); err != nil {
		return nil, err
	}
	rec.Version = stored.Version
	return &rec, nil
}

func (l *Ledger) update(ctx context.Context, productID string, mutate func(*Record) error) (*Record, error) {
	for attempt := 1; ; attempt++ {
		rec, err := l.load(ctx, productID)
		if err != nil {
			return nil, err
		}
		if err := mutate(rec); err != nil {
			return nil, err
		}
		rec.UpdatedAt = time.Now()

		stored, err := l.store.Put(ctx, Kind, productID, rec, rec.Version)
		if err == nil {
			rec.Version = stored.Version
			return rec, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return nil, fmt.Errorf("update inventory %s: %w", productID, err)
		}
		if attempt >= maxAttempts {
			return nil, fmt.Errorf("update inventory %s: %w", productID, err)
		}
		backoff(ctx)
	}
}

func backoff(ctx context.Context) {
	delay := retryBaseDelay + time.Duration(rand.IntN(retryJitterMs))*time.Millisecond
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

func (l *Ledger) publish(ctx context.Context, productID, eventType string, data any) {
	if err := l.publisher.Publish(ctx, productID, EntityType, eventType, data); err != nil {
		log.Printf("[Ledger] Failed to publish %s for product %s: %v", eventType, productID, err)
	}
}
