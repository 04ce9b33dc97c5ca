package reservation

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/example/ec-inventory-engine/internal/domain/inventory"
	"github.com/example/ec-inventory-engine/internal/domain/order"
)

// Coordinator turns an order's lines into ledger holds and back. Multi-line
// operations always walk lines in product id order, so two orders sharing
// products contend on rows in the same sequence.
type Coordinator struct {
	ledger *inventory.Ledger
	orders *order.Service
}

func NewCoordinator(ledger *inventory.Ledger, orders *order.Service) *Coordinator {
	return &Coordinator{ledger: ledger, orders: orders}
}

// Reserve places a hold for every line, all or nothing. When a line fails,
// the holds already taken are released in reverse before the error surfaces.
func (c *Coordinator) Reserve(ctx context.Context, o *order.Order) error {
	lines := o.SortedLines()
	for i, ln := range lines {
		if _, err := c.ledger.Reserve(ctx, ln.ProductID, ln.Quantity); err != nil {
			c.rollback(ctx, o.ID, lines[:i])
			return fmt.Errorf("reserve order %s: %w", o.ID, err)
		}
	}
	return nil
}

// Release gives back every uncommitted line's hold. Committed lines no
// longer hold anything and are skipped, so a cancel after a partial commit
// cannot eat into holds owned by other orders. Failures on individual lines
// are collected rather than aborting the sweep.
func (c *Coordinator) Release(ctx context.Context, o *order.Order) error {
	var errs []error
	for _, ln := range o.SortedLines() {
		if o.CommittedLines[ln.ProductID] {
			continue
		}
		if _, err := c.ledger.Release(ctx, ln.ProductID, ln.Quantity); err != nil {
			if errors.Is(err, inventory.ErrNotFound) {
				continue
			}
			errs = append(errs, fmt.Errorf("release %s x%d: %w", ln.ProductID, ln.Quantity, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("release order %s: %w", o.ID, errors.Join(errs...))
	}
	return nil
}

// CommitLines converts the order's holds into permanent decrements. Progress
// is recorded per line on the order row, so a retry after a partial failure
// skips lines that already went through instead of double-decrementing.
func (c *Coordinator) CommitLines(ctx context.Context, o *order.Order) error {
	for _, ln := range o.SortedLines() {
		if o.CommittedLines[ln.ProductID] {
			continue
		}
		if _, err := c.ledger.Commit(ctx, ln.ProductID, ln.Quantity); err != nil {
			return fmt.Errorf("commit order %s line %s: %w", o.ID, ln.ProductID, err)
		}
		updated, err := c.orders.MarkLineCommitted(ctx, o.ID, ln.ProductID)
		if err != nil {
			// The order went terminal under us. The decrement cannot be
			// recorded, so put the stock straight back.
			if _, adjErr := c.ledger.Adjust(ctx, ln.ProductID, ln.Quantity, "commit rollback"); adjErr != nil {
				log.Printf("[Coordinator] Failed to restock %s x%d after lost commit on order %s: %v",
					ln.ProductID, ln.Quantity, o.ID, adjErr)
			}
			return fmt.Errorf("record committed line %s on order %s: %w", ln.ProductID, o.ID, err)
		}
		o.CommittedLines = updated.CommittedLines
		o.Version = updated.Version
	}
	return nil
}

// Compensate unwinds a cancelled order: uncommitted lines give their holds
// back, already-committed lines are restocked.
func (c *Coordinator) Compensate(ctx context.Context, o *order.Order) error {
	var errs []error
	for _, ln := range o.SortedLines() {
		if o.CommittedLines[ln.ProductID] {
			if _, err := c.ledger.Adjust(ctx, ln.ProductID, ln.Quantity, "order cancelled"); err != nil {
				errs = append(errs, fmt.Errorf("restock %s x%d: %w", ln.ProductID, ln.Quantity, err))
			}
			continue
		}
		if _, err := c.ledger.Release(ctx, ln.ProductID, ln.Quantity); err != nil {
			if errors.Is(err, inventory.ErrNotFound) {
				continue
			}
			errs = append(errs, fmt.Errorf("release %s x%d: %w", ln.ProductID, ln.Quantity, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("compensate order %s: %w", o.ID, errors.Join(errs...))
	}
	return nil
}

func (c *Coordinator) rollback(ctx context.Context, orderID string, reserved []order.Line) {
	for i := len(reserved) - 1; i >= 0; i-- {
		ln := reserved[i]
		if _, err := c.ledger.Release(ctx, ln.ProductID, ln.Quantity); err != nil {
			log.Printf("[Coordinator] Failed to roll back hold on %s x%d for order %s: %v",
				ln.ProductID, ln.Quantity, orderID, err)
		}
	}
}
