package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/example/ec-inventory-engine/internal/events"
	"github.com/example/ec-inventory-engine/internal/infrastructure/store"
)

const Kind = store.KindOrder

// EntityType tags order events on the wire.
const EntityType = "Order"

const maxTransitionAttempts = 3

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusReserved  Status = "RESERVED"
	StatusPaid      Status = "PAID"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusCancelled Status = "CANCELLED"
	StatusFailed    Status = "FAILED"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrEmptyOrder        = errors.New("order must have at least one line")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// validTransitions is the full transition table. Terminal states map to an
// empty set.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusReserved, StatusFailed, StatusCancelled},
	StatusReserved:  {StatusPaid, StatusFailed, StatusCancelled},
	StatusPaid:      {StatusConfirmed, StatusFailed, StatusCancelled},
	StatusConfirmed: {StatusShipped},
	StatusShipped:   {},
	StatusCancelled: {},
	StatusFailed:    {},
}

// Line is a snapshot taken at order creation; prices are never re-read from
// the catalog afterward.
type Line struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int    `json:"unit_price"`
}

type ShippingAddress struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type Order struct {
	ID              string          `json:"id"`
	CustomerID      string          `json:"customer_id"`
	Status          Status          `json:"status"`
	Lines           []Line          `json:"lines"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentRef      string          `json:"payment_ref,omitempty"`
	StatusReason    string          `json:"status_reason,omitempty"`
	CommittedLines  map[string]bool `json:"committed_lines,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"-"`
}

func (o *Order) Total() int {
	total := 0
	for _, ln := range o.Lines {
		total += ln.UnitPrice * ln.Quantity
	}
	return total
}

// SortedLines returns the order lines sorted by product id, the global
// acquisition order for multi-line ledger operations.
func (o *Order) SortedLines() []Line {
	lines := append([]Line(nil), o.Lines...)
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].ProductID < lines[j].ProductID
	})
	return lines
}

func (o *Order) IsTerminal() bool {
	return len(validTransitions[o.Status]) == 0
}

func (o *Order) CanTransitionTo(target Status) bool {
	for _, s := range validTransitions[o.Status] {
		if s == target {
			return true
		}
	}
	return false
}

func (o *Order) transitionError(target Status) error {
	return fmt.Errorf("%w: order %s is %s, cannot become %s",
		ErrInvalidTransition, o.ID, o.Status, target)
}

// Service owns order rows. Every transition is guarded by the current-state
// check and written with a compare-and-swap on the row version, so a
// concurrent cancel and commit resolve to exactly one winner.
type Service struct {
	store     store.StateStore
	publisher events.Publisher
}

func NewService(st store.StateStore, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Service{store: st, publisher: pub}
}

func (s *Service) Create(ctx context.Context, customerID string, lines []Line) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, ln := range lines {
		if ln.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line for product %s has quantity %d",
				ErrEmptyOrder, ln.ProductID, ln.Quantity)
		}
	}

	now := time.Now()
	o := &Order{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		Status:     StatusPending,
		Lines:      lines,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	stored, err := s.store.Put(ctx, Kind, o.ID, o, 0)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	o.Version = stored.Version

	s.publish(ctx, o.ID, EventOrderCreated, OrderCreated{
		OrderID:    o.ID,
		CustomerID: customerID,
		Lines:      lines,
		Total:      o.Total(),
		CreatedAt:  now,
	})
	return o, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	rec, err := s.store.Get(ctx, Kind, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var o Order
	if err := rec.Unmarshal(&o); err != nil {
		return nil, err
	}
	o.Version = rec.Version
	return &o, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	recs, err := s.store.List(ctx, Kind)
	if err != nil {
		return nil, err
	}

	out := make([]Order, 0)
	for _, rec := range recs {
		var o Order
		if err := rec.Unmarshal(&o); err != nil {
			return nil, err
		}
		if o.CustomerID != customerID {
			continue
		}
		o.Version = rec.Version
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Service) MarkReserved(ctx context.Context, orderID string) (*Order, error) {
	o, _, err := s.transition(ctx, orderID, StatusReserved, nil)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, o.ID, EventOrderReserved, OrderReserved{OrderID: o.ID, ReservedAt: o.UpdatedAt})
	return o, nil
}

func (s *Service) MarkPaid(ctx context.Context, orderID, paymentRef string, addr ShippingAddress) (*Order, error) {
	o, _, err := s.transition(ctx, orderID, StatusPaid, func(o *Order) {
		o.PaymentRef = paymentRef
		o.ShippingAddress = addr
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, o.ID, EventOrderPaid, OrderPaid{OrderID: o.ID, PaymentRef: paymentRef, PaidAt: o.UpdatedAt})
	return o, nil
}

func (s *Service) MarkConfirmed(ctx context.Context, orderID string) (*Order, error) {
	o, _, err := s.transition(ctx, orderID, StatusConfirmed, nil)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, o.ID, EventOrderConfirmed, OrderConfirmed{
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		Lines:       o.Lines,
		Total:       o.Total(),
		ConfirmedAt: o.UpdatedAt,
	})
	return o, nil
}

func (s *Service) MarkShipped(ctx context.Context, orderID string) (*Order, error) {
	o, _, err := s.transition(ctx, orderID, StatusShipped, nil)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, o.ID, EventOrderShipped, OrderShipped{OrderID: o.ID, ShippedAt: o.UpdatedAt})
	return o, nil
}

// Cancel moves the order to CANCELLED and also reports the status the
// cancel transitioned from. The from-status comes out of the same reload
// loop as the winning write, so callers can decide compensation without a
// separate read that could race the transition.
func (s *Service) Cancel(ctx context.Context, orderID, reason string) (*Order, Status, error) {
	o, from, err := s.transition(ctx, orderID, StatusCancelled, func(o *Order) {
		o.StatusReason = reason
	})
	if err != nil {
		return nil, "", err
	}
	s.publish(ctx, o.ID, EventOrderCancelled, OrderCancelled{OrderID: o.ID, Reason: reason, CancelledAt: o.UpdatedAt})
	return o, from, nil
}

func (s *Service) MarkFailed(ctx context.Context, orderID, reason string) (*Order, error) {
	o, _, err := s.transition(ctx, orderID, StatusFailed, func(o *Order) {
		o.StatusReason = reason
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, o.ID, EventOrderFailed, OrderFailed{OrderID: o.ID, Reason: reason, FailedAt: o.UpdatedAt})
	return o, nil
}

// MarkLineCommitted records ledger-commit progress for one line so commit
// retries skip lines that already went through. It refuses on terminal
// orders, so a commit racing a cancel learns it lost and can put the
// stock back.
func (s *Service) MarkLineCommitted(ctx context.Context, orderID, productID string) (*Order, error) {
	for attempt := 1; ; attempt++ {
		o, err := s.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if o.IsTerminal() {
			return nil, fmt.Errorf("%w: order %s is %s", ErrInvalidTransition, o.ID, o.Status)
		}
		if o.CommittedLines[productID] {
			return o, nil
		}
		if o.CommittedLines == nil {
			o.CommittedLines = make(map[string]bool)
		}
		o.CommittedLines[productID] = true
		o.UpdatedAt = time.Now()

		stored, err := s.store.Put(ctx, Kind, o.ID, o, o.Version)
		if err == nil {
			o.Version = stored.Version
			return o, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) || attempt >= maxTransitionAttempts {
			return nil, fmt.Errorf("mark line committed on order %s: %w", orderID, err)
		}
	}
}

// transition re-loads the row and re-evaluates the guard on every attempt.
// A version conflict only leads to a retry while the guard still holds, so
// the loser of a cancel/commit race always observes the winner's state. The
// returned Status is the state the winning write actually left, which can
// differ from what a caller read before invoking the transition.
func (s *Service) transition(ctx context.Context, orderID string, target Status, mutate func(*Order)) (*Order, Status, error) {
	for attempt := 1; ; attempt++ {
		o, err := s.Get(ctx, orderID)
		if err != nil {
			return nil, "", err
		}
		if !o.CanTransitionTo(target) {
			return nil, "", o.transitionError(target)
		}

		from := o.Status
		o.Status = target
		if mutate != nil {
			mutate(o)
		}
		o.UpdatedAt = time.Now()

		stored, err := s.store.Put(ctx, Kind, o.ID, o, o.Version)
		if err == nil {
			o.Version = stored.Version
			return o, from, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return nil, "", fmt.Errorf("transition order %s to %s: %w", orderID, target, err)
		}
		if attempt >= maxTransitionAttempts {
			return nil, "", fmt.Errorf("transition order %s to %s: %w", orderID, target, err)
		}
	}
}

func (s *Service) publish(ctx context.Context, orderID, eventType string, data any) {
	if err := s.publisher.Publish(ctx, orderID, EntityType, eventType, data); err != nil {
		log.Printf("[Order] Failed to publish %s for order %s: %v", eventType, orderID, err)
	}
}
