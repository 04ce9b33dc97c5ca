package command

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/example/ec-inventory-engine/internal/domain/cart"
	"github.com/example/ec-inventory-engine/internal/domain/inventory"
	"github.com/example/ec-inventory-engine/internal/domain/order"
	"github.com/example/ec-inventory-engine/internal/domain/product"
	"github.com/example/ec-inventory-engine/internal/payment"
	"github.com/example/ec-inventory-engine/internal/reservation"
)

// CommitStage selects when reserved stock is permanently decremented.
type CommitStage string

const (
	// CommitOnPayment commits reserved stock as soon as payment clears.
	CommitOnPayment CommitStage = "payment"
	// CommitOnShipment defers the decrement until the order ships.
	CommitOnShipment CommitStage = "shipment"
)

var (
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrNoReservedOrder  = errors.New("no order ready for checkout")
)

// IdempotencyGuard marks a request key as in-flight. Begin returns false
// when the key was already claimed; Release frees a claimed key so a
// failed operation can be retried before the key expires.
type IdempotencyGuard interface {
	Begin(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Handler executes write commands. It owns the orchestration between carts,
// orders, the ledger and the payment provider; the domain services own the
// individual row mutations.
type Handler struct {
	products    *product.Catalog
	ledger      *inventory.Ledger
	carts       *cart.Service
	orders      *order.Service
	coordinator *reservation.Coordinator
	payments    payment.Gateway
	idempotency IdempotencyGuard
	commitStage CommitStage
}

func NewHandler(
	products *product.Catalog,
	ledger *inventory.Ledger,
	carts *cart.Service,
	orders *order.Service,
	coordinator *reservation.Coordinator,
	payments payment.Gateway,
	idempotency IdempotencyGuard,
	commitStage CommitStage,
) *Handler {
	if commitStage != CommitOnShipment {
		commitStage = CommitOnPayment
	}
	return &Handler{
		products:    products,
		ledger:      ledger,
		carts:       carts,
		orders:      orders,
		coordinator: coordinator,
		payments:    payments,
		idempotency: idempotency,
		commitStage: commitStage,
	}
}

// CreateProduct creates the catalog entry and its stock row together.
func (h *Handler) CreateProduct(ctx context.Context, cmd CreateProduct) (*product.Product, error) {
	p, err := h.products.Create(ctx, cmd.Name, cmd.Description, cmd.Category, cmd.Price)
	if err != nil {
		return nil, err
	}
	if _, err := h.ledger.Create(ctx, p.ID, cmd.Stock); err != nil {
		return nil, err
	}
	return p, nil
}

func (h *Handler) UpdateProduct(ctx context.Context, cmd UpdateProduct) (*product.Product, error) {
	return h.products.Update(ctx, cmd.ProductID, cmd.Name, cmd.Description, cmd.Category, cmd.Price)
}

func (h *Handler) CreateInventory(ctx context.Context, cmd CreateInventory) (*inventory.Record, error) {
	return h.ledger.Create(ctx, cmd.ProductID, cmd.Quantity)
}

func (h *Handler) UpdateInventory(ctx context.Context, cmd UpdateInventory) (*inventory.Record, error) {
	return h.ledger.SetTotal(ctx, cmd.ProductID, cmd.Quantity)
}

func (h *Handler) AdjustInventory(ctx context.Context, cmd AdjustInventory) (*inventory.Record, error) {
	return h.ledger.Adjust(ctx, cmd.ProductID, cmd.Delta, cmd.Reason)
}

func (h *Handler) AddToCart(ctx context.Context, cmd AddToCart) (*cart.Cart, error) {
	return h.carts.AddItem(ctx, cmd.CustomerID, cmd.ProductID, cmd.Quantity)
}

func (h *Handler) UpdateCartItem(ctx context.Context, cmd UpdateCartItem) (*cart.Cart, error) {
	return h.carts.UpdateQuantity(ctx, cmd.CustomerID, cmd.ItemID, cmd.Quantity)
}

func (h *Handler) RemoveCartItem(ctx context.Context, cmd RemoveCartItem) (*cart.Cart, error) {
	return h.carts.RemoveItem(ctx, cmd.CustomerID, cmd.ItemID)
}

func (h *Handler) ClearCart(ctx context.Context, cmd ClearCart) error {
	return h.carts.Clear(ctx, cmd.CustomerID)
}

func (h *Handler) ValidateCart(ctx context.Context, customerID string) (*cart.Report, error) {
	return h.carts.Validate(ctx, customerID)
}

// CreateOrder validates the cart, snapshots it into a pending order and
// reserves stock for every line. A stale cart blocks; any reservation
// failure rolls the holds back and fails the order.
func (h *Handler) CreateOrder(ctx context.Context, cmd CreateOrder) (*order.Order, error) {
	if _, err := h.carts.Validate(ctx, cmd.CustomerID); err != nil {
		return nil, err
	}

	c, err := h.carts.Get(ctx, cmd.CustomerID)
	if err != nil {
		return nil, err
	}
	lines := make([]order.Line, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, order.Line{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	o, err := h.orders.Create(ctx, cmd.CustomerID, lines)
	if err != nil {
		return nil, err
	}

	if err := h.coordinator.Reserve(ctx, o); err != nil {
		if _, failErr := h.orders.MarkFailed(ctx, o.ID, err.Error()); failErr != nil {
			log.Printf("[Command] Failed to mark order %s failed: %v", o.ID, failErr)
		}
		return nil, err
	}

	o, err = h.orders.MarkReserved(ctx, o.ID)
	if err != nil {
		// The order moved under us (for example a cancel won the race).
		// Give the holds back and surface the conflict.
		if relErr := h.coordinator.Release(ctx, o); relErr != nil {
			log.Printf("[Command] Failed to release holds for order %s: %v", o.ID, relErr)
		}
		return nil, err
	}

	if err := h.carts.Clear(ctx, cmd.CustomerID); err != nil {
		log.Printf("[Command] Failed to clear cart for customer %s: %v", cmd.CustomerID, err)
	}
	return o, nil
}

// Checkout charges the customer for a reserved order and advances it to
// PAID, then CONFIRMED once stock is committed. A payment decline releases
// the holds and fails the order. Any failure frees the idempotency key so
// the client can retry.
func (h *Handler) Checkout(ctx context.Context, cmd Checkout) (*order.Order, error) {
	o, err := h.resolveOrder(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if h.idempotency != nil {
		ok, err := h.idempotency.Begin(ctx, "checkout:"+o.ID)
		if err != nil {
			return nil, fmt.Errorf("idempotency check for order %s: %w", o.ID, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: checkout for order %s already in flight", ErrDuplicateRequest, o.ID)
		}
	}

	// A paid order means an earlier checkout charged the card but the
	// stock commit was interrupted. Resume the commit without charging
	// again.
	if o.Status == order.StatusPaid && h.commitStage == CommitOnPayment {
		got, err := h.commitAndConfirm(ctx, o)
		if err != nil {
			h.releaseCheckout(ctx, o.ID)
			return nil, err
		}
		return got, nil
	}

	if o.Status != order.StatusReserved {
		h.releaseCheckout(ctx, o.ID)
		return nil, fmt.Errorf("%w: order %s is %s, cannot be checked out",
			order.ErrInvalidTransition, o.ID, o.Status)
	}

	receipt, err := h.payments.Charge(ctx, o.Total(), cmd.CardNumber)
	if err != nil {
		h.releaseCheckout(ctx, o.ID)
		if relErr := h.coordinator.Release(ctx, o); relErr != nil {
			log.Printf("[Command] Failed to release holds for order %s: %v", o.ID, relErr)
		}
		if _, failErr := h.orders.MarkFailed(ctx, o.ID, err.Error()); failErr != nil {
			log.Printf("[Command] Failed to mark order %s failed: %v", o.ID, failErr)
		}
		return nil, err
	}

	addr := order.ShippingAddress{
		Line1:      cmd.ShippingAddress.Line1,
		City:       cmd.ShippingAddress.City,
		PostalCode: cmd.ShippingAddress.PostalCode,
		Country:    cmd.ShippingAddress.Country,
	}
	o, err = h.orders.MarkPaid(ctx, o.ID, receipt.Ref, addr)
	if err != nil {
		h.releaseCheckout(ctx, o.ID)
		return nil, err
	}

	if h.commitStage == CommitOnShipment {
		return o, nil
	}
	got, err := h.commitAndConfirm(ctx, o)
	if err != nil {
		h.releaseCheckout(ctx, o.ID)
		return nil, err
	}
	return got, nil
}

// releaseCheckout frees the checkout idempotency key after a failed
// attempt so a retry is not locked out until the key expires.
func (h *Handler) releaseCheckout(ctx context.Context, orderID string) {
	if h.idempotency == nil {
		return
	}
	if err := h.idempotency.Release(ctx, "checkout:"+orderID); err != nil {
		log.Printf("[Command] Failed to release checkout key for order %s: %v", orderID, err)
	}
}

// CancelOrder transitions the order first, then unwinds its stock effects.
// The transition is the arbiter: if a concurrent confirm won, the cancel
// fails here and no stock moves. Compensation is decided from the status
// the cancel actually transitioned from, so a reservation landing between
// a read and the cancel write is still released.
func (h *Handler) CancelOrder(ctx context.Context, cmd CancelOrder) (*order.Order, error) {
	o, from, err := h.orders.Cancel(ctx, cmd.OrderID, cmd.Reason)
	if err != nil {
		return nil, err
	}

	if from == order.StatusReserved || from == order.StatusPaid {
		if err := h.coordinator.Compensate(ctx, o); err != nil {
			log.Printf("[Command] Failed to compensate cancelled order %s: %v", o.ID, err)
		}
	}
	return o, nil
}

// ShipOrder marks a confirmed order shipped. A paid order still waiting on
// its stock commit, whether by deferred commit or an interrupted checkout,
// is committed and confirmed here first.
func (h *Handler) ShipOrder(ctx context.Context, cmd ShipOrder) (*order.Order, error) {
	o, err := h.orders.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	if o.Status == order.StatusPaid {
		o, err = h.commitAndConfirm(ctx, o)
		if err != nil {
			return nil, err
		}
	}
	return h.orders.MarkShipped(ctx, o.ID)
}

// commitAndConfirm turns the order's holds into sold stock. A commit error
// leaves the order PAID so the operation can be retried; committed lines are
// remembered on the order and skipped on the retry.
func (h *Handler) commitAndConfirm(ctx context.Context, o *order.Order) (*order.Order, error) {
	if err := h.coordinator.CommitLines(ctx, o); err != nil {
		return nil, err
	}
	return h.orders.MarkConfirmed(ctx, o.ID)
}

// resolveOrder finds the order a checkout refers to: the explicit id when
// given, otherwise the customer's most recent reserved order, otherwise a
// fresh order built from the cart.
func (h *Handler) resolveOrder(ctx context.Context, cmd Checkout) (*order.Order, error) {
	if cmd.OrderID != "" {
		return h.orders.Get(ctx, cmd.OrderID)
	}

	orders, err := h.orders.ListByCustomer(ctx, cmd.CustomerID)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].Status == order.StatusReserved {
			return &orders[i], nil
		}
	}

	o, err := h.CreateOrder(ctx, CreateOrder{CustomerID: cmd.CustomerID})
	if errors.Is(err, cart.ErrEmptyCart) {
		return nil, fmt.Errorf("%w: customer %s", ErrNoReservedOrder, cmd.CustomerID)
	}
	return o, err
}
