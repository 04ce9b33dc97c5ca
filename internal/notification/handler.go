package notification

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/example/ec-inventory-engine/internal/domain/customer"
	"github.com/example/ec-inventory-engine/internal/domain/order"
	"github.com/example/ec-inventory-engine/internal/domain/product"
	"github.com/example/ec-inventory-engine/internal/email"
	"github.com/example/ec-inventory-engine/internal/events"
)

// Sender is the slice of the email service the notifier needs.
type Sender interface {
	SendOrderConfirmation(to, orderID string, total int, items []email.OrderItem) error
}

// Handler consumes domain events and mails the customer when an order is
// confirmed. Lookup failures are logged and swallowed; a missing customer
// must not wedge the consumer on the same offset forever.
type Handler struct {
	sender    Sender
	customers *customer.Service
	products  *product.Catalog
}

func NewHandler(sender Sender, customers *customer.Service, products *product.Catalog) *Handler {
	return &Handler{sender: sender, customers: customers, products: products}
}

// HandleEvent is the Kafka consumer callback.
func (h *Handler) HandleEvent(ctx context.Context, env events.Envelope) error {
	if env.EventType != order.EventOrderConfirmed {
		return nil
	}

	var e order.OrderConfirmed
	if err := json.Unmarshal(env.Data, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal %s event: %v", env.EventType, err)
		return err
	}
	return h.handleOrderConfirmed(ctx, e)
}

func (h *Handler) handleOrderConfirmed(ctx context.Context, e order.OrderConfirmed) error {
	log.Printf("[Notifier] Processing %s for order %s, customer %s",
		order.EventOrderConfirmed, e.OrderID, e.CustomerID)

	cust, err := h.customers.Get(ctx, e.CustomerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			log.Printf("[Notifier] Customer not found: %s", e.CustomerID)
			return nil
		}
		log.Printf("[Notifier] Error loading customer %s: %v", e.CustomerID, err)
		return nil
	}

	items := make([]email.OrderItem, len(e.Lines))
	for i, ln := range e.Lines {
		name := ln.ProductID
		if p, err := h.products.Get(ctx, ln.ProductID); err == nil {
			name = p.Name
		}
		items[i] = email.OrderItem{
			ProductID: ln.ProductID,
			Name:      name,
			Quantity:  ln.Quantity,
			Price:     ln.UnitPrice,
		}
	}

	if err := h.sender.SendOrderConfirmation(cust.Email, e.OrderID, e.Total, items); err != nil {
		log.Printf("[Notifier] Failed to send email to %s: %v", cust.Email, err)
		return err
	}

	log.Printf("[Notifier] Confirmation email sent to %s for order %s", cust.Email, e.OrderID)
	return nil
}
