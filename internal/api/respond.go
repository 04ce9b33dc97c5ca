package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/example/ec-inventory-engine/internal/command"
	"github.com/example/ec-inventory-engine/internal/domain/cart"
	"github.com/example/ec-inventory-engine/internal/domain/customer"
	"github.com/example/ec-inventory-engine/internal/domain/inventory"
	"github.com/example/ec-inventory-engine/internal/domain/order"
	"github.com/example/ec-inventory-engine/internal/domain/product"
	"github.com/example/ec-inventory-engine/internal/importer"
	"github.com/example/ec-inventory-engine/internal/infrastructure/store"
	"github.com/example/ec-inventory-engine/internal/payment"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, err error) {
	respondJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps domain errors onto HTTP statuses. Conflicts (stock,
// versions, stale carts, state machine refusals) are all 409 so clients
// know to re-read and retry.
func statusFor(err error) int {
	switch {
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, customer.ErrNotFound),
		errors.Is(err, inventory.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, inventory.ErrInvariantViolation),
		errors.Is(err, store.ErrVersionConflict),
		errors.Is(err, cart.ErrStaleCart),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, inventory.ErrAlreadyExists),
		errors.Is(err, command.ErrDuplicateRequest):
		return http.StatusConflict
	case errors.Is(err, payment.ErrPaymentDeclined):
		return http.StatusPaymentRequired
	case errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, inventory.ErrValidation),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrEmptyCart),
		errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, product.ErrInvalidName),
		errors.Is(err, product.ErrInvalidPrice),
		errors.Is(err, customer.ErrInvalidName),
		errors.Is(err, customer.ErrInvalidEmail),
		errors.Is(err, payment.ErrInvalidAmount),
		errors.Is(err, command.ErrNoReservedOrder),
		errors.Is(err, importer.ErrMissingHeader),
		errors.Is(err, importer.ErrEmptyFile):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
