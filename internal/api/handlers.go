package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/example/ec-inventory-engine/internal/command"
	"github.com/example/ec-inventory-engine/internal/domain/cart"
	"github.com/example/ec-inventory-engine/internal/domain/customer"
	"github.com/example/ec-inventory-engine/internal/importer"
	"github.com/example/ec-inventory-engine/internal/query"
)

// customerHeader carries the caller's identity. Authentication is handled
// upstream; the engine trusts the header.
const customerHeader = "X-Customer-ID"

type Handlers struct {
	commands  *command.Handler
	queries   *query.Handler
	importer  *importer.Importer
	customers *customer.Service
}

func NewHandlers(commands *command.Handler, queries *query.Handler, imp *importer.Importer, customers *customer.Service) *Handlers {
	return &Handlers{commands: commands, queries: queries, importer: imp, customers: customers}
}

func customerID(r *http.Request) string {
	if id := r.Header.Get(customerHeader); id != "" {
		return id
	}
	return "anonymous"
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// pathInt parses an integer path segment, writing a 400 on failure.
func pathInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + name + ": " + r.PathValue(name)})
		return 0, false
	}
	return n, true
}

// queryInt parses an integer query parameter, writing a 400 when absent
// or malformed.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + name + ": " + raw})
		return 0, false
	}
	return n, true
}

// Products

func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateProduct
	if !decode(w, r, &cmd) {
		return
	}
	p, err := h.commands.CreateProduct(r.Context(), cmd)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var cmd command.UpdateProduct
	if !decode(w, r, &cmd) {
		return
	}
	cmd.ProductID = r.PathValue("id")
	p, err := h.commands.UpdateProduct(r.Context(), cmd)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.queries.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.queries.ListProducts(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// Inventory

func (h *Handlers) CreateInventory(w http.ResponseWriter, r *http.Request) {
	qty, ok := pathInt(w, r, "quantity")
	if !ok {
		return
	}
	cmd := command.CreateInventory{ProductID: r.PathValue("productId"), Quantity: qty}
	rec, err := h.commands.CreateInventory(r.Context(), cmd)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

func (h *Handlers) UpdateInventory(w http.ResponseWriter, r *http.Request) {
	qty, ok := queryInt(w, r, "newQuantity")
	if !ok {
		return
	}
	cmd := command.UpdateInventory{ProductID: r.PathValue("productId"), Quantity: qty}
	rec, err := h.commands.UpdateInventory(r.Context(), cmd)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (h *Handlers) AdjustInventory(w http.ResponseWriter, r *http.Request) {
	var cmd command.AdjustInventory
	if !decode(w, r, &cmd) {
		return
	}
	cmd.ProductID = r.PathValue("productId")
	rec, err := h.commands.AdjustInventory(r.Context(), cmd)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (h *Handlers) GetInventory(w http.ResponseWriter, r *http.Request) {
	rec, err := h.queries.GetInventory(r.Context(), r.PathValue("productId"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (h *Handlers) ListInventory(w http.ResponseWriter, r *http.Request) {
	recs, err := h.queries.ListInventory(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, recs)
}

func (h *Handlers) GetStockCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.queries.GetStockCounts(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, counts)
}

// ImportStock accepts a CSV upload of bulk quantity adjustments.
func (h *Handlers) ImportStock(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	result, err := h.importer.Run(r.Context(), r.Body)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Cart

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.queries.GetCart(r.Context(), customerID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	qty, ok := pathInt(w, r, "quantity")
	if !ok {
		return
	}
	cmd := command.AddToCart{
		CustomerID: customerID(r),
		ProductID:  r.PathValue("productId"),
		Quantity:   qty,
	}
	c, err := h.commands.AddToCart(r.Context(), cmd)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	qty, ok := queryInt(w, r, "quantity")
	if !ok {
		return
	}
	cmd := command.UpdateCartItem{
		CustomerID: customerID(r),
		ItemID:     r.PathValue("itemId"),
		Quantity:   qty,
	}
	c, err := h.commands.UpdateCartItem(r.Context(), cmd)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	cmd := command.RemoveCartItem{
		CustomerID: customerID(r),
		ItemID:     r.PathValue("itemId"),
	}
	c, err := h.commands.RemoveCartItem(r.Context(), cmd)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.commands.ClearCart(r.Context(), command.ClearCart{CustomerID: customerID(r)}); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ValidateCart returns the validation report. A stale cart is a conflict,
// but the report still ships in the body so the client can show the diff.
func (h *Handlers) ValidateCart(w http.ResponseWriter, r *http.Request) {
	report, err := h.commands.ValidateCart(r.Context(), customerID(r))
	if errors.Is(err, cart.ErrStaleCart) && report != nil {
		respondJSON(w, http.StatusConflict, report)
		return
	}
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Orders

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.commands.CreateOrder(r.Context(), command.CreateOrder{CustomerID: customerID(r)})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var cmd command.Checkout
	if !decode(w, r, &cmd) {
		return
	}
	cmd.CustomerID = customerID(r)
	o, err := h.commands.Checkout(r.Context(), cmd)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.queries.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.queries.ListOrdersByCustomer(r.Context(), customerID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	// Body is optional for cancels.
	_ = json.NewDecoder(r.Body).Decode(&body)

	o, err := h.commands.CancelOrder(r.Context(), command.CancelOrder{
		OrderID: r.PathValue("id"),
		Reason:  body.Reason,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) ShipOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.commands.ShipOrder(r.Context(), command.ShipOrder{OrderID: r.PathValue("id")})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// Customers

func (h *Handlers) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if !decode(w, r, &req) {
		return
	}
	c, err := h.customers.Create(r.Context(), req.Name, req.Email)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (h *Handlers) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.queries.GetCustomer(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.queries.ListCustomers(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, customers)
}

// Health

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
