package query

import (
	"context"

	"github.com/example/ec-inventory-engine/internal/domain/cart"
	"github.com/example/ec-inventory-engine/internal/domain/customer"
	"github.com/example/ec-inventory-engine/internal/domain/inventory"
	"github.com/example/ec-inventory-engine/internal/domain/order"
	"github.com/example/ec-inventory-engine/internal/domain/product"
)

// DefaultLowStockThreshold is the available-quantity floor below which a
// product counts as low on stock.
const DefaultLowStockThreshold = 5

// Handler answers read requests straight from the authoritative rows. There
// is no separate read model to drift; every answer reflects the latest
// committed write.
type Handler struct {
	products          *product.Catalog
	customers         *customer.Service
	ledger            *inventory.Ledger
	carts             *cart.Service
	orders            *order.Service
	lowStockThreshold int
}

func NewHandler(
	products *product.Catalog,
	customers *customer.Service,
	ledger *inventory.Ledger,
	carts *cart.Service,
	orders *order.Service,
	lowStockThreshold int,
) *Handler {
	if lowStockThreshold <= 0 {
		lowStockThreshold = DefaultLowStockThreshold
	}
	return &Handler{
		products:          products,
		customers:         customers,
		ledger:            ledger,
		carts:             carts,
		orders:            orders,
		lowStockThreshold: lowStockThreshold,
	}
}

func (h *Handler) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	return h.products.Get(ctx, id)
}

func (h *Handler) ListProducts(ctx context.Context) ([]product.Product, error) {
	return h.products.List(ctx)
}

func (h *Handler) GetCustomer(ctx context.Context, id string) (*customer.Customer, error) {
	return h.customers.Get(ctx, id)
}

func (h *Handler) ListCustomers(ctx context.Context) ([]customer.Customer, error) {
	return h.customers.List(ctx)
}

func (h *Handler) GetCart(ctx context.Context, customerID string) (*cart.Cart, error) {
	return h.carts.Get(ctx, customerID)
}

func (h *Handler) GetOrder(ctx context.Context, orderID string) (*order.Order, error) {
	return h.orders.Get(ctx, orderID)
}

func (h *Handler) ListOrdersByCustomer(ctx context.Context, customerID string) ([]order.Order, error) {
	return h.orders.ListByCustomer(ctx, customerID)
}

func (h *Handler) GetInventory(ctx context.Context, productID string) (*inventory.Record, error) {
	return h.ledger.Get(ctx, productID)
}

func (h *Handler) ListInventory(ctx context.Context) ([]inventory.Record, error) {
	return h.ledger.List(ctx)
}

// StockCounts buckets every stocked product by its available quantity.
type StockCounts struct {
	Total      int `json:"total"`
	InStock    int `json:"inStock"`
	LowStock   int `json:"lowStock"`
	OutOfStock int `json:"outOfStock"`
}

// GetStockCounts recomputes the dashboard counters from the ledger on every
// call.
func (h *Handler) GetStockCounts(ctx context.Context) (*StockCounts, error) {
	recs, err := h.ledger.List(ctx)
	if err != nil {
		return nil, err
	}

	counts := &StockCounts{Total: len(recs)}
	for _, rec := range recs {
		available := rec.AvailableQuantity()
		switch {
		case available == 0:
			counts.OutOfStock++
		case available < h.lowStockThreshold:
			counts.LowStock++
		default:
			counts.InStock++
		}
	}
	return counts, nil
}
