package api

import (
	"log"
	"net/http"
)

func NewRouter(handlers *Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handlers.Health)

	// Products
	mux.HandleFunc("GET /products", handlers.ListProducts)
	mux.HandleFunc("POST /products", handlers.CreateProduct)
	mux.HandleFunc("GET /products/{id}", handlers.GetProduct)
	mux.HandleFunc("PUT /products/{id}", handlers.UpdateProduct)

	// Inventory
	mux.HandleFunc("GET /inventory", handlers.ListInventory)
	mux.HandleFunc("GET /inventory/counts", handlers.GetStockCounts)
	mux.HandleFunc("POST /inventory/create/{productId}/{quantity}", handlers.CreateInventory)
	mux.HandleFunc("POST /inventory/bulk-upload", handlers.ImportStock)
	mux.HandleFunc("GET /inventory/{productId}", handlers.GetInventory)
	mux.HandleFunc("PUT /inventory/{productId}", handlers.UpdateInventory)
	mux.HandleFunc("POST /inventory/{productId}/adjust", handlers.AdjustInventory)

	// Cart
	mux.HandleFunc("GET /cart", handlers.GetCart)
	mux.HandleFunc("DELETE /cart", handlers.ClearCart)
	mux.HandleFunc("POST /cart/add/{productId}/{quantity}", handlers.AddToCart)
	mux.HandleFunc("PUT /cart/update/{itemId}", handlers.UpdateCartItem)
	mux.HandleFunc("DELETE /cart/remove/{itemId}", handlers.RemoveCartItem)
	mux.HandleFunc("POST /cart/validate", handlers.ValidateCart)

	// Orders
	mux.HandleFunc("GET /orders", handlers.ListOrders)
	mux.HandleFunc("POST /orders/create", handlers.CreateOrder)
	mux.HandleFunc("POST /orders/checkout", handlers.Checkout)
	mux.HandleFunc("GET /orders/{id}", handlers.GetOrder)
	mux.HandleFunc("POST /orders/{id}/cancel", handlers.CancelOrder)
	mux.HandleFunc("POST /orders/{id}/ship", handlers.ShipOrder)

	// Customers
	mux.HandleFunc("GET /customers", handlers.ListCustomers)
	mux.HandleFunc("POST /customers", handlers.CreateCustomer)
	mux.HandleFunc("GET /customers/{id}", handlers.GetCustomer)

	return withLogging(mux)
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[API] %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
