package command

// Product commands
type CreateProduct struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Price       int    `json:"price"`
	Stock       int    `json:"stock"`
}

type UpdateProduct struct {
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Price       int    `json:"price"`
}

// Inventory commands
type CreateInventory struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateInventory struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type AdjustInventory struct {
	ProductID string `json:"product_id"`
	Delta     int    `json:"delta"`
	Reason    string `json:"reason"`
}

// Cart commands
type AddToCart struct {
	CustomerID string `json:"customer_id"`
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
}

type UpdateCartItem struct {
	CustomerID string `json:"customer_id"`
	ItemID     string `json:"item_id"`
	Quantity   int    `json:"quantity"`
}

type RemoveCartItem struct {
	CustomerID string `json:"customer_id"`
	ItemID     string `json:"item_id"`
}

type ClearCart struct {
	CustomerID string `json:"customer_id"`
}

// Order commands
type CreateOrder struct {
	CustomerID string `json:"customer_id"`
}

type Checkout struct {
	CustomerID      string `json:"customer_id"`
	OrderID         string `json:"order_id,omitempty"`
	CardNumber      string `json:"card_number"`
	ShippingAddress struct {
		Line1      string `json:"line1"`
		City       string `json:"city"`
		PostalCode string `json:"postal_code"`
		Country    string `json:"country"`
	} `json:"shipping_address"`
}

type CancelOrder struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

type ShipOrder struct {
	OrderID string `json:"order_id"`
}
