package inventory

import "time"

const (
	EventInventoryCreated = "InventoryCreated"
	EventStockReserved    = "StockReserved"
	EventStockReleased    = "StockReleased"
	EventStockCommitted   = "StockCommitted"
	EventStockAdjusted    = "StockAdjusted"
)

type InventoryCreated struct {
	ProductID     string    `json:"product_id"`
	TotalQuantity int       `json:"total_quantity"`
	CreatedAt     time.Time `json:"created_at"`
}

type StockReserved struct {
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	Reserved   int       `json:"reserved"`
	Available  int       `json:"available"`
	ReservedAt time.Time `json:"reserved_at"`
}

type StockReleased struct {
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	Reserved   int       `json:"reserved"`
	ReleasedAt time.Time `json:"released_at"`
}

type StockCommitted struct {
	ProductID   string    `json:"product_id"`
	Quantity    int       `json:"quantity"`
	Total       int       `json:"total"`
	CommittedAt time.Time `json:"committed_at"`
}

type StockAdjusted struct {
	ProductID  string    `json:"product_id"`
	Delta      int       `json:"delta"`
	Total      int       `json:"total"`
	Reason     string    `json:"reason"`
	AdjustedAt time.Time `json:"adjusted_at"`
}
