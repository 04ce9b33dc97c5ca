package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/ec-inventory-engine/internal/domain/inventory"
	"github.com/example/ec-inventory-engine/internal/domain/product"
	"github.com/example/ec-inventory-engine/internal/infrastructure/store"
)

const Kind = store.KindCart

const maxSaveAttempts = 3

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrItemNotFound    = errors.New("cart item not found")
	ErrEmptyCart       = errors.New("cart is empty")
	// ErrStaleCart means a line's snapshotted product version no longer
	// matches the catalog; the client must re-fetch before retrying.
	ErrStaleCart = errors.New("cart is stale")
)

// Validation issue reasons.
const (
	IssueStale             = "stale"
	IssuePriceChanged      = "price_changed"
	IssueInsufficientStock = "insufficient_stock"
	IssueProductMissing    = "product_missing"
	IssueInventoryMissing  = "inventory_missing"
)

// Item is a pending order line. UnitPrice and ProductVersion are snapshots
// taken when the item was added.
type Item struct {
	ID             string `json:"id"`
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	UnitPrice      int    `json:"unit_price"`
	ProductVersion int    `json:"product_version"`
}

type Cart struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Items      []Item    `json:"items"`
	UpdatedAt  time.Time `json:"updated_at"`
	Version    int       `json:"-"`
}

func (c *Cart) Total() int {
	total := 0
	for _, item := range c.Items {
		total += item.UnitPrice * item.Quantity
	}
	return total
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// CartID returns the row id for a customer's cart (one cart per customer).
func CartID(customerID string) string {
	return "cart-" + customerID
}

// Issue describes one validation finding for a cart line.
type Issue struct {
	ItemID    string `json:"item_id"`
	ProductID string `json:"product_id"`
	Reason    string `json:"reason"`
	Requested int    `json:"requested,omitempty"`
	Available int    `json:"available,omitempty"`
	PriceWas  int    `json:"price_was,omitempty"`
	PriceNow  int    `json:"price_now,omitempty"`
}

// Report is the structured diff produced by Validate.
type Report struct {
	OK     bool    `json:"ok"`
	Stale  bool    `json:"stale"`
	Issues []Issue `json:"issues"`
}

// Service owns pending cart line items and validates them against the
// catalog and the ledger before checkout.
type Service struct {
	store    store.StateStore
	products *product.Catalog
	ledger   *inventory.Ledger
}

func NewService(st store.StateStore, products *product.Catalog, ledger *inventory.Ledger) *Service {
	return &Service{store: st, products: products, ledger: ledger}
}

func (s *Service) AddItem(ctx context.Context, customerID, productID string, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	inv, err := s.ledger.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, customerID, func(c *Cart) error {
		requested := quantity
		for i := range c.Items {
			if c.Items[i].ProductID == productID {
				requested += c.Items[i].Quantity
				if inv.AvailableQuantity() < requested {
					return fmt.Errorf("%w: product %s: requested %d, available %d",
						inventory.ErrInsufficientStock, productID, requested, inv.AvailableQuantity())
				}
				c.Items[i].Quantity = requested
				c.Items[i].UnitPrice = p.Price
				c.Items[i].ProductVersion = p.Version
				return nil
			}
		}
		if inv.AvailableQuantity() < requested {
			return fmt.Errorf("%w: product %s: requested %d, available %d",
				inventory.ErrInsufficientStock, productID, requested, inv.AvailableQuantity())
		}
		c.Items = append(c.Items, Item{
			ID:             uuid.New().String(),
			ProductID:      productID,
			Quantity:       quantity,
			UnitPrice:      p.Price,
			ProductVersion: p.Version,
		})
		return nil
	})
}

func (s *Service) UpdateQuantity(ctx context.Context, customerID, itemID string, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	return s.mutate(ctx, customerID, func(c *Cart) error {
		for i := range c.Items {
			if c.Items[i].ID != itemID {
				continue
			}
			inv, err := s.ledger.Get(ctx, c.Items[i].ProductID)
			if err != nil {
				return err
			}
			if inv.AvailableQuantity() < quantity {
				return fmt.Errorf("%w: product %s: requested %d, available %d",
					inventory.ErrInsufficientStock, c.Items[i].ProductID, quantity, inv.AvailableQuantity())
			}
			c.Items[i].Quantity = quantity
			return nil
		}
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	})
}

func (s *Service) RemoveItem(ctx context.Context, customerID, itemID string) (*Cart, error) {
	return s.mutate(ctx, customerID, func(c *Cart) error {
		for i := range c.Items {
			if c.Items[i].ID == itemID {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	})
}

func (s *Service) Clear(ctx context.Context, customerID string) error {
	_, err := s.mutate(ctx, customerID, func(c *Cart) error {
		c.Items = nil
		return nil
	})
	return err
}

// Get returns the customer's cart, or an empty one if none exists yet.
func (s *Service) Get(ctx context.Context, customerID string) (*Cart, error) {
	return s.load(ctx, customerID)
}

// Validate recomputes every line against the current catalog and ledger
// rows. The report is returned even when the cart is stale, so callers can
// show the diff alongside the conflict.
func (s *Service) Validate(ctx context.Context, customerID string) (*Report, error) {
	c, err := s.load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	report := &Report{Issues: []Issue{}}
	for _, item := range c.Items {
		p, err := s.products.Get(ctx, item.ProductID)
		if errors.Is(err, product.ErrNotFound) {
			report.Issues = append(report.Issues, Issue{
				ItemID: item.ID, ProductID: item.ProductID, Reason: IssueProductMissing,
			})
			continue
		}
		if err != nil {
			return nil, err
		}

		if p.Version != item.ProductVersion {
			report.Stale = true
			report.Issues = append(report.Issues, Issue{
				ItemID: item.ID, ProductID: item.ProductID, Reason: IssueStale,
			})
		}
		if p.Price != item.UnitPrice {
			report.Issues = append(report.Issues, Issue{
				ItemID: item.ID, ProductID: item.ProductID, Reason: IssuePriceChanged,
				PriceWas: item.UnitPrice, PriceNow: p.Price,
			})
		}

		inv, err := s.ledger.Get(ctx, item.ProductID)
		if errors.Is(err, inventory.ErrNotFound) {
			report.Issues = append(report.Issues, Issue{
				ItemID: item.ID, ProductID: item.ProductID, Reason: IssueInventoryMissing,
			})
			continue
		}
		if err != nil {
			return nil, err
		}
		if inv.AvailableQuantity() < item.Quantity {
			report.Issues = append(report.Issues, Issue{
				ItemID: item.ID, ProductID: item.ProductID, Reason: IssueInsufficientStock,
				Requested: item.Quantity, Available: inv.AvailableQuantity(),
			})
		}
	}

	report.OK = len(report.Issues) == 0
	if report.Stale {
		return report, fmt.Errorf("%w: customer %s", ErrStaleCart, customerID)
	}
	return report, nil
}

func (s *Service) load(ctx context.Context, customerID string) (*Cart, error) {
	id := CartID(customerID)
	rec, err := s.store.Get(ctx, Kind, id)
	if errors.Is(err, store.ErrNotFound) {
		return &Cart{ID: id, CustomerID: customerID}, nil
	}
	if err != nil {
		return nil, err
	}

	c := Cart{}
	if err := rec.Unmarshal(&c); err != nil {
		return nil, err
	}
	c.Version = rec.Version
	return &c, nil
}

func (s *Service) mutate(ctx context.Context, customerID string, fn func(*Cart) error) (*Cart, error) {
	for attempt := 1; ; attempt++ {
		c, err := s.load(ctx, customerID)
		if err != nil {
			return nil, err
		}
		if err := fn(c); err != nil {
			return nil, err
		}
		c.UpdatedAt = time.Now()

		stored, err := s.store.Put(ctx, Kind, c.ID, c, c.Version)
		if err == nil {
			c.Version = stored.Version
			return c, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) || attempt >= maxSaveAttempts {
			return nil, fmt.Errorf("save cart %s: %w", c.ID, err)
		}
	}
}
