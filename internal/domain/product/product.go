package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/ec-inventory-engine/internal/infrastructure/store"
)

const Kind = store.KindProduct

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

var (
	ErrNotFound     = errors.New("product not found")
	ErrInvalidName  = errors.New("product name is required")
	ErrInvalidPrice = errors.New("price must not be negative")
)

// Product is a catalog entry. Price is in cents.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Price       int       `json:"price"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int       `json:"-"`
}

// Catalog manages product records in the state store.
type Catalog struct {
	store store.StateStore
}

func NewCatalog(st store.StateStore) *Catalog {
	return &Catalog{store: st}
}

func (c *Catalog) Create(ctx context.Context, name, description, category string, price int) (*Product, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	if price < 0 {
		return nil, ErrInvalidPrice
	}

	now := time.Now()
	p := &Product{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		Category:    category,
		Price:       price,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	rec, err := c.store.Put(ctx, Kind, p.ID, p, 0)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	p.Version = rec.Version
	return p, nil
}

func (c *Catalog) Update(ctx context.Context, id, name, description, category string, price int) (*Product, error) {
	if price < 0 {
		return nil, ErrInvalidPrice
	}

	p, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != "" {
		p.Name = name
	}
	p.Description = description
	p.Category = category
	p.Price = price
	p.UpdatedAt = time.Now()

	rec, err := c.store.Put(ctx, Kind, id, p, p.Version)
	if err != nil {
		return nil, fmt.Errorf("update product %s: %w", id, err)
	}
	p.Version = rec.Version
	return p, nil
}

func (c *Catalog) Get(ctx context.Context, id string) (*Product, error) {
	rec, err := c.store.Get(ctx, Kind, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var p Product
	if err := rec.Unmarshal(&p); err != nil {
		return nil, err
	}
	p.Version = rec.Version
	return &p, nil
}

func (c *Catalog) List(ctx context.Context) ([]Product, error) {
	recs, err := c.store.List(ctx, Kind)
	if err != nil {
		return nil, err
	}

	out := make([]Product, 0, len(recs))
	for _, rec := range recs {
		var p Product
		if err := rec.Unmarshal(&p); err != nil {
			return nil, err
		}
		p.Version = rec.Version
		out = append(out, p)
	}
	return out, nil
}
