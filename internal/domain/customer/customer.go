package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/ec-inventory-engine/internal/infrastructure/store"
)

const Kind = store.KindCustomer

var (
	ErrNotFound     = errors.New("customer not found")
	ErrInvalidEmail = errors.New("a valid email is required")
	ErrInvalidName  = errors.New("customer name is required")
)

// Customer is the slice of customer identity the engine needs: a stable id
// plus contact details for order notifications. Authentication lives
// elsewhere.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	Version   int       `json:"-"`
}

type Service struct {
	store store.StateStore
}

func NewService(st store.StateStore) *Service {
	return &Service{store: st}
}

func (s *Service) Create(ctx context.Context, name, email string) (*Customer, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	if !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}

	c := &Customer{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		CreatedAt: time.Now(),
	}
	rec, err := s.store.Put(ctx, Kind, c.ID, c, 0)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	c.Version = rec.Version
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Customer, error) {
	rec, err := s.store.Get(ctx, Kind, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var c Customer
	if err := rec.Unmarshal(&c); err != nil {
		return nil, err
	}
	c.Version = rec.Version
	return &c, nil
}

func (s *Service) List(ctx context.Context) ([]Customer, error) {
	recs, err := s.store.List(ctx, Kind)
	if err != nil {
		return nil, err
	}

	out := make([]Customer, 0, len(recs))
	for _, rec := range recs {
		var c Customer
		if err := rec.Unmarshal(&c); err != nil {
			return nil, err
		}
		c.Version = rec.Version
		out = append(out, c)
	}
	return out, nil
}
