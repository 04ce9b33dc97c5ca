package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPaymentDeclined = errors.New("payment declined")
	ErrInvalidAmount   = errors.New("charge amount must be positive")
)

const defaultTimeout = 5 * time.Second

// Receipt is the provider's proof of a successful charge.
type Receipt struct {
	Ref     string `json:"ref"`
	Message string `json:"message"`
}

// Gateway charges a card. Implementations return ErrPaymentDeclined for a
// rejected card and any other error for transport failures.
type Gateway interface {
	Charge(ctx context.Context, amountCents int, cardNumber string) (*Receipt, error)
}

// MockGateway simulates a provider: a card is accepted when its last digit
// is even, declined otherwise.
type MockGateway struct {
	// Delay is added before each charge to mimic provider latency.
	Delay time.Duration
}

func (g *MockGateway) Charge(ctx context.Context, amountCents int, cardNumber string) (*Receipt, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if g.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.Delay):
		}
	}

	if !cardAccepted(cardNumber) {
		return nil, fmt.Errorf("%w: card rejected by provider", ErrPaymentDeclined)
	}
	return &Receipt{
		Ref:     "mock_pay_" + uuid.New().String(),
		Message: "payment accepted",
	}, nil
}

func cardAccepted(cardNumber string) bool {
	if cardNumber == "" {
		return false
	}
	last := cardNumber[len(cardNumber)-1]
	return last >= '0' && last <= '9' && (last-'0')%2 == 0
}

// Client wraps a Gateway with a per-call timeout and a single retry on
// transport errors. Declines are final and never retried.
type Client struct {
	gateway Gateway
	timeout time.Duration
}

func NewClient(gw Gateway, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{gateway: gw, timeout: timeout}
}

func (c *Client) Charge(ctx context.Context, amountCents int, cardNumber string) (*Receipt, error) {
	receipt, err := c.charge(ctx, amountCents, cardNumber)
	if err == nil || errors.Is(err, ErrPaymentDeclined) || errors.Is(err, ErrInvalidAmount) {
		return receipt, err
	}
	if ctx.Err() != nil {
		return nil, err
	}

	log.Printf("[Payment] Charge failed, retrying once: %v", err)
	return c.charge(ctx, amountCents, cardNumber)
}

func (c *Client) charge(ctx context.Context, amountCents int, cardNumber string) (*Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.gateway.Charge(ctx, amountCents, cardNumber)
}
