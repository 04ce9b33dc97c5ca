package payment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGateway_Charge(t *testing.T) {
	gw := &MockGateway{}

	receipt, err := gw.Charge(context.Background(), 2500, "4242424242424242")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(receipt.Ref, "mock_pay_"))
	assert.NotEmpty(t, receipt.Message)
}

func TestMockGateway_CardAcceptance(t *testing.T) {
	tests := []struct {
		name     string
		card     string
		accepted bool
	}{
		{"even last digit", "4242424242424240", true},
		{"odd last digit", "4242424242424241", false},
		{"single even digit", "8", true},
		{"single odd digit", "9", false},
		{"empty card", "", false},
		{"non-digit suffix", "4242x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &MockGateway{}
			_, err := gw.Charge(context.Background(), 100, tt.card)
			if tt.accepted {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrPaymentDeclined)
			}
		})
	}
}

func TestMockGateway_InvalidAmount(t *testing.T) {
	gw := &MockGateway{}

	_, err := gw.Charge(context.Background(), 0, "4242424242424242")

	assert.ErrorIs(t, err, ErrInvalidAmount)
}

type flakyGateway struct {
	failures int
	calls    int
}

func (g *flakyGateway) Charge(ctx context.Context, amountCents int, cardNumber string) (*Receipt, error) {
	g.calls++
	if g.calls <= g.failures {
		return nil, errors.New("connection reset")
	}
	return &Receipt{Ref: "mock_pay_ok"}, nil
}

func TestClient_RetriesTransportErrorOnce(t *testing.T) {
	gw := &flakyGateway{failures: 1}
	client := NewClient(gw, time.Second)

	receipt, err := client.Charge(context.Background(), 100, "4242424242424242")

	require.NoError(t, err)
	assert.Equal(t, "mock_pay_ok", receipt.Ref)
	assert.Equal(t, 2, gw.calls)
}

func TestClient_GivesUpAfterSecondFailure(t *testing.T) {
	gw := &flakyGateway{failures: 5}
	client := NewClient(gw, time.Second)

	_, err := client.Charge(context.Background(), 100, "4242424242424242")

	require.Error(t, err)
	assert.Equal(t, 2, gw.calls)
}

type countingGateway struct {
	calls int
}

func (g *countingGateway) Charge(ctx context.Context, amountCents int, cardNumber string) (*Receipt, error) {
	g.calls++
	return nil, ErrPaymentDeclined
}

func TestClient_NeverRetriesDecline(t *testing.T) {
	gw := &countingGateway{}
	client := NewClient(gw, time.Second)

	_, err := client.Charge(context.Background(), 100, "4242424242424241")

	assert.ErrorIs(t, err, ErrPaymentDeclined)
	assert.Equal(t, 1, gw.calls)
}
