package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTerminal(t *testing.T) {
	assert.False(t, OrderStatusPending.Terminal())
	assert.True(t, OrderStatusCompleted.Terminal())
	assert.True(t, OrderStatusFailed.Terminal())
	assert.True(t, OrderStatusCancelled.Terminal())
	assert.True(t, OrderStatusPending.Valid())
	assert.False(t, OrderStatus("refunded").Valid())
}

func TestParseProviderStatus(t *testing.T) {
	tests := map[string]OrderStatus{
		"success":   OrderStatusCompleted,
		"SUCCESS":   OrderStatusCompleted,
		"completed": OrderStatusCompleted,
		"failed":    OrderStatusFailed,
		"cancelled": OrderStatusCancelled,
		"canceled":  OrderStatusCancelled,
	}
	for in, want := range tests {
		got, ok := ParseProviderStatus(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseProviderStatus("pending")
	assert.False(t, ok)
}

func TestPersonalPageLive(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, (&PersonalPage{IsActive: true}).Live(now))
	assert.True(t, (&PersonalPage{IsActive: true, ExpiresAt: &future}).Live(now))
	assert.False(t, (&PersonalPage{IsActive: true, ExpiresAt: &past}).Live(now))
	assert.False(t, (&PersonalPage{IsActive: false}).Live(now))
}

func TestPaytrCallbackErrorMessage(t *testing.T) {
	assert.Equal(t, "card declined", (&PaytrCallback{FailedReasonMsg: "card declined", FailedReasonCode: "2"}).ErrorMessage())
	assert.Equal(t, "Payment failed with code: 6", (&PaytrCallback{FailedReasonCode: "6"}).ErrorMessage())
	assert.Equal(t, "Payment failed for unknown reason", (&PaytrCallback{}).ErrorMessage())
}

func TestNormalizeCurrency(t *testing.T) {
	assert.Equal(t, "TRY", NormalizeCurrency("TL"))
	assert.Equal(t, "TRY", NormalizeCurrency("try"))
	assert.Equal(t, "USD", NormalizeCurrency(" usd "))
	assert.Equal(t, "", NormalizeCurrency(""))
}
