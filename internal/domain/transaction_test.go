package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from TransactionState
		to   TransactionState
		want bool
	}{
		{"created to funding", StateCreated, StateFundingPending, true},
		{"funding to secured", StateFundingPending, StateFundsSecured, true},
		{"funding to failed", StateFundingPending, StateFailed, true},
		{"secured to fulfilling", StateFundsSecured, StateFulfilling, true},
		{"fulfilling to settled", StateFulfilling, StateSettled, true},
		{"fulfilling to provider pending", StateFulfilling, StateProviderPending, true},
		{"fulfilling to refunded", StateFulfilling, StateRefunded, true},
		{"provider pending to settled", StateProviderPending, StateSettled, true},
		{"provider pending to refunded", StateProviderPending, StateRefunded, true},

		{"created straight to settled", StateCreated, StateSettled, false},
		{"funding to settled", StateFundingPending, StateSettled, false},
		{"secured to failed", StateFundsSecured, StateFailed, false},
		{"provider pending to failed", StateProviderPending, StateFailed, false},
		{"settled is terminal", StateSettled, StateRefunded, false},
		{"refunded is terminal", StateRefunded, StateSettled, false},
		{"failed is terminal", StateFailed, StateFundingPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, StateSettled.Terminal())
	assert.True(t, StateRefunded.Terminal())
	assert.True(t, StateFailed.Terminal())

	assert.False(t, StateCreated.Terminal())
	assert.False(t, StateFundingPending.Terminal())
	assert.False(t, StateFundsSecured.Terminal())
	assert.False(t, StateFulfilling.Terminal())
	assert.False(t, StateProviderPending.Terminal())
}

func TestRefundIdempotencyKey(t *testing.T) {
	tx := &Transaction{ID: "abc-123"}
	assert.Equal(t, "abc-123:refund", tx.RefundIdempotencyKey())
}
