package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCanTransition(t *testing.T) {
	legal := []struct{ from, to Status }{
		{StatusPendingCreative, StatusActive},
		{StatusPendingCreative, StatusCancelled},
		{StatusActive, StatusPaused},
		{StatusActive, StatusCompleted},
		{StatusActive, StatusCancelled},
		{StatusPaused, StatusCompleted},
	}
	for _, tt := range legal {
		assert.True(t, tt.from.CanTransition(tt.to), "%s -> %s must be legal", tt.from, tt.to)
	}

	illegal := []struct{ from, to Status }{
		{StatusPendingCreative, StatusPaused},
		{StatusPendingCreative, StatusCompleted},
		{StatusPaused, StatusActive},
		{StatusPaused, StatusCancelled},
		{StatusCompleted, StatusActive},
		{StatusCompleted, StatusCancelled},
		{StatusCancelled, StatusActive},
		{StatusCancelled, StatusCompleted},
		{StatusActive, StatusActive},
	}
	for _, tt := range illegal {
		assert.False(t, tt.from.CanTransition(tt.to), "%s -> %s must be illegal", tt.from, tt.to)
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPendingCreative.Terminal())
	assert.False(t, StatusActive.Terminal())
	assert.False(t, StatusPaused.Terminal())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("paused")
	assert.NoError(t, err)
	assert.Equal(t, StatusPaused, s)

	_, err = ParseStatus("archived")
	assert.Error(t, err)
}

func TestSumPackageBudgets(t *testing.T) {
	buy := MediaBuy{
		TotalBudget: Money{Currency: "USD"},
		Packages: []Package{
			{Budget: Money{Amount: 60_000, Currency: "USD"}},
			{Budget: Money{Amount: 75_000, Currency: "USD"}},
		},
	}
	total := buy.SumPackageBudgets()
	assert.Equal(t, int64(135_000), total.Amount)
	assert.Equal(t, "USD", total.Currency)
}
