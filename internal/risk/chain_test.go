package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/order"
)

func limitBuy(t *testing.T, strategyID string, price float64, qty int64) *order.Order {
	t.Helper()
	o, err := order.New(order.Spec{
		Symbol:     "600000",
		Side:       order.SideBuy,
		Type:       order.TypeLimit,
		Price:      price,
		Quantity:   qty,
		StrategyID: strategyID,
	})
	require.NoError(t, err)
	return o
}

func TestMaxOrderValueRule(t *testing.T) {
	chain := NewChain(MaxOrderValueRule{MaxValue: 100_000})

	require.NoError(t, chain.CheckOrder(limitBuy(t, "s1", 10, 100)))

	err := chain.CheckOrder(limitBuy(t, "s1", 101, 1000))
	require.Error(t, err)
	denial, ok := err.(*Denial)
	require.True(t, ok, "denial should carry the rule identity")
	assert.Equal(t, "MaxOrderValueRule", denial.Rule)
}

func TestMaxPositionRuleReadsConfirmedExposure(t *testing.T) {
	chain := NewChain(MaxPositionRule{MaxPosition: 1000})

	// Approvals alone never move positions.
	require.NoError(t, chain.CheckOrder(limitBuy(t, "s1", 10, 900)))
	require.NoError(t, chain.CheckOrder(limitBuy(t, "s1", 10, 900)))

	// A confirmed fill does.
	chain.ApplyFill("600000", 900)
	err := chain.CheckOrder(limitBuy(t, "s1", 10, 200))
	require.Error(t, err)
	assert.Equal(t, "MaxPositionRule", err.(*Denial).Rule)

	// Selling down passes.
	sell, err2 := order.New(order.Spec{
		Symbol: "600000", Side: order.SideSell, Type: order.TypeLimit,
		Price: 10, Quantity: 200, StrategyID: "s1",
	})
	require.NoError(t, err2)
	require.NoError(t, chain.CheckOrder(sell))
}

func TestOrderFrequencyRuleDeniesSixthOrder(t *testing.T) {
	chain := NewChain(OrderFrequencyRule{MaxOrders: 5, Window: 60 * time.Second})

	for i := 0; i < 5; i++ {
		require.NoError(t, chain.CheckOrder(limitBuy(t, "s1", 10, 100)), "order %d should pass", i+1)
	}

	err := chain.CheckOrder(limitBuy(t, "s1", 10, 100))
	require.Error(t, err, "6th order within the window must be denied")
	assert.Equal(t, "OrderFrequencyRule", err.(*Denial).Rule)

	// A different strategy gets its own counting window.
	require.NoError(t, chain.CheckOrder(limitBuy(t, "s2", 10, 100)))
}

func TestOrderFrequencyRuleIgnoresStaleHistory(t *testing.T) {
	chain := NewChain(OrderFrequencyRule{MaxOrders: 1, Window: 60 * time.Second})

	stale := limitBuy(t, "s1", 10, 100)
	stale.CreateTime = time.Now().Add(-2 * time.Minute)
	require.NoError(t, chain.CheckOrder(stale))
	require.NoError(t, chain.CheckOrder(limitBuy(t, "s1", 10, 100)))
}

// countingRule records how many times it ran so tests can prove the
// chain short-circuits.
type countingRule struct {
	name  string
	deny  bool
	count int
}

func (r *countingRule) Name() string { return r.name }

func (r *countingRule) Evaluate(o *order.Order, ctx *Context) error {
	r.count++
	if r.deny {
		return assert.AnError
	}
	return nil
}

func TestChainShortCircuits(t *testing.T) {
	first := &countingRule{name: "first", deny: true}
	second := &countingRule{name: "second"}
	chain := NewChain(first, second)

	err := chain.CheckOrder(limitBuy(t, "s1", 10, 100))
	require.Error(t, err)
	assert.Equal(t, "first", err.(*Denial).Rule)
	assert.Equal(t, 1, first.count)
	assert.Zero(t, second.count, "rules after a denial must not run")
	assert.Zero(t, chain.HistoryLen(), "denied orders must not enter the history")
}

func TestChainHistoryBounded(t *testing.T) {
	chain := NewChain()
	for i := 0; i < historyCap+10; i++ {
		require.NoError(t, chain.CheckOrder(limitBuy(t, "s1", 10, 100)))
	}
	assert.Equal(t, historyCap, chain.HistoryLen())
}
