package risk

import (
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/order"
)

// historyCap bounds the recent-order history; the oldest entries are
// evicted first.
const historyCap = 1000

// Chain evaluates rules in registration order with short-circuit
// semantics: the first denial wins and later rules never run, so they
// observe no side effects from denied orders.
type Chain struct {
	mu        sync.Mutex
	rules     []Rule
	history   []*order.Order
	positions map[string]int64
}

// NewChain creates a chain with the given rules. Rules must be fully
// registered before the chain starts serving traffic.
func NewChain(rules ...Rule) *Chain {
	return &Chain{
		rules:     rules,
		positions: make(map[string]int64),
	}
}

// AddRule appends a rule. Only legal before the chain serves traffic.
func (c *Chain) AddRule(r Rule) {
	c.rules = append(c.rules, r)
	logs.Infof("risk rule registered: %s", r.Name())
}

// CheckOrder runs the rule chain. On full approval the order is appended
// to the bounded history; check-then-append is atomic under the chain
// lock. On denial a *Denial naming the stopping rule is returned.
func (c *Chain) CheckOrder(o *order.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx := &Context{
		Positions:    c.positions,
		RecentOrders: c.history,
		Now:          time.Now(),
	}
	for _, rule := range c.rules {
		if err := rule.Evaluate(o, ctx); err != nil {
			return &Denial{Rule: rule.Name(), Reason: err}
		}
	}

	c.history = append(c.history, o)
	if len(c.history) > historyCap {
		c.history = c.history[len(c.history)-historyCap:]
	}
	return nil
}

// ApplyFill records confirmed exposure from a venue fill. Approval is
// necessary but not sufficient: only fills move positions.
func (c *Chain) ApplyFill(symbol string, signedQty int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positions[symbol] += signedQty
}

// Position returns the confirmed exposure for a symbol.
func (c *Chain) Position(symbol string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positions[symbol]
}

// HistoryLen returns the current history size.
func (c *Chain) HistoryLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}
