package risk

import (
	"math"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/order"
)

// Context is the mutable state rules evaluate against. The owning chain
// holds its lock while rules read it.
type Context struct {
	// Positions is the per-symbol signed exposure, fed by venue fill
	// confirmations (risk approval alone never moves it).
	Positions map[string]int64
	// RecentOrders is the bounded history of approved orders, newest last.
	RecentOrders []*order.Order
	// Now is the evaluation time.
	Now time.Time
}

// Rule evaluates one risk constraint. A nil return allows the order; a
// non-nil return denies it with the reason.
type Rule interface {
	Name() string
	Evaluate(o *order.Order, ctx *Context) error
}

// Denial reports which rule stopped an order.
type Denial struct {
	Rule   string
	Reason error
}

func (d *Denial) Error() string {
	return "risk denied by " + d.Rule + ": " + d.Reason.Error()
}

func (d *Denial) Unwrap() error { return d.Reason }

// MaxOrderValueRule caps the notional value of a single order.
type MaxOrderValueRule struct {
	MaxValue float64
}

func (r MaxOrderValueRule) Name() string { return "MaxOrderValueRule" }

func (r MaxOrderValueRule) Evaluate(o *order.Order, _ *Context) error {
	value := math.Abs(o.Price * float64(o.Quantity))
	if value > r.MaxValue {
		return errors.Errorf("order value %.2f exceeds cap %.2f", value, r.MaxValue)
	}
	return nil
}

// MaxPositionRule caps the post-trade absolute position per symbol.
type MaxPositionRule struct {
	MaxPosition int64
}

func (r MaxPositionRule) Name() string { return "MaxPositionRule" }

func (r MaxPositionRule) Evaluate(o *order.Order, ctx *Context) error {
	next := ctx.Positions[o.Symbol] + o.SignedQuantity()
	if next < 0 {
		next = -next
	}
	if next > r.MaxPosition {
		return errors.Errorf("post-trade position %d exceeds cap %d", next, r.MaxPosition)
	}
	return nil
}

// OrderFrequencyRule caps how many orders one strategy may place within
// a trailing window.
type OrderFrequencyRule struct {
	MaxOrders int
	Window    time.Duration
}

func (r OrderFrequencyRule) Name() string { return "OrderFrequencyRule" }

func (r OrderFrequencyRule) Evaluate(o *order.Order, ctx *Context) error {
	window := r.Window
	if window <= 0 {
		window = time.Minute
	}
	cutoff := ctx.Now.Add(-window)
	count := 0
	for _, recent := range ctx.RecentOrders {
		if recent.StrategyID == o.StrategyID && !recent.CreateTime.Before(cutoff) {
			count++
		}
	}
	if count >= r.MaxOrders {
		return errors.Errorf("strategy %s placed %d orders within %s, cap %d",
			o.StrategyID, count, window, r.MaxOrders)
	}
	return nil
}
