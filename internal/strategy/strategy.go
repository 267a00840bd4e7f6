package strategy

import "main/internal/order"

// Strategy is the capability set every trading strategy satisfies.
// Optional hooks are no-ops via the embedded Nop base, never runtime
// type assertions.
type Strategy interface {
	// ID identifies the strategy; orders carry it back on updates.
	ID() string
	// Execute is the low-latency bar-close hook, invoked synchronously
	// on kline market data in addition to queued delivery.
	Execute(payload any)
	// OnMarketData receives every market event from the worker pool.
	// Events arrive from concurrent workers, so cross-event ordering is
	// not guaranteed here; order-sensitive logic belongs in Execute.
	OnMarketData(dataType string, payload any)
	// OnOrderUpdate is invoked when reconciliation applies venue drift
	// to one of the strategy's orders.
	OnOrderUpdate(o *order.Order)
}

// Nop provides no-op defaults for the optional hooks.
type Nop struct{}

func (Nop) Execute(any)                {}
func (Nop) OnMarketData(string, any)   {}
func (Nop) OnOrderUpdate(*order.Order) {}
