package order

import (
	"sync"
	"time"

	"github.com/yanun0323/errors"
)

// Update is a partial mutation applied to a registry entry under the
// registry lock. Zero-value fields are left untouched.
type Update struct {
	Status       Status
	VenueOrderID string
	FilledQty    *int64
	AvgFillPrice *float64
	Commission   *float64
}

// Registry owns the authoritative order-id to order mapping. All
// read-modify-write sequences run under one registry-wide lock.
type Registry struct {
	mu     sync.RWMutex
	orders map[string]*Order
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{orders: make(map[string]*Order)}
}

// Add registers a new order. Fails when the id is already present.
func (r *Registry) Add(o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; ok {
		return errors.Wrap(ErrDuplicateOrder, o.ID)
	}
	r.orders[o.ID] = o
	return nil
}

// Get returns a copy of the order, so callers never see an entry
// mid-mutation.
func (r *Registry) Get(id string) (*Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

// Update applies the mutation through the state machine and returns a
// copy of the updated order. Fill quantity must stay monotonically
// non-decreasing and never exceed the order quantity.
func (r *Registry) Update(id string, u Update) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, errors.Wrap(ErrUnknownOrder, id)
	}
	if u.FilledQty != nil {
		filled := *u.FilledQty
		if filled < o.FilledQty || filled > o.Quantity {
			return nil, errors.Wrap(ErrInvalidFill, id)
		}
	}
	if u.Status != StatusUnknown && u.Status != o.Status {
		if err := o.Transition(u.Status); err != nil {
			return nil, err
		}
	}
	if u.VenueOrderID != "" {
		o.VenueOrderID = u.VenueOrderID
	}
	if u.FilledQty != nil {
		o.FilledQty = *u.FilledQty
	}
	if u.AvgFillPrice != nil {
		o.AvgFillPrice = *u.AvgFillPrice
	}
	if u.Commission != nil {
		o.Commission = *u.Commission
	}
	o.UpdateTime = time.Now()
	return o.Clone(), nil
}

// ActiveOrders returns copies of all non-terminal orders, optionally
// filtered by symbol (empty symbol matches everything).
func (r *Registry) ActiveOrders(symbol string) []*Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Order
	for _, o := range r.orders {
		if !o.IsActive() {
			continue
		}
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		out = append(out, o.Clone())
	}
	return out
}

// Position sums the signed quantity of FILLED orders for a symbol.
// This is registry-local bookkeeping; the venue ledger stays the
// source of truth for exposure.
func (r *Registry) Position(symbol string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var position int64
	for _, o := range r.orders {
		if o.Symbol == symbol && o.Status == StatusFilled {
			position += o.SignedQuantity()
		}
	}
	return position
}

// Len returns the number of tracked orders.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}
