package venue

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/order"
)

// SimConfig controls the simulated venue.
type SimConfig struct {
	InitialBalance float64
	SlippageRate   float64
	CommissionRate float64
	MinLatency     time.Duration
	MaxLatency     time.Duration
}

// Sim is a simulated execution venue. Orders fill synchronously and in
// full; the account ledger uses decimal arithmetic so money conservation
// holds exactly. One venue-wide lock makes balance-check-then-debit
// atomic; the artificial latency runs before the lock is taken so it
// never serializes other venue calls.
type Sim struct {
	cfg            SimConfig
	commissionRate decimal.Decimal
	ids            *idSequence

	mu       sync.Mutex
	balance  decimal.Decimal
	initial  decimal.Decimal
	position map[string]int64
	avgCost  map[string]decimal.Decimal
	price    map[string]decimal.Decimal
	orders   map[string]*simOrder
}

type simOrder struct {
	status       order.Status
	filledQty    int64
	avgFillPrice float64
	commission   float64
	updateTime   time.Time
}

// NewSim creates a simulated venue with the given account parameters.
func NewSim(cfg SimConfig) *Sim {
	if cfg.MaxLatency < cfg.MinLatency {
		cfg.MaxLatency = cfg.MinLatency
	}
	initial := decimal.NewFromFloat(cfg.InitialBalance)
	return &Sim{
		cfg:            cfg,
		commissionRate: decimal.NewFromFloat(cfg.CommissionRate),
		ids:            newIDSequence(0),
		balance:        initial,
		initial:        initial,
		position:       make(map[string]int64),
		avgCost:        make(map[string]decimal.Decimal),
		price:          make(map[string]decimal.Decimal),
		orders:         make(map[string]*simOrder),
	}
}

// Place fills the order immediately after the simulated round trip.
// It returns the venue order id, or ErrInsufficientFunds when the fill
// notional plus commission exceeds the free balance.
func (s *Sim) Place(ctx context.Context, o *order.Order) (string, error) {
	if err := s.simulateLatency(ctx); err != nil {
		return "", err
	}

	execPrice := s.executionPrice(o)
	px := decimal.NewFromFloat(execPrice)
	notional := px.Mul(decimal.NewFromInt(o.Quantity)).Abs()
	commission := notional.Mul(s.commissionRate)
	cost := notional.Add(commission)

	s.mu.Lock()
	defer s.mu.Unlock()

	if cost.GreaterThan(s.balance) {
		logs.Warnf("insufficient funds: need %s, balance %s", cost, s.balance)
		return "", errors.Wrap(ErrInsufficientFunds, "need "+cost.String())
	}
	s.balance = s.balance.Sub(cost)

	signed := o.SignedQuantity()
	oldQty := s.position[o.Symbol]
	newQty := oldQty + signed
	if signed > 0 {
		// Weighted-average cost moves only on position-increasing fills.
		if newQty != 0 {
			oldCost := s.avgCost[o.Symbol]
			s.avgCost[o.Symbol] = oldCost.Mul(decimal.NewFromInt(oldQty)).
				Add(px.Mul(decimal.NewFromInt(signed))).
				Div(decimal.NewFromInt(newQty))
		} else {
			s.avgCost[o.Symbol] = decimal.Zero
		}
	}
	s.position[o.Symbol] = newQty
	s.price[o.Symbol] = px

	venueOrderID := fmt.Sprintf("sim-%d", s.ids.Next())
	s.orders[venueOrderID] = &simOrder{
		status:       order.StatusFilled,
		filledQty:    o.Quantity,
		avgFillPrice: execPrice,
		commission:   commission.InexactFloat64(),
		updateTime:   time.Now(),
	}
	return venueOrderID, nil
}

// Cancel succeeds only for non-terminal venue orders. The simulator
// fills instantly, so this path is reachable only for implementations
// layering non-instant fills on top.
func (s *Sim) Cancel(ctx context.Context, venueOrderID string) error {
	if err := s.simulateLatency(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	so, ok := s.orders[venueOrderID]
	if !ok {
		return errors.Wrap(ErrUnknownVenueOrder, venueOrderID)
	}
	if so.status.IsTerminal() {
		return errors.Wrap(ErrNotCancelable, so.status.String())
	}
	so.status = order.StatusCancelled
	so.updateTime = time.Now()
	return nil
}

// Query returns the venue-side snapshot of an order.
func (s *Sim) Query(ctx context.Context, venueOrderID string) (OrderSnapshot, error) {
	if err := s.simulateLatency(ctx); err != nil {
		return OrderSnapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	so, ok := s.orders[venueOrderID]
	if !ok {
		return OrderSnapshot{}, errors.Wrap(ErrUnknownVenueOrder, venueOrderID)
	}
	return OrderSnapshot{
		VenueOrderID: venueOrderID,
		Status:       so.status,
		FilledQty:    so.filledQty,
		AvgFillPrice: so.avgFillPrice,
		Commission:   so.commission,
		UpdateTime:   so.updateTime,
	}, nil
}

// Account returns a snapshot of the cash ledger computed under the lock.
func (s *Sim) Account() Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	positionsValue := decimal.Zero
	for symbol, qty := range s.position {
		positionsValue = positionsValue.Add(s.price[symbol].Mul(decimal.NewFromInt(qty)))
	}
	return Account{
		Balance:        s.balance,
		InitialBalance: s.initial,
		PositionsValue: positionsValue,
		Equity:         s.balance.Add(positionsValue),
	}
}

// Positions returns per-symbol snapshots for all non-flat symbols.
func (s *Sim) Positions() map[string]Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Position, len(s.position))
	for symbol, qty := range s.position {
		if qty == 0 {
			continue
		}
		out[symbol] = Position{
			Symbol:    symbol,
			Quantity:  qty,
			AvgCost:   s.avgCost[symbol],
			LastPrice: s.price[symbol],
		}
	}
	return out
}

// executionPrice applies slippage to market orders only; aggressive
// limits execute at the requested price unchanged.
func (s *Sim) executionPrice(o *order.Order) float64 {
	if o.Type != order.TypeMarket {
		return o.Price
	}
	if o.Side == order.SideSell {
		return o.Price * (1 - s.cfg.SlippageRate)
	}
	return o.Price * (1 + s.cfg.SlippageRate)
}

// simulateLatency emulates network RTT with a uniform random delay. It
// runs outside the venue lock and aborts early on context cancellation.
func (s *Sim) simulateLatency(ctx context.Context) error {
	if s.cfg.MaxLatency <= 0 {
		return nil
	}
	delay := s.cfg.MinLatency
	if span := s.cfg.MaxLatency - s.cfg.MinLatency; span > 0 {
		delay += rand.N(span)
	}
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
