package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/feed"
	"main/internal/order"
)

// Trader places orders on behalf of a strategy. The engine satisfies
// it.
type Trader interface {
	PlaceOrder(ctx context.Context, spec order.Spec) (string, error)
}

// HighOpenConfig tunes one symbol's high-open entry and exit bands.
type HighOpenConfig struct {
	Symbol        string
	PrevClose     float64 // previous session close the open is compared against
	HighOpenRatio float64
	ProfitTarget  float64
	StopLoss      float64
	PositionSize  int64
}

func (cfg HighOpenConfig) withDefaults() HighOpenConfig {
	if cfg.HighOpenRatio <= 0 {
		cfg.HighOpenRatio = 0.02
	}
	if cfg.ProfitTarget <= 0 {
		cfg.ProfitTarget = 0.05
	}
	if cfg.StopLoss <= 0 {
		cfg.StopLoss = 0.03
	}
	if cfg.PositionSize <= 0 {
		cfg.PositionSize = 100
	}
	return cfg
}

// HighOpen buys when a bar opens above the previous close by at least
// the configured ratio, then exits on a profit target or stop loss.
type HighOpen struct {
	Nop

	id     string
	cfg    HighOpenConfig
	trader Trader

	mu      sync.Mutex
	pending bool
	holding int64
	cost    float64
}

func NewHighOpen(id string, cfg HighOpenConfig, trader Trader) *HighOpen {
	return &HighOpen{
		id:     id,
		cfg:    cfg.withDefaults(),
		trader: trader,
	}
}

func (s *HighOpen) ID() string {
	return s.id
}

// Execute watches bar opens for the entry signal. It runs on the
// synchronous kline path so each bar is seen exactly once and in
// order.
func (s *HighOpen) Execute(payload any) {
	k, ok := payload.(feed.Kline)
	if !ok || k.Symbol != s.cfg.Symbol {
		return
	}

	if k.Open < s.cfg.PrevClose*(1+s.cfg.HighOpenRatio) {
		return
	}

	s.mu.Lock()
	if s.pending || s.holding != 0 {
		s.mu.Unlock()
		return
	}
	s.pending = true
	s.mu.Unlock()

	logs.Infof("high-open entry: %s open=%.2f prevClose=%.2f", k.Symbol, k.Open, s.cfg.PrevClose)
	if err := s.place(order.Spec{
		Symbol:   k.Symbol,
		Side:     order.SideBuy,
		Type:     order.TypeLimit,
		Price:    k.Open,
		Quantity: s.cfg.PositionSize,
	}); err != nil {
		logs.Errorf("high-open buy %s, err: %+v", k.Symbol, err)
		s.mu.Lock()
		s.pending = false
		s.mu.Unlock()
	}
}

// OnMarketData checks exits on every tick. Ticks arrive from
// concurrent workers, but the exit decision only compares the latest
// price against a fixed cost basis so ordering does not matter.
func (s *HighOpen) OnMarketData(dataType string, payload any) {
	if dataType != "tick" {
		return
	}
	tick, ok := payload.(feed.Tick)
	if !ok || tick.Symbol != s.cfg.Symbol {
		return
	}

	s.mu.Lock()
	if s.pending || s.holding == 0 || s.cost == 0 {
		s.mu.Unlock()
		return
	}
	holding, cost := s.holding, s.cost

	profitRate := (tick.Price - cost) / cost
	var reason string
	switch {
	case profitRate >= s.cfg.ProfitTarget:
		reason = "profit target"
	case profitRate <= -s.cfg.StopLoss:
		reason = "stop loss"
	default:
		s.mu.Unlock()
		return
	}
	s.pending = true
	s.mu.Unlock()

	logs.Infof("high-open exit (%s): %s price=%.2f cost=%.2f rate=%.2f%%",
		reason, tick.Symbol, tick.Price, cost, profitRate*100)
	if err := s.place(order.Spec{
		Symbol:   tick.Symbol,
		Side:     order.SideSell,
		Type:     order.TypeLimit,
		Price:    tick.Price,
		Quantity: holding,
	}); err != nil {
		logs.Errorf("high-open sell %s, err: %+v", tick.Symbol, err)
		s.mu.Lock()
		s.pending = false
		s.mu.Unlock()
	}
}

// OnOrderUpdate folds confirmed fills back into the strategy's
// position tracking.
func (s *HighOpen) OnOrderUpdate(o *order.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch o.Status {
	case order.StatusFilled:
		if o.Side == order.SideBuy {
			s.holding += o.FilledQty
			s.cost = o.AvgFillPrice
		} else {
			s.holding -= o.FilledQty
			if s.holding <= 0 {
				s.holding = 0
				s.cost = 0
			}
		}
		s.pending = false
	case order.StatusCancelled, order.StatusRejected:
		s.pending = false
	}
}

func (s *HighOpen) place(spec order.Spec) error {
	spec.StrategyID = s.id
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.trader.PlaceOrder(ctx, spec)
	return err
}
