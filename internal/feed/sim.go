package feed

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"
)

// Tick is a single trade print.
type Tick struct {
	Symbol    string
	Price     float64
	Volume    int64
	Timestamp time.Time
}

// Kline is a one-bar summary emitted alongside each tick.
type Kline struct {
	Symbol    string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
	Timeframe string
	Timestamp time.Time
}

// Sink receives generated market data.
type Sink interface {
	OnMarketData(dataType string, payload any)
}

var ErrSimulatorStarted = errors.New("simulator already started")

type SimulatorConfig struct {
	Symbols    []string
	Interval   time.Duration
	BasePrice  float64
	Volatility float64 // max per-step fractional move
}

func (cfg SimulatorConfig) withDefaults() SimulatorConfig {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.BasePrice <= 0 {
		cfg.BasePrice = 10
	}
	if cfg.Volatility <= 0 {
		cfg.Volatility = 0.002
	}
	return cfg
}

// Simulator drives a random walk per symbol and pushes ticks and
// klines into the sink at a fixed interval.
type Simulator struct {
	cfg  SimulatorConfig
	sink Sink

	started uint32
	closed  uint32
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	prices map[string]float64
}

func NewSimulator(cfg SimulatorConfig, sink Sink) *Simulator {
	cfg = cfg.withDefaults()
	prices := make(map[string]float64, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		prices[symbol] = cfg.BasePrice
	}
	return &Simulator{
		cfg:    cfg,
		sink:   sink,
		prices: prices,
	}
}

// Start emits an opening kline for every symbol, then keeps stepping
// the walk until Stop or context cancellation.
func (s *Simulator) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&s.started, 0, 1) {
		return ErrSimulatorStarted
	}

	ctx, s.cancel = context.WithCancel(ctx)

	now := time.Now()
	for _, symbol := range s.cfg.Symbols {
		open := s.cfg.BasePrice
		s.sink.OnMarketData("kline", Kline{
			Symbol:    symbol,
			Open:      open,
			High:      open * 1.01,
			Low:       open * 0.99,
			Close:     open,
			Volume:    50_000,
			Timeframe: "1m",
			Timestamp: now,
		})
	}

	s.wg.Add(1)
	go s.run(ctx)
	return nil
}

// Stop halts generation and waits for the loop to exit.
func (s *Simulator) Stop() {
	if !atomic.CompareAndSwapUint32(&s.closed, 0, 1) {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Price returns the current simulated price for a symbol.
func (s *Simulator) Price(symbol string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prices[symbol]
	return p, ok
}

func (s *Simulator) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	steps := 0
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.step(now)
			steps++
			if steps%60 == 0 {
				s.logPrices()
			}
		}
	}
}

func (s *Simulator) step(now time.Time) {
	for _, symbol := range s.cfg.Symbols {
		s.mu.Lock()
		price := s.prices[symbol]
		price += price * s.cfg.Volatility * (rand.Float64()*2 - 1)
		s.prices[symbol] = price
		s.mu.Unlock()

		s.sink.OnMarketData("tick", Tick{
			Symbol:    symbol,
			Price:     price,
			Volume:    100 + rand.Int64N(901),
			Timestamp: now,
		})
		s.sink.OnMarketData("kline", Kline{
			Symbol:    symbol,
			Open:      price,
			High:      price * 1.001,
			Low:       price * 0.999,
			Close:     price,
			Volume:    10_000 + rand.Int64N(40_001),
			Timeframe: "1m",
			Timestamp: now,
		})
	}
}

func (s *Simulator) logPrices() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for symbol, price := range s.prices {
		logs.Infof("feed: %s price=%.2f change=%.2f%%",
			symbol, price, (price/s.cfg.BasePrice-1)*100)
	}
}
