package venue

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"main/internal/order"
)

// ErrChaosInjected marks a failure produced by the chaos wrapper rather
// than the underlying venue.
var ErrChaosInjected = errors.New("chaos: injected failure")

// ChaosConfig controls fault injection rates. Rates are probabilities
// in [0, 1] applied independently per call.
type ChaosConfig struct {
	Seed      uint64
	ErrorRate float64
	MaxDelay  time.Duration
}

func (c ChaosConfig) validate() error {
	if c.ErrorRate < 0 || c.ErrorRate > 1 {
		return errors.New("errorRate must be between 0 and 1")
	}
	if c.MaxDelay < 0 {
		return errors.New("maxDelay must be >= 0")
	}
	return nil
}

// Chaos wraps a venue and injects transient failures and extra delay so
// retry and reconciliation paths can be exercised deterministically.
type Chaos struct {
	cfg   ChaosConfig
	inner Venue

	mu  sync.Mutex
	rng *rand.Rand
}

// NewChaos validates the config and wraps the venue. A zero seed is
// replaced with the wall clock.
func NewChaos(cfg ChaosConfig, inner Venue) (*Chaos, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UTC().UnixNano())
	}
	return &Chaos{
		cfg:   cfg,
		inner: inner,
		rng:   rand.New(rand.NewPCG(cfg.Seed, cfg.Seed)),
	}, nil
}

func (c *Chaos) Place(ctx context.Context, o *order.Order) (string, error) {
	if err := c.disturb(ctx); err != nil {
		return "", err
	}
	return c.inner.Place(ctx, o)
}

func (c *Chaos) Cancel(ctx context.Context, venueOrderID string) error {
	if err := c.disturb(ctx); err != nil {
		return err
	}
	return c.inner.Cancel(ctx, venueOrderID)
}

func (c *Chaos) Query(ctx context.Context, venueOrderID string) (OrderSnapshot, error) {
	if err := c.disturb(ctx); err != nil {
		return OrderSnapshot{}, err
	}
	return c.inner.Query(ctx, venueOrderID)
}

// Account and Positions pass through untouched; chaos targets the
// order round trips only.
func (c *Chaos) Account() Account {
	return c.inner.Account()
}

func (c *Chaos) Positions() map[string]Position {
	return c.inner.Positions()
}

// disturb applies the configured delay and error injection before the
// real call is made.
func (c *Chaos) disturb(ctx context.Context) error {
	c.mu.Lock()
	fail := c.rng.Float64() < c.cfg.ErrorRate
	var delay time.Duration
	if c.cfg.MaxDelay > 0 {
		delay = time.Duration(c.rng.Int64N(int64(c.cfg.MaxDelay) + 1))
	}
	c.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if fail {
		return ErrChaosInjected
	}
	return nil
}
