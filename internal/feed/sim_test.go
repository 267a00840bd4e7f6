package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []struct {
		dataType string
		payload  any
	}
}

func (r *recordingSink) OnMarketData(dataType string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, struct {
		dataType string
		payload  any
	}{dataType, payload})
}

func (r *recordingSink) count(dataType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.dataType == dataType {
			n++
		}
	}
	return n
}

func TestSimulatorEmitsOpeningKlines(t *testing.T) {
	sink := &recordingSink{}
	sim := NewSimulator(SimulatorConfig{
		Symbols:  []string{"600000", "600036"},
		Interval: time.Hour, // no steps during the test
	}, sink)

	require.NoError(t, sim.Start(context.Background()))
	defer sim.Stop()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 2)
	for _, ev := range sink.events {
		assert.Equal(t, "kline", ev.dataType)
		k, ok := ev.payload.(Kline)
		require.True(t, ok)
		assert.Equal(t, k.Open, k.Close)
		assert.Greater(t, k.High, k.Low)
	}
}

func TestSimulatorWalksPrices(t *testing.T) {
	sink := &recordingSink{}
	sim := NewSimulator(SimulatorConfig{
		Symbols:    []string{"600000"},
		Interval:   time.Millisecond,
		BasePrice:  10,
		Volatility: 0.002,
	}, sink)

	require.NoError(t, sim.Start(context.Background()))
	defer sim.Stop()

	require.Eventually(t, func() bool {
		return sink.count("tick") >= 5 && sink.count("kline") >= 5
	}, 2*time.Second, 5*time.Millisecond)

	price, ok := sim.Price("600000")
	require.True(t, ok)
	// 0.2% max step keeps the walk near the base over a few steps
	assert.InDelta(t, 10, price, 5)
	assert.Greater(t, price, 0.0)
}

func TestSimulatorStartTwice(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{Symbols: []string{"600000"}}, &recordingSink{})
	require.NoError(t, sim.Start(context.Background()))
	defer sim.Stop()

	assert.ErrorIs(t, sim.Start(context.Background()), ErrSimulatorStarted)
}

func TestSimulatorStopIdempotent(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{Symbols: []string{"600000"}}, &recordingSink{})
	require.NoError(t, sim.Start(context.Background()))
	sim.Stop()
	sim.Stop()
}
