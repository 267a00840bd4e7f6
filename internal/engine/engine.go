package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/obs"
	"main/internal/order"
	"main/internal/risk"
	"main/internal/storage"
	"main/internal/strategy"
	"main/internal/venue"
)

const marketTopicPrefix = "market."

// Persister is the minimal save capability the engine needs. Failures
// are logged, never turned into order failures.
type Persister interface {
	Save(ctx context.Context, collection string, record any) error
}

// Notifier delivers best-effort out-of-band notifications.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Config controls the engine loops.
type Config struct {
	Workers           int
	QueueSize         int
	ReconcileInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = time.Second
	}
	return c
}

// Deps are the engine collaborators. Venue and Risk are required;
// the rest default to no-op or fresh instances.
type Deps struct {
	Venue    venue.Venue
	Risk     *risk.Chain
	Registry *order.Registry
	Store    Persister
	Notifier Notifier
	Metrics  *obs.Metrics
}

// Engine wires the event bus, order registry, risk chain and execution
// venue: market events fan out to strategies, order requests pass
// through risk then the venue, and a periodic reconciliation loop syncs
// registry state with venue-reported fills.
type Engine struct {
	cfg      Config
	queue    *bus.Queue
	registry *order.Registry
	risk     *risk.Chain
	venue    venue.Venue
	store    Persister
	notifier Notifier
	metrics  *obs.Metrics

	mu         sync.RWMutex
	strategies map[string]strategy.Strategy

	lifecycle sync.Mutex
	started   bool
	stopped   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New builds an engine. It panics on a missing venue or risk chain;
// both are wiring bugs, not runtime conditions.
func New(cfg Config, deps Deps) *Engine {
	if deps.Venue == nil {
		panic("engine: venue is required")
	}
	if deps.Risk == nil {
		panic("engine: risk chain is required")
	}
	cfg = cfg.withDefaults()
	if deps.Registry == nil {
		deps.Registry = order.NewRegistry()
	}
	if deps.Store == nil {
		deps.Store = storage.Nop{}
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	return &Engine{
		cfg:        cfg,
		queue:      bus.NewQueue(cfg.QueueSize),
		registry:   deps.Registry,
		risk:       deps.Risk,
		venue:      deps.Venue,
		store:      deps.Store,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		strategies: make(map[string]strategy.Strategy),
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string) error { return nil }

// Registry exposes the order registry for callers that inspect terminal
// states after a failed placement.
func (e *Engine) Registry() *order.Registry { return e.registry }

// RegisterStrategy adds a strategy handle. Later registrations with the
// same id replace the earlier one.
func (e *Engine) RegisterStrategy(s strategy.Strategy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategies[s.ID()] = s
	logs.Infof("strategy registered: %s", s.ID())
}

// Start launches the worker pool and the reconciliation loop. Idempotent.
func (e *Engine) Start(ctx context.Context) {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	if e.started {
		return
	}
	e.started = true
	ctx, e.cancel = context.WithCancel(ctx)

	for i := 0; i < e.cfg.Workers; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			// Workers exit when the queue is closed and drained; the
			// context is left out so queued events survive Stop.
			e.queue.Run(context.Background(), e.handleEvent)
		}()
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.reconcileLoop(ctx)
	}()

	logs.Infof("engine started: workers=%d queue=%d reconcile=%s",
		e.cfg.Workers, e.cfg.QueueSize, e.cfg.ReconcileInterval)
}

// Stop closes the queue, signals the loops and waits for them to exit
// at their next check point. In-flight operations finish naturally.
// Idempotent.
func (e *Engine) Stop() {
	e.lifecycle.Lock()
	if !e.started || e.stopped {
		e.lifecycle.Unlock()
		return
	}
	e.stopped = true
	cancel := e.cancel
	e.lifecycle.Unlock()

	e.queue.Close()
	cancel()
	e.wg.Wait()
	logs.Info("engine stopped")
}

// Ingest enqueues an event with the current time.
func (e *Engine) Ingest(topic string, payload any) {
	err := e.queue.TryPublish(bus.Event{Topic: topic, Payload: payload, EnqueuedAt: time.Now()})
	if err != nil {
		e.metrics.Increment(obs.MetricEventDropped, map[string]string{"topic": topic})
		logs.Warnf("event dropped: topic=%s, err: %+v", topic, err)
	}
}

// OnMarketData ingests a market event. Kline events are additionally
// dispatched synchronously to every strategy's Execute hook, the
// low-latency path for bar-close signals.
func (e *Engine) OnMarketData(dataType string, payload any) {
	e.Ingest(marketTopicPrefix+dataType, payload)

	if dataType == "kline" {
		e.mu.RLock()
		for _, s := range e.strategies {
			s.Execute(payload)
		}
		e.mu.RUnlock()
	}
	e.metrics.Increment(obs.MetricMarketData, map[string]string{"type": dataType})
}

// handleEvent runs on the worker pool; each dequeue records dispatch
// latency before fanning the event out.
func (e *Engine) handleEvent(ev bus.Event) {
	e.metrics.Observe(obs.MetricEventLatency, time.Since(ev.EnqueuedAt))

	dataType, ok := strings.CutPrefix(ev.Topic, marketTopicPrefix)
	if !ok {
		return
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, s := range e.strategies {
		s.OnMarketData(dataType, ev.Payload)
	}
}

// PlaceOrder creates an order from the spec and runs it through the
// risk chain and the venue. On any expected failure the order is left
// REJECTED in the registry and the error is returned; it never escapes
// as a fault.
func (e *Engine) PlaceOrder(ctx context.Context, spec order.Spec) (string, error) {
	o, err := order.New(spec)
	if err != nil {
		e.metrics.Increment(obs.MetricOrderError, map[string]string{"reason": "validation"})
		return "", err
	}
	if err := e.registry.Add(o); err != nil {
		e.metrics.Increment(obs.MetricOrderError, map[string]string{"reason": "duplicate"})
		return "", err
	}

	if err := e.risk.CheckOrder(o); err != nil {
		e.reject(o.ID, "risk")
		logs.Warnf("order %s denied: %+v", o.ID, err)
		return "", err
	}

	venueOrderID, err := e.venue.Place(ctx, o)
	if err != nil {
		e.reject(o.ID, "venue")
		logs.Warnf("order %s rejected by venue: %+v", o.ID, err)
		return "", err
	}

	updated, err := e.registry.Update(o.ID, order.Update{
		Status:       order.StatusSubmitted,
		VenueOrderID: venueOrderID,
	})
	if err != nil {
		// The registry is the single writer here; a failure means a
		// concurrent illegal mutation and is a programming defect.
		e.metrics.Increment(obs.MetricOrderError, map[string]string{"reason": "registry"})
		return "", err
	}

	e.persist(ctx, updated)
	e.metrics.Increment(obs.MetricOrderPlaced, map[string]string{
		"strategy": o.StrategyID,
		"symbol":   o.Symbol,
	})
	return o.ID, nil
}

// CancelOrder cancels an active order. It returns false when the order
// is absent, inactive, or the venue refuses the cancel.
func (e *Engine) CancelOrder(ctx context.Context, id string) bool {
	o, ok := e.registry.Get(id)
	if !ok || !o.IsActive() {
		return false
	}

	if o.VenueOrderID != "" {
		if err := e.venue.Cancel(ctx, o.VenueOrderID); err != nil {
			e.metrics.Increment(obs.MetricOrderError, map[string]string{"reason": "cancel"})
			logs.Warnf("cancel order %s, err: %+v", id, err)
			return false
		}
	}

	updated, err := e.registry.Update(id, order.Update{Status: order.StatusCancelled})
	if err != nil {
		logs.Errorf("cancel transition for %s, err: %+v", id, err)
		return false
	}
	e.persist(ctx, updated)
	e.metrics.Increment(obs.MetricOrderCancelled, map[string]string{"strategy": o.StrategyID})
	return true
}

// QueryOrder returns a copy of the registry entry.
func (e *Engine) QueryOrder(id string) (*order.Order, bool) {
	return e.registry.Get(id)
}

// reconcileLoop polls the venue for status/fill drift on active orders.
func (e *Engine) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.reconcile(ctx)
		}
	}
}

// reconcile applies venue-reported drift to the registry and notifies
// the owning strategies. Transient venue errors are logged and retried
// on the next tick; illegal transitions are logged and dropped.
func (e *Engine) reconcile(ctx context.Context) {
	for _, o := range e.registry.ActiveOrders("") {
		if o.VenueOrderID == "" {
			continue
		}
		snap, err := e.venue.Query(ctx, o.VenueOrderID)
		if err != nil {
			logs.Warnf("reconcile query %s, err: %+v", o.ID, err)
			continue
		}
		if snap.Status == o.Status && snap.FilledQty == o.FilledQty {
			continue
		}

		updated, err := e.registry.Update(o.ID, order.Update{
			Status:       snap.Status,
			FilledQty:    &snap.FilledQty,
			AvgFillPrice: &snap.AvgFillPrice,
			Commission:   &snap.Commission,
		})
		if err != nil {
			e.metrics.Increment(obs.MetricOrderError, map[string]string{"reason": "reconcile"})
			logs.Errorf("reconcile update %s dropped, err: %+v", o.ID, err)
			continue
		}

		if delta := snap.FilledQty - o.FilledQty; delta > 0 {
			signed := delta
			if updated.Side == order.SideSell {
				signed = -delta
			}
			e.risk.ApplyFill(updated.Symbol, signed)
			e.persistFill(ctx, updated)
			e.notifyFill(updated)
		}
		e.persist(ctx, updated)
		e.dispatchOrderUpdate(updated)
	}
}

func (e *Engine) dispatchOrderUpdate(o *order.Order) {
	e.mu.RLock()
	s, ok := e.strategies[o.StrategyID]
	e.mu.RUnlock()
	if ok {
		s.OnOrderUpdate(o)
	}
}

// reject moves the order to REJECTED and counts the failure. An illegal
// transition here is a defect: it is logged and the update dropped.
func (e *Engine) reject(id, reason string) {
	if _, err := e.registry.Update(id, order.Update{Status: order.StatusRejected}); err != nil {
		logs.Errorf("reject transition for %s dropped, err: %+v", id, err)
	}
	e.metrics.Increment(obs.MetricOrderError, map[string]string{"reason": reason})
}

func (e *Engine) persist(ctx context.Context, o *order.Order) {
	if err := e.store.Save(ctx, storage.CollectionOrders, storage.RecordFromOrder(o)); err != nil {
		logs.Errorf("persist order %s, err: %+v", o.ID, err)
	}
}

func (e *Engine) persistFill(ctx context.Context, o *order.Order) {
	if err := e.store.Save(ctx, storage.CollectionFills, storage.FillFromOrder(o)); err != nil {
		logs.Errorf("persist fill %s, err: %+v", o.ID, err)
	}
}

// notifyFill pushes a fill notification without ever blocking the
// reconciliation loop.
func (e *Engine) notifyFill(o *order.Order) {
	text := fmt.Sprintf("%s %s %s x%d @%.4f (order %s)",
		o.Status, o.Side, o.Symbol, o.FilledQty, o.AvgFillPrice, o.ID)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := e.notifier.Notify(ctx, text); err != nil {
			logs.Warnf("notify fill %s, err: %+v", o.ID, err)
		}
	}()
}
