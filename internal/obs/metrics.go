package obs

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metric names exposed for external sinks to poll.
const (
	MetricOrderPlaced    = "order_placed_total"
	MetricOrderCancelled = "order_cancelled_total"
	MetricOrderError     = "order_error_total"
	MetricEventLatency   = "event_latency_seconds"
	MetricEventDropped   = "event_dropped_total"
	MetricMarketData     = "market_data_received_total"
)

// Metrics collects labeled counters and latency stats.
type Metrics struct {
	mu        sync.RWMutex
	counters  map[string]*counter
	latencies map[string]*LatencyStats
}

type counter struct {
	name   string
	labels map[string]string
	value  uint64
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64        `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Avg   time.Duration `json:"avg"`
}

// CounterSnapshot is a point-in-time view of one labeled counter.
type CounterSnapshot struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
	Value  uint64            `json:"value"`
}

// Snapshot captures all current metric values.
type Snapshot struct {
	Counters  []CounterSnapshot          `json:"counters"`
	Latencies map[string]LatencySnapshot `json:"latencies"`
	TakenAt   time.Time                  `json:"takenAt"`
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{
		counters:  make(map[string]*counter),
		latencies: make(map[string]*LatencyStats),
	}
}

// Increment adds one to the named counter.
func (m *Metrics) Increment(name string, labels map[string]string) {
	if m == nil {
		return
	}
	key := metricKey(name, labels)

	m.mu.RLock()
	c, ok := m.counters[key]
	m.mu.RUnlock()
	if !ok {
		m.mu.Lock()
		if c, ok = m.counters[key]; !ok {
			c = &counter{name: name, labels: labels}
			m.counters[key] = c
		}
		m.mu.Unlock()
	}
	atomic.AddUint64(&c.value, 1)
}

// Observe records a duration sample under the named latency metric.
func (m *Metrics) Observe(name string, d time.Duration) {
	if m == nil {
		return
	}
	m.mu.RLock()
	l, ok := m.latencies[name]
	m.mu.RUnlock()
	if !ok {
		m.mu.Lock()
		if l, ok = m.latencies[name]; !ok {
			l = &LatencyStats{}
			m.latencies[name] = l
		}
		m.mu.Unlock()
	}
	l.Observe(d)
}

// Snapshot returns a copy of the current metric values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := Snapshot{
		Latencies: make(map[string]LatencySnapshot, len(m.latencies)),
		TakenAt:   time.Now(),
	}
	for _, c := range m.counters {
		out.Counters = append(out.Counters, CounterSnapshot{
			Name:   c.name,
			Labels: c.labels,
			Value:  atomic.LoadUint64(&c.value),
		})
	}
	sort.Slice(out.Counters, func(i, j int) bool {
		if out.Counters[i].Name != out.Counters[j].Name {
			return out.Counters[i].Name < out.Counters[j].Name
		}
		return metricKey(out.Counters[i].Name, out.Counters[i].Labels) <
			metricKey(out.Counters[j].Name, out.Counters[j].Labels)
	})
	for name, l := range m.latencies {
		out.Latencies[name] = l.Snapshot()
	}
	return out
}

// CounterValue sums every labeled series of the named counter.
func (m *Metrics) CounterValue(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total uint64
	for _, c := range m.counters {
		if c.name == name {
			total += atomic.LoadUint64(&c.value)
		}
	}
	return total
}

func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
