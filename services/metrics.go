package services

import "sync"

// Metrics receives scheduler counters and gauges.
type Metrics interface {
	IncCounter(name string)
	SetGauge(name string, value float64)
}

const (
	MetricCycles       = "cycles"
	MetricCycleErrors  = "cycle_errors"
	MetricTicks        = "ticks"
	MetricTickErrors   = "tick_errors"
	MetricFired        = "fired"
	MetricExecuted     = "executed"
	MetricFailed       = "failed"
	MetricActiveOrders = "active_orders"
	MetricLastCycle    = "last_cycle_unix"
)

// MemoryMetrics keeps metrics in memory, namespaced per scheduler through Scope.
type MemoryMetrics struct {
	mutex    sync.RWMutex
	counters map[string]uint64
	gauges   map[string]float64
}

func NewMemoryMetrics() *MemoryMetrics {
	return &MemoryMetrics{counters: make(map[string]uint64), gauges: make(map[string]float64)}
}

func (metrics *MemoryMetrics) IncCounter(name string) {
	metrics.mutex.Lock()
	defer metrics.mutex.Unlock()
	metrics.counters[name]++
}

func (metrics *MemoryMetrics) SetGauge(name string, value float64) {
	metrics.mutex.Lock()
	defer metrics.mutex.Unlock()
	metrics.gauges[name] = value
}

type MetricsSnapshot struct {
	Counters map[string]uint64  `json:"counters"`
	Gauges   map[string]float64 `json:"gauges"`
}

func (metrics *MemoryMetrics) Snapshot() MetricsSnapshot {
	metrics.mutex.RLock()
	defer metrics.mutex.RUnlock()

	snapshot := MetricsSnapshot{
		Counters: make(map[string]uint64, len(metrics.counters)),
		Gauges:   make(map[string]float64, len(metrics.gauges)),
	}
	for name, value := range metrics.counters {
		snapshot.Counters[name] = value
	}
	for name, value := range metrics.gauges {
		snapshot.Gauges[name] = value
	}
	return snapshot
}

// Scope prefixes every metric name with prefix and a dot.
func (metrics *MemoryMetrics) Scope(prefix string) Metrics {
	return scopedMetrics{prefix: prefix + ".", metrics: metrics}
}

type scopedMetrics struct {
	prefix  string
	metrics Metrics
}

func (scoped scopedMetrics) IncCounter(name string) {
	scoped.metrics.IncCounter(scoped.prefix + name)
}

func (scoped scopedMetrics) SetGauge(name string, value float64) {
	scoped.metrics.SetGauge(scoped.prefix+name, value)
}

type nopMetrics struct{}

func (nopMetrics) IncCounter(string)        {}
func (nopMetrics) SetGauge(string, float64) {}
