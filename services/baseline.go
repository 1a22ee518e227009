package services

import (
	"sync"

	"github.com/legendiguess/pumpdump-trade-bot/domain"
)

type baseline struct {
	initial float64
	current float64
}

// BaselineTracker remembers, per market outcome, the price a move is measured from.
// State lives only in memory: after a restart the first observed quote becomes the new baseline.
type BaselineTracker struct {
	mutex     sync.Mutex
	baselines map[domain.PriceKey]baseline
}

func NewBaselineTracker() *BaselineTracker {
	return &BaselineTracker{baselines: make(map[domain.PriceKey]baseline)}
}

// Observe records price as the current price and returns the percentage change from the baseline.
// ok is false on the first observation and when the baseline is zero.
func (tracker *BaselineTracker) Observe(key domain.PriceKey, price float64) (change float64, ok bool) {
	tracker.mutex.Lock()
	defer tracker.mutex.Unlock()

	entry, found := tracker.baselines[key]
	if !found {
		tracker.baselines[key] = baseline{initial: price, current: price}
		return 0, false
	}

	entry.current = price
	tracker.baselines[key] = entry

	if entry.initial == 0 {
		return 0, false
	}
	return (entry.current - entry.initial) / entry.initial * 100, true
}

// Reset re-baselines key at its current price. Unknown keys are left alone.
func (tracker *BaselineTracker) Reset(key domain.PriceKey) {
	tracker.mutex.Lock()
	defer tracker.mutex.Unlock()

	entry, found := tracker.baselines[key]
	if !found {
		return
	}
	entry.initial = entry.current
	tracker.baselines[key] = entry
}

// Baseline returns the initial and current price for key.
func (tracker *BaselineTracker) Baseline(key domain.PriceKey) (initial float64, current float64, ok bool) {
	tracker.mutex.Lock()
	defer tracker.mutex.Unlock()

	entry, found := tracker.baselines[key]
	return entry.initial, entry.current, found
}
