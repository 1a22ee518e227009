package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/legendiguess/pumpdump-trade-bot/services"
)

func TestScopedMetrics(t *testing.T) {
	metrics := services.NewMemoryMetrics()
	trade := metrics.Scope("polymarket.trade")
	alert := metrics.Scope("polymarket.alert")

	trade.IncCounter(services.MetricTicks)
	trade.IncCounter(services.MetricTicks)
	alert.IncCounter(services.MetricTicks)
	trade.SetGauge(services.MetricActiveOrders, 4)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(2), snapshot.Counters["polymarket.trade.ticks"])
	assert.Equal(t, uint64(1), snapshot.Counters["polymarket.alert.ticks"])
	assert.Equal(t, 4.0, snapshot.Gauges["polymarket.trade.active_orders"])

	metrics.IncCounter(services.MetricTicks)
	assert.Equal(t, uint64(2), snapshot.Counters["polymarket.trade.ticks"])
	assert.Equal(t, uint64(1), metrics.Snapshot().Counters["ticks"])
}
