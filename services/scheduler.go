package services

import (
	"context"
	"fmt"
	"time"

	"github.com/legendiguess/pumpdump-trade-bot/domain"
	log "github.com/sirupsen/logrus"
)

type activeOrdersLoader interface {
	ListActiveOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
}

type orderTicker interface {
	Tick(ctx context.Context, order domain.Order) (domain.OrderStatus, error)
}

// Scheduler polls the active orders matching its filter at a fixed interval.
// Cycles never overlap: the next one starts interval after the previous one finished.
type Scheduler struct {
	name     string
	loader   activeOrdersLoader
	ticker   orderTicker
	filter   domain.OrderFilter
	interval time.Duration
	clock    Clock
	metrics  Metrics
	logger   log.FieldLogger
}

func NewScheduler(name string, loader activeOrdersLoader, ticker orderTicker, filter domain.OrderFilter, interval time.Duration, clock Clock, metrics Metrics, logger log.FieldLogger) *Scheduler {
	if metrics == nil {
		metrics = nopMetrics{}
	}

	return &Scheduler{
		name:     name,
		loader:   loader,
		ticker:   ticker,
		filter:   filter,
		interval: interval,
		clock:    clock,
		metrics:  metrics,
		logger:   logger.WithField("scheduler", name),
	}
}

// Run polls until ctx is cancelled. Errors never stop the loop.
func (scheduler *Scheduler) Run(ctx context.Context) error {
	scheduler.logger.Infof("Scheduler started, polling every %s", scheduler.interval)

	for {
		if err := scheduler.RunCycle(ctx); err != nil {
			scheduler.metrics.IncCounter(MetricCycleErrors)
			scheduler.logger.WithError(err).Error("Poll cycle failed")
		}

		if ctx.Err() != nil {
			scheduler.logger.Info("Scheduler stopped")
			return nil
		}
		select {
		case <-ctx.Done():
			scheduler.logger.Info("Scheduler stopped")
			return nil
		case <-scheduler.clock.After(scheduler.interval):
		}
	}
}

// RunCycle loads the active orders and ticks each of them once.
func (scheduler *Scheduler) RunCycle(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("poll cycle panic: %v", recovered)
		}
	}()

	scheduler.metrics.IncCounter(MetricCycles)
	defer scheduler.metrics.SetGauge(MetricLastCycle, float64(scheduler.clock.Now().Unix()))

	orders, err := scheduler.loader.ListActiveOrders(ctx, scheduler.filter)
	if err != nil {
		return fmt.Errorf("load active orders: %w", err)
	}
	scheduler.metrics.SetGauge(MetricActiveOrders, float64(len(orders)))

	for _, order := range orders {
		if ctx.Err() != nil {
			return nil
		}
		if order.Status != domain.OrderStatusActive {
			continue
		}
		scheduler.tickOrder(ctx, order)
	}
	return nil
}

func (scheduler *Scheduler) tickOrder(ctx context.Context, order domain.Order) {
	logger := scheduler.logger.WithField("order_id", order.ID)

	defer func() {
		if recovered := recover(); recovered != nil {
			scheduler.metrics.IncCounter(MetricTickErrors)
			logger.Errorf("Tick panicked: %v", recovered)
		}
	}()

	scheduler.metrics.IncCounter(MetricTicks)
	status, err := scheduler.ticker.Tick(ctx, order)
	if err != nil {
		scheduler.metrics.IncCounter(MetricTickErrors)
		logger.WithError(err).Error("Tick failed")
	}

	switch status {
	case domain.OrderStatusExecuted:
		scheduler.metrics.IncCounter(MetricFired)
		scheduler.metrics.IncCounter(MetricExecuted)
	case domain.OrderStatusFailed:
		scheduler.metrics.IncCounter(MetricFired)
		scheduler.metrics.IncCounter(MetricFailed)
	}
}
