package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/legendiguess/pumpdump-trade-bot/domain"
	log "github.com/sirupsen/logrus"
)

var ErrOrderNotActive = errors.New("order is not active")

// QuoteSource returns the probability price of one outcome.
// ok is false when there is simply no data; err is reserved for transport failures.
type QuoteSource interface {
	GetPrice(ctx context.Context, market string, outcome domain.Outcome) (price float64, ok bool, err error)
}

type OrderStore interface {
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListActiveOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	TransitionOrderStatus(ctx context.Context, id string, from domain.OrderStatus, to domain.OrderStatus) (bool, error)
}

type orderExecutor interface {
	Execute(ctx context.Context, order domain.Order) domain.ExecutionResult
}

// TradeBot drives the lifecycle of active orders, one tick at a time.
type TradeBot struct {
	quoteSource  QuoteSource
	baselines    *BaselineTracker
	executor     orderExecutor
	notifier     Notifier
	store        OrderStore
	quoteTimeout time.Duration
	logger       log.FieldLogger
}

func NewTradeBot(quoteSource QuoteSource, baselines *BaselineTracker, executor orderExecutor, notifier Notifier, store OrderStore, quoteTimeout time.Duration, logger log.FieldLogger) *TradeBot {
	if quoteTimeout <= 0 {
		quoteTimeout = 10 * time.Second
	}

	return &TradeBot{
		quoteSource:  quoteSource,
		baselines:    baselines,
		executor:     executor,
		notifier:     notifier,
		store:        store,
		quoteTimeout: quoteTimeout,
		logger:       logger,
	}
}

// Tick evaluates order once and returns its status afterwards.
// Missing quotes and unfired triggers leave the order active, as does an execution
// interrupted by ctx.
func (tradeBot *TradeBot) Tick(ctx context.Context, order domain.Order) (domain.OrderStatus, error) {
	if order.Status != domain.OrderStatusActive {
		return order.Status, fmt.Errorf("%w: %s is %s", ErrOrderNotActive, order.ID, order.Status)
	}

	logger := tradeBot.logger.WithFields(log.Fields{"order_id": order.ID, "market": order.Market, "trigger": order.Trigger.String()})
	key := order.Key()

	price, ok := tradeBot.quote(ctx, logger, key)
	if !ok {
		return domain.OrderStatusActive, nil
	}

	change, defined := tradeBot.baselines.Observe(key, price)
	if !TriggerFired(order.Trigger.Kind, order.ThresholdPercent, change, defined) {
		return domain.OrderStatusActive, nil
	}
	defer tradeBot.baselines.Reset(key)

	logger.WithFields(log.Fields{"change_percent": change, "price": price}).Info("Trigger fired")

	status := domain.OrderStatusExecuted
	switch order.Action {
	case domain.OrderActionAlert:
		status = tradeBot.alert(ctx, logger, order, change, price)
	default:
		result := tradeBot.executor.Execute(ctx, order)
		switch result.Status {
		case domain.ExecutionSuccess:
		case domain.ExecutionInterrupted:
			logger.WithField("attempts", result.Attempts).Warn("Execution interrupted, order stays active")
			return domain.OrderStatusActive, nil
		default:
			status = domain.OrderStatusFailed
		}
	}

	return tradeBot.finish(context.WithoutCancel(ctx), logger, order, status)
}

func (tradeBot *TradeBot) quote(ctx context.Context, logger log.FieldLogger, key domain.PriceKey) (float64, bool) {
	ctx, cancel := context.WithTimeout(ctx, tradeBot.quoteTimeout)
	defer cancel()

	price, ok, err := tradeBot.quoteSource.GetPrice(ctx, key.Market, key.Outcome)
	if err != nil {
		logger.WithError(err).Debug("Quote unavailable")
		return 0, false
	}
	if !ok || math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return 0, false
	}
	return price, true
}

func (tradeBot *TradeBot) alert(ctx context.Context, logger log.FieldLogger, order domain.Order, change float64, price float64) domain.OrderStatus {
	initial, _, _ := tradeBot.baselines.Baseline(order.Key())
	verb := "pumped"
	if order.Trigger.Kind == domain.TriggerDump {
		verb = "dumped"
	}

	text := fmt.Sprintf("🔔 %s price of %s %s %+.2f%% (%.4f → %.4f)", order.Trigger.Outcome, order.Market, verb, change, initial, price)
	if err := tradeBot.notifier.Notify(context.WithoutCancel(ctx), order.UserID, text); err != nil {
		logger.WithError(err).Warn("Alert not delivered")
		return domain.OrderStatusFailed
	}
	return domain.OrderStatusExecuted
}

// finish writes the terminal status unless the order left the active state meanwhile,
// which happens when the user cancels during execution.
func (tradeBot *TradeBot) finish(ctx context.Context, logger log.FieldLogger, order domain.Order, status domain.OrderStatus) (domain.OrderStatus, error) {
	current, err := tradeBot.store.GetOrder(ctx, order.ID)
	if err != nil {
		return status, fmt.Errorf("reload order %s: %w", order.ID, err)
	}
	if current.Status != domain.OrderStatusActive {
		logger.Warnf("Order became %s during execution, not writing %s", current.Status, status)
		return current.Status, nil
	}

	changed, err := tradeBot.store.TransitionOrderStatus(ctx, order.ID, domain.OrderStatusActive, status)
	if err != nil {
		return status, fmt.Errorf("persist status %s for order %s: %w", status, order.ID, err)
	}
	if !changed {
		logger.Warnf("Order left active state before %s could be written", status)
		current, err = tradeBot.store.GetOrder(ctx, order.ID)
		if err != nil {
			return status, fmt.Errorf("reload order %s: %w", order.ID, err)
		}
		return current.Status, nil
	}

	logger.Infof("Order %s", status)
	return status, nil
}
