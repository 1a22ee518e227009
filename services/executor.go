package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/legendiguess/pumpdump-trade-bot/domain"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type TradeExecutor interface {
	PlaceOrder(ctx context.Context, request domain.TradeRequest) (domain.TradeResponse, error)
}

// Notifier delivers a text to a user. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, userID string, text string) error
}

type ExecutorConfig struct {
	MaxRetries   int
	BaseDelay    time.Duration
	MinAmount    decimal.Decimal
	TradeTimeout time.Duration
}

func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxRetries:   3,
		BaseDelay:    3 * time.Second,
		MinAmount:    decimal.NewFromInt(1),
		TradeTimeout: 30 * time.Second,
	}
}

// RetryingExecutor places a fired order, halving the amount after every failed attempt.
type RetryingExecutor struct {
	tradeExecutor TradeExecutor
	notifier      Notifier
	config        ExecutorConfig
	clock         Clock
	logger        log.FieldLogger
}

func NewRetryingExecutor(tradeExecutor TradeExecutor, notifier Notifier, config ExecutorConfig, clock Clock, logger log.FieldLogger) *RetryingExecutor {
	defaults := DefaultExecutorConfig()
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.MinAmount.LessThanOrEqual(decimal.Zero) {
		config.MinAmount = defaults.MinAmount
	}
	if config.TradeTimeout <= 0 {
		config.TradeTimeout = defaults.TradeTimeout
	}

	return &RetryingExecutor{
		tradeExecutor: tradeExecutor,
		notifier:      notifier,
		config:        config,
		clock:         clock,
		logger:        logger,
	}
}

// AttemptAmount is amount / 2^(attempt-1), never below minAmount. attempt starts at 1.
func AttemptAmount(amount decimal.Decimal, minAmount decimal.Decimal, attempt int) decimal.Decimal {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 63 {
		return minAmount
	}

	reduced := amount.Div(decimal.NewFromInt(int64(1) << (attempt - 1)))
	if reduced.LessThan(minAmount) {
		return minAmount
	}
	return reduced
}

// Execute runs the attempt sequence for order and sends exactly one terminal notification.
// When ctx ends between attempts the sequence stops with ExecutionInterrupted and no
// terminal notification is sent.
func (executor *RetryingExecutor) Execute(ctx context.Context, order domain.Order) domain.ExecutionResult {
	logger := executor.logger.WithFields(log.Fields{"order_id": order.ID, "market": order.Market})
	notifyCtx := context.WithoutCancel(ctx)

	attempts := 0
	lastError := "no attempt made"

	for attempt := 1; attempt <= executor.config.MaxRetries; attempt++ {
		amount := AttemptAmount(order.Amount, executor.config.MinAmount, attempt)

		if attempt == 1 {
			executor.notify(notifyCtx, logger, order.UserID, fmt.Sprintf("🚀 Order %s triggered (%s %.2f%%). Buying %s %s for %s USDC",
				order.ID, order.Trigger.Kind, order.ThresholdPercent, order.Trigger.Outcome, order.Market, amount.String()))
		} else {
			executor.notify(notifyCtx, logger, order.UserID, fmt.Sprintf("🔁 Retry %d/%d for order %s with reduced amount %s USDC",
				attempt, executor.config.MaxRetries, order.ID, amount.String()))
		}

		attempts = attempt
		response, err := executor.place(ctx, order, amount)
		if err == nil && response.Success {
			filled := amount
			if response.FilledAmount != nil {
				filled = *response.FilledAmount
			}

			logger.WithFields(log.Fields{"attempt": attempt, "amount": filled.String()}).Info("Order executed")
			executor.notify(notifyCtx, logger, order.UserID, fmt.Sprintf("✅ Order %s executed: %s USDC filled on attempt %d/%d",
				order.ID, filled.String(), attempt, executor.config.MaxRetries))

			return domain.ExecutionResult{
				Status:         domain.ExecutionSuccess,
				Attempts:       attempt,
				ExecutedAmount: &filled,
				OrderRef:       response.Reference,
			}
		}

		lastError = attemptError(response, err)
		logger.WithFields(log.Fields{"attempt": attempt, "amount": amount.String()}).Warnf("Trade attempt failed: %s", lastError)

		if err := ctx.Err(); err != nil {
			return executor.interrupted(logger, attempts, lastError, err)
		}
		if attempt < executor.config.MaxRetries {
			if err := executor.sleep(ctx, executor.config.BaseDelay*time.Duration(attempt)); err != nil {
				return executor.interrupted(logger, attempts, lastError, err)
			}
		}
	}

	executor.notify(notifyCtx, logger, order.UserID, fmt.Sprintf("❌ Order %s failed after %d attempts: %s", order.ID, attempts, lastError))

	return domain.ExecutionResult{
		Status:   domain.ExecutionFailure,
		Attempts: attempts,
		Error:    lastError,
	}
}

func (executor *RetryingExecutor) interrupted(logger log.FieldLogger, attempts int, lastError string, err error) domain.ExecutionResult {
	logger.WithField("attempts", attempts).Warnf("Retries interrupted: %v", err)

	return domain.ExecutionResult{
		Status:   domain.ExecutionInterrupted,
		Attempts: attempts,
		Error:    fmt.Sprintf("%s; retries interrupted: %v", lastError, err),
	}
}

func (executor *RetryingExecutor) place(ctx context.Context, order domain.Order, amount decimal.Decimal) (domain.TradeResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, executor.config.TradeTimeout)
	defer cancel()

	return executor.tradeExecutor.PlaceOrder(ctx, domain.TradeRequest{
		OrderID: order.ID,
		Market:  order.Market,
		Outcome: order.Trigger.Outcome,
		Side:    order.Side,
		Amount:  amount,
	})
}

func (executor *RetryingExecutor) sleep(ctx context.Context, delay time.Duration) error {
	if err := ctx.Err(); err != nil || delay <= 0 {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-executor.clock.After(delay):
		return nil
	}
}

func (executor *RetryingExecutor) notify(ctx context.Context, logger log.FieldLogger, userID string, text string) {
	if err := executor.notifier.Notify(ctx, userID, text); err != nil {
		logger.WithError(err).Warn("Notification not delivered")
	}
}

func attemptError(response domain.TradeResponse, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "trade timed out"
	case err != nil:
		return err.Error()
	case response.Error != "":
		return response.Error
	default:
		return "trade rejected"
	}
}
