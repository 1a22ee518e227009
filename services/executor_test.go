package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/legendiguess/pumpdump-trade-bot/domain"
	"github.com/legendiguess/pumpdump-trade-bot/services"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(tradeExecutor services.TradeExecutor, notifier services.Notifier, clock services.Clock) *services.RetryingExecutor {
	logger, _ := test.NewNullLogger()
	return services.NewRetryingExecutor(tradeExecutor, notifier, services.DefaultExecutorConfig(), clock, logger)
}

func TestAttemptAmount(t *testing.T) {
	minimum := decimal.NewFromInt(1)
	amount := decimal.NewFromInt(10)

	var amounts []string
	for attempt := 1; attempt <= 5; attempt++ {
		amounts = append(amounts, services.AttemptAmount(amount, minimum, attempt).String())
	}

	assert.Equal(t, []string{"10", "5", "2.5", "1.25", "1"}, amounts)
	assert.Equal(t, "1", services.AttemptAmount(decimal.RequireFromString("0.5"), minimum, 1).String())
}

func TestExecuteSucceedsOnThirdAttempt(t *testing.T) {
	filled := decimal.RequireFromString("2.5")
	tradeExecutor := &testTradeExecutor{outcomes: []tradeOutcome{
		{response: domain.TradeResponse{Success: false, Error: "not enough liquidity"}},
		{err: errors.New("allowance too low")},
		{response: domain.TradeResponse{Success: true, FilledAmount: &filled, Reference: "0xref"}},
	}}
	notifier := &testNotifier{}
	clock := newFakeClock()

	result := newTestExecutor(tradeExecutor, notifier, clock).Execute(context.Background(), newActiveOrder("order-1", domain.TriggerPump, 10, 10))

	assert.Equal(t, domain.ExecutionSuccess, result.Status)
	assert.Equal(t, 3, result.Attempts)
	require.NotNil(t, result.ExecutedAmount)
	assert.True(t, filled.Equal(*result.ExecutedAmount))
	assert.Equal(t, "0xref", result.OrderRef)

	assert.Equal(t, []string{"10", "5", "2.5"}, tradeExecutor.Amounts())
	assert.Equal(t, []time.Duration{3 * time.Second, 6 * time.Second}, clock.Delays())

	texts := notifier.Texts()
	require.Len(t, texts, 4)
	assert.Contains(t, texts[0], "10 USDC")
	assert.Contains(t, texts[1], "Retry 2/3")
	assert.Contains(t, texts[1], "5 USDC")
	assert.Contains(t, texts[2], "Retry 3/3")
	assert.Contains(t, texts[2], "2.5 USDC")
	assert.Contains(t, texts[3], "executed")
	assert.Contains(t, texts[3], "attempt 3/3")
}

func TestExecuteExhaustsRetries(t *testing.T) {
	tradeExecutor := &testTradeExecutor{}
	notifier := &testNotifier{}
	clock := newFakeClock()

	result := newTestExecutor(tradeExecutor, notifier, clock).Execute(context.Background(), newActiveOrder("order-2", domain.TriggerPump, 10, 10))

	assert.Equal(t, domain.ExecutionFailure, result.Status)
	assert.Equal(t, 3, result.Attempts)
	assert.Nil(t, result.ExecutedAmount)
	assert.Equal(t, "no liquidity", result.Error)
	assert.Len(t, clock.Delays(), 2)

	texts := notifier.Texts()
	require.Len(t, texts, 4)

	failures := 0
	for _, text := range texts {
		if strings.Contains(text, "failed") {
			failures++
			assert.Contains(t, text, "order-2")
		}
	}
	assert.Equal(t, 1, failures)
}

func TestExecuteSucceedsFirstTimeWithRequestedAmount(t *testing.T) {
	tradeExecutor := &testTradeExecutor{outcomes: []tradeOutcome{{response: domain.TradeResponse{Success: true}}}}
	notifier := &testNotifier{}
	clock := newFakeClock()

	result := newTestExecutor(tradeExecutor, notifier, clock).Execute(context.Background(), newActiveOrder("order-3", domain.TriggerDump, 5, 20))

	assert.Equal(t, domain.ExecutionSuccess, result.Status)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, "20", result.ExecutedAmount.String())
	assert.Empty(t, clock.Delays())
	assert.Len(t, notifier.Texts(), 2)
}

func TestNotificationFailuresDoNotChangeResult(t *testing.T) {
	tradeExecutor := &testTradeExecutor{outcomes: []tradeOutcome{{response: domain.TradeResponse{Success: true}}}}
	notifier := &testNotifier{err: errors.New("telegram down")}
	logger, hook := test.NewNullLogger()

	executor := services.NewRetryingExecutor(tradeExecutor, notifier, services.DefaultExecutorConfig(), newFakeClock(), logger)
	result := executor.Execute(context.Background(), newActiveOrder("order-4", domain.TriggerPump, 10, 10))

	assert.Equal(t, domain.ExecutionSuccess, result.Status)
	assert.Len(t, notifier.Texts(), 2)

	warnings := 0
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Notification not delivered" {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)
}

// cancellingTradeExecutor fails every attempt and cancels the caller's context on the first one.
type cancellingTradeExecutor struct {
	cancel context.CancelFunc
	calls  int
}

func (executor *cancellingTradeExecutor) PlaceOrder(ctx context.Context, request domain.TradeRequest) (domain.TradeResponse, error) {
	executor.calls++
	executor.cancel()
	return domain.TradeResponse{Error: "not enough liquidity"}, nil
}

// stalledClock never fires and runs onAfter when a delay is requested.
type stalledClock struct {
	onAfter func()
}

func (clock *stalledClock) After(d time.Duration) <-chan time.Time {
	if clock.onAfter != nil {
		clock.onAfter()
	}
	return make(chan time.Time)
}

func (clock *stalledClock) Now() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func TestExecuteInterruptedAfterAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tradeExecutor := &cancellingTradeExecutor{cancel: cancel}
	notifier := &testNotifier{}

	result := newTestExecutor(tradeExecutor, notifier, &stalledClock{}).Execute(ctx, newActiveOrder("order-5", domain.TriggerPump, 10, 10))

	assert.Equal(t, domain.ExecutionInterrupted, result.Status)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, tradeExecutor.calls)
	assert.Contains(t, result.Error, "not enough liquidity; retries interrupted")

	texts := notifier.Texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "triggered")
}

func TestExecuteInterruptedDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tradeExecutor := &testTradeExecutor{}
	notifier := &testNotifier{}

	result := newTestExecutor(tradeExecutor, notifier, &stalledClock{onAfter: cancel}).Execute(ctx, newActiveOrder("order-5", domain.TriggerPump, 10, 10))

	assert.Equal(t, domain.ExecutionInterrupted, result.Status)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, []string{"10"}, tradeExecutor.Amounts())
	for _, text := range notifier.Texts() {
		assert.NotContains(t, text, "failed after")
	}
}

// blockingTradeExecutor holds every request until its context ends.
type blockingTradeExecutor struct {
	calls int
}

func (executor *blockingTradeExecutor) PlaceOrder(ctx context.Context, request domain.TradeRequest) (domain.TradeResponse, error) {
	executor.calls++
	<-ctx.Done()
	return domain.TradeResponse{}, ctx.Err()
}

func TestExecuteTradeTimeoutCountsAsFailedAttempt(t *testing.T) {
	logger, _ := test.NewNullLogger()
	tradeExecutor := &blockingTradeExecutor{}
	notifier := &testNotifier{}
	config := services.ExecutorConfig{
		MaxRetries:   2,
		BaseDelay:    time.Second,
		MinAmount:    decimal.NewFromInt(1),
		TradeTimeout: 20 * time.Millisecond,
	}

	result := services.NewRetryingExecutor(tradeExecutor, notifier, config, newFakeClock(), logger).
		Execute(context.Background(), newActiveOrder("order-7", domain.TriggerPump, 10, 10))

	assert.Equal(t, domain.ExecutionFailure, result.Status)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, 2, tradeExecutor.calls)
	assert.Equal(t, "trade timed out", result.Error)

	texts := notifier.Texts()
	require.NotEmpty(t, texts)
	assert.Equal(t, "❌ Order order-7 failed after 2 attempts: trade timed out", texts[len(texts)-1])
}

func TestPaperExecutorRejectsAboveMaxFill(t *testing.T) {
	paperExecutor := services.NewPaperExecutor(decimal.NewFromInt(3))
	notifier := &testNotifier{}

	result := newTestExecutor(paperExecutor, notifier, newFakeClock()).Execute(context.Background(), newActiveOrder("order-6", domain.TriggerPump, 10, 10))

	assert.Equal(t, domain.ExecutionSuccess, result.Status)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, "2.5", result.ExecutedAmount.String())
	assert.NotEmpty(t, result.OrderRef)

	fills := paperExecutor.Fills()
	require.Len(t, fills, 1)
	assert.Equal(t, "order-6", fills[0].OrderID)
	assert.Equal(t, domain.OutcomeYes, fills[0].Outcome)
}
