package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/legendiguess/pumpdump-trade-bot/domain"
	"github.com/shopspring/decimal"
)

type fakeClock struct {
	mutex  sync.Mutex
	now    time.Time
	delays []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

// After fires immediately and advances the clock.
func (clock *fakeClock) After(d time.Duration) <-chan time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()

	clock.delays = append(clock.delays, d)
	clock.now = clock.now.Add(d)

	fired := make(chan time.Time, 1)
	fired <- clock.now
	return fired
}

func (clock *fakeClock) Now() time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return clock.now
}

func (clock *fakeClock) Advance(d time.Duration) {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	clock.now = clock.now.Add(d)
}

func (clock *fakeClock) Delays() []time.Duration {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return append([]time.Duration(nil), clock.delays...)
}

type sentMessage struct {
	userID string
	text   string
}

type testNotifier struct {
	mutex    sync.Mutex
	messages []sentMessage
	err      error
}

func (notifier *testNotifier) Notify(ctx context.Context, userID string, text string) error {
	notifier.mutex.Lock()
	defer notifier.mutex.Unlock()

	notifier.messages = append(notifier.messages, sentMessage{userID: userID, text: text})
	return notifier.err
}

func (notifier *testNotifier) Texts() []string {
	notifier.mutex.Lock()
	defer notifier.mutex.Unlock()

	texts := make([]string, 0, len(notifier.messages))
	for _, message := range notifier.messages {
		texts = append(texts, message.text)
	}
	return texts
}

type tradeOutcome struct {
	response domain.TradeResponse
	err      error
}

// testTradeExecutor answers with the scripted outcomes in order and fails once they run out.
type testTradeExecutor struct {
	mutex    sync.Mutex
	outcomes []tradeOutcome
	requests []domain.TradeRequest
}

func (executor *testTradeExecutor) PlaceOrder(ctx context.Context, request domain.TradeRequest) (domain.TradeResponse, error) {
	executor.mutex.Lock()
	defer executor.mutex.Unlock()

	executor.requests = append(executor.requests, request)
	if len(executor.outcomes) == 0 {
		return domain.TradeResponse{}, errors.New("no liquidity")
	}

	outcome := executor.outcomes[0]
	executor.outcomes = executor.outcomes[1:]
	return outcome.response, outcome.err
}

func (executor *testTradeExecutor) Amounts() []string {
	executor.mutex.Lock()
	defer executor.mutex.Unlock()

	amounts := make([]string, 0, len(executor.requests))
	for _, request := range executor.requests {
		amounts = append(amounts, request.Amount.String())
	}
	return amounts
}

type quote struct {
	price float64
	ok    bool
	err   error
}

// testQuoteSource returns the scripted quotes in order and repeats the last one.
type testQuoteSource struct {
	mutex  sync.Mutex
	quotes []quote
	calls  int
}

func pricesOf(prices ...float64) *testQuoteSource {
	quoteSource := &testQuoteSource{}
	for _, price := range prices {
		quoteSource.quotes = append(quoteSource.quotes, quote{price: price, ok: true})
	}
	return quoteSource
}

func (quoteSource *testQuoteSource) GetPrice(ctx context.Context, market string, outcome domain.Outcome) (float64, bool, error) {
	quoteSource.mutex.Lock()
	defer quoteSource.mutex.Unlock()

	if len(quoteSource.quotes) == 0 {
		return 0, false, nil
	}

	index := quoteSource.calls
	if index >= len(quoteSource.quotes) {
		index = len(quoteSource.quotes) - 1
	}
	quoteSource.calls++

	current := quoteSource.quotes[index]
	return current.price, current.ok, current.err
}

type testOrderStore struct {
	mutex  sync.Mutex
	orders map[string]domain.Order
	order  []string
	writes int
}

func newTestOrderStore(orders ...domain.Order) *testOrderStore {
	store := &testOrderStore{orders: make(map[string]domain.Order)}
	for _, order := range orders {
		store.orders[order.ID] = order
		store.order = append(store.order, order.ID)
	}
	return store
}

func (store *testOrderStore) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	order, ok := store.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("order %s not found", id)
	}
	return order, nil
}

func (store *testOrderStore) ListActiveOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	var orders []domain.Order
	for _, id := range store.order {
		order := store.orders[id]
		if order.Status != domain.OrderStatusActive {
			continue
		}
		if filter.Venue != "" && order.Venue != filter.Venue {
			continue
		}
		if filter.Action != "" && order.Action != filter.Action {
			continue
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (store *testOrderStore) TransitionOrderStatus(ctx context.Context, id string, from domain.OrderStatus, to domain.OrderStatus) (bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	order, ok := store.orders[id]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	store.orders[id] = order
	store.writes++
	return true, nil
}

func (store *testOrderStore) SetStatus(id string, status domain.OrderStatus) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	order := store.orders[id]
	order.Status = status
	store.orders[id] = order
}

func (store *testOrderStore) Status(id string) domain.OrderStatus {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.orders[id].Status
}

func newActiveOrder(id string, kind domain.TriggerKind, thresholdPercent float64, amount int64) domain.Order {
	return domain.Order{
		ID:               id,
		UserID:           "100",
		Venue:            "polymarket",
		Action:           domain.OrderActionTrade,
		Market:           "0xmarket",
		Trigger:          domain.Trigger{Kind: kind, Outcome: domain.OutcomeYes},
		ThresholdPercent: thresholdPercent,
		Side:             domain.OrderSideBuy,
		Amount:           decimal.NewFromInt(amount),
		Status:           domain.OrderStatusActive,
	}
}
