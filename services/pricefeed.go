package services

import (
	"context"
	"sync"
	"time"

	"github.com/legendiguess/pumpdump-trade-bot/domain"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type tokenResolver interface {
	TokenID(ctx context.Context, market string, outcome domain.Outcome) (string, bool, error)
}

type assetSubscriber interface {
	Subscribe(ctx context.Context, assetIDs []string) error
}

type pricePoint struct {
	price     float64
	updatedAt time.Time
}

// PriceFeed is a QuoteSource served from streamed market events.
// A token is subscribed the first time it is asked for, so the first quote for it is always unavailable.
type PriceFeed struct {
	resolver   tokenResolver
	subscriber assetSubscriber
	maxAge     time.Duration
	clock      Clock
	logger     log.FieldLogger

	mutex      sync.RWMutex
	prices     map[string]pricePoint
	subscribed map[string]bool
}

func NewPriceFeed(resolver tokenResolver, subscriber assetSubscriber, maxAge time.Duration, clock Clock, logger log.FieldLogger) *PriceFeed {
	return &PriceFeed{
		resolver:   resolver,
		subscriber: subscriber,
		maxAge:     maxAge,
		clock:      clock,
		logger:     logger,
		prices:     make(map[string]pricePoint),
		subscribed: make(map[string]bool),
	}
}

// Consume applies events until the channel closes or ctx is done.
func (priceFeed *PriceFeed) Consume(ctx context.Context, events <-chan domain.MarketEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			priceFeed.Apply(event)
		}
	}
}

// Apply updates the last known price from one market event.
func (priceFeed *PriceFeed) Apply(event domain.MarketEvent) {
	switch event.EventType {
	case "book":
		if price, ok := bookMidpoint(event.Bids, event.Asks); ok {
			priceFeed.set(event.AssetID, price)
		}
	case "price_change":
		if len(event.Changes) == 0 {
			if price, ok := parsePrice(event.Price); ok {
				priceFeed.set(event.AssetID, price)
			}
			return
		}
		for _, change := range event.Changes {
			bid, bidOK := parseDecimal(change.BestBid)
			ask, askOK := parseDecimal(change.BestAsk)
			if bidOK && askOK {
				priceFeed.set(change.AssetID, bid.Add(ask).Div(decimal.NewFromInt(2)).InexactFloat64())
			} else if price, ok := parsePrice(change.Price); ok {
				priceFeed.set(change.AssetID, price)
			}
		}
	case "last_trade_price":
		if price, ok := parsePrice(event.Price); ok {
			priceFeed.set(event.AssetID, price)
		}
	}
}

func (priceFeed *PriceFeed) set(assetID string, price float64) {
	if assetID == "" {
		return
	}

	priceFeed.mutex.Lock()
	defer priceFeed.mutex.Unlock()
	priceFeed.prices[assetID] = pricePoint{price: price, updatedAt: priceFeed.clock.Now()}
}

func (priceFeed *PriceFeed) GetPrice(ctx context.Context, market string, outcome domain.Outcome) (float64, bool, error) {
	tokenID, ok, err := priceFeed.resolver.TokenID(ctx, market, outcome)
	if err != nil || !ok {
		return 0, false, err
	}

	priceFeed.mutex.RLock()
	point, found := priceFeed.prices[tokenID]
	subscribed := priceFeed.subscribed[tokenID]
	priceFeed.mutex.RUnlock()

	if !subscribed {
		if err := priceFeed.subscriber.Subscribe(ctx, []string{tokenID}); err != nil {
			return 0, false, err
		}
		priceFeed.mutex.Lock()
		priceFeed.subscribed[tokenID] = true
		priceFeed.mutex.Unlock()
		priceFeed.logger.WithField("token_id", tokenID).Debug("Subscribed to price updates")
	}

	if !found || priceFeed.clock.Now().Sub(point.updatedAt) > priceFeed.maxAge {
		return 0, false, nil
	}
	return point.price, true, nil
}

func bookMidpoint(bids []domain.BookLevel, asks []domain.BookLevel) (float64, bool) {
	var bestBid, bestAsk decimal.Decimal
	bidFound, askFound := false, false

	for _, level := range bids {
		if price, ok := parseDecimal(level.Price); ok && (!bidFound || price.GreaterThan(bestBid)) {
			bestBid, bidFound = price, true
		}
	}
	for _, level := range asks {
		if price, ok := parseDecimal(level.Price); ok && (!askFound || price.LessThan(bestAsk)) {
			bestAsk, askFound = price, true
		}
	}

	if !bidFound || !askFound {
		return 0, false
	}
	return bestBid.Add(bestAsk).Div(decimal.NewFromInt(2)).InexactFloat64(), true
}

func parseDecimal(value string) (decimal.Decimal, bool) {
	if value == "" {
		return decimal.Zero, false
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, false
	}
	return parsed, true
}

func parsePrice(value string) (float64, bool) {
	parsed, ok := parseDecimal(value)
	if !ok {
		return 0, false
	}
	return parsed.InexactFloat64(), true
}
