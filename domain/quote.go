package domain

import "fmt"

// PriceKey identifies one outcome of one market.
type PriceKey struct {
	Market  string
	Outcome Outcome
}

func (key PriceKey) String() string {
	return fmt.Sprintf("%s/%s", key.Market, key.Outcome)
}

// MarketEvent is a message from the market websocket channel.
type MarketEvent struct {
	EventType string        `json:"event_type"`
	AssetID   string        `json:"asset_id"`
	Market    string        `json:"market"`
	Price     string        `json:"price"`
	Bids      []BookLevel   `json:"bids"`
	Asks      []BookLevel   `json:"asks"`
	Changes   []PriceChange `json:"price_changes"`
	Timestamp string        `json:"timestamp"`
}

type PriceChange struct {
	AssetID string `json:"asset_id"`
	Price   string `json:"price"`
	BestBid string `json:"best_bid"`
	BestAsk string `json:"best_ask"`
}

type BookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}
