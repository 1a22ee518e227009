package services

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/legendiguess/pumpdump-trade-bot/domain"
	"nhooyr.io/websocket"
)

type websocketClientLogger interface {
	Debugf(format string, args ...interface{})
	Printf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// WebsocketClient keeps a subscription to the CLOB market channel alive and
// forwards every market event it receives.
type WebsocketClient struct {
	url    string
	events chan domain.MarketEvent
	logger websocketClientLogger

	mutex         sync.Mutex
	connection    *websocket.Conn
	connectionCtx context.Context
	assetIDs      map[string]bool
}

func NewWebsocketClient(url string, websocketClientLogger websocketClientLogger) *WebsocketClient {
	return &WebsocketClient{
		url:      url,
		events:   make(chan domain.MarketEvent, 256),
		logger:   websocketClientLogger,
		assetIDs: make(map[string]bool),
	}
}

func (websocketClient *WebsocketClient) GetEventChannel() <-chan domain.MarketEvent {
	return websocketClient.events
}

// Subscribe adds asset ids to the subscription. Ids are re-sent after every reconnect.
// The write is bound to the connection lifetime, not to ctx: a write cut short by a
// cancelled context closes the shared connection.
func (websocketClient *WebsocketClient) Subscribe(ctx context.Context, assetIDs []string) error {
	websocketClient.mutex.Lock()
	for _, assetID := range assetIDs {
		websocketClient.assetIDs[assetID] = true
	}
	connection, connectionCtx := websocketClient.connection, websocketClient.connectionCtx
	websocketClient.mutex.Unlock()

	if connection == nil {
		return nil
	}
	return websocketClient.writeSubscription(connectionCtx, connection, assetIDs)
}

func (websocketClient *WebsocketClient) writeSubscription(ctx context.Context, connection *websocket.Conn, assetIDs []string) error {
	if len(assetIDs) == 0 {
		return nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"type":       "market",
		"assets_ids": assetIDs,
	})
	if err != nil {
		return err
	}

	if err := connection.Write(ctx, websocket.MessageText, payload); err != nil {
		return err
	}
	websocketClient.logger.Printf("Subscribed to %d market assets", len(assetIDs))
	return nil
}

// Run connects, reads and reconnects until ctx is cancelled. The event channel is closed on return.
func (websocketClient *WebsocketClient) Run(ctx context.Context) error {
	defer close(websocketClient.events)

	for {
		connection, ok := websocketClient.dial(ctx)
		if !ok {
			return nil
		}
		websocketClient.logger.Debugf("Websocket connection established")

		websocketClient.serve(ctx, connection)
		connection.Close(websocket.StatusNormalClosure, "")

		if ctx.Err() != nil {
			return nil
		}
		websocketClient.logger.Warnf("Websocket connection lost, reconnecting")
	}
}

func (websocketClient *WebsocketClient) dial(ctx context.Context) (*websocket.Conn, bool) {
	for {
		connection, _, err := websocket.Dial(ctx, websocketClient.url, nil)
		if err == nil {
			connection.SetReadLimit(1 << 20)
			return connection, true
		}

		websocketClient.logger.Debugf("Attempting to establish a websocket connection...")
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(time.Second):
		}
	}
}

func (websocketClient *WebsocketClient) serve(ctx context.Context, connection *websocket.Conn) {
	connectionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	websocketClient.mutex.Lock()
	websocketClient.connection = connection
	websocketClient.connectionCtx = connectionCtx
	assetIDs := make([]string, 0, len(websocketClient.assetIDs))
	for assetID := range websocketClient.assetIDs {
		assetIDs = append(assetIDs, assetID)
	}
	websocketClient.mutex.Unlock()

	defer func() {
		websocketClient.mutex.Lock()
		websocketClient.connection = nil
		websocketClient.connectionCtx = nil
		websocketClient.mutex.Unlock()
	}()

	if err := websocketClient.writeSubscription(connectionCtx, connection, assetIDs); err != nil {
		websocketClient.logger.Warnf("Resubscribe failed: %v", err)
		return
	}

	// Ping every 30 sec
	go func() {
		for {
			select {
			case <-connectionCtx.Done():
				return
			case <-time.After(30 * time.Second):
				connection.Ping(connectionCtx)
			}
		}
	}()

	for {
		_, message, err := connection.Read(connectionCtx)
		if err != nil {
			return
		}

		for _, event := range decodeMarketEvents(message) {
			select {
			case websocketClient.events <- event:
			case <-connectionCtx.Done():
				return
			}
		}
	}
}

// decodeMarketEvents accepts a single event object or an array of them.
func decodeMarketEvents(message []byte) []domain.MarketEvent {
	message = bytes.TrimSpace(message)
	if len(message) == 0 {
		return nil
	}

	if message[0] == '[' {
		var events []domain.MarketEvent
		if err := json.Unmarshal(message, &events); err != nil {
			return nil
		}
		return events
	}

	var event domain.MarketEvent
	if err := json.Unmarshal(message, &event); err != nil || event.EventType == "" {
		return nil
	}
	return []domain.MarketEvent{event}
}
