package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/legendiguess/pumpdump-trade-bot/domain"
)

var errNotFound = errors.New("not found")

type httpCredentials interface {
	GetTradeGatewayKey() string
}

// HTTPClient talks to the Polymarket CLOB REST API for quotes and to the
// signing gateway for trades.
type HTTPClient struct {
	quoteURL        string
	gatewayURL      string
	httpCredentials httpCredentials
	client          *http.Client

	mutex    sync.Mutex
	tokenIDs map[domain.PriceKey]string
}

func NewHTTPClient(quoteURL string, gatewayURL string, httpCredentials httpCredentials) *HTTPClient {
	return &HTTPClient{
		quoteURL:        strings.TrimRight(quoteURL, "/"),
		gatewayURL:      strings.TrimRight(gatewayURL, "/"),
		httpCredentials: httpCredentials,
		client:          &http.Client{},
		tokenIDs:        make(map[domain.PriceKey]string),
	}
}

type marketResponse struct {
	ConditionID string `json:"condition_id"`
	Tokens      []struct {
		TokenID string `json:"token_id"`
		Outcome string `json:"outcome"`
	} `json:"tokens"`
}

type midpointResponse struct {
	Mid string `json:"mid"`
}

func (httpClient *HTTPClient) sendRequest(ctx context.Context, method string, endpoint string, body interface{}, answer interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	newRequest, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	newRequest.Header.Set("Accept", "application/json")
	if body != nil {
		newRequest.Header.Set("Content-Type", "application/json")
	}
	if key := httpClient.httpCredentials.GetTradeGatewayKey(); key != "" && httpClient.gatewayURL != "" && strings.HasPrefix(endpoint, httpClient.gatewayURL) {
		newRequest.Header.Set("APIKey", key)
	}

	resp, err := httpClient.client.Do(newRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	bytesAnswer, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s %s: status %d: %s", method, endpoint, resp.StatusCode, strings.TrimSpace(string(bytesAnswer)))
	}

	if answer == nil {
		return nil
	}
	return json.Unmarshal(bytesAnswer, answer)
}

// TokenID resolves the CLOB token of one outcome of a market. Results are cached.
func (httpClient *HTTPClient) TokenID(ctx context.Context, market string, outcome domain.Outcome) (string, bool, error) {
	key := domain.PriceKey{Market: market, Outcome: outcome}

	httpClient.mutex.Lock()
	tokenID, ok := httpClient.tokenIDs[key]
	httpClient.mutex.Unlock()
	if ok {
		return tokenID, true, nil
	}

	var answer marketResponse
	err := httpClient.sendRequest(ctx, http.MethodGet, httpClient.quoteURL+"/markets/"+url.PathEscape(market), nil, &answer)
	if errors.Is(err, errNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	httpClient.mutex.Lock()
	defer httpClient.mutex.Unlock()
	for _, token := range answer.Tokens {
		httpClient.tokenIDs[domain.PriceKey{Market: market, Outcome: domain.Outcome(strings.ToUpper(token.Outcome))}] = token.TokenID
	}

	tokenID, ok = httpClient.tokenIDs[key]
	return tokenID, ok, nil
}

// GetPrice returns the order book midpoint of the outcome token.
func (httpClient *HTTPClient) GetPrice(ctx context.Context, market string, outcome domain.Outcome) (float64, bool, error) {
	tokenID, ok, err := httpClient.TokenID(ctx, market, outcome)
	if err != nil || !ok {
		return 0, false, err
	}

	var answer midpointResponse
	err = httpClient.sendRequest(ctx, http.MethodGet, httpClient.quoteURL+"/midpoint?token_id="+url.QueryEscape(tokenID), nil, &answer)
	if errors.Is(err, errNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if answer.Mid == "" {
		return 0, false, nil
	}

	price, err := strconv.ParseFloat(answer.Mid, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse midpoint %q: %w", answer.Mid, err)
	}
	return price, true, nil
}

// PlaceOrder forwards the trade to the gateway, which signs and submits it.
func (httpClient *HTTPClient) PlaceOrder(ctx context.Context, request domain.TradeRequest) (domain.TradeResponse, error) {
	if httpClient.gatewayURL == "" {
		return domain.TradeResponse{}, errors.New("trade gateway is not configured")
	}

	var answer domain.TradeResponse
	if err := httpClient.sendRequest(ctx, http.MethodPost, httpClient.gatewayURL+"/orders", request, &answer); err != nil {
		return domain.TradeResponse{}, err
	}
	return answer, nil
}
