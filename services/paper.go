package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/legendiguess/pumpdump-trade-bot/domain"
	"github.com/shopspring/decimal"
)

// PaperExecutor fills trades without touching a venue. Requests above
// maxFill are rejected, which imitates a thin order book.
type PaperExecutor struct {
	maxFill decimal.Decimal

	mutex sync.Mutex
	fills []domain.TradeRequest
}

// NewPaperExecutor fills everything when maxFill is zero.
func NewPaperExecutor(maxFill decimal.Decimal) *PaperExecutor {
	return &PaperExecutor{maxFill: maxFill}
}

func (paperExecutor *PaperExecutor) PlaceOrder(ctx context.Context, request domain.TradeRequest) (domain.TradeResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.TradeResponse{}, err
	}
	if paperExecutor.maxFill.GreaterThan(decimal.Zero) && request.Amount.GreaterThan(paperExecutor.maxFill) {
		return domain.TradeResponse{Success: false, Error: "not enough liquidity"}, nil
	}

	paperExecutor.mutex.Lock()
	paperExecutor.fills = append(paperExecutor.fills, request)
	paperExecutor.mutex.Unlock()

	filled := request.Amount
	return domain.TradeResponse{Success: true, FilledAmount: &filled, Reference: "paper-" + uuid.NewString()}, nil
}

func (paperExecutor *PaperExecutor) Fills() []domain.TradeRequest {
	paperExecutor.mutex.Lock()
	defer paperExecutor.mutex.Unlock()

	fills := make([]domain.TradeRequest, len(paperExecutor.fills))
	copy(fills, paperExecutor.fills)
	return fills
}
