package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderSide string

const OrderSideBuy = OrderSide("buy")

type OrderStatus string

const (
	OrderStatusActive    = OrderStatus("active")
	OrderStatusExecuted  = OrderStatus("executed")
	OrderStatusFailed    = OrderStatus("failed")
	OrderStatusCancelled = OrderStatus("cancelled")
)

// IsTerminal reports whether no further ticks may run for the status.
func (status OrderStatus) IsTerminal() bool {
	return status == OrderStatusExecuted || status == OrderStatusFailed || status == OrderStatusCancelled
}

func (status OrderStatus) IsValid() bool {
	return status == OrderStatusActive || status.IsTerminal()
}

// OrderAction selects what happens when the trigger fires.
type OrderAction string

const (
	OrderActionTrade = OrderAction("trade")
	OrderActionAlert = OrderAction("alert")
)

func (action OrderAction) IsValid() bool {
	return action == OrderActionTrade || action == OrderActionAlert
}

type Order struct {
	ID               string          `json:"id" gorm:"primaryKey;size:36"`
	UserID           string          `json:"user_id" gorm:"index;not null"`
	Venue            string          `json:"venue" gorm:"index;not null"`
	Action           OrderAction     `json:"action" gorm:"not null"`
	Market           string          `json:"market" gorm:"not null"`
	Trigger          Trigger         `json:"trigger" gorm:"embedded;embeddedPrefix:trigger_"`
	ThresholdPercent float64         `json:"threshold_percent" gorm:"not null"`
	Side             OrderSide       `json:"side" gorm:"not null"`
	Amount           decimal.Decimal `json:"amount" gorm:"type:numeric"`
	Status           OrderStatus     `json:"status" gorm:"index;not null"`
	CreatedAt        time.Time       `json:"created_at"`
	StatusChangedAt  time.Time       `json:"status_changed_at"`
}

// Key identifies the baseline the order is measured against.
func (order *Order) Key() PriceKey {
	return PriceKey{Market: order.Market, Outcome: order.Trigger.Outcome}
}

// OrderFilter narrows ListActiveOrders. Empty fields match everything.
type OrderFilter struct {
	Venue  string
	Action OrderAction
}

type ExecutionStatus string

const (
	ExecutionSuccess = ExecutionStatus("success")
	ExecutionFailure = ExecutionStatus("failure")
	// ExecutionInterrupted means the caller's context ended before the retries were used up.
	// The order has not failed and is picked up again on the next run.
	ExecutionInterrupted = ExecutionStatus("interrupted")
)

type ExecutionResult struct {
	Status         ExecutionStatus
	Attempts       int
	ExecutedAmount *decimal.Decimal
	OrderRef       string
	Error          string
}

// TradeRequest is one attempt handed to a trade executor.
type TradeRequest struct {
	OrderID string          `json:"order_id"`
	Market  string          `json:"market"`
	Outcome Outcome         `json:"outcome"`
	Side    OrderSide       `json:"side"`
	Amount  decimal.Decimal `json:"amount"`
}

type TradeResponse struct {
	Success      bool             `json:"success"`
	FilledAmount *decimal.Decimal `json:"filled_amount,omitempty"`
	Reference    string           `json:"reference,omitempty"`
	Error        string           `json:"error,omitempty"`
}
