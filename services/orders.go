package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/legendiguess/pumpdump-trade-bot/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidOrder = errors.New("invalid order")
	ErrNotOwner     = errors.New("order belongs to another user")
)

type ordersStorage interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListOrders(ctx context.Context, status domain.OrderStatus, filter domain.OrderFilter) ([]domain.Order, error)
	TransitionOrderStatus(ctx context.Context, id string, from domain.OrderStatus, to domain.OrderStatus) (bool, error)
}

// NewOrder is what a user supplies to create an order.
type NewOrder struct {
	UserID           string
	Venue            string
	Action           domain.OrderAction
	Market           string
	Trigger          domain.Trigger
	ThresholdPercent float64
	Amount           decimal.Decimal
}

type OrdersService struct {
	storage ordersStorage
	venues  map[string]bool
}

func NewOrdersService(storage ordersStorage, venues []string) *OrdersService {
	known := make(map[string]bool, len(venues))
	for _, venue := range venues {
		known[venue] = true
	}
	return &OrdersService{storage: storage, venues: known}
}

// Create validates newOrder and stores it as an active buy order.
func (ordersService *OrdersService) Create(ctx context.Context, newOrder NewOrder) (domain.Order, error) {
	if newOrder.Action == "" {
		newOrder.Action = domain.OrderActionTrade
	}
	if err := ordersService.validate(newOrder); err != nil {
		return domain.Order{}, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}

	order := domain.Order{
		UserID:           strings.TrimSpace(newOrder.UserID),
		Venue:            newOrder.Venue,
		Action:           newOrder.Action,
		Market:           strings.TrimSpace(newOrder.Market),
		Trigger:          newOrder.Trigger,
		ThresholdPercent: newOrder.ThresholdPercent,
		Side:             domain.OrderSideBuy,
		Amount:           newOrder.Amount,
	}
	if err := ordersService.storage.CreateOrder(ctx, &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (ordersService *OrdersService) validate(newOrder NewOrder) error {
	if strings.TrimSpace(newOrder.UserID) == "" {
		return errors.New("user id is required")
	}
	if !ordersService.venues[newOrder.Venue] {
		return fmt.Errorf("unknown venue %q", newOrder.Venue)
	}
	if !newOrder.Action.IsValid() {
		return fmt.Errorf("unknown action %q", newOrder.Action)
	}
	if strings.TrimSpace(newOrder.Market) == "" {
		return errors.New("market is required")
	}
	if err := newOrder.Trigger.Validate(); err != nil {
		return err
	}
	if err := domain.ValidateThreshold(newOrder.ThresholdPercent); err != nil {
		return err
	}
	if newOrder.Action == domain.OrderActionTrade && !newOrder.Amount.GreaterThan(decimal.Zero) {
		return errors.New("amount must be > 0")
	}
	return nil
}

func (ordersService *OrdersService) Get(ctx context.Context, id string) (domain.Order, error) {
	return ordersService.storage.GetOrder(ctx, id)
}

func (ordersService *OrdersService) List(ctx context.Context, status domain.OrderStatus, filter domain.OrderFilter) ([]domain.Order, error) {
	return ordersService.storage.ListOrders(ctx, status, filter)
}

// Cancel moves an active order to cancelled. A non-empty ownerID must match the order owner.
// An in-flight tick for the order is not interrupted; its terminal write is skipped instead.
func (ordersService *OrdersService) Cancel(ctx context.Context, id string, ownerID string) (domain.Order, error) {
	order, err := ordersService.storage.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if ownerID != "" && order.UserID != ownerID {
		return domain.Order{}, fmt.Errorf("%w: %s", ErrNotOwner, id)
	}

	changed, err := ordersService.storage.TransitionOrderStatus(ctx, id, domain.OrderStatusActive, domain.OrderStatusCancelled)
	if err != nil {
		return domain.Order{}, err
	}
	if !changed {
		return domain.Order{}, fmt.Errorf("%w: %s", ErrOrderNotActive, id)
	}

	return ordersService.storage.GetOrder(ctx, id)
}
