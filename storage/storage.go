package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/legendiguess/pumpdump-trade-bot/domain"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrOrderNotFound = errors.New("order not found")

type Storage struct {
	dataBase *gorm.DB
	now      func() time.Time
}

// Dialector picks the gorm driver for the configured database.
func Dialector(driver string, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "postgres":
		return postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

func New(dialector gorm.Dialector) (*Storage, error) {
	dataBase, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := dataBase.AutoMigrate(&domain.Order{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Storage{dataBase: dataBase, now: time.Now}, nil
}

// CreateOrder assigns the id and timestamps and stores the order as active.
func (storage *Storage) CreateOrder(ctx context.Context, order *domain.Order) error {
	now := storage.now().UTC()

	order.ID = uuid.NewString()
	order.Status = domain.OrderStatusActive
	order.CreatedAt = now
	order.StatusChangedAt = now

	if err := storage.dataBase.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (storage *Storage) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	var order domain.Order

	result := storage.dataBase.WithContext(ctx).Where("id = ?", id).Take(&order)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return domain.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if result.Error != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", id, result.Error)
	}

	return order, nil
}

func (storage *Storage) ListActiveOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	return storage.ListOrders(ctx, domain.OrderStatusActive, filter)
}

// ListOrders returns orders oldest first. An empty status matches every status.
func (storage *Storage) ListOrders(ctx context.Context, status domain.OrderStatus, filter domain.OrderFilter) ([]domain.Order, error) {
	orders := []domain.Order{}

	query := storage.dataBase.WithContext(ctx).Order("created_at")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if filter.Venue != "" {
		query = query.Where("venue = ?", filter.Venue)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}

	if err := query.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// TransitionOrderStatus moves the order to "to" only if it is still in "from".
// It reports whether the row changed.
func (storage *Storage) TransitionOrderStatus(ctx context.Context, id string, from domain.OrderStatus, to domain.OrderStatus) (bool, error) {
	result := storage.dataBase.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "status_changed_at": storage.now().UTC()})
	if result.Error != nil {
		return false, fmt.Errorf("transition order %s: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (storage *Storage) Close() error {
	sqlDB, err := storage.dataBase.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
