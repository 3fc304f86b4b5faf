package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sks-store/merchant-api/internal/clock"
	"github.com/sks-store/merchant-api/internal/domain"
)

type OrderRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	FindActiveForUpdate(ctx context.Context, reservationID string) ([]domain.Reservation, error)
	CreateOrder(ctx context.Context, order domain.Order) error
	SelectReservedKeys(ctx context.Context, reservationID string, productID int64) ([]domain.Key, error)
	MarkSold(ctx context.Context, keyIDs []string, orderID string, at time.Time) error
	CountAvailable(ctx context.Context, productID int64) (int, error)
	UpdateStatusByReservationID(ctx context.Context, reservationID string, status domain.ReservationStatus) (int, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListKeysByOrder(ctx context.Context, orderID string) ([]domain.Key, error)
}

// Sale describes one sold key for the external notifier.
type Sale struct {
	GameName string
	KeyValue string
	Price    float64
	Prefix   string
}

// SaleNotifier delivers sale notifications. Delivery is fire-and-forget:
// implementations must not block and the caller never learns about failures.
type SaleNotifier interface {
	NotifySale(sale Sale)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) NotifySale(Sale) {}

type OrderService struct {
	repo     OrderRepository
	clock    clock.Clock
	notifier SaleNotifier
}

func NewOrderService(repo OrderRepository, clk clock.Clock, notifier SaleNotifier) *OrderService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &OrderService{
		repo:     repo,
		clock:    clk,
		notifier: notifier,
	}
}

// InventoryItem is one revealed key secret.
type InventoryItem struct {
	ID    string
	Value string
	Kind  string
}

// ProductInventory is the per-product payload of an order: the sold key
// secrets plus the stock still available for the product.
type ProductInventory struct {
	ProductID     int64
	InventorySize int
	Inventory     []InventoryItem
}

type CreateOrderResult struct {
	OrderID string
	Stock   []ProductInventory
}

// CreateOrder converts an active reservation into a permanent sale. The order
// insert, every key transition to sold and the reservation completion commit
// as one transaction; the key secrets are revealed only in the result of this
// call. Notifications go out after commit and are never awaited.
func (s *OrderService) CreateOrder(ctx context.Context, reservationID string, externalOrderID int64) (CreateOrderResult, error) {
	orderID := uuid.NewString()
	now := s.clock.Now()

	var (
		stock []ProductInventory
		sales []Sale
	)
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		rows, err := s.repo.FindActiveForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return domain.ErrReservationNotFound
		}
		for _, row := range rows {
			if row.Expired(now) {
				// Safety net for reservations the sweeper has not reclaimed yet.
				return domain.ErrReservationExpired
			}
		}

		if err := s.repo.CreateOrder(txCtx, domain.Order{
			ID:              orderID,
			ReservationID:   reservationID,
			ExternalOrderID: externalOrderID,
			Status:          domain.OrderStatusCreated,
			CreatedAt:       now,
		}); err != nil {
			return err
		}

		stock = stock[:0]
		sales = sales[:0]
		for _, row := range rows {
			keys, err := s.repo.SelectReservedKeys(txCtx, reservationID, row.ProductID)
			if err != nil {
				return err
			}

			items := make([]InventoryItem, 0, len(keys))
			keyIDs := make([]string, 0, len(keys))
			for _, key := range keys {
				items = append(items, InventoryItem{ID: key.ID, Value: key.Value, Kind: "text"})
				keyIDs = append(keyIDs, key.ID)
				sales = append(sales, Sale{
					GameName: key.GameName,
					KeyValue: key.Value,
					Price:    key.Price,
					Prefix:   key.Prefix,
				})
			}

			if err := s.repo.MarkSold(txCtx, keyIDs, orderID, now); err != nil {
				return err
			}

			remaining, err := s.repo.CountAvailable(txCtx, row.ProductID)
			if err != nil {
				return err
			}
			stock = append(stock, ProductInventory{
				ProductID:     row.ProductID,
				InventorySize: remaining,
				Inventory:     items,
			})
		}

		if _, err := s.repo.UpdateStatusByReservationID(txCtx, reservationID, domain.ReservationStatusCompleted); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return CreateOrderResult{}, err
	}

	for _, sale := range sales {
		s.notifier.NotifySale(sale)
	}

	return CreateOrderResult{OrderID: orderID, Stock: stock}, nil
}

// GetOrderInventory returns the previously sold keys of an order, grouped by
// product. Pure read, safe to call any number of times.
func (s *OrderService) GetOrderInventory(ctx context.Context, orderID string) ([]ProductInventory, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	keys, err := s.repo.ListKeysByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	byProduct := make(map[int64][]InventoryItem)
	var productOrder []int64
	for _, key := range keys {
		if _, ok := byProduct[key.ProductID]; !ok {
			productOrder = append(productOrder, key.ProductID)
		}
		byProduct[key.ProductID] = append(byProduct[key.ProductID], InventoryItem{
			ID:    key.ID,
			Value: key.Value,
			Kind:  "text",
		})
	}

	inventory := make([]ProductInventory, 0, len(productOrder))
	for _, productID := range productOrder {
		remaining, err := s.repo.CountAvailable(ctx, productID)
		if err != nil {
			return nil, err
		}
		inventory = append(inventory, ProductInventory{
			ProductID:     productID,
			InventorySize: remaining,
			Inventory:     byProduct[productID],
		})
	}
	return inventory, nil
}
