package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sks-store/merchant-api/internal/domain"
)

type OrderRepository struct {
	q querier
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{q: querier{pool: pool}}
}

func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.q.pool, fn)
}

// FindActiveForUpdate locks the reservation rows so a concurrent finalize or
// release queues behind this transaction and then sees no active rows.
func (r *OrderRepository) FindActiveForUpdate(ctx context.Context, reservationID string) ([]domain.Reservation, error) {
	return findReservations(ctx, r.q, reservationID, true)
}

func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	const stmt = `
INSERT INTO orders (id, reservation_id, external_order_id, status, created_at)
VALUES ($1, $2, $3, $4, $5)`

	_, err := r.q.exec(ctx, stmt,
		order.ID,
		order.ReservationID,
		order.ExternalOrderID,
		order.Status,
		order.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// A finalize already won for this reservation.
			return domain.ErrReservationNotFound
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *OrderRepository) SelectReservedKeys(ctx context.Context, reservationID string, productID int64) ([]domain.Key, error) {
	const query = `
SELECT id, game_name, product_id, key_value, price, prefix
FROM keys
WHERE reservation_id = $1 AND product_id = $2 AND status = 'reserved'
ORDER BY created_at ASC, id ASC`

	rows, err := r.q.query(ctx, query, reservationID, productID)
	if err != nil {
		return nil, fmt.Errorf("select reserved keys: %w", err)
	}
	defer rows.Close()

	var keys []domain.Key
	for rows.Next() {
		var key domain.Key
		if err := rows.Scan(&key.ID, &key.GameName, &key.ProductID, &key.Value, &key.Price, &key.Prefix); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		key.Status = domain.KeyStatusReserved
		keys = append(keys, key)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate keys: %w", rows.Err())
	}
	return keys, nil
}

func (r *OrderRepository) MarkSold(ctx context.Context, keyIDs []string, orderID string, at time.Time) error {
	const stmt = `
UPDATE keys
SET status = 'sold', sold_at = $3, order_id = $2
WHERE id = ANY($1) AND status = 'reserved'`

	tag, err := r.q.exec(ctx, stmt, keyIDs, orderID, at)
	if err != nil {
		return fmt.Errorf("mark sold: %w", err)
	}
	if int(tag.RowsAffected()) != len(keyIDs) {
		return fmt.Errorf("mark sold: transitioned %d of %d keys", tag.RowsAffected(), len(keyIDs))
	}
	return nil
}

func (r *OrderRepository) CountAvailable(ctx context.Context, productID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM keys WHERE product_id = $1 AND status = 'available'`

	var count int
	if err := r.q.queryRow(ctx, query, productID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count available: %w", err)
	}
	return count, nil
}

func (r *OrderRepository) UpdateStatusByReservationID(ctx context.Context, reservationID string, status domain.ReservationStatus) (int, error) {
	return updateReservationStatus(ctx, r.q, reservationID, status)
}

func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	const query = `
SELECT id, reservation_id, external_order_id, status, created_at
FROM orders
WHERE id = $1`

	var o domain.Order
	err := r.q.queryRow(ctx, query, orderID).
		Scan(&o.ID, &o.ReservationID, &o.ExternalOrderID, &o.Status, &o.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, nil
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

func (r *OrderRepository) ListKeysByOrder(ctx context.Context, orderID string) ([]domain.Key, error) {
	const query = `
SELECT id, game_name, product_id, key_value, price, prefix
FROM keys
WHERE order_id = $1
ORDER BY product_id ASC, created_at ASC, id ASC`

	rows, err := r.q.query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list keys by order: %w", err)
	}
	defer rows.Close()

	var keys []domain.Key
	for rows.Next() {
		var key domain.Key
		if err := rows.Scan(&key.ID, &key.GameName, &key.ProductID, &key.Value, &key.Price, &key.Prefix); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		key.Status = domain.KeyStatusSold
		keys = append(keys, key)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate keys: %w", rows.Err())
	}
	return keys, nil
}
