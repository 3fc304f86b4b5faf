package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sks-store/merchant-api/internal/app"
	"github.com/sks-store/merchant-api/internal/domain"
)

// KeyRepository serves the admin side of the key store: imports, statistics
// and manual status updates. Reservation-time mutations go through
// ReservationRepository and OrderRepository instead.
type KeyRepository struct {
	q querier
}

func NewKeyRepository(pool *pgxpool.Pool) *KeyRepository {
	return &KeyRepository{q: querier{pool: pool}}
}

func (r *KeyRepository) InsertKey(ctx context.Context, key domain.Key) error {
	const stmt = `
INSERT INTO keys (id, game_name, product_id, key_value, status, price, prefix, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.q.exec(ctx, stmt,
		key.ID,
		key.GameName,
		key.ProductID,
		key.Value,
		key.Status,
		key.Price,
		key.Prefix,
		key.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateKey
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("insert key: %w", err)
	}
	return nil
}

func (r *KeyRepository) StatusStats(ctx context.Context) (map[domain.KeyStatus]app.StatusStat, error) {
	const query = `
SELECT status, COUNT(*), COUNT(DISTINCT prefix)
FROM keys
GROUP BY status`

	rows, err := r.q.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("status stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[domain.KeyStatus]app.StatusStat)
	for rows.Next() {
		var status domain.KeyStatus
		var stat app.StatusStat
		if err := rows.Scan(&status, &stat.Count, &stat.UniquePrefixes); err != nil {
			return nil, fmt.Errorf("scan status stat: %w", err)
		}
		stats[status] = stat
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate status stats: %w", rows.Err())
	}
	return stats, nil
}

func (r *KeyRepository) PrefixStats(ctx context.Context) (map[string]app.PrefixStat, error) {
	const query = `
SELECT
	prefix,
	COUNT(*),
	COUNT(*) FILTER (WHERE status = 'sold'),
	COALESCE(SUM(price) FILTER (WHERE status = 'sold'), 0)
FROM keys
GROUP BY prefix`

	rows, err := r.q.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prefix stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]app.PrefixStat)
	for rows.Next() {
		var prefix string
		var stat app.PrefixStat
		if err := rows.Scan(&prefix, &stat.Total, &stat.Sold, &stat.Revenue); err != nil {
			return nil, fmt.Errorf("scan prefix stat: %w", err)
		}
		stats[prefix] = stat
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate prefix stats: %w", rows.Err())
	}
	return stats, nil
}

func (r *KeyRepository) ListByProduct(ctx context.Context, productID int64, excludeSold bool) ([]domain.Key, error) {
	query := `
SELECT id, game_name, product_id, key_value, status, price, prefix, created_at
FROM keys
WHERE product_id = $1`
	if excludeSold {
		query += ` AND status <> 'sold'`
	}
	query += `
ORDER BY created_at ASC, id ASC`

	rows, err := r.q.query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("list keys by product: %w", err)
	}
	defer rows.Close()

	var keys []domain.Key
	for rows.Next() {
		var key domain.Key
		if err := rows.Scan(
			&key.ID,
			&key.GameName,
			&key.ProductID,
			&key.Value,
			&key.Status,
			&key.Price,
			&key.Prefix,
			&key.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate keys: %w", rows.Err())
	}
	return keys, nil
}

func (r *KeyRepository) UpdateStatus(ctx context.Context, keyIDs []string, status domain.KeyStatus) (int, error) {
	const stmt = `UPDATE keys SET status = $2 WHERE id = ANY($1)`

	tag, err := r.q.exec(ctx, stmt, keyIDs, status)
	if err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("update key status: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
