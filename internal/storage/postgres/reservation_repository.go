package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sks-store/merchant-api/internal/domain"
)

type ReservationRepository struct {
	q querier
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{q: querier{pool: pool}}
}

func (r *ReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.q.pool, fn)
}

// LockProduct serializes inventory mutations per product for the duration of
// the surrounding transaction. Reservations on disjoint products do not
// contend; two reservations on the same product queue behind this lock, so
// the count-then-select below can never observe the same stock twice.
func (r *ReservationRepository) LockProduct(ctx context.Context, productID int64) error {
	if _, err := r.q.exec(ctx, `SELECT pg_advisory_xact_lock($1)`, productID); err != nil {
		return fmt.Errorf("lock product %d: %w", productID, err)
	}
	return nil
}

func (r *ReservationRepository) CountAvailable(ctx context.Context, productID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM keys WHERE product_id = $1 AND status = 'available'`

	var count int
	if err := r.q.queryRow(ctx, query, productID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count available: %w", err)
	}
	return count, nil
}

func (r *ReservationRepository) SelectAvailableForUpdate(ctx context.Context, productID int64, limit int) ([]string, error) {
	const query = `
SELECT id
FROM keys
WHERE product_id = $1 AND status = 'available'
ORDER BY created_at ASC, id ASC
LIMIT $2
FOR UPDATE`

	rows, err := r.q.query(ctx, query, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("select available keys: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan key id: %w", err)
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate keys: %w", rows.Err())
	}
	return ids, nil
}

func (r *ReservationRepository) MarkReserved(ctx context.Context, keyIDs []string, reservationID string, at time.Time) error {
	const stmt = `
UPDATE keys
SET status = 'reserved', reserved_at = $3, reservation_id = $2
WHERE id = ANY($1) AND status = 'available'`

	tag, err := r.q.exec(ctx, stmt, keyIDs, reservationID, at)
	if err != nil {
		return fmt.Errorf("mark reserved: %w", err)
	}
	if int(tag.RowsAffected()) != len(keyIDs) {
		return fmt.Errorf("mark reserved: claimed %d of %d keys", tag.RowsAffected(), len(keyIDs))
	}
	return nil
}

func (r *ReservationRepository) CreateReservation(ctx context.Context, res domain.Reservation) error {
	const stmt = `
INSERT INTO reservations (id, reservation_id, product_id, quantity, status, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.q.exec(ctx, stmt,
		res.ID,
		res.ReservationID,
		res.ProductID,
		res.Quantity,
		res.Status,
		res.ExpiresAt,
		res.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (r *ReservationRepository) FindActiveByReservationID(ctx context.Context, reservationID string) ([]domain.Reservation, error) {
	return findReservations(ctx, r.q, reservationID, false)
}

func (r *ReservationRepository) ReleaseKeys(ctx context.Context, reservationID string) (int, error) {
	const stmt = `
UPDATE keys
SET status = 'available', reserved_at = NULL, reservation_id = NULL
WHERE reservation_id = $1 AND status = 'reserved'`

	tag, err := r.q.exec(ctx, stmt, reservationID)
	if err != nil {
		return 0, fmt.Errorf("release keys: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *ReservationRepository) UpdateStatusByReservationID(ctx context.Context, reservationID string, status domain.ReservationStatus) (int, error) {
	return updateReservationStatus(ctx, r.q, reservationID, status)
}

func (r *ReservationRepository) ListExpiredActive(ctx context.Context, now time.Time) ([]string, error) {
	const query = `
SELECT DISTINCT reservation_id
FROM reservations
WHERE status = 'active' AND expires_at <= $1`

	rows, err := r.q.query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list expired reservations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan reservation id: %w", err)
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate reservations: %w", rows.Err())
	}
	return ids, nil
}

// findReservations returns the active line-item rows of a reservation,
// optionally locking them against concurrent finalize/release.
func findReservations(ctx context.Context, q querier, reservationID string, forUpdate bool) ([]domain.Reservation, error) {
	query := `
SELECT id, reservation_id, product_id, quantity, status, expires_at, created_at
FROM reservations
WHERE reservation_id = $1 AND status = 'active'
ORDER BY created_at ASC, id ASC`
	if forUpdate {
		query += `
FOR UPDATE`
	}

	rows, err := q.query(ctx, query, reservationID)
	if err != nil {
		return nil, fmt.Errorf("find reservations: %w", err)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		if err := rows.Scan(
			&res.ID,
			&res.ReservationID,
			&res.ProductID,
			&res.Quantity,
			&res.Status,
			&res.ExpiresAt,
			&res.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, res)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate reservations: %w", rows.Err())
	}
	return out, nil
}

func updateReservationStatus(ctx context.Context, q querier, reservationID string, status domain.ReservationStatus) (int, error) {
	const stmt = `UPDATE reservations SET status = $2 WHERE reservation_id = $1 AND status = 'active'`

	tag, err := q.exec(ctx, stmt, reservationID, status)
	if err != nil {
		return 0, fmt.Errorf("update reservation status: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
