package domain

import "time"

type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusExpired   ReservationStatus = "expired"
)

// Reservation is a time-bounded hold on a quantity of keys for one product.
// A multi-product reservation is stored as one row per line item sharing the
// same ReservationID; the held keys point back at it via their reservation_id
// column rather than being materialized as a list.
type Reservation struct {
	ID            string
	ReservationID string
	ProductID     int64
	Quantity      int
	Status        ReservationStatus
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// Expired reports whether the reservation deadline has passed at now.
func (r Reservation) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}
