package domain

import "time"

// Order is the permanent record that a reservation was fulfilled. At most one
// order exists per reservation; refunds and disputes are out of scope, so
// "created" is terminal.
type Order struct {
	ID              string
	ReservationID   string
	ExternalOrderID int64
	Status          string
	CreatedAt       time.Time
}

const OrderStatusCreated = "created"
