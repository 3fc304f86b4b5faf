package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrTokenExpired        = errors.New("token has expired")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrInvalidProductID    = errors.New("invalid product id")
	ErrEmptyReservation    = errors.New("reservation has no line items")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrReservationExpired  = errors.New("reservation expired")
	ErrOrderNotFound       = errors.New("order not found")
	ErrDuplicateKey        = errors.New("key value already exists")
	ErrKeyStatusInvalid    = errors.New("invalid key status")
	ErrNoKeyIDs            = errors.New("key ids cannot be empty")
	ErrInvalidID           = errors.New("invalid id")
)

// InsufficientStockError names the product that could not be satisfied and
// how many keys were actually available.
type InsufficientStockError struct {
	ProductID int64
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for product %d: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

// IsInsufficientStock reports whether err is an InsufficientStockError and
// returns it when so.
func IsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var e *InsufficientStockError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
