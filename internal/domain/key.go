package domain

import "time"

type KeyStatus string

const (
	KeyStatusAvailable       KeyStatus = "available"
	KeyStatusReserved        KeyStatus = "reserved"
	KeyStatusSold            KeyStatus = "sold"
	KeyStatusRemovedFromSale KeyStatus = "removed_from_sale"
)

// ValidKeyStatus reports whether s is one of the four known key statuses.
func ValidKeyStatus(s KeyStatus) bool {
	switch s {
	case KeyStatusAvailable, KeyStatusReserved, KeyStatusSold, KeyStatusRemovedFromSale:
		return true
	}
	return false
}

// Key is one redeemable code for one unit of a product. Value is unique
// across the whole table. ReservationID/OrderID are back-pointers set while
// the key is reserved or after it is sold.
type Key struct {
	ID            string
	GameName      string
	ProductID     int64
	Value         string
	Status        KeyStatus
	Price         float64
	Prefix        string
	ReservationID *string
	OrderID       *string
	ReservedAt    *time.Time
	SoldAt        *time.Time
	CreatedAt     time.Time
}
