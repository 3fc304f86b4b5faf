package app

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sks-store/merchant-api/internal/clock"
	"github.com/sks-store/merchant-api/internal/domain"
)

type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockProduct(ctx context.Context, productID int64) error
	CountAvailable(ctx context.Context, productID int64) (int, error)
	SelectAvailableForUpdate(ctx context.Context, productID int64, limit int) ([]string, error)
	MarkReserved(ctx context.Context, keyIDs []string, reservationID string, at time.Time) error
	CreateReservation(ctx context.Context, res domain.Reservation) error
	FindActiveByReservationID(ctx context.Context, reservationID string) ([]domain.Reservation, error)
	ReleaseKeys(ctx context.Context, reservationID string) (int, error)
	UpdateStatusByReservationID(ctx context.Context, reservationID string, status domain.ReservationStatus) (int, error)
	ListExpiredActive(ctx context.Context, now time.Time) ([]string, error)
}

type ReservationService struct {
	repo           ReservationRepository
	clock          clock.Clock
	reservationTTL time.Duration
}

const defaultReservationTTL = 30 * time.Minute

type ReservationServiceOption func(*ReservationService)

// WithReservationTTL overrides the default 30 minute hold window.
func WithReservationTTL(d time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		if d > 0 {
			s.reservationTTL = d
		}
	}
}

func NewReservationService(repo ReservationRepository, clk clock.Clock, opts ...ReservationServiceOption) *ReservationService {
	svc := &ReservationService{
		repo:           repo,
		clock:          clk,
		reservationTTL: defaultReservationTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// LineItem is one requested (product, quantity) pair.
type LineItem struct {
	ProductID int64
	Quantity  int
}

// StockLevel reports the remaining available inventory for a product.
type StockLevel struct {
	ProductID     int64
	InventorySize int
}

type ReserveResult struct {
	ReservationID string
	Stock         []StockLevel
}

// Reserve atomically holds keys for every line item or none of them. Per
// product it counts available keys, claims the oldest ones and writes one
// reservation row; the first line item that cannot be satisfied aborts the
// whole transaction with InsufficientStockError.
func (s *ReservationService) Reserve(ctx context.Context, items []LineItem) (ReserveResult, error) {
	if len(items) == 0 {
		return ReserveResult{}, domain.ErrEmptyReservation
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return ReserveResult{}, domain.ErrInvalidQuantity
		}
	}

	reservationID := uuid.NewString()
	now := s.clock.Now()
	expiresAt := now.Add(s.reservationTTL)

	var stock []StockLevel
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		// Product locks are taken in sorted order so two multi-product
		// reservations can never deadlock on each other.
		for _, productID := range sortedProductIDs(items) {
			if err := s.repo.LockProduct(txCtx, productID); err != nil {
				return err
			}
		}

		stock = stock[:0]
		for _, item := range items {
			available, err := s.repo.CountAvailable(txCtx, item.ProductID)
			if err != nil {
				return err
			}
			if available < item.Quantity {
				return &domain.InsufficientStockError{
					ProductID: item.ProductID,
					Available: available,
					Requested: item.Quantity,
				}
			}

			keyIDs, err := s.repo.SelectAvailableForUpdate(txCtx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			if len(keyIDs) < item.Quantity {
				// Should not happen under the product lock; treat as a race lost.
				return &domain.InsufficientStockError{
					ProductID: item.ProductID,
					Available: len(keyIDs),
					Requested: item.Quantity,
				}
			}

			if err := s.repo.MarkReserved(txCtx, keyIDs, reservationID, now); err != nil {
				return err
			}
			if err := s.repo.CreateReservation(txCtx, domain.Reservation{
				ID:            uuid.NewString(),
				ReservationID: reservationID,
				ProductID:     item.ProductID,
				Quantity:      item.Quantity,
				Status:        domain.ReservationStatusActive,
				ExpiresAt:     expiresAt,
				CreatedAt:     now,
			}); err != nil {
				return err
			}

			remaining, err := s.repo.CountAvailable(txCtx, item.ProductID)
			if err != nil {
				return err
			}
			stock = append(stock, StockLevel{ProductID: item.ProductID, InventorySize: remaining})
		}
		return nil
	})
	if err != nil {
		return ReserveResult{}, err
	}

	return ReserveResult{ReservationID: reservationID, Stock: stock}, nil
}

// Release cancels an active reservation, returning its keys to the available
// pool. Calling it on an expired-but-unswept reservation is a normal
// cancellation.
func (s *ReservationService) Release(ctx context.Context, reservationID string) error {
	return s.release(ctx, reservationID, domain.ReservationStatusCancelled)
}

// ReleaseExpired reclaims every active reservation whose deadline has passed
// and returns the reservation ids it released. Each reservation is released
// in its own transaction so one failure does not hold the rest hostage.
func (s *ReservationService) ReleaseExpired(ctx context.Context) ([]string, error) {
	expired, err := s.repo.ListExpiredActive(ctx, s.clock.Now())
	if err != nil {
		return nil, err
	}

	var released []string
	for _, reservationID := range expired {
		if err := s.release(ctx, reservationID, domain.ReservationStatusExpired); err != nil {
			// Leave it for the next sweep tick.
			if err == domain.ErrReservationNotFound {
				continue
			}
			return released, err
		}
		released = append(released, reservationID)
	}
	return released, nil
}

func (s *ReservationService) release(ctx context.Context, reservationID string, to domain.ReservationStatus) error {
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		rows, err := s.repo.FindActiveByReservationID(txCtx, reservationID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return domain.ErrReservationNotFound
		}
		if _, err := s.repo.ReleaseKeys(txCtx, reservationID); err != nil {
			return err
		}
		if _, err := s.repo.UpdateStatusByReservationID(txCtx, reservationID, to); err != nil {
			return err
		}
		return nil
	})
}

func sortedProductIDs(items []LineItem) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
