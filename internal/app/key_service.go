package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sks-store/merchant-api/internal/clock"
	"github.com/sks-store/merchant-api/internal/domain"
)

type KeyRepository interface {
	InsertKey(ctx context.Context, key domain.Key) error
	StatusStats(ctx context.Context) (map[domain.KeyStatus]StatusStat, error)
	PrefixStats(ctx context.Context) (map[string]PrefixStat, error)
	ListByProduct(ctx context.Context, productID int64, excludeSold bool) ([]domain.Key, error)
	UpdateStatus(ctx context.Context, keyIDs []string, status domain.KeyStatus) (int, error)
}

// KeyService covers the admin side of the key store: batch import,
// statistics and manual status fixes.
type KeyService struct {
	repo  KeyRepository
	clock clock.Clock
}

func NewKeyService(repo KeyRepository, clk clock.Clock) *KeyService {
	return &KeyService{repo: repo, clock: clk}
}

type KeyInput struct {
	GameName  string
	ProductID int64
	Value     string
	Price     float64
	Prefix    string
}

const defaultPrefix = "sks"

type AddKeysResult struct {
	Added  int
	Errors []string
}

// AddKeys imports a batch of keys. A duplicate key value is reported and
// skipped without aborting the rest of the batch or touching the existing row.
func (s *KeyService) AddKeys(ctx context.Context, inputs []KeyInput) (AddKeysResult, error) {
	var result AddKeysResult
	now := s.clock.Now()

	for _, in := range inputs {
		if in.Value == "" {
			result.Errors = append(result.Errors, "empty key value")
			continue
		}
		key := domain.Key{
			ID:        uuid.NewString(),
			GameName:  in.GameName,
			ProductID: in.ProductID,
			Value:     in.Value,
			Status:    domain.KeyStatusAvailable,
			Price:     in.Price,
			Prefix:    in.Prefix,
			CreatedAt: now,
		}
		if key.GameName == "" {
			key.GameName = "Unknown Game"
		}
		if key.Prefix == "" {
			key.Prefix = defaultPrefix
		}

		if err := s.repo.InsertKey(ctx, key); err != nil {
			if err == domain.ErrDuplicateKey {
				result.Errors = append(result.Errors, fmt.Sprintf("duplicate key: %s", in.Value))
				continue
			}
			return result, err
		}
		result.Added++
	}
	return result, nil
}

// StatusStat is the per-status slice of the key table.
type StatusStat struct {
	Count          int
	UniquePrefixes int
}

// PrefixStat aggregates a seller batch: how many keys it holds, how many
// sold, and the revenue those sales brought in.
type PrefixStat struct {
	Total   int
	Sold    int
	Revenue float64
}

type KeyStats struct {
	ByStatus map[domain.KeyStatus]StatusStat
	ByPrefix map[string]PrefixStat
}

func (s *KeyService) Stats(ctx context.Context) (KeyStats, error) {
	byStatus, err := s.repo.StatusStats(ctx)
	if err != nil {
		return KeyStats{}, err
	}
	byPrefix, err := s.repo.PrefixStats(ctx)
	if err != nil {
		return KeyStats{}, err
	}
	return KeyStats{ByStatus: byStatus, ByPrefix: byPrefix}, nil
}

func (s *KeyService) ListByProduct(ctx context.Context, productID int64, excludeSold bool) ([]domain.Key, error) {
	return s.repo.ListByProduct(ctx, productID, excludeSold)
}

// UpdateStatus force-sets the status of the given keys. Meant for manual
// intervention (pulling keys from sale, returning them); it does not touch
// reservation or order linkage.
func (s *KeyService) UpdateStatus(ctx context.Context, keyIDs []string, status domain.KeyStatus) (int, error) {
	if !domain.ValidKeyStatus(status) {
		return 0, domain.ErrKeyStatusInvalid
	}
	if len(keyIDs) == 0 {
		return 0, domain.ErrNoKeyIDs
	}
	return s.repo.UpdateStatus(ctx, keyIDs, status)
}
