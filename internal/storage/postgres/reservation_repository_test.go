package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sks-store/merchant-api/internal/app"
	"github.com/sks-store/merchant-api/internal/clock"
	"github.com/sks-store/merchant-api/internal/domain"
	"github.com/sks-store/merchant-api/internal/storage/postgres"
	"github.com/sks-store/merchant-api/internal/testutil"
)

func TestReservationRepository_ReserveAndRelease(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	const productID int64 = 12345678901234
	keyIDs := testutil.InsertKeys(t, ctx, pool, productID, 3, "batch1")

	repo := postgres.NewReservationRepository(pool)
	svc := app.NewReservationService(repo, clock.NewSystem())

	res, err := svc.Reserve(ctx, []app.LineItem{{ProductID: productID, Quantity: 2}})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if len(res.Stock) != 1 || res.Stock[0].InventorySize != 1 {
		t.Fatalf("expected 1 remaining, got %+v", res.Stock)
	}

	// Oldest keys claimed first.
	if got := testutil.KeyStatus(t, ctx, pool, keyIDs[0]); got != domain.KeyStatusReserved {
		t.Fatalf("oldest key expected reserved, got %s", got)
	}
	if got := testutil.KeyStatus(t, ctx, pool, keyIDs[2]); got != domain.KeyStatusAvailable {
		t.Fatalf("newest key expected available, got %s", got)
	}

	_, err = svc.Reserve(ctx, []app.LineItem{{ProductID: productID, Quantity: 2}})
	stockErr, ok := domain.IsInsufficientStock(err)
	if !ok {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Available != 1 || stockErr.Requested != 2 {
		t.Fatalf("unexpected detail: %+v", stockErr)
	}

	if err := svc.Release(ctx, res.ReservationID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if n := testutil.CountKeys(t, ctx, pool, productID, domain.KeyStatusAvailable); n != 3 {
		t.Fatalf("expected all 3 keys available after release, got %d", n)
	}

	if err := svc.Release(ctx, res.ReservationID); err != domain.ErrReservationNotFound {
		t.Fatalf("double release expected ErrReservationNotFound, got %v", err)
	}
}

func TestReservationRepository_ConcurrentReservesDoNotOversell(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	const productID int64 = 12345678901234
	testutil.InsertKeys(t, ctx, pool, productID, 3, "batch1")

	repo := postgres.NewReservationRepository(pool)
	svc := app.NewReservationService(repo, clock.NewSystem())

	// Two concurrent holds of 2 against 3 keys: exactly one can win.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Reserve(ctx, []app.LineItem{{ProductID: productID, Quantity: 2}})
		}(i)
	}
	wg.Wait()

	var successes, stockFailures int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		default:
			if _, ok := domain.IsInsufficientStock(err); ok {
				stockFailures++
			} else {
				t.Fatalf("unexpected error: %v", err)
			}
		}
	}
	if successes != 1 || stockFailures != 1 {
		t.Fatalf("expected exactly one winner, got %d successes and %d stock failures", successes, stockFailures)
	}
	if n := testutil.CountKeys(t, ctx, pool, productID, domain.KeyStatusReserved); n != 2 {
		t.Fatalf("expected 2 reserved keys, got %d", n)
	}
}

func TestReservationRepository_SweepReclaimsExpired(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	const productID int64 = 22345678901234
	testutil.InsertKeys(t, ctx, pool, productID, 2, "batch1")

	repo := postgres.NewReservationRepository(pool)
	start := time.Now().UTC().Add(-time.Hour)
	reserveSvc := app.NewReservationService(repo, clock.NewFixed(start), app.WithReservationTTL(10*time.Minute))

	res, err := reserveSvc.Reserve(ctx, []app.LineItem{{ProductID: productID, Quantity: 2}})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	sweepSvc := app.NewReservationService(repo, clock.NewSystem())
	released, err := sweepSvc.ReleaseExpired(ctx)
	if err != nil {
		t.Fatalf("release expired: %v", err)
	}
	if len(released) != 1 || released[0] != res.ReservationID {
		t.Fatalf("expected reservation %s released, got %v", res.ReservationID, released)
	}

	if n := testutil.CountKeys(t, ctx, pool, productID, domain.KeyStatusAvailable); n != 2 {
		t.Fatalf("expected keys reclaimed, got %d available", n)
	}

	var status domain.ReservationStatus
	if err := pool.QueryRow(ctx,
		`SELECT status FROM reservations WHERE reservation_id = $1`, res.ReservationID,
	).Scan(&status); err != nil {
		t.Fatalf("query reservation: %v", err)
	}
	if status != domain.ReservationStatusExpired {
		t.Fatalf("expected expired status, got %s", status)
	}
}
