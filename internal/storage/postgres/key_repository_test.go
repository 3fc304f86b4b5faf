package postgres_test

import (
	"context"
	"testing"

	"github.com/sks-store/merchant-api/internal/app"
	"github.com/sks-store/merchant-api/internal/clock"
	"github.com/sks-store/merchant-api/internal/domain"
	"github.com/sks-store/merchant-api/internal/storage/postgres"
	"github.com/sks-store/merchant-api/internal/testutil"
)

func TestKeyRepository_InsertAndStats(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := postgres.NewKeyRepository(pool)
	svc := app.NewKeyService(repo, clock.NewSystem())

	res, err := svc.AddKeys(ctx, []app.KeyInput{
		{GameName: "Portal 2", ProductID: 52345678901234, Value: "PRTL-0001", Price: 3.5, Prefix: "b1"},
		{GameName: "Portal 2", ProductID: 52345678901234, Value: "PRTL-0002", Price: 3.5, Prefix: "b1"},
		{GameName: "Portal 2", ProductID: 52345678901234, Value: "PRTL-0001", Price: 3.5, Prefix: "b1"},
	})
	if err != nil {
		t.Fatalf("add keys: %v", err)
	}
	if res.Added != 2 || len(res.Errors) != 1 {
		t.Fatalf("expected 2 added and 1 duplicate, got %+v", res)
	}

	// Duplicate insert must not have mutated the original row.
	keys, err := svc.ListByProduct(ctx, 52345678901234, false)
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	for _, key := range keys {
		if key.Status != domain.KeyStatusAvailable {
			t.Fatalf("expected available key, got %s", key.Status)
		}
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.ByStatus[domain.KeyStatusAvailable].Count != 2 {
		t.Fatalf("unexpected status stats: %+v", stats.ByStatus)
	}
	if stats.ByPrefix["b1"].Total != 2 || stats.ByPrefix["b1"].Sold != 0 {
		t.Fatalf("unexpected prefix stats: %+v", stats.ByPrefix)
	}
}

func TestKeyRepository_UpdateStatus(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	const productID int64 = 62345678901234
	ids := testutil.InsertKeys(t, ctx, pool, productID, 2, "b1")

	repo := postgres.NewKeyRepository(pool)
	svc := app.NewKeyService(repo, clock.NewSystem())

	updated, err := svc.UpdateStatus(ctx, ids[:1], domain.KeyStatusRemovedFromSale)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 updated, got %d", updated)
	}
	if got := testutil.KeyStatus(t, ctx, pool, ids[0]); got != domain.KeyStatusRemovedFromSale {
		t.Fatalf("expected removed_from_sale, got %s", got)
	}

	excluded, err := svc.ListByProduct(ctx, productID, true)
	if err != nil {
		t.Fatalf("list excluding sold: %v", err)
	}
	if len(excluded) != 2 {
		t.Fatalf("removed_from_sale keys are not sold, expected 2, got %d", len(excluded))
	}
}
