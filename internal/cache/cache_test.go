package cache

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"loungeerp/backend/internal/domain"
	"loungeerp/backend/internal/store"
	"loungeerp/backend/internal/store/memory"
)

// countingRepo counts reads that reach the inner store so tests can observe
// bucket hits and invalidations.
type countingRepo struct {
	store.Repository
	listProducts     int
	listTransactions int
}

func (c *countingRepo) ListProducts(ctx context.Context) ([]domain.Product, error) {
	c.listProducts++
	return c.Repository.ListProducts(ctx)
}

func (c *countingRepo) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	c.listTransactions++
	return c.Repository.ListTransactions(ctx)
}

func sampleTx(id string) domain.Transaction {
	return domain.Transaction{
		ID:             id,
		Timestamp:      time.Now().UTC(),
		Type:           domain.TypeRestock,
		ProductID:      "P-COLA",
		QuantityChange: 5,
		TotalRevenue:   decimal.Zero,
		TotalCost:      decimal.RequireFromString("-3.00"),
	}
}

func TestRepeatedReadsHitBucket(t *testing.T) {
	inner := &countingRepo{Repository: memory.NewSeeded()}
	repo := Wrap(inner, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := repo.ListProducts(ctx); err != nil {
			t.Fatalf("list failed: %v", err)
		}
	}
	if inner.listProducts != 1 {
		t.Fatalf("expected 1 inner read, got %d", inner.listProducts)
	}

	if _, err := repo.GetProduct(ctx, "P-COLA"); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if inner.listProducts != 1 {
		t.Fatalf("GetProduct should use the bucket, inner reads: %d", inner.listProducts)
	}
}

func TestWriteInvalidatesBucket(t *testing.T) {
	inner := &countingRepo{Repository: memory.NewSeeded()}
	repo := Wrap(inner, nil)
	ctx := context.Background()

	if _, err := repo.ListTransactions(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if err := repo.AppendTransactions(ctx, sampleTx("T-1")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	rows, err := repo.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "T-1" {
		t.Fatalf("expected fresh read after write, got %+v", rows)
	}
	if inner.listTransactions != 2 {
		t.Fatalf("expected bucket rebuild after write, inner reads: %d", inner.listTransactions)
	}
}

func TestFailedWriteKeepsBucket(t *testing.T) {
	inner := &countingRepo{Repository: memory.NewSeeded()}
	repo := Wrap(inner, nil)
	ctx := context.Background()

	if err := repo.AppendTransactions(ctx, sampleTx("T-DUP")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if _, err := repo.ListTransactions(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	reads := inner.listTransactions

	if err := repo.AppendTransactions(ctx, sampleTx("T-DUP")); err == nil {
		t.Fatalf("expected duplicate append to fail")
	}
	if _, err := repo.ListTransactions(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if inner.listTransactions != reads {
		t.Fatalf("failed write must not invalidate, inner reads went %d -> %d", reads, inner.listTransactions)
	}
}

func TestCachedReadsMatchDirectStore(t *testing.T) {
	seeded := memory.NewSeeded()
	repo := Wrap(seeded, nil)
	ctx := context.Background()

	if err := repo.AppendTransactions(ctx, sampleTx("T-EQ")); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	direct, err := seeded.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("direct list failed: %v", err)
	}
	cached, err := repo.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("cached list failed: %v", err)
	}
	if len(direct) != len(cached) {
		t.Fatalf("row count mismatch: direct %d, cached %d", len(direct), len(cached))
	}
	for i := range direct {
		if direct[i].ID != cached[i].ID {
			t.Fatalf("row %d mismatch: %s vs %s", i, direct[i].ID, cached[i].ID)
		}
	}
}

func TestArchiveDropsEveryBucket(t *testing.T) {
	inner := &countingRepo{Repository: memory.NewSeeded()}
	repo := Wrap(inner, nil)
	ctx := context.Background()

	if _, err := repo.ListProducts(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if _, err := repo.ListTransactions(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if err := repo.ArchivePeriod(ctx, "test", nil, nil, nil); err != nil {
		t.Fatalf("archive failed: %v", err)
	}

	if _, err := repo.ListProducts(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if _, err := repo.ListTransactions(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if inner.listProducts != 2 || inner.listTransactions != 2 {
		t.Fatalf("expected rebuilds after archive, reads: products %d, transactions %d", inner.listProducts, inner.listTransactions)
	}
}
