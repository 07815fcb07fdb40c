package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"loungeerp/backend/internal/domain"
	"loungeerp/backend/internal/store"
)

func tx(id string, qty int64) domain.Transaction {
	return domain.Transaction{
		ID:             id,
		Timestamp:      time.Now().UTC(),
		Type:           domain.TypeRestock,
		ProductID:      "P-COLA",
		QuantityChange: qty,
		TotalRevenue:   decimal.Zero,
		TotalCost:      decimal.Zero,
	}
}

func TestAppendPreservesOrder(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, id := range []string{"T-A", "T-B", "T-C"} {
		if err := s.AppendTransactions(ctx, tx(id, 1)); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	rows, err := s.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(rows) != 3 || rows[0].ID != "T-A" || rows[2].ID != "T-C" {
		t.Fatalf("append order not preserved: %+v", rows)
	}
}

func TestAppendIsAtomicOnDuplicate(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.AppendTransactions(ctx, tx("T-1", 1)); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// Batch with one duplicate must land nothing.
	err := s.AppendTransactions(ctx, tx("T-2", 1), tx("T-1", 1))
	if !errors.Is(err, store.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	rows, err := s.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected partial batch rejected, got %d rows", len(rows))
	}
	if _, err := s.GetTransaction(ctx, "T-2"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected T-2 absent, got %v", err)
	}
}

func TestDuplicateEntityIDs(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	err := s.AddProduct(ctx, domain.Product{ID: "P-COLA", Name: "Clone", Active: true})
	if !errors.Is(err, store.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID for product, got %v", err)
	}
	err = s.AddSalesman(ctx, domain.Salesman{ID: "S-ANA", Name: "Clone", Active: true})
	if !errors.Is(err, store.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID for salesman, got %v", err)
	}
}

func TestArchivePeriodSwapsLedger(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	if err := s.AppendTransactions(ctx, tx("T-OLD", 10)); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	opening := []domain.Transaction{
		{ID: "T-OPEN", Timestamp: time.Now().UTC(), Type: domain.TypeOpenStock, ProductID: "P-COLA", QuantityChange: 10},
	}
	keptProducts := []domain.Product{{ID: "P-COLA", Name: "Cola Can 350ml", Active: true}}
	keptSalesmen := []domain.Salesman{{ID: "S-ANA", Name: "Ana", Active: true}}

	if err := s.ArchivePeriod(ctx, "p1", opening, keptProducts, keptSalesmen); err != nil {
		t.Fatalf("archive failed: %v", err)
	}

	rows, err := s.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "T-OPEN" {
		t.Fatalf("expected only opening row, got %+v", rows)
	}
	if _, err := s.GetTransaction(ctx, "T-OLD"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected retired row gone from live ledger, got %v", err)
	}

	retired := s.RetiredTransactions("p1")
	if len(retired) != 1 || retired[0].ID != "T-OLD" {
		t.Fatalf("expected retired ledger to hold old rows, got %+v", retired)
	}

	products, err := s.ListProducts(ctx)
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	if len(products) != 1 || products[0].ID != "P-COLA" {
		t.Fatalf("expected pruned catalog, got %+v", products)
	}
	salesmen, err := s.ListSalesmen(ctx)
	if err != nil {
		t.Fatalf("list salesmen failed: %v", err)
	}
	if len(salesmen) != 1 || salesmen[0].ID != "S-ANA" {
		t.Fatalf("expected pruned salesmen, got %+v", salesmen)
	}
}

func TestSchemaVersion(t *testing.T) {
	s := New()
	version, err := s.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("schema version failed: %v", err)
	}
	if version != domain.SchemaVersion {
		t.Fatalf("expected %s, got %s", domain.SchemaVersion, version)
	}
}

func TestUserLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.CreateUser(ctx, domain.UserAccount{Username: "jo", Password: "x", Role: "clerk", Active: true}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := s.CreateUser(ctx, domain.UserAccount{Username: "jo", Password: "y", Role: "clerk", Active: true}); !errors.Is(err, store.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if err := s.UpdateUserPassword(ctx, "jo", "hashed"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(users) != 1 || users[0].Password != "hashed" {
		t.Fatalf("unexpected users: %+v", users)
	}
	if err := s.UpdateUserPassword(ctx, "nobody", "x"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
