package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"loungeerp/backend/internal/domain"
	"loungeerp/backend/internal/store"
)

// Integration tests run only when TEST_DATABASE_URL points at a disposable
// database. They create and rename real tables; never aim them at production.
func newIntegrationStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := New(ctx, dsn, domain.SchemaVersion)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndReadBack(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	id := fmt.Sprintf("T-IT-%d", time.Now().UnixNano())
	row := domain.Transaction{
		ID:             id,
		Timestamp:      time.Now().UTC().Truncate(time.Microsecond),
		Type:           domain.TypeSale,
		ProductID:      "P-IT",
		SalesmanID:     "S-IT",
		PaymentType:    domain.PaymentCash,
		QuantityChange: -2,
		TotalRevenue:   decimal.RequireFromString("3.10"),
		TotalCost:      decimal.Zero,
		Notes:          "integration",
	}
	if err := s.AppendTransactions(ctx, row); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	got, err := s.GetTransaction(ctx, id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Type != domain.TypeSale || got.QuantityChange != -2 || got.Notes != "integration" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.TotalRevenue.Equal(row.TotalRevenue) {
		t.Fatalf("expected revenue %s, got %s", row.TotalRevenue, got.TotalRevenue)
	}
	if !got.Timestamp.Equal(row.Timestamp) {
		t.Fatalf("expected timestamp %s, got %s", row.Timestamp, got.Timestamp)
	}

	if err := s.AppendTransactions(ctx, row); !errors.Is(err, store.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestBatchAppendIsAtomic(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	now := time.Now().UnixNano()
	first := domain.Transaction{
		ID: fmt.Sprintf("T-ATOM-%d", now), Timestamp: time.Now().UTC(),
		Type: domain.TypeRestock, ProductID: "P-IT", QuantityChange: 5,
		TotalRevenue: decimal.Zero, TotalCost: decimal.RequireFromString("-2.00"),
	}
	if err := s.AppendTransactions(ctx, first); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	fresh := domain.Transaction{
		ID: fmt.Sprintf("T-ATOM-B-%d", now), Timestamp: time.Now().UTC(),
		Type: domain.TypeRestock, ProductID: "P-IT", QuantityChange: 5,
		TotalRevenue: decimal.Zero, TotalCost: decimal.Zero,
	}
	// Duplicate second row must roll the whole batch back.
	if err := s.AppendTransactions(ctx, fresh, first); !errors.Is(err, store.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if _, err := s.GetTransaction(ctx, fresh.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected batch rolled back, got %v", err)
	}
}

func TestSchemaVersionPersisted(t *testing.T) {
	s := newIntegrationStore(t)

	version, err := s.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("schema version failed: %v", err)
	}
	if version != domain.SchemaVersion {
		t.Fatalf("expected %s, got %s", domain.SchemaVersion, version)
	}
}

func TestArchivePeriodRenamesAndReseeds(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	label := fmt.Sprintf("it_%d", time.Now().Unix())
	seedID := fmt.Sprintf("T-ARCH-%d", time.Now().UnixNano())
	if err := s.AppendTransactions(ctx, domain.Transaction{
		ID: seedID, Timestamp: time.Now().UTC(), Type: domain.TypeSale,
		ProductID: "P-IT", QuantityChange: -1,
		TotalRevenue: decimal.RequireFromString("1.00"), TotalCost: decimal.Zero,
	}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	opening := []domain.Transaction{{
		ID: "T-ARCH-OPEN-" + label, Timestamp: time.Now().UTC(),
		Type: domain.TypeOpenStock, ProductID: "P-IT", QuantityChange: 7,
		TotalRevenue: decimal.Zero, TotalCost: decimal.Zero,
	}}
	products := []domain.Product{{ID: "P-IT", Name: "Integration Product", SellPrice: decimal.RequireFromString("2.00"), Active: true}}

	if err := s.ArchivePeriod(ctx, label, opening, products, nil); err != nil {
		t.Fatalf("archive failed: %v", err)
	}

	if _, err := s.GetTransaction(ctx, seedID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected retired row gone from live ledger, got %v", err)
	}
	rows, err := s.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Type != domain.TypeOpenStock {
		t.Fatalf("expected only opening row, got %+v", rows)
	}

	if err := s.ArchivePeriod(ctx, "Bad Label!", nil, nil, nil); err == nil {
		t.Fatalf("expected invalid label to fail")
	}
}
