package ledger

import (
	"context"
	"errors"
	"testing"

	"loungeerp/backend/internal/domain"
	"loungeerp/backend/internal/store/memory"
)

func TestArchivePeriodCarriesStockForward(t *testing.T) {
	repo := memory.NewSeeded()
	eng := New(repo, "S-ANA")
	ctx := adminCtx()

	if _, err := eng.RecordRestock(ctx, domain.RestockRequest{
		ProductID: "P-COLA", Quantity: 24, TotalCost: dec("14.40"),
	}); err != nil {
		t.Fatalf("restock failed: %v", err)
	}
	if _, err := eng.RecordSale(ctx, domain.SaleRequest{
		ProductID: "P-COLA", Quantity: 4, TotalRevenue: dec("5.00"),
	}); err != nil {
		t.Fatalf("sale failed: %v", err)
	}
	// Oversold product: the negative balance must survive the archive.
	if _, err := eng.RecordSale(ctx, domain.SaleRequest{
		ProductID: "P-CHIPS", Quantity: 2, TotalRevenue: dec("5.00"),
	}); err != nil {
		t.Fatalf("sale failed: %v", err)
	}

	summary, err := eng.ArchivePeriod(ctx, domain.ArchiveRequest{Label: "Q3 2026"})
	if err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if summary.Label != "q3_2026" {
		t.Fatalf("expected sanitized label q3_2026, got %s", summary.Label)
	}
	if summary.RetiredRowCount != 3 {
		t.Fatalf("expected 3 retired rows, got %d", summary.RetiredRowCount)
	}
	if summary.OpenStockRows != 2 {
		t.Fatalf("expected 2 opening rows, got %d", summary.OpenStockRows)
	}

	stock, err := eng.ComputeStock(ctx, "P-COLA")
	if err != nil {
		t.Fatalf("stock failed: %v", err)
	}
	if stock != 20 {
		t.Fatalf("expected carried-forward stock 20, got %d", stock)
	}
	negative, err := eng.ComputeStock(ctx, "P-CHIPS")
	if err != nil {
		t.Fatalf("stock failed: %v", err)
	}
	if negative != -2 {
		t.Fatalf("expected carried-forward stock -2, got %d", negative)
	}

	rows, err := eng.ListTransactions(ctx, domain.TransactionFilter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, row := range rows {
		if row.Type != domain.TypeOpenStock {
			t.Fatalf("expected only OPEN_STOCK rows after archive, got %s", row.Type)
		}
		if !row.TotalRevenue.IsZero() || !row.TotalCost.IsZero() {
			t.Fatalf("opening rows must carry no money: %+v", row)
		}
	}

	if got := len(repo.RetiredTransactions("q3_2026")); got != 3 {
		t.Fatalf("expected 3 rows retired under label, got %d", got)
	}

	// Profit resets with the period.
	profit, err := eng.ComputeProfit(ctx, "")
	if err != nil {
		t.Fatalf("profit failed: %v", err)
	}
	if !profit.Profit.IsZero() {
		t.Fatalf("expected zero profit in new period, got %s", profit.Profit)
	}
}

func TestArchivePrunesOnlyInactiveUnreferencedEntities(t *testing.T) {
	repo := memory.NewSeeded()
	eng := New(repo, "S-ANA")
	ctx := adminCtx()

	// Inactive with history: kept. Inactive without history: pruned.
	if _, err := eng.RecordSale(ctx, domain.SaleRequest{
		ProductID: "P-COLA", Quantity: 1, TotalRevenue: dec("1.25"),
	}); err != nil {
		t.Fatalf("sale failed: %v", err)
	}
	if err := eng.SetProductActive(ctx, "P-COLA", false); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if err := eng.SetProductActive(ctx, "P-CHOC", false); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	summary, err := eng.ArchivePeriod(ctx, domain.ArchiveRequest{Label: "prune_test"})
	if err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if summary.ProductsPruned != 1 {
		t.Fatalf("expected 1 pruned product, got %d", summary.ProductsPruned)
	}
	if summary.ProductsKept != 3 {
		t.Fatalf("expected 3 kept products, got %d", summary.ProductsKept)
	}

	if _, err := eng.GetProduct(ctx, "P-COLA"); err != nil {
		t.Fatalf("inactive referenced product should survive: %v", err)
	}
	if _, err := eng.GetProduct(ctx, "P-CHOC"); !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("expected pruned product gone, got %v", err)
	}
}

func TestArchiveRequiresAdmin(t *testing.T) {
	eng := newTestEngine()
	clerkCtx := WithActor(context.Background(), domain.Actor{Username: "clerk", Role: "clerk"})

	_, err := eng.ArchivePeriod(clerkCtx, domain.ArchiveRequest{})
	if !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired, got %v", err)
	}
}
