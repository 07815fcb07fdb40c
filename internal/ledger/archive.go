package ledger

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"loungeerp/backend/internal/domain"
	"loungeerp/backend/internal/txid"
)

var labelPattern = regexp.MustCompile(`[^a-z0-9_]+`)

// ArchivePeriod closes out the current ledger. The full history is retired
// under the label, inactive entities with no remaining history are pruned,
// and nonzero stock carries forward as fresh opening rows so the next period
// starts from a one-row-per-product baseline.
func (e *Engine) ArchivePeriod(ctx context.Context, req domain.ArchiveRequest) (*domain.ArchiveSummary, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	label := strings.ToLower(strings.TrimSpace(req.Label))
	if label == "" {
		label = time.Now().UTC().Format("20060102")
	}
	label = labelPattern.ReplaceAllString(label, "_")

	rows, err := e.repo.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	products, err := e.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	salesmen, err := e.repo.ListSalesmen(ctx)
	if err != nil {
		return nil, err
	}

	stock := make(map[string]int64)
	productsWithHistory := make(map[string]bool)
	salesmenWithHistory := make(map[string]bool)
	for _, row := range rows {
		if row.ProductID != "" {
			stock[row.ProductID] += row.QuantityChange
			productsWithHistory[row.ProductID] = true
		}
		if row.SalesmanID != "" {
			salesmenWithHistory[row.SalesmanID] = true
		}
	}

	// An entity survives the archive if it is active or still referenced by
	// the retiring ledger. Referenced ones must stay resolvable for reports
	// against the retired period.
	keptProducts := make([]domain.Product, 0, len(products))
	prunedProducts := 0
	for _, p := range products {
		if p.Active || productsWithHistory[p.ID] {
			keptProducts = append(keptProducts, p)
		} else {
			prunedProducts++
		}
	}

	keptSalesmen := make([]domain.Salesman, 0, len(salesmen))
	prunedSalesmen := 0
	for _, sm := range salesmen {
		if sm.Active || salesmenWithHistory[sm.ID] {
			keptSalesmen = append(keptSalesmen, sm)
		} else {
			prunedSalesmen++
		}
	}

	// Negative balances carry forward too. Hiding an oversold position would
	// silently repair a discrepancy the owner needs to see.
	now := time.Now().UTC()
	openStock := make([]domain.Transaction, 0, len(keptProducts))
	for _, p := range keptProducts {
		qty := stock[p.ID]
		if qty == 0 {
			continue
		}
		openStock = append(openStock, domain.Transaction{
			ID:             txid.New(txid.PrefixTransaction, now),
			Timestamp:      now,
			Type:           domain.TypeOpenStock,
			ProductID:      p.ID,
			QuantityChange: qty,
			TotalRevenue:   decimal.Zero,
			TotalCost:      decimal.Zero,
		})
	}

	if err := e.repo.ArchivePeriod(ctx, label, openStock, keptProducts, keptSalesmen); err != nil {
		return nil, err
	}

	return &domain.ArchiveSummary{
		Label:           label,
		OpenStockRows:   len(openStock),
		ProductsKept:    len(keptProducts),
		ProductsPruned:  prunedProducts,
		SalesmenKept:    len(keptSalesmen),
		SalesmenPruned:  prunedSalesmen,
		RetiredRowCount: len(rows),
	}, nil
}
