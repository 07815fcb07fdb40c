// Package ledger is the transaction engine: it validates business
// operations, constructs immutable ledger rows, and computes the derived
// views (stock, profit, outstanding debts). History is never mutated;
// corrections are expressed as compensating VOID rows.
package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"loungeerp/backend/internal/domain"
	"loungeerp/backend/internal/store"
	"loungeerp/backend/internal/txid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Engine struct {
	repo              store.Repository
	defaultSalesmanID string
}

// New builds an engine over the given repository, normally the cache-wrapped
// one. defaultSalesmanID is substituted when a request omits the salesman.
func New(repo store.Repository, defaultSalesmanID string) *Engine {
	return &Engine{
		repo:              repo,
		defaultSalesmanID: defaultSalesmanID,
	}
}

func resolveTimestamp(candidate *time.Time) time.Time {
	if candidate != nil {
		return candidate.UTC()
	}
	return time.Now().UTC()
}

// activeProduct resolves a product that must be eligible for new rows.
// Historical reads use repo.GetProduct directly, which resolves inactive
// entries too.
func (e *Engine) activeProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := e.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownProduct
		}
		return nil, err
	}
	if !product.Active {
		return nil, ErrInactiveProduct
	}
	return product, nil
}

func (e *Engine) activeSalesman(ctx context.Context, id string) (*domain.Salesman, error) {
	if id == "" {
		id = e.defaultSalesmanID
	}
	salesman, err := e.repo.GetSalesman(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownOrInactiveSalesman
		}
		return nil, err
	}
	if !salesman.Active {
		return nil, ErrUnknownOrInactiveSalesman
	}
	return salesman, nil
}

func (e *Engine) RecordSale(ctx context.Context, req domain.SaleRequest) (*domain.Transaction, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if req.TotalRevenue.IsNegative() {
		return nil, ErrInvalidAmount
	}
	product, err := e.activeProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	salesman, err := e.activeSalesman(ctx, req.SalesmanID)
	if err != nil {
		return nil, err
	}
	paymentType := req.PaymentType
	if paymentType == "" {
		paymentType = domain.PaymentCash
	}

	ts := resolveTimestamp(req.Timestamp)
	row := domain.Transaction{
		ID:             txid.New(txid.PrefixTransaction, ts),
		Timestamp:      ts,
		Type:           domain.TypeSale,
		ProductID:      product.ID,
		SalesmanID:     salesman.ID,
		PaymentType:    paymentType,
		QuantityChange: -req.Quantity,
		TotalRevenue:   req.TotalRevenue,
		TotalCost:      decimal.Zero,
		Notes:          req.Notes,
	}
	if err := e.repo.AppendTransactions(ctx, row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (e *Engine) RecordRestock(ctx context.Context, req domain.RestockRequest) (*domain.Transaction, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	// Zero cost is valid: donated stock.
	if req.TotalCost.IsNegative() {
		return nil, ErrInvalidAmount
	}
	product, err := e.activeProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	salesman, err := e.activeSalesman(ctx, req.SalesmanID)
	if err != nil {
		return nil, err
	}

	ts := resolveTimestamp(req.Timestamp)
	row := domain.Transaction{
		ID:             txid.New(txid.PrefixTransaction, ts),
		Timestamp:      ts,
		Type:           domain.TypeRestock,
		ProductID:      product.ID,
		SalesmanID:     salesman.ID,
		QuantityChange: req.Quantity,
		TotalRevenue:   decimal.Zero,
		TotalCost:      req.TotalCost.Neg(),
		Notes:          req.Notes,
	}
	if err := e.repo.AppendTransactions(ctx, row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (e *Engine) RecordWriteOff(ctx context.Context, req domain.WriteOffRequest) (*domain.Transaction, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	product, err := e.activeProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	salesman, err := e.activeSalesman(ctx, req.SalesmanID)
	if err != nil {
		return nil, err
	}

	ts := resolveTimestamp(req.Timestamp)
	row := domain.Transaction{
		ID:             txid.New(txid.PrefixTransaction, ts),
		Timestamp:      ts,
		Type:           domain.TypeWriteOff,
		ProductID:      product.ID,
		SalesmanID:     salesman.ID,
		QuantityChange: -req.Quantity,
		TotalRevenue:   decimal.Zero,
		TotalCost:      decimal.Zero,
		Notes:          req.Notes,
	}
	if err := e.repo.AppendTransactions(ctx, row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (e *Engine) RecordCreditPayment(ctx context.Context, req domain.CreditPaymentRequest) (*domain.Transaction, error) {
	if !req.TotalRevenue.IsPositive() {
		return nil, ErrInvalidAmount
	}
	linked, err := e.repo.GetTransaction(ctx, req.LinkedTransactionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLinkedTransactionNotFound
		}
		return nil, err
	}
	if linked.Type != domain.TypeSale {
		return nil, ErrLinkedNotSale
	}
	salesman, err := e.activeSalesman(ctx, req.SalesmanID)
	if err != nil {
		return nil, err
	}
	paymentType := req.PaymentType
	if paymentType == "" {
		paymentType = domain.PaymentCash
	}

	ts := resolveTimestamp(req.Timestamp)
	row := domain.Transaction{
		ID:                  txid.New(txid.PrefixTransaction, ts),
		Timestamp:           ts,
		Type:                domain.TypeCreditPayment,
		ProductID:           linked.ProductID,
		SalesmanID:          salesman.ID,
		PaymentType:         paymentType,
		QuantityChange:      0,
		TotalRevenue:        req.TotalRevenue,
		TotalCost:           decimal.Zero,
		LinkedTransactionID: linked.ID,
		Notes:               req.Notes,
	}
	if err := e.repo.AppendTransactions(ctx, row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (e *Engine) RecordOpenStock(ctx context.Context, req domain.OpenStockRequest) (*domain.Transaction, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	product, err := e.activeProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	ts := resolveTimestamp(req.Timestamp)
	row := domain.Transaction{
		ID:             txid.New(txid.PrefixTransaction, ts),
		Timestamp:      ts,
		Type:           domain.TypeOpenStock,
		ProductID:      product.ID,
		QuantityChange: req.Quantity,
		TotalRevenue:   decimal.Zero,
		TotalCost:      decimal.Zero,
	}
	if err := e.repo.AppendTransactions(ctx, row); err != nil {
		return nil, err
	}
	return &row, nil
}

// VoidTransaction appends a reversal for the linked row and, when a
// replacement sale is supplied, records it as a second independent append.
// The returned slice holds the void first, then the replacement. A failure
// after the void persisted still returns the void alongside the error.
func (e *Engine) VoidTransaction(ctx context.Context, req domain.VoidRequest) ([]domain.Transaction, error) {
	target, err := e.repo.GetTransaction(ctx, req.LinkedTransactionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLinkedTransactionNotFound
		}
		return nil, err
	}
	// Reversals and credit payments are not voidable: a VOID of a VOID would
	// fork the audit trail, and a VOID of a payment links to the payment
	// rather than the sale, leaving the debts view counting settled money.
	if target.Type == domain.TypeVoid || target.Type == domain.TypeCreditPayment {
		return nil, ErrVoidNotAllowed
	}

	voided, err := e.hasVoid(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	if voided {
		return nil, ErrAlreadyVoided
	}

	ts := time.Now().UTC()
	reversal := domain.Transaction{
		ID:                  txid.New(txid.PrefixVoid, ts),
		Timestamp:           ts,
		Type:                domain.TypeVoid,
		ProductID:           target.ProductID,
		SalesmanID:          target.SalesmanID,
		PaymentType:         target.PaymentType,
		QuantityChange:      -target.QuantityChange,
		TotalRevenue:        target.TotalRevenue.Neg(),
		TotalCost:           target.TotalCost.Neg(),
		LinkedTransactionID: target.ID,
		Notes:               req.Notes,
	}
	if err := e.repo.AppendTransactions(ctx, reversal); err != nil {
		return nil, err
	}

	results := []domain.Transaction{reversal}
	if req.Replacement != nil {
		replacement, err := e.RecordSale(ctx, *req.Replacement)
		if err != nil {
			return results, err
		}
		results = append(results, *replacement)
	}
	return results, nil
}

func (e *Engine) hasVoid(ctx context.Context, transactionID string) (bool, error) {
	rows, err := e.repo.ListTransactions(ctx)
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if row.Type == domain.TypeVoid && row.LinkedTransactionID == transactionID {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	tx, err := e.repo.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLinkedTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

// ListTransactions returns ledger rows in append order. The filter narrows
// by product and type; Limit keeps the most recent rows without reordering.
func (e *Engine) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	rows, err := e.repo.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		if filter.ProductID != "" && row.ProductID != filter.ProductID {
			continue
		}
		if filter.Type != "" && row.Type != filter.Type {
			continue
		}
		out = append(out, row)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out, nil
}

func (e *Engine) ComputeStock(ctx context.Context, productID string) (int64, error) {
	if _, err := e.repo.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrUnknownProduct
		}
		return 0, err
	}
	rows, err := e.repo.ListTransactions(ctx)
	if err != nil {
		return 0, err
	}

	var stock int64
	for _, row := range rows {
		if row.ProductID == productID {
			stock += row.QuantityChange
		}
	}
	return stock, nil
}

func (e *Engine) StockReport(ctx context.Context) ([]domain.StockLevel, error) {
	products, err := e.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := e.repo.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}

	stock := make(map[string]int64, len(products))
	for _, row := range rows {
		if row.ProductID != "" {
			stock[row.ProductID] += row.QuantityChange
		}
	}

	levels := make([]domain.StockLevel, 0, len(products))
	for _, p := range products {
		levels = append(levels, domain.StockLevel{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    stock[p.ID],
		})
	}
	return levels, nil
}

// ComputeProfit sums revenue and cost over the whole ledger, or over one
// product when productID is set. Cost is stored non-positive, so profit is
// simply the sum of the two totals.
func (e *Engine) ComputeProfit(ctx context.Context, productID string) (*domain.ProfitSummary, error) {
	if productID != "" {
		if _, err := e.repo.GetProduct(ctx, productID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrUnknownProduct
			}
			return nil, err
		}
	}
	rows, err := e.repo.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}

	revenue := decimal.Zero
	cost := decimal.Zero
	for _, row := range rows {
		if productID != "" && row.ProductID != productID {
			continue
		}
		revenue = revenue.Add(row.TotalRevenue)
		cost = cost.Add(row.TotalCost)
	}

	return &domain.ProfitSummary{
		ProductID:    productID,
		TotalRevenue: revenue,
		TotalCost:    cost,
		Profit:       revenue.Add(cost),
	}, nil
}

// OutstandingDebts reports every non-voided credit sale whose balance is not
// settled. The expected amount is catalog price times quantity; revenue
// recorded on the sale itself counts as an upfront payment. Negative owed
// means overpaid, which is permitted and stays visible.
func (e *Engine) OutstandingDebts(ctx context.Context) ([]domain.DebtEntry, error) {
	rows, err := e.repo.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}

	voided := make(map[string]bool)
	payments := make(map[string]decimal.Decimal)
	for _, row := range rows {
		switch row.Type {
		case domain.TypeVoid:
			voided[row.LinkedTransactionID] = true
		case domain.TypeCreditPayment:
			payments[row.LinkedTransactionID] = payments[row.LinkedTransactionID].Add(row.TotalRevenue)
		}
	}

	entries := make([]domain.DebtEntry, 0)
	for _, row := range rows {
		if row.Type != domain.TypeSale || row.PaymentType != domain.PaymentOnCredit || voided[row.ID] {
			continue
		}

		product, err := e.repo.GetProduct(ctx, row.ProductID)
		if err != nil {
			return nil, err
		}

		quantity := decimal.NewFromInt(-row.QuantityChange)
		owed := product.SellPrice.Mul(quantity).Sub(row.TotalRevenue).Sub(payments[row.ID])
		if owed.IsZero() {
			continue
		}

		entry := domain.DebtEntry{
			TransactionID: row.ID,
			ProductID:     product.ID,
			ProductName:   product.Name,
			SalesmanID:    row.SalesmanID,
			Owed:          owed,
		}
		if salesman, err := e.repo.GetSalesman(ctx, row.SalesmanID); err == nil {
			entry.SalesmanName = salesman.Name
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (e *Engine) AddProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	req.ID = strings.ToUpper(strings.TrimSpace(req.ID))
	req.Name = strings.TrimSpace(req.Name)
	if req.ID == "" || req.Name == "" {
		return nil, ErrInvalidInput
	}
	if req.SellPrice.IsNegative() {
		return nil, ErrInvalidAmount
	}

	product := domain.Product{
		ID:        req.ID,
		Name:      req.Name,
		SellPrice: req.SellPrice,
		Active:    true,
	}
	if err := e.repo.AddProduct(ctx, product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (e *Engine) AddSalesman(ctx context.Context, req domain.SalesmanCreateRequest) (*domain.Salesman, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	req.ID = strings.ToUpper(strings.TrimSpace(req.ID))
	req.Name = strings.TrimSpace(req.Name)
	if req.ID == "" || req.Name == "" {
		return nil, ErrInvalidInput
	}

	salesman := domain.Salesman{
		ID:     req.ID,
		Name:   req.Name,
		Active: true,
	}
	if err := e.repo.AddSalesman(ctx, salesman); err != nil {
		return nil, err
	}
	return &salesman, nil
}

// SetProductActive soft-deletes or restores a product. History stays
// resolvable either way; only eligibility for new rows changes.
func (e *Engine) SetProductActive(ctx context.Context, id string, active bool) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	err := e.repo.SetProductActive(ctx, id, active)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUnknownProduct
	}
	return err
}

func (e *Engine) SetSalesmanActive(ctx context.Context, id string, active bool) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	err := e.repo.SetSalesmanActive(ctx, id, active)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUnknownOrInactiveSalesman
	}
	return err
}

func (e *Engine) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := e.repo.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnknownProduct
	}
	return product, err
}

func (e *Engine) GetSalesman(ctx context.Context, id string) (*domain.Salesman, error) {
	salesman, err := e.repo.GetSalesman(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnknownOrInactiveSalesman
	}
	return salesman, err
}

func (e *Engine) ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error) {
	products, err := e.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if includeInactive {
		return products, nil
	}
	active := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.Active {
			active = append(active, p)
		}
	}
	return active, nil
}

func (e *Engine) ListSalesmen(ctx context.Context, includeInactive bool) ([]domain.Salesman, error) {
	salesmen, err := e.repo.ListSalesmen(ctx)
	if err != nil {
		return nil, err
	}
	if includeInactive {
		return salesmen, nil
	}
	active := make([]domain.Salesman, 0, len(salesmen))
	for _, sm := range salesmen {
		if sm.Active {
			active = append(active, sm)
		}
	}
	return active, nil
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return ErrAdminRequired
	}
	return nil
}
