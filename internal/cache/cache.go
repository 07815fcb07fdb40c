// Package cache wraps a store.Repository with invalidate-on-write
// memoization. The buckets hold derived, disposable views only: discarding
// them at any point loses nothing, and under the single-writer convention a
// cached read is indistinguishable from re-reading the store.
package cache

import (
	"context"
	"sync"

	"loungeerp/backend/internal/domain"
	"loungeerp/backend/internal/store"
)

// SharedBuckets is an optional second-level bucket store consulted on local
// misses and invalidated on every write, e.g. redis surviving process
// restarts. The zero-cost default is Noop.
type SharedBuckets interface {
	GetProducts(ctx context.Context) ([]domain.Product, bool, error)
	SetProducts(ctx context.Context, products []domain.Product) error
	GetSalesmen(ctx context.Context) ([]domain.Salesman, bool, error)
	SetSalesmen(ctx context.Context, salesmen []domain.Salesman) error
	GetTransactions(ctx context.Context) ([]domain.Transaction, bool, error)
	SetTransactions(ctx context.Context, transactions []domain.Transaction) error
	Invalidate(ctx context.Context, bucket string) error
}

const (
	BucketProducts     = "products"
	BucketSalesmen     = "salesmen"
	BucketTransactions = "transactions"
)

type Noop struct{}

func (Noop) GetProducts(context.Context) ([]domain.Product, bool, error)   { return nil, false, nil }
func (Noop) SetProducts(context.Context, []domain.Product) error           { return nil }
func (Noop) GetSalesmen(context.Context) ([]domain.Salesman, bool, error)  { return nil, false, nil }
func (Noop) SetSalesmen(context.Context, []domain.Salesman) error          { return nil }
func (Noop) GetTransactions(context.Context) ([]domain.Transaction, bool, error) {
	return nil, false, nil
}
func (Noop) SetTransactions(context.Context, []domain.Transaction) error { return nil }
func (Noop) Invalidate(context.Context, string) error                    { return nil }

type productBucket struct {
	valid bool
	list  []domain.Product
	byID  map[string]domain.Product
}

type salesmanBucket struct {
	valid bool
	list  []domain.Salesman
	byID  map[string]domain.Salesman
}

type transactionBucket struct {
	valid bool
	list  []domain.Transaction
	byID  map[string]domain.Transaction
}

// Repository memoizes the three read paths of the inner repository and
// invalidates the affected bucket on every write. It implements
// store.Repository so the engine cannot tell it apart from the store itself.
type Repository struct {
	inner  store.Repository
	shared SharedBuckets

	mu           sync.Mutex
	products     productBucket
	salesmen     salesmanBucket
	transactions transactionBucket
}

func Wrap(inner store.Repository, shared SharedBuckets) *Repository {
	if shared == nil {
		shared = Noop{}
	}
	return &Repository{inner: inner, shared: shared}
}

// InvalidateAll drops every bucket, local and shared. Used after archiving.
func (r *Repository) InvalidateAll(ctx context.Context) {
	r.mu.Lock()
	r.products = productBucket{}
	r.salesmen = salesmanBucket{}
	r.transactions = transactionBucket{}
	r.mu.Unlock()

	for _, bucket := range []string{BucketProducts, BucketSalesmen, BucketTransactions} {
		_ = r.shared.Invalidate(ctx, bucket)
	}
}

func (r *Repository) invalidateProducts(ctx context.Context) {
	r.mu.Lock()
	r.products = productBucket{}
	r.mu.Unlock()
	_ = r.shared.Invalidate(ctx, BucketProducts)
}

func (r *Repository) invalidateSalesmen(ctx context.Context) {
	r.mu.Lock()
	r.salesmen = salesmanBucket{}
	r.mu.Unlock()
	_ = r.shared.Invalidate(ctx, BucketSalesmen)
}

func (r *Repository) invalidateTransactions(ctx context.Context) {
	r.mu.Lock()
	r.transactions = transactionBucket{}
	r.mu.Unlock()
	_ = r.shared.Invalidate(ctx, BucketTransactions)
}

// loadProducts rebuilds the bucket on demand: local first, then shared, then
// the inner store. Shared-layer errors degrade to a store read, never fail
// the caller.
func (r *Repository) loadProducts(ctx context.Context) (productBucket, error) {
	r.mu.Lock()
	if r.products.valid {
		b := r.products
		r.mu.Unlock()
		return b, nil
	}
	r.mu.Unlock()

	list, ok, err := r.shared.GetProducts(ctx)
	if err != nil || !ok {
		list, err = r.inner.ListProducts(ctx)
		if err != nil {
			return productBucket{}, err
		}
		_ = r.shared.SetProducts(ctx, list)
	}

	b := productBucket{valid: true, list: list, byID: make(map[string]domain.Product, len(list))}
	for _, p := range list {
		b.byID[p.ID] = p
	}

	r.mu.Lock()
	r.products = b
	r.mu.Unlock()
	return b, nil
}

func (r *Repository) loadSalesmen(ctx context.Context) (salesmanBucket, error) {
	r.mu.Lock()
	if r.salesmen.valid {
		b := r.salesmen
		r.mu.Unlock()
		return b, nil
	}
	r.mu.Unlock()

	list, ok, err := r.shared.GetSalesmen(ctx)
	if err != nil || !ok {
		list, err = r.inner.ListSalesmen(ctx)
		if err != nil {
			return salesmanBucket{}, err
		}
		_ = r.shared.SetSalesmen(ctx, list)
	}

	b := salesmanBucket{valid: true, list: list, byID: make(map[string]domain.Salesman, len(list))}
	for _, sm := range list {
		b.byID[sm.ID] = sm
	}

	r.mu.Lock()
	r.salesmen = b
	r.mu.Unlock()
	return b, nil
}

func (r *Repository) loadTransactions(ctx context.Context) (transactionBucket, error) {
	r.mu.Lock()
	if r.transactions.valid {
		b := r.transactions
		r.mu.Unlock()
		return b, nil
	}
	r.mu.Unlock()

	list, ok, err := r.shared.GetTransactions(ctx)
	if err != nil || !ok {
		list, err = r.inner.ListTransactions(ctx)
		if err != nil {
			return transactionBucket{}, err
		}
		_ = r.shared.SetTransactions(ctx, list)
	}

	b := transactionBucket{valid: true, list: list, byID: make(map[string]domain.Transaction, len(list))}
	for _, tx := range list {
		b.byID[tx.ID] = tx
	}

	r.mu.Lock()
	r.transactions = b
	r.mu.Unlock()
	return b, nil
}

func (r *Repository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	b, err := r.loadProducts(ctx)
	if err != nil {
		return nil, err
	}
	p, ok := b.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (r *Repository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	b, err := r.loadProducts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, len(b.list))
	copy(out, b.list)
	return out, nil
}

func (r *Repository) AddProduct(ctx context.Context, product domain.Product) error {
	if err := r.inner.AddProduct(ctx, product); err != nil {
		return err
	}
	r.invalidateProducts(ctx)
	return nil
}

func (r *Repository) SetProductActive(ctx context.Context, id string, active bool) error {
	if err := r.inner.SetProductActive(ctx, id, active); err != nil {
		return err
	}
	r.invalidateProducts(ctx)
	return nil
}

func (r *Repository) GetSalesman(ctx context.Context, id string) (*domain.Salesman, error) {
	b, err := r.loadSalesmen(ctx)
	if err != nil {
		return nil, err
	}
	sm, ok := b.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sm, nil
}

func (r *Repository) ListSalesmen(ctx context.Context) ([]domain.Salesman, error) {
	b, err := r.loadSalesmen(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Salesman, len(b.list))
	copy(out, b.list)
	return out, nil
}

func (r *Repository) AddSalesman(ctx context.Context, salesman domain.Salesman) error {
	if err := r.inner.AddSalesman(ctx, salesman); err != nil {
		return err
	}
	r.invalidateSalesmen(ctx)
	return nil
}

func (r *Repository) SetSalesmanActive(ctx context.Context, id string, active bool) error {
	if err := r.inner.SetSalesmanActive(ctx, id, active); err != nil {
		return err
	}
	r.invalidateSalesmen(ctx)
	return nil
}

func (r *Repository) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	b, err := r.loadTransactions(ctx)
	if err != nil {
		return nil, err
	}
	tx, ok := b.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &tx, nil
}

func (r *Repository) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	b, err := r.loadTransactions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Transaction, len(b.list))
	copy(out, b.list)
	return out, nil
}

func (r *Repository) AppendTransactions(ctx context.Context, rows ...domain.Transaction) error {
	if err := r.inner.AppendTransactions(ctx, rows...); err != nil {
		return err
	}
	r.invalidateTransactions(ctx)
	return nil
}

func (r *Repository) ArchivePeriod(ctx context.Context, label string, openStock []domain.Transaction, products []domain.Product, salesmen []domain.Salesman) error {
	if err := r.inner.ArchivePeriod(ctx, label, openStock, products, salesmen); err != nil {
		return err
	}
	r.InvalidateAll(ctx)
	return nil
}

func (r *Repository) SchemaVersion(ctx context.Context) (string, error) {
	return r.inner.SchemaVersion(ctx)
}

func (r *Repository) CreateUser(ctx context.Context, user domain.UserAccount) error {
	return r.inner.CreateUser(ctx, user)
}

func (r *Repository) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	return r.inner.ListUsers(ctx)
}

func (r *Repository) UpdateUserPassword(ctx context.Context, username string, password string) error {
	return r.inner.UpdateUserPassword(ctx, username, password)
}
