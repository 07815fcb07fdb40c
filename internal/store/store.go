package store

import (
	"context"
	"errors"

	"loungeerp/backend/internal/domain"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrDuplicateID = errors.New("duplicate id")
	ErrUnavailable = errors.New("store unavailable")
)

// Repository is the durable collaborator behind the engine: an append-only
// ledger plus the two soft-delete registries. ListTransactions returns rows
// in append order; implementations never reorder, filter, or rewrite them.
type Repository interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	AddProduct(ctx context.Context, product domain.Product) error
	SetProductActive(ctx context.Context, id string, active bool) error

	GetSalesman(ctx context.Context, id string) (*domain.Salesman, error)
	ListSalesmen(ctx context.Context) ([]domain.Salesman, error)
	AddSalesman(ctx context.Context, salesman domain.Salesman) error
	SetSalesmanActive(ctx context.Context, id string, active bool) error

	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
	// AppendTransactions persists the given rows as one atomic unit: either
	// every row is appended, in argument order, or none is.
	AppendTransactions(ctx context.Context, rows ...domain.Transaction) error

	// ArchivePeriod retires the current ledger under the given label and
	// installs a fresh one seeded with the supplied open-stock rows and
	// registry snapshots.
	ArchivePeriod(ctx context.Context, label string, openStock []domain.Transaction, products []domain.Product, salesmen []domain.Salesman) error

	// SchemaVersion reports the layout tag the store was initialized with.
	SchemaVersion(ctx context.Context) (string, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
