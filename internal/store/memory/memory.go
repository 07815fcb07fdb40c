package memory

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/shopspring/decimal"

	"loungeerp/backend/internal/domain"
	"loungeerp/backend/internal/store"
)

// Store is the in-process repository used for development and tests. It keeps
// the same append-order guarantees as the durable stores: the transaction log
// is a slice that only ever grows.
type Store struct {
	mu            sync.RWMutex
	products      map[string]domain.Product
	productOrder  []string
	salesmen      map[string]domain.Salesman
	salesmanOrder []string
	transactions  []domain.Transaction
	txByID        map[string]int
	users         map[string]domain.UserAccount
	schemaVersion string

	// retired holds the transaction logs displaced by ArchivePeriod, keyed
	// by label. Kept for inspection; never read by the engine.
	retired map[string][]domain.Transaction
}

func New() *Store {
	return &Store{
		products:      make(map[string]domain.Product),
		salesmen:      make(map[string]domain.Salesman),
		txByID:        make(map[string]int),
		users:         make(map[string]domain.UserAccount),
		schemaVersion: domain.SchemaVersion,
		retired:       make(map[string][]domain.Transaction),
	}
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_CLERK_PASSWORD; when
// unset, hardcoded dev defaults are used with a warning. Durable deployments
// manage users through the postgres store instead.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	clerkPwd := envOr("SEED_CLERK_PASSWORD", "clerk123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CLERK_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CLERK_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"clerk", clerkPwd, "clerk"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store preloaded with a small catalog and dev users.
func NewSeeded() *Store {
	s := New()
	s.users = seedUsers()

	products := []domain.Product{
		{ID: "P-COLA", Name: "Cola Can 350ml", SellPrice: decimal.RequireFromString("1.25"), Active: true},
		{ID: "P-CHIPS", Name: "Potato Chips 90g", SellPrice: decimal.RequireFromString("2.50"), Active: true},
		{ID: "P-WATER", Name: "Mineral Water 500ml", SellPrice: decimal.RequireFromString("0.80"), Active: true},
		{ID: "P-CHOC", Name: "Chocolate Bar", SellPrice: decimal.RequireFromString("1.90"), Active: true},
	}
	for _, p := range products {
		s.products[p.ID] = p
		s.productOrder = append(s.productOrder, p.ID)
	}

	salesmen := []domain.Salesman{
		{ID: "HOUSE", Name: "House", Active: true},
		{ID: "S-ANA", Name: "Ana", Active: true},
		{ID: "S-RAVI", Name: "Ravi", Active: true},
	}
	for _, sm := range salesmen {
		s.salesmen[sm.ID] = sm
		s.salesmanOrder = append(s.salesmanOrder, sm.ID)
	}

	return s
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.productOrder))
	for _, id := range s.productOrder {
		out = append(out, s.products[id])
	}
	return out, nil
}

func (s *Store) AddProduct(_ context.Context, product domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return store.ErrDuplicateID
	}
	s.products[product.ID] = product
	s.productOrder = append(s.productOrder, product.ID)
	return nil
}

func (s *Store) SetProductActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Active = active
	s.products[id] = p
	return nil
}

func (s *Store) GetSalesman(_ context.Context, id string) (*domain.Salesman, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sm, ok := s.salesmen[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sm, nil
}

func (s *Store) ListSalesmen(_ context.Context) ([]domain.Salesman, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Salesman, 0, len(s.salesmanOrder))
	for _, id := range s.salesmanOrder {
		out = append(out, s.salesmen[id])
	}
	return out, nil
}

func (s *Store) AddSalesman(_ context.Context, salesman domain.Salesman) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.salesmen[salesman.ID]; exists {
		return store.ErrDuplicateID
	}
	s.salesmen[salesman.ID] = salesman
	s.salesmanOrder = append(s.salesmanOrder, salesman.ID)
	return nil
}

func (s *Store) SetSalesmanActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sm, ok := s.salesmen[id]
	if !ok {
		return store.ErrNotFound
	}
	sm.Active = active
	s.salesmen[id] = sm
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.txByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	tx := s.transactions[idx]
	return &tx, nil
}

func (s *Store) ListTransactions(_ context.Context) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out, nil
}

func (s *Store) AppendTransactions(_ context.Context, rows ...domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range rows {
		if _, exists := s.txByID[row.ID]; exists {
			return store.ErrDuplicateID
		}
	}
	for _, row := range rows {
		s.txByID[row.ID] = len(s.transactions)
		s.transactions = append(s.transactions, row)
	}
	return nil
}

func (s *Store) ArchivePeriod(_ context.Context, label string, openStock []domain.Transaction, products []domain.Product, salesmen []domain.Salesman) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.retired[label] = s.transactions

	s.transactions = nil
	s.txByID = make(map[string]int)
	for _, row := range openStock {
		s.txByID[row.ID] = len(s.transactions)
		s.transactions = append(s.transactions, row)
	}

	s.products = make(map[string]domain.Product, len(products))
	s.productOrder = s.productOrder[:0]
	for _, p := range products {
		s.products[p.ID] = p
		s.productOrder = append(s.productOrder, p.ID)
	}

	s.salesmen = make(map[string]domain.Salesman, len(salesmen))
	s.salesmanOrder = s.salesmanOrder[:0]
	for _, sm := range salesmen {
		s.salesmen[sm.ID] = sm
		s.salesmanOrder = append(s.salesmanOrder, sm.ID)
	}

	return nil
}

// RetiredTransactions exposes an archived period's rows for tests.
func (s *Store) RetiredTransactions(label string) []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.retired[label]
	out := make([]domain.Transaction, len(rows))
	copy(out, rows)
	return out
}

func (s *Store) SchemaVersion(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schemaVersion, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Username]; exists {
		return store.ErrDuplicateID
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return store.ErrNotFound
	}
	u.Password = password
	s.users[username] = u
	return nil
}
