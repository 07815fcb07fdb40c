package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"loungeerp/backend/internal/domain"
	"loungeerp/backend/internal/store"
)

// Store is the durable row store. The transaction log is append-only at the
// SQL level too: rows are only ever inserted, and read order follows the
// insert-assigned sequence column.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string, schemaVersion string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx, schemaVersion); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const ledgerTableDDL = `
	CREATE TABLE IF NOT EXISTS transaction_log (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		ts TIMESTAMPTZ NOT NULL,
		type TEXT NOT NULL,
		product_id TEXT NOT NULL DEFAULT '',
		salesman_id TEXT NOT NULL DEFAULT '',
		payment_type TEXT NOT NULL DEFAULT '',
		quantity_change BIGINT NOT NULL,
		total_revenue NUMERIC(18,4) NOT NULL,
		total_cost NUMERIC(18,4) NOT NULL,
		linked_transaction_id TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT ''
	)`

const productsTableDDL = `
	CREATE TABLE IF NOT EXISTS products (
		pos BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		sell_price NUMERIC(18,4) NOT NULL,
		active BOOLEAN NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

const salesmenTableDDL = `
	CREATE TABLE IF NOT EXISTS salesmen (
		pos BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		active BOOLEAN NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

func (s *Store) ensureSchema(ctx context.Context, schemaVersion string) error {
	ddl := []string{
		productsTableDDL,
		salesmenTableDDL,
		ledgerTableDDL,
		`CREATE TABLE IF NOT EXISTS ledger_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			role TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_meta (key, value)
		VALUES ('schema_version', $1)
		ON CONFLICT (key) DO NOTHING
	`, schemaVersion)
	return err
}

func (s *Store) SchemaVersion(ctx context.Context) (string, error) {
	var version string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM ledger_meta WHERE key = 'schema_version'
	`).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrNotFound
		}
		return "", err
	}
	return version, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, sell_price, active
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.SellPrice, &p.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, sell_price, active
		FROM products
		ORDER BY pos
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SellPrice, &p.Active); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) AddProduct(ctx context.Context, product domain.Product) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, sell_price, active)
		VALUES ($1,$2,$3,$4)
	`, product.ID, product.Name, product.SellPrice, product.Active)
	if isUniqueViolation(err) {
		return store.ErrDuplicateID
	}
	return err
}

func (s *Store) SetProductActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET active = $2, updated_at = now() WHERE id = $1
	`, id, active)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetSalesman(ctx context.Context, id string) (*domain.Salesman, error) {
	var sm domain.Salesman
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, active FROM salesmen WHERE id = $1
	`, id).Scan(&sm.ID, &sm.Name, &sm.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &sm, nil
}

func (s *Store) ListSalesmen(ctx context.Context) ([]domain.Salesman, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, active FROM salesmen ORDER BY pos
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	salesmen := make([]domain.Salesman, 0, 16)
	for rows.Next() {
		var sm domain.Salesman
		if err := rows.Scan(&sm.ID, &sm.Name, &sm.Active); err != nil {
			return nil, err
		}
		salesmen = append(salesmen, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return salesmen, nil
}

func (s *Store) AddSalesman(ctx context.Context, salesman domain.Salesman) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO salesmen (id, name, active)
		VALUES ($1,$2,$3)
	`, salesman.ID, salesman.Name, salesman.Active)
	if isUniqueViolation(err) {
		return store.ErrDuplicateID
	}
	return err
}

func (s *Store) SetSalesmanActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE salesmen SET active = $2, updated_at = now() WHERE id = $1
	`, id, active)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

const transactionColumns = `id, ts, type, product_id, salesman_id, payment_type,
	quantity_change, total_revenue, total_cost, linked_transaction_id, notes`

func scanTransaction(scanner interface{ Scan(...any) error }) (domain.Transaction, error) {
	var tx domain.Transaction
	err := scanner.Scan(
		&tx.ID, &tx.Timestamp, &tx.Type, &tx.ProductID, &tx.SalesmanID,
		&tx.PaymentType, &tx.QuantityChange, &tx.TotalRevenue, &tx.TotalCost,
		&tx.LinkedTransactionID, &tx.Notes,
	)
	if err != nil {
		return domain.Transaction{}, err
	}
	tx.Timestamp = tx.Timestamp.UTC()
	return tx, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transaction_log
		WHERE id = $1
	`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transaction_log
		ORDER BY seq
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0, 256)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

func (s *Store) AppendTransactions(ctx context.Context, txRows ...domain.Transaction) error {
	if len(txRows) == 0 {
		return nil
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = dbTx.Rollback() }()

	for _, row := range txRows {
		if err := insertTransaction(ctx, dbTx, row); err != nil {
			if isUniqueViolation(err) {
				return store.ErrDuplicateID
			}
			return err
		}
	}
	return dbTx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTransaction(ctx context.Context, db execer, row domain.Transaction) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO transaction_log
			(id, ts, type, product_id, salesman_id, payment_type,
			 quantity_change, total_revenue, total_cost, linked_transaction_id, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, row.ID, row.Timestamp.UTC(), string(row.Type), row.ProductID, row.SalesmanID,
		row.PaymentType, row.QuantityChange, row.TotalRevenue, row.TotalCost,
		row.LinkedTransactionID, row.Notes)
	return err
}

var labelPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// ArchivePeriod renames the live tables with the label suffix, recreates
// empty ones, and seeds the new period — all in a single SQL transaction so a
// failure leaves the old period untouched.
func (s *Store) ArchivePeriod(ctx context.Context, label string, openStock []domain.Transaction, products []domain.Product, salesmen []domain.Salesman) error {
	if !labelPattern.MatchString(label) {
		return fmt.Errorf("invalid archive label %q", label)
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = dbTx.Rollback() }()

	renames := []string{
		fmt.Sprintf(`ALTER TABLE transaction_log RENAME TO transaction_log_%s`, label),
		fmt.Sprintf(`ALTER TABLE products RENAME TO products_%s`, label),
		fmt.Sprintf(`ALTER TABLE salesmen RENAME TO salesmen_%s`, label),
		// Free up the sequence and index names for the fresh tables.
		fmt.Sprintf(`ALTER SEQUENCE transaction_log_seq_seq RENAME TO transaction_log_seq_seq_%s`, label),
		fmt.Sprintf(`ALTER SEQUENCE products_pos_seq RENAME TO products_pos_seq_%s`, label),
		fmt.Sprintf(`ALTER SEQUENCE salesmen_pos_seq RENAME TO salesmen_pos_seq_%s`, label),
		fmt.Sprintf(`ALTER INDEX transaction_log_id_key RENAME TO transaction_log_id_key_%s`, label),
		fmt.Sprintf(`ALTER INDEX products_id_key RENAME TO products_id_key_%s`, label),
		fmt.Sprintf(`ALTER INDEX salesmen_id_key RENAME TO salesmen_id_key_%s`, label),
		fmt.Sprintf(`ALTER INDEX transaction_log_pkey RENAME TO transaction_log_pkey_%s`, label),
		fmt.Sprintf(`ALTER INDEX products_pkey RENAME TO products_pkey_%s`, label),
		fmt.Sprintf(`ALTER INDEX salesmen_pkey RENAME TO salesmen_pkey_%s`, label),
	}
	for _, stmt := range renames {
		if _, err := dbTx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, stmt := range []string{productsTableDDL, salesmenTableDDL, ledgerTableDDL} {
		if _, err := dbTx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, p := range products {
		if _, err := dbTx.ExecContext(ctx, `
			INSERT INTO products (id, name, sell_price, active) VALUES ($1,$2,$3,$4)
		`, p.ID, p.Name, p.SellPrice, p.Active); err != nil {
			return err
		}
	}
	for _, sm := range salesmen {
		if _, err := dbTx.ExecContext(ctx, `
			INSERT INTO salesmen (id, name, active) VALUES ($1,$2,$3)
		`, sm.ID, sm.Name, sm.Active); err != nil {
			return err
		}
	}
	for _, row := range openStock {
		if err := insertTransaction(ctx, dbTx, row); err != nil {
			return err
		}
	}

	return dbTx.Commit()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrDuplicateID
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at FROM users
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
