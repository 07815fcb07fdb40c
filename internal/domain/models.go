package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SchemaVersion is the ledger layout version every store must carry. Startup
// refuses a store tagged with anything else.
const SchemaVersion = "1.0.0"

type TransactionType string

const (
	TypeOpenStock     TransactionType = "OPEN_STOCK"
	TypeSale          TransactionType = "SALE"
	TypeRestock       TransactionType = "RESTOCK"
	TypeWriteOff      TransactionType = "WRITE_OFF"
	TypeCreditPayment TransactionType = "CREDIT_PAYMENT"
	TypeVoid          TransactionType = "VOID"
)

// Payment type is a free-form tag on SALE and CREDIT_PAYMENT rows. These are
// the values the presentation layer offers; the engine accepts any string.
const (
	PaymentCash     = "Cash"
	PaymentCard     = "Card"
	PaymentOnCredit = "On Credit"
	PaymentPIX      = "PIX"
)

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	SellPrice decimal.Decimal `json:"sell_price"`
	Active    bool            `json:"active"`
}

type Salesman struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Transaction is one immutable ledger row. Optional reference columns are
// empty strings when absent. TotalCost is stored non-positive so that
// revenue + cost is profit.
type Transaction struct {
	ID                  string          `json:"id"`
	Timestamp           time.Time       `json:"timestamp"`
	Type                TransactionType `json:"type"`
	ProductID           string          `json:"product_id,omitempty"`
	SalesmanID          string          `json:"salesman_id,omitempty"`
	PaymentType         string          `json:"payment_type,omitempty"`
	QuantityChange      int64           `json:"quantity_change"`
	TotalRevenue        decimal.Decimal `json:"total_revenue"`
	TotalCost           decimal.Decimal `json:"total_cost"`
	LinkedTransactionID string          `json:"linked_transaction_id,omitempty"`
	Notes               string          `json:"notes,omitempty"`
}

type SaleRequest struct {
	ProductID    string          `json:"product_id"`
	SalesmanID   string          `json:"salesman_id"`
	Quantity     int64           `json:"quantity"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	PaymentType  string          `json:"payment_type"`
	Timestamp    *time.Time      `json:"timestamp,omitempty"`
	Notes        string          `json:"notes,omitempty"`
}

type RestockRequest struct {
	ProductID  string          `json:"product_id"`
	SalesmanID string          `json:"salesman_id"`
	Quantity   int64           `json:"quantity"`
	TotalCost  decimal.Decimal `json:"total_cost"`
	Timestamp  *time.Time      `json:"timestamp,omitempty"`
	Notes      string          `json:"notes,omitempty"`
}

type WriteOffRequest struct {
	ProductID  string     `json:"product_id"`
	SalesmanID string     `json:"salesman_id"`
	Quantity   int64      `json:"quantity"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

type CreditPaymentRequest struct {
	LinkedTransactionID string          `json:"linked_transaction_id"`
	SalesmanID          string          `json:"salesman_id"`
	TotalRevenue        decimal.Decimal `json:"total_revenue"`
	PaymentType         string          `json:"payment_type"`
	Timestamp           *time.Time      `json:"timestamp,omitempty"`
	Notes               string          `json:"notes,omitempty"`
}

type OpenStockRequest struct {
	ProductID string     `json:"product_id"`
	Quantity  int64      `json:"quantity"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// VoidRequest reverses a prior row. Replacement, when set, is recorded as an
// independent sale after the void succeeds; a crash in between leaves a valid
// void without its replacement and the caller retries the second step.
type VoidRequest struct {
	LinkedTransactionID string       `json:"linked_transaction_id"`
	Notes               string       `json:"notes,omitempty"`
	Replacement         *SaleRequest `json:"replacement,omitempty"`
}

type ProductCreateRequest struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	SellPrice decimal.Decimal `json:"sell_price"`
}

type SalesmanCreateRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type SetActiveRequest struct {
	Active bool `json:"active"`
}

// TransactionFilter narrows ListTransactions. Zero values mean "no filter";
// Limit keeps the most recent N rows without disturbing append order.
type TransactionFilter struct {
	ProductID string
	Type      TransactionType
	Limit     int
}

type StockLevel struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int64  `json:"quantity"`
}

type ProfitSummary struct {
	ProductID    string          `json:"product_id,omitempty"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	Profit       decimal.Decimal `json:"profit"`
}

// DebtEntry reports one unsettled credit sale. Owed is negative when the sale
// has been overpaid.
type DebtEntry struct {
	TransactionID string          `json:"transaction_id"`
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	SalesmanID    string          `json:"salesman_id"`
	SalesmanName  string          `json:"salesman_name"`
	Owed          decimal.Decimal `json:"owed"`
}

type ArchiveRequest struct {
	Label string `json:"label,omitempty"`
}

type ArchiveSummary struct {
	Label           string `json:"label"`
	OpenStockRows   int    `json:"open_stock_rows"`
	ProductsKept    int    `json:"products_kept"`
	ProductsPruned  int    `json:"products_pruned"`
	SalesmenKept    int    `json:"salesmen_kept"`
	SalesmenPruned  int    `json:"salesmen_pruned"`
	RetiredRowCount int    `json:"retired_row_count"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type ClerkCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ClerkUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
