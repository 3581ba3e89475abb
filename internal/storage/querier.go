package storage

import (
	"context"
	"time"

	"moneymanager/internal/core"
)

// Querier is the full statement set of the ledger store. The same set is
// available outside a transaction (reads) and inside InTx (atomic units).
type Querier interface {
	// Accounts
	CreateAccount(ctx context.Context, a core.Account) error
	GetAccount(ctx context.Context, id string) (core.Account, error)
	GetAccountForOwner(ctx context.Context, ownerID, id string) (core.Account, error)
	GetAccountByName(ctx context.Context, ownerID, name string) (core.Account, error)
	GetPrimaryAccount(ctx context.Context, ownerID string) (core.Account, error)
	GetOldestAccount(ctx context.Context, ownerID string) (core.Account, error)
	ListAccounts(ctx context.Context, ownerID string, limit, offset int) ([]core.Account, error)
	CountAccounts(ctx context.Context, ownerID string) (int64, error)
	ListAccountIDsAfter(ctx context.Context, afterID string, limit int) ([]string, error)
	ApplyBalanceDelta(ctx context.Context, ownerID, id string, deltaCents int64, at time.Time) (int64, error)
	ClearPrimary(ctx context.Context, ownerID, exceptID string, at time.Time) error
	MarkPrimary(ctx context.Context, ownerID, id string, at time.Time) error
	RenameAccount(ctx context.Context, ownerID, id, name string, at time.Time) error
	DeleteAccount(ctx context.Context, ownerID, id string) error
	CountAccountTransactions(ctx context.Context, accountID string) (int64, error)
	SumSignedAmounts(ctx context.Context, accountID string) (int64, error)

	// Transactions
	CreateTransaction(ctx context.Context, t core.Transaction) error
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	GetTransferLegs(ctx context.Context, transferID string) ([]core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	ListTransactions(ctx context.Context, f TransactionFilter, limit, offset int) ([]core.Transaction, error)
	CountTransactions(ctx context.Context, f TransactionFilter) (int64, error)
	SumTransactions(ctx context.Context, f TransactionFilter) (TransactionTotals, error)
	SumExpenses(ctx context.Context, ownerID, category string, division core.Division, since time.Time) (int64, error)
	CategorySummaries(ctx context.Context, ownerID string) ([]core.CategorySummary, error)

	// Budgets
	CreateBudget(ctx context.Context, b core.Budget) error
	GetBudget(ctx context.Context, ownerID, id string) (core.Budget, error)
	FindBudget(ctx context.Context, ownerID, category string, division core.Division) (core.Budget, error)
	ListBudgets(ctx context.Context, ownerID string) ([]core.Budget, error)
	UpdateBudget(ctx context.Context, b core.Budget) error
	DeleteBudget(ctx context.Context, ownerID, id string) error
}

var _ Querier = (*Queries)(nil)

// TransactionFilter selects an owner's transactions. Zero fields do not filter.
type TransactionFilter struct {
	OwnerID  string
	Type     core.TransactionType
	Division core.Division
	Category string
	MinCents *int64
	MaxCents *int64
	From     time.Time
	To       time.Time
}

// TransactionTotals is the result of SumTransactions.
type TransactionTotals struct {
	IncomeCents  int64
	ExpenseCents int64
	Count        int64
}
