package core

import "time"

// CategorySummary aggregates all of an owner's transactions for one category.
type CategorySummary struct {
	Category string
	Income   Money
	Expense  Money
	Net      Money
	Count    int64
}

// DateRange is an inclusive reporting window.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Summary is the totals block consumed by dashboards and report renderers.
type Summary struct {
	TotalIncome      Money
	TotalExpense     Money
	TransactionCount int64
	Period           DateRange
}

// Net returns income minus expense.
func (s Summary) Net() Money {
	return s.TotalIncome.Sub(s.TotalExpense)
}

// BudgetStatus is a budget together with its derived spend.
type BudgetStatus struct {
	Budget    Budget
	Spent     Money
	Remaining Money
	Since     time.Time
}

// ReportFilter narrows the transactions included in a report. Zero values
// mean "no restriction".
type ReportFilter struct {
	Type      TransactionType
	Division  Division
	Category  string
	MinAmount *Money
	MaxAmount *Money
	From      time.Time
	To        time.Time
}

// Report is the data handed to export renderers.
type Report struct {
	Transactions []Transaction
	Summary      Summary
}

// TransferResult describes a committed transfer.
type TransferResult struct {
	TransferID  string
	Debit       Transaction
	Credit      Transaction
	FromBalance Money
	ToBalance   Money
}

// AuditResult compares a stored balance with the balance implied by the
// account's transactions.
type AuditResult struct {
	AccountID string
	OwnerID   string
	Stored    Money
	Expected  Money
}

func (a AuditResult) Consistent() bool {
	return a.Stored == a.Expected
}

// EndOfDay returns the last representable instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Millisecond), t.Location())
}
