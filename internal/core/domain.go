package core

import (
	"sort"
	"strings"
	"time"
)

const (
	Income  TransactionType = "Income"
	Expense TransactionType = "Expense"

	Personal Division = "Personal"
	Office   Division = "Office"

	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

// TransferCategory is the category carried by both legs of a transfer.
const TransferCategory = "Transfer"

// MainAccountName is the name of the account created on first use.
const MainAccountName = "Main Account"

// DefaultEditWindow bounds how long after creation a transaction may be edited.
const DefaultEditWindow = 12 * time.Hour

const maxDescriptionLen = 200

type (
	TransactionType string
	Division        string
	Period          string

	Account struct {
		ID             string
		OwnerID        string
		Name           string
		Balance        Money
		InitialBalance Money
		IsPrimary      bool
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	Transaction struct {
		ID          string
		AccountID   string
		AccountName string // populated on reads
		Type        TransactionType
		Amount      Money
		Category    string
		Division    Division
		Description string
		Tags        []string
		TransferID  string // empty unless the transaction is a transfer leg
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// NewTransaction is the input of the ledger create operation.
	NewTransaction struct {
		AccountID   string
		Type        TransactionType
		Amount      Money
		Category    string
		Division    Division
		Description string
		Tags        []string
	}

	// TransactionPatch holds the fields to change; nil means unchanged.
	TransactionPatch struct {
		AccountID   *string
		Type        *TransactionType
		Amount      *Money
		Category    *string
		Division    *Division
		Description *string
		Tags        *[]string
	}

	Budget struct {
		ID        string
		OwnerID   string
		Category  string
		Division  Division
		Allocated Money
		Period    Period
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	BudgetPatch struct {
		Category  *string
		Division  *Division
		Allocated *Money
		Period    *Period
	}
)

// Signed returns the balance delta the transaction contributes to its account.
func (t TransactionType) Signed(amount Money) Money {
	if t == Income {
		return amount
	}
	return amount.Neg()
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	case "":
		return missing("type")
	default:
		return fail(ErrInvalidType, "%q", string(t))
	}
}

func (d Division) Validate() error {
	switch d {
	case Personal, Office:
		return nil
	case "":
		return missing("division")
	default:
		return fail(ErrInvalidDivision, "%q", string(d))
	}
}

func (p Period) Validate() error {
	switch p {
	case Weekly, Monthly, Yearly:
		return nil
	case "":
		return missing("period")
	default:
		return fail(ErrInvalidPeriod, "%q", string(p))
	}
}

// Signed returns the balance delta of this transaction.
func (t Transaction) Signed() Money {
	return t.Type.Signed(t.Amount)
}

// IsTransferLeg reports whether the transaction was produced by a transfer.
func (t Transaction) IsTransferLeg() bool {
	return t.TransferID != ""
}

// EditableAt reports whether the transaction can still be edited at now.
func (t Transaction) EditableAt(now time.Time, window time.Duration) bool {
	return now.Sub(t.CreatedAt) <= window
}

func (n NewTransaction) Validate() error {
	if strings.TrimSpace(n.AccountID) == "" {
		return missing("account")
	}
	if err := n.Type.Validate(); err != nil {
		return err
	}
	if err := n.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(n.Category) == "" {
		return missing("category")
	}
	if err := n.Division.Validate(); err != nil {
		return err
	}
	if len(n.Description) > maxDescriptionLen {
		return fail(ErrInvalidInput, "description too long (max %d characters)", maxDescriptionLen)
	}
	return nil
}

// Apply returns t with the patch applied. The result is not validated.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.AccountID != nil {
		t.AccountID = *p.AccountID
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = strings.TrimSpace(*p.Category)
	}
	if p.Division != nil {
		t.Division = *p.Division
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Tags != nil {
		t.Tags = NormalizeTags(*p.Tags)
	}
	return t
}

// ValidateFields checks the mutable fields of a stored or patched transaction.
func (t Transaction) ValidateFields() error {
	return NewTransaction{
		AccountID:   t.AccountID,
		Type:        t.Type,
		Amount:      t.Amount,
		Category:    t.Category,
		Division:    t.Division,
		Description: t.Description,
	}.Validate()
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return missing("category")
	}
	if err := b.Division.Validate(); err != nil {
		return err
	}
	if err := b.Allocated.Validate(); err != nil {
		return err
	}
	return b.Period.Validate()
}

func (p BudgetPatch) Apply(b Budget) Budget {
	if p.Category != nil {
		b.Category = strings.TrimSpace(*p.Category)
	}
	if p.Division != nil {
		b.Division = *p.Division
	}
	if p.Allocated != nil {
		b.Allocated = *p.Allocated
	}
	if p.Period != nil {
		b.Period = *p.Period
	}
	return b
}

// NormalizeTags trims, drops empties, deduplicates and sorts tags.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// ValidateAccountName checks an account name supplied by a caller.
func ValidateAccountName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return missing("name")
	}
	if len(name) > 100 {
		return fail(ErrInvalidInput, "name too long (max 100 characters)")
	}
	return nil
}
