package core

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestNewTransactionValidate(t *testing.T) {
	good := NewTransaction{
		AccountID: "acc-1",
		Type:      Expense,
		Amount:    Money{Cents: 100},
		Category:  "Food",
		Division:  Personal,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		mut  func(*NewTransaction)
		want error
	}{
		{"missing account", func(n *NewTransaction) { n.AccountID = " " }, ErrMissingField},
		{"missing type", func(n *NewTransaction) { n.Type = "" }, ErrMissingField},
		{"bad type", func(n *NewTransaction) { n.Type = "Refund" }, ErrInvalidType},
		{"zero amount", func(n *NewTransaction) { n.Amount = Money{} }, ErrInvalidAmount},
		{"negative amount", func(n *NewTransaction) { n.Amount = Money{Cents: -5} }, ErrInvalidAmount},
		{"missing category", func(n *NewTransaction) { n.Category = "" }, ErrMissingField},
		{"bad division", func(n *NewTransaction) { n.Division = "Home" }, ErrInvalidDivision},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := good
			tc.mut(&n)
			err := n.Validate()
			if !errors.Is(err, tc.want) {
				t.Fatalf("Validate() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestTransactionTypeSigned(t *testing.T) {
	if got := Income.Signed(Money{Cents: 500}); got.Cents != 500 {
		t.Fatalf("Income.Signed = %d, want 500", got.Cents)
	}
	if got := Expense.Signed(Money{Cents: 500}); got.Cents != -500 {
		t.Fatalf("Expense.Signed = %d, want -500", got.Cents)
	}
}

func TestTransactionEditableAt(t *testing.T) {
	created := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	tx := Transaction{CreatedAt: created}
	window := 12 * time.Hour

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"just created", created, true},
		{"just inside window", created.Add(window - time.Second), true},
		{"exactly at window", created.Add(window), true},
		{"just outside window", created.Add(window + time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tx.EditableAt(tt.now, window); got != tt.want {
				t.Errorf("EditableAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransactionPatchApply(t *testing.T) {
	orig := Transaction{AccountID: "a", Type: Expense, Amount: Money{Cents: 100}, Category: "Food", Division: Personal}
	amount := Money{Cents: 250}
	typ := Income
	tags := []string{" b", "a", "b", ""}

	got := TransactionPatch{Amount: &amount, Type: &typ, Tags: &tags}.Apply(orig)

	if got.Amount != amount || got.Type != Income {
		t.Fatalf("patched fields not applied: %+v", got)
	}
	if got.Category != "Food" || got.AccountID != "a" {
		t.Fatalf("unpatched fields changed: %+v", got)
	}
	if !reflect.DeepEqual(got.Tags, []string{"a", "b"}) {
		t.Fatalf("tags = %v, want [a b]", got.Tags)
	}
}

func TestBudgetValidate(t *testing.T) {
	good := Budget{Category: "Food", Division: Personal, Allocated: Money{Cents: 100000}, Period: Monthly}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Budget{
		{Category: "", Division: Personal, Allocated: Money{Cents: 1}, Period: Monthly},
		{Category: "Food", Division: "x", Allocated: Money{Cents: 1}, Period: Monthly},
		{Category: "Food", Division: Office, Allocated: Money{Cents: 0}, Period: Monthly},
		{Category: "Food", Division: Office, Allocated: Money{Cents: 1}, Period: "daily"},
	}
	for i, b := range bads {
		if err := b.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestValidateAccountName(t *testing.T) {
	if err := ValidateAccountName("Savings"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := ValidateAccountName("   "); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}
