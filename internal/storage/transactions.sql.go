package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"moneymanager/internal/core"
)

const transactionColumns = `t.id, t.account_id, a.name, t.type, t.amount_cents, t.category, t.division,
t.description, t.tags, COALESCE(t.transfer_id, ''), t.created_at, t.updated_at`

const transactionFrom = ` FROM transactions t JOIN accounts a ON a.id = t.account_id`

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t                    core.Transaction
		tags                 string
		createdAt, updatedAt int64
	)
	err := row.Scan(&t.ID, &t.AccountID, &t.AccountName, &t.Type, &t.Amount.Cents, &t.Category, &t.Division,
		&t.Description, &tags, &t.TransferID, &createdAt, &updatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return core.Transaction{}, fmt.Errorf("decode tags of transaction %s: %w", t.ID, err)
	}
	t.CreatedAt = fromUnix(createdAt)
	t.UpdatedAt = fromUnix(updatedAt)
	return t, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const createTransaction = `
INSERT INTO transactions (id, account_id, type, amount_cents, category, division, description, tags, transfer_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateTransaction(ctx context.Context, t core.Transaction) error {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, createTransaction,
		t.ID, t.AccountID, string(t.Type), t.Amount.Cents, t.Category, string(t.Division),
		t.Description, tags, nullableString(t.TransferID), toUnix(t.CreatedAt), toUnix(t.UpdatedAt))
	return err
}

func (q *Queries) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	t, err := scanTransaction(q.db.QueryRowContext(ctx, `SELECT `+transactionColumns+transactionFrom+` WHERE t.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	return t, err
}

func (q *Queries) GetTransferLegs(ctx context.Context, transferID string) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+transactionColumns+transactionFrom+` WHERE t.transfer_id = ? ORDER BY t.type ASC, t.id`, transferID)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

const updateTransaction = `
UPDATE transactions
SET account_id = ?, type = ?, amount_cents = ?, category = ?, division = ?, description = ?, tags = ?, updated_at = ?
WHERE id = ?`

// UpdateTransaction rewrites the mutable fields. created_at and transfer_id never change.
func (q *Queries) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx, updateTransaction,
		t.AccountID, string(t.Type), t.Amount.Cents, t.Category, string(t.Division), t.Description, tags,
		toUnix(t.UpdatedAt), t.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (q *Queries) DeleteTransaction(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// where renders the filter as a WHERE clause over the t/a aliases.
func (f TransactionFilter) where() (string, []any) {
	conds := []string{"a.owner_id = ?"}
	args := []any{f.OwnerID}
	if f.Type != "" {
		conds = append(conds, "t.type = ?")
		args = append(args, string(f.Type))
	}
	if f.Division != "" {
		conds = append(conds, "t.division = ?")
		args = append(args, string(f.Division))
	}
	if f.Category != "" {
		conds = append(conds, "t.category = ?")
		args = append(args, f.Category)
	}
	if f.MinCents != nil {
		conds = append(conds, "t.amount_cents >= ?")
		args = append(args, *f.MinCents)
	}
	if f.MaxCents != nil {
		conds = append(conds, "t.amount_cents <= ?")
		args = append(args, *f.MaxCents)
	}
	if !f.From.IsZero() {
		conds = append(conds, "t.created_at >= ?")
		args = append(args, toUnix(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "t.created_at <= ?")
		args = append(args, toUnix(f.To))
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListTransactions returns matching transactions newest first. A negative
// limit returns every match.
func (q *Queries) ListTransactions(ctx context.Context, f TransactionFilter, limit, offset int) ([]core.Transaction, error) {
	where, args := f.where()
	query := `SELECT ` + transactionColumns + transactionFrom + where +
		` ORDER BY t.created_at DESC, t.id DESC LIMIT ? OFFSET ?`
	rows, err := q.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (q *Queries) CountTransactions(ctx context.Context, f TransactionFilter) (int64, error) {
	where, args := f.where()
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*)`+transactionFrom+where, args...).Scan(&n)
	return n, err
}

func (q *Queries) SumTransactions(ctx context.Context, f TransactionFilter) (TransactionTotals, error) {
	where, args := f.where()
	query := `SELECT
COALESCE(SUM(CASE WHEN t.type = 'Income' THEN t.amount_cents ELSE 0 END), 0),
COALESCE(SUM(CASE WHEN t.type = 'Expense' THEN t.amount_cents ELSE 0 END), 0),
COUNT(*)` + transactionFrom + where

	var totals TransactionTotals
	err := q.db.QueryRowContext(ctx, query, args...).Scan(&totals.IncomeCents, &totals.ExpenseCents, &totals.Count)
	return totals, err
}

const sumExpenses = `
SELECT COALESCE(SUM(t.amount_cents), 0)
FROM transactions t JOIN accounts a ON a.id = t.account_id
WHERE a.owner_id = ? AND t.type = 'Expense' AND t.category = ? AND t.division = ? AND t.created_at >= ?`

// SumExpenses totals the owner's Expense amounts for a category and division
// created at or after since.
func (q *Queries) SumExpenses(ctx context.Context, ownerID, category string, division core.Division, since time.Time) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, sumExpenses, ownerID, category, string(division), toUnix(since)).Scan(&n)
	return n, err
}

const categorySummaries = `
SELECT t.category,
       COALESCE(SUM(CASE WHEN t.type = 'Income' THEN t.amount_cents ELSE 0 END), 0) AS income,
       COALESCE(SUM(CASE WHEN t.type = 'Expense' THEN t.amount_cents ELSE 0 END), 0) AS expense,
       COUNT(*)
FROM transactions t JOIN accounts a ON a.id = t.account_id
WHERE a.owner_id = ?
GROUP BY t.category
ORDER BY income - expense DESC, t.category ASC`

func (q *Queries) CategorySummaries(ctx context.Context, ownerID string) ([]core.CategorySummary, error) {
	rows, err := q.db.QueryContext(ctx, categorySummaries, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.CategorySummary
	for rows.Next() {
		var cs core.CategorySummary
		if err := rows.Scan(&cs.Category, &cs.Income.Cents, &cs.Expense.Cents, &cs.Count); err != nil {
			return nil, err
		}
		cs.Net = cs.Income.Sub(cs.Expense)
		out = append(out, cs)
	}
	return out, rows.Err()
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
