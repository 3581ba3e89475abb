package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"moneymanager/internal/core"
)

const accountColumns = `id, owner_id, name, balance_cents, initial_balance_cents, is_primary, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (core.Account, error) {
	var (
		a                    core.Account
		isPrimary            int64
		createdAt, updatedAt int64
	)
	err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Balance.Cents, &a.InitialBalance.Cents, &isPrimary, &createdAt, &updatedAt)
	if err != nil {
		return core.Account{}, err
	}
	a.IsPrimary = isPrimary == 1
	a.CreatedAt = fromUnix(createdAt)
	a.UpdatedAt = fromUnix(updatedAt)
	return a, nil
}

func (q *Queries) getAccount(ctx context.Context, query string, args ...any) (core.Account, error) {
	a, err := scanAccount(q.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrNotFound
	}
	return a, err
}

const createAccount = `
INSERT INTO accounts (` + accountColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := q.db.ExecContext(ctx, createAccount,
		a.ID, a.OwnerID, a.Name, a.Balance.Cents, a.InitialBalance.Cents,
		boolToInt(a.IsPrimary), toUnix(a.CreatedAt), toUnix(a.UpdatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", core.ErrDuplicateName, a.Name)
	}
	return err
}

func (q *Queries) GetAccount(ctx context.Context, id string) (core.Account, error) {
	return q.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
}

func (q *Queries) GetAccountForOwner(ctx context.Context, ownerID, id string) (core.Account, error) {
	return q.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ? AND owner_id = ?`, id, ownerID)
}

func (q *Queries) GetAccountByName(ctx context.Context, ownerID, name string) (core.Account, error) {
	return q.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE owner_id = ? AND name = ?`, ownerID, name)
}

func (q *Queries) GetPrimaryAccount(ctx context.Context, ownerID string) (core.Account, error) {
	return q.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE owner_id = ? AND is_primary = 1`, ownerID)
}

func (q *Queries) GetOldestAccount(ctx context.Context, ownerID string) (core.Account, error) {
	return q.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE owner_id = ?
ORDER BY created_at ASC, id ASC LIMIT 1`, ownerID)
}

const listAccounts = `
SELECT ` + accountColumns + ` FROM accounts
WHERE owner_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`

func (q *Queries) ListAccounts(ctx context.Context, ownerID string, limit, offset int) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (q *Queries) CountAccounts(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE owner_id = ?`, ownerID).Scan(&n)
	return n, err
}

// ListAccountIDsAfter pages through every account id in key order.
func (q *Queries) ListAccountIDsAfter(ctx context.Context, afterID string, limit int) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id FROM accounts WHERE id > ? ORDER BY id LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const applyBalanceDelta = `
UPDATE accounts
SET balance_cents = balance_cents + ?, updated_at = ?
WHERE id = ? AND owner_id = ?
RETURNING balance_cents`

// ApplyBalanceDelta adds deltaCents to the balance in a single statement and
// returns the new balance.
func (q *Queries) ApplyBalanceDelta(ctx context.Context, ownerID, id string, deltaCents int64, at time.Time) (int64, error) {
	var balance int64
	err := q.db.QueryRowContext(ctx, applyBalanceDelta, deltaCents, toUnix(at), id, ownerID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrNotFound
	}
	return balance, err
}

func (q *Queries) ClearPrimary(ctx context.Context, ownerID, exceptID string, at time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET is_primary = 0, updated_at = ? WHERE owner_id = ? AND id <> ? AND is_primary = 1`,
		toUnix(at), ownerID, exceptID)
	return err
}

func (q *Queries) MarkPrimary(ctx context.Context, ownerID, id string, at time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET is_primary = 1, updated_at = ? WHERE id = ? AND owner_id = ?`,
		toUnix(at), id, ownerID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (q *Queries) RenameAccount(ctx context.Context, ownerID, id, name string, at time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		name, toUnix(at), id, ownerID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", core.ErrDuplicateName, name)
	}
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (q *Queries) DeleteAccount(ctx context.Context, ownerID, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ? AND owner_id = ?`, id, ownerID)
	if isForeignKeyViolation(err) {
		return core.ErrAccountInUse
	}
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (q *Queries) CountAccountTransactions(ctx context.Context, accountID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE account_id = ?`, accountID).Scan(&n)
	return n, err
}

const sumSignedAmounts = `
SELECT COALESCE(SUM(CASE WHEN type = 'Income' THEN amount_cents ELSE -amount_cents END), 0)
FROM transactions
WHERE account_id = ?`

func (q *Queries) SumSignedAmounts(ctx context.Context, accountID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, sumSignedAmounts, accountID).Scan(&n)
	return n, err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
