package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"moneymanager/internal/core"
)

const budgetColumns = `id, owner_id, category, division, allocated_cents, period, created_at, updated_at`

func scanBudget(row rowScanner) (core.Budget, error) {
	var (
		b                    core.Budget
		createdAt, updatedAt int64
	)
	if err := row.Scan(&b.ID, &b.OwnerID, &b.Category, &b.Division, &b.Allocated.Cents, &b.Period, &createdAt, &updatedAt); err != nil {
		return core.Budget{}, err
	}
	b.CreatedAt = fromUnix(createdAt)
	b.UpdatedAt = fromUnix(updatedAt)
	return b, nil
}

func (q *Queries) getBudget(ctx context.Context, query string, args ...any) (core.Budget, error) {
	b, err := scanBudget(q.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, core.ErrNotFound
	}
	return b, err
}

func (q *Queries) CreateBudget(ctx context.Context, b core.Budget) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.OwnerID, b.Category, string(b.Division), b.Allocated.Cents, string(b.Period),
		toUnix(b.CreatedAt), toUnix(b.UpdatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s/%s", core.ErrDuplicateBudget, b.Category, b.Division)
	}
	return err
}

func (q *Queries) GetBudget(ctx context.Context, ownerID, id string) (core.Budget, error) {
	return q.getBudget(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ? AND owner_id = ?`, id, ownerID)
}

func (q *Queries) FindBudget(ctx context.Context, ownerID, category string, division core.Division) (core.Budget, error) {
	return q.getBudget(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE owner_id = ? AND category = ? AND division = ?`,
		ownerID, category, string(division))
}

func (q *Queries) ListBudgets(ctx context.Context, ownerID string) ([]core.Budget, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE owner_id = ? ORDER BY category, division`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const updateBudget = `
UPDATE budgets
SET category = ?, division = ?, allocated_cents = ?, period = ?, updated_at = ?
WHERE id = ? AND owner_id = ?`

func (q *Queries) UpdateBudget(ctx context.Context, b core.Budget) error {
	res, err := q.db.ExecContext(ctx, updateBudget,
		b.Category, string(b.Division), b.Allocated.Cents, string(b.Period), toUnix(b.UpdatedAt), b.ID, b.OwnerID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s/%s", core.ErrDuplicateBudget, b.Category, b.Division)
	}
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (q *Queries) DeleteBudget(ctx context.Context, ownerID, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
