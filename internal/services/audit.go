package services

import (
	"context"
	"errors"
	"fmt"

	"moneymanager/internal/core"
	"moneymanager/internal/log"
	"moneymanager/internal/storage"
)

// AuditReport is the outcome of a sweep over many accounts.
type AuditReport struct {
	Checked    int
	Mismatches []core.AuditResult
}

// Auditor verifies that stored balances equal the initial balance plus the
// signed sum of the account's transactions.
type Auditor struct {
	store Store
}

func NewAuditor(store Store) *Auditor {
	return &Auditor{store: store}
}

// AuditAccount compares one account's stored and derived balances. Both are
// read inside one atomic unit so a concurrent mutation cannot skew them.
func (a *Auditor) AuditAccount(ctx context.Context, accountID string) (core.AuditResult, error) {
	var result core.AuditResult
	err := a.store.InTx(ctx, func(q storage.Querier) error {
		account, err := q.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		sum, err := q.SumSignedAmounts(ctx, accountID)
		if err != nil {
			return err
		}
		result = core.AuditResult{
			AccountID: account.ID,
			OwnerID:   account.OwnerID,
			Stored:    account.Balance,
			Expected:  account.InitialBalance.Add(core.Money{Cents: sum}),
		}
		return nil
	})
	if err != nil {
		return core.AuditResult{}, fmt.Errorf("audit account %s: %w", accountID, err)
	}

	if !result.Consistent() {
		log.FromContext(ctx).WithComponent(log.ComponentAudit).ErrorContext(ctx, "Balance mismatch",
			log.FieldOwnerID, result.OwnerID,
			log.FieldAccountID, result.AccountID,
			log.FieldBalanceCents, result.Stored.Cents,
			log.FieldExpectedCents, result.Expected.Cents)
	}
	return result, nil
}

// AuditAll walks every account in batches of batchSize.
func (a *Auditor) AuditAll(ctx context.Context, batchSize int) (AuditReport, error) {
	if batchSize < 1 {
		batchSize = core.DefaultLimit
	}

	var (
		report AuditReport
		after  string
	)
	for {
		ids, err := a.store.Querier().ListAccountIDsAfter(ctx, after, batchSize)
		if err != nil {
			return report, fmt.Errorf("list accounts after %q: %w", after, err)
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			result, err := a.AuditAccount(ctx, id)
			if errors.Is(err, core.ErrNotFound) {
				// deleted since the page was read
				continue
			}
			if err != nil {
				return report, err
			}
			report.Checked++
			if !result.Consistent() {
				report.Mismatches = append(report.Mismatches, result)
			}
		}
		if len(ids) < batchSize {
			break
		}
		after = ids[len(ids)-1]
	}

	log.FromContext(ctx).WithComponent(log.ComponentAudit).InfoContext(ctx, "Balance audit completed",
		log.FieldCount, report.Checked,
		"mismatches", len(report.Mismatches))
	return report, nil
}
