package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"moneymanager/internal/amqp"
	"moneymanager/internal/core"
	"moneymanager/internal/log"
	"moneymanager/internal/storage"
)

// LedgerService is the Transaction Ledger. Every mutation applies its balance
// delta and persists the record in one atomic unit, which keeps
// balance == initialBalance + sum of signed amounts after every operation.
type LedgerService struct {
	deps
	editWindow time.Duration
}

func NewLedgerService(store Store, events EventPublisher, config Config) *LedgerService {
	d := newDeps(store, events, config)
	return &LedgerService{deps: d, editWindow: d.config.EditWindow}
}

// EditWindow returns how long after creation a transaction stays editable
func (s *LedgerService) EditWindow() time.Duration {
	return s.editWindow
}

// Create records a transaction and applies its delta to the account.
func (s *LedgerService) Create(ctx context.Context, ownerID string, in core.NewTransaction) (core.Transaction, error) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentLedger)
	if err := requireOwner(ownerID); err != nil {
		return core.Transaction{}, err
	}
	in.Category = strings.TrimSpace(in.Category)
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	now := s.now()
	t := core.Transaction{
		ID:          uuid.NewString(),
		AccountID:   in.AccountID,
		Type:        in.Type,
		Amount:      in.Amount,
		Category:    in.Category,
		Division:    in.Division,
		Description: in.Description,
		Tags:        core.NormalizeTags(in.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var balance int64
	err := s.store.InTx(ctx, func(q storage.Querier) error {
		account, err := ownedAccount(ctx, q, ownerID, t.AccountID)
		if err != nil {
			return err
		}
		t.AccountName = account.Name

		balance, err = q.ApplyBalanceDelta(ctx, ownerID, account.ID, t.Signed().Cents, now)
		if err != nil {
			return fmt.Errorf("apply delta: %w", err)
		}
		if err := q.CreateTransaction(ctx, t); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Failure(ctx, "Failed to create transaction", err, log.OpCreate,
			log.NewFields().WithOwner(ownerID).With(log.FieldAccountID, in.AccountID))
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	logger.InfoContext(ctx, "Transaction created",
		log.NewFields().WithOwner(ownerID).WithTransaction(t).With(log.FieldBalanceCents, balance).ToSlice()...)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventTransactionCreated, ownerID, t.AccountID).WithTransactions(t.ID))

	return t, nil
}

// Get returns a transaction of one of the owner's accounts. Transactions of
// other owners are reported as not found.
func (s *LedgerService) Get(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	t, err := ownedTransaction(ctx, s.store.Querier(), ownerID, id)
	if errors.Is(err, core.ErrForbidden) {
		err = core.NotFoundf("transaction %s", id)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// Update patches a transaction within the edit window. The old delta is
// reverted and the new one applied, possibly to another account, in the same
// atomic unit as the record change.
func (s *LedgerService) Update(ctx context.Context, ownerID, id string, patch core.TransactionPatch) (core.Transaction, error) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentLedger)

	var (
		old     core.Transaction
		updated core.Transaction
	)
	err := s.store.InTx(ctx, func(q storage.Querier) error {
		var err error
		old, err = ownedTransaction(ctx, q, ownerID, id)
		if err != nil {
			return err
		}
		if old.IsTransferLeg() {
			return fmt.Errorf("%w: transfer %s", core.ErrTransferLeg, old.TransferID)
		}
		now := s.now()
		if !old.EditableAt(now, s.editWindow) {
			return fmt.Errorf("%w: created %s ago", core.ErrEditWindowExpired, now.Sub(old.CreatedAt).Round(time.Minute))
		}

		updated = patch.Apply(old)
		if err := updated.ValidateFields(); err != nil {
			return err
		}
		if updated.AccountID != old.AccountID {
			account, err := ownedAccount(ctx, q, ownerID, updated.AccountID)
			if err != nil {
				return err
			}
			updated.AccountName = account.Name
		}
		updated.UpdatedAt = now

		if _, err := q.ApplyBalanceDelta(ctx, ownerID, old.AccountID, old.Signed().Neg().Cents, now); err != nil {
			return fmt.Errorf("revert delta: %w", err)
		}
		if _, err := q.ApplyBalanceDelta(ctx, ownerID, updated.AccountID, updated.Signed().Cents, now); err != nil {
			return fmt.Errorf("apply delta: %w", err)
		}
		return q.UpdateTransaction(ctx, updated)
	})
	if err != nil {
		logger.Failure(ctx, "Failed to update transaction", err, log.OpUpdate,
			log.NewFields().WithOwner(ownerID).With(log.FieldTransactionID, id))
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	logger.InfoContext(ctx, "Transaction updated",
		log.NewFields().WithOwner(ownerID).WithTransaction(updated).ToSlice()...)

	accounts := []string{updated.AccountID}
	if old.AccountID != updated.AccountID {
		accounts = append(accounts, old.AccountID)
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventTransactionUpdated, ownerID, accounts...).WithTransactions(id))

	return updated, nil
}

// Delete reverts a transaction's delta and removes it. Deleting either leg of
// a transfer removes both legs. Deletion is allowed at any age.
func (s *LedgerService) Delete(ctx context.Context, ownerID, id string) error {
	logger := log.FromContext(ctx).WithComponent(log.ComponentLedger)

	var removed []core.Transaction
	err := s.store.InTx(ctx, func(q storage.Querier) error {
		t, err := ownedTransaction(ctx, q, ownerID, id)
		if err != nil {
			return err
		}

		removed = []core.Transaction{t}
		if t.IsTransferLeg() {
			legs, err := q.GetTransferLegs(ctx, t.TransferID)
			if err != nil {
				return fmt.Errorf("load transfer legs: %w", err)
			}
			if len(legs) > 0 {
				removed = legs
			}
		}

		now := s.now()
		for _, leg := range removed {
			if _, err := q.ApplyBalanceDelta(ctx, ownerID, leg.AccountID, leg.Signed().Neg().Cents, now); err != nil {
				return fmt.Errorf("revert delta of %s: %w", leg.ID, err)
			}
			if err := q.DeleteTransaction(ctx, leg.ID); err != nil {
				return fmt.Errorf("delete %s: %w", leg.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		logger.Failure(ctx, "Failed to delete transaction", err, log.OpDelete,
			log.NewFields().WithOwner(ownerID).With(log.FieldTransactionID, id))
		return fmt.Errorf("delete transaction: %w", err)
	}

	accountIDs := make([]string, 0, len(removed))
	txIDs := make([]string, 0, len(removed))
	for _, t := range removed {
		accountIDs = append(accountIDs, t.AccountID)
		txIDs = append(txIDs, t.ID)
	}
	logger.InfoContext(ctx, "Transaction deleted",
		log.FieldOwnerID, ownerID, log.FieldTransactionID, id, log.FieldCount, len(removed))

	event := amqp.NewLedgerEvent(amqp.EventTransactionDeleted, ownerID, accountIDs...).WithTransactions(txIDs...)
	event.TransferID = removed[0].TransferID
	s.publish(ctx, event)

	return nil
}

// List returns the transactions of all the owner's accounts, newest first.
func (s *LedgerService) List(ctx context.Context, ownerID string, req core.PageRequest) (core.Page[core.Transaction], error) {
	return listPage(ctx, s.store.Querier(), storage.TransactionFilter{OwnerID: ownerID}, req)
}

func listPage(ctx context.Context, q storage.Querier, f storage.TransactionFilter, req core.PageRequest) (core.Page[core.Transaction], error) {
	req = req.Normalize()

	var (
		items []core.Transaction
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = q.ListTransactions(gctx, f, req.Limit, req.Offset())
		return err
	})
	g.Go(func() error {
		var err error
		total, err = q.CountTransactions(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Page[core.Transaction]{}, fmt.Errorf("list transactions: %w", err)
	}

	return core.NewPage(req, total, items), nil
}

// ownedAccount resolves an account id for ownerID: ErrNotFound if it does not
// exist, ErrForbidden if it belongs to someone else.
func ownedAccount(ctx context.Context, q storage.Querier, ownerID, id string) (core.Account, error) {
	account, err := q.GetAccount(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return core.Account{}, core.NotFoundf("account %s", id)
	}
	if err != nil {
		return core.Account{}, err
	}
	if account.OwnerID != ownerID {
		return core.Account{}, fmt.Errorf("%w: account %s", core.ErrForbidden, id)
	}
	return account, nil
}

func ownedTransaction(ctx context.Context, q storage.Querier, ownerID, id string) (core.Transaction, error) {
	t, err := q.GetTransaction(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return core.Transaction{}, core.NotFoundf("transaction %s", id)
	}
	if err != nil {
		return core.Transaction{}, err
	}
	if _, err := ownedAccount(ctx, q, ownerID, t.AccountID); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}
