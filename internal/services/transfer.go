package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"moneymanager/internal/amqp"
	"moneymanager/internal/core"
	"moneymanager/internal/log"
	"moneymanager/internal/storage"
)

// TransferService is the Transfer Coordinator: it moves money between two of
// an owner's accounts as a linked Expense/Income pair.
type TransferService struct {
	deps
}

func NewTransferService(store Store, events EventPublisher, config Config) *TransferService {
	return &TransferService{deps: newDeps(store, events, config)}
}

// TransferRequest describes a transfer; Description is optional
type TransferRequest struct {
	FromAccountID string
	ToAccountID   string
	Amount        core.Money
	Description   string
}

// Transfer debits the source and credits the destination. The balance check,
// both deltas and both legs are one atomic unit: either all four effects
// commit or none does.
func (s *TransferService) Transfer(ctx context.Context, ownerID string, req TransferRequest) (core.TransferResult, error) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentTransfer)
	fields := log.NewFields().WithOwner(ownerID).
		With(log.FieldFromAccountID, req.FromAccountID).
		With(log.FieldToAccountID, req.ToAccountID).
		With(log.FieldAmountCents, req.Amount.Cents)

	if req.FromAccountID == req.ToAccountID {
		return core.TransferResult{}, core.ErrSameAccount
	}
	if err := req.Amount.Validate(); err != nil {
		return core.TransferResult{}, err
	}
	description := strings.TrimSpace(req.Description)

	var result core.TransferResult
	err := s.store.InTx(ctx, func(q storage.Querier) error {
		from, err := q.GetAccountForOwner(ctx, ownerID, req.FromAccountID)
		if err != nil {
			return fmt.Errorf("source account: %w", err)
		}
		to, err := q.GetAccountForOwner(ctx, ownerID, req.ToAccountID)
		if err != nil {
			return fmt.Errorf("destination account: %w", err)
		}
		if from.Balance.LessThan(req.Amount) {
			return fmt.Errorf("%w: balance %s, requested %s", core.ErrInsufficientBalance, from.Balance, req.Amount)
		}

		now := s.now()
		transferID := uuid.NewString()
		debit := transferLeg(transferID, from, core.Expense, req.Amount, description, "Transfer to "+to.Name, now)
		credit := transferLeg(transferID, to, core.Income, req.Amount, description, "Transfer from "+from.Name, now)
		for _, leg := range []core.Transaction{debit, credit} {
			if err := leg.ValidateFields(); err != nil {
				return err
			}
		}

		fromBalance, err := q.ApplyBalanceDelta(ctx, ownerID, from.ID, debit.Signed().Cents, now)
		if err != nil {
			return fmt.Errorf("debit source: %w", err)
		}
		toBalance, err := q.ApplyBalanceDelta(ctx, ownerID, to.ID, credit.Signed().Cents, now)
		if err != nil {
			return fmt.Errorf("credit destination: %w", err)
		}
		if err := q.CreateTransaction(ctx, debit); err != nil {
			return fmt.Errorf("insert debit leg: %w", err)
		}
		if err := q.CreateTransaction(ctx, credit); err != nil {
			return fmt.Errorf("insert credit leg: %w", err)
		}

		result = core.TransferResult{
			TransferID:  transferID,
			Debit:       debit,
			Credit:      credit,
			FromBalance: core.Money{Cents: fromBalance},
			ToBalance:   core.Money{Cents: toBalance},
		}
		return nil
	})
	if err != nil {
		logger.Failure(ctx, "Transfer failed", err, log.OpTransfer, fields)
		return core.TransferResult{}, fmt.Errorf("transfer: %w", err)
	}

	logger.InfoContext(ctx, "Transfer completed",
		fields.With(log.FieldTransferID, result.TransferID).ToSlice()...)

	event := amqp.NewLedgerEvent(amqp.EventTransferCompleted, ownerID, req.FromAccountID, req.ToAccountID).
		WithTransactions(result.Debit.ID, result.Credit.ID)
	event.TransferID = result.TransferID
	s.publish(ctx, event)

	return result, nil
}

func transferLeg(transferID string, account core.Account, typ core.TransactionType, amount core.Money, description, fallback string, now time.Time) core.Transaction {
	if description == "" {
		description = fallback
	}
	return core.Transaction{
		ID:          uuid.NewString(),
		AccountID:   account.ID,
		AccountName: account.Name,
		Type:        typ,
		Amount:      amount,
		Category:    core.TransferCategory,
		Division:    core.Personal,
		Description: description,
		Tags:        []string{},
		TransferID:  transferID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
