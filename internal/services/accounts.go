package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"moneymanager/internal/amqp"
	"moneymanager/internal/core"
	"moneymanager/internal/log"
	"moneymanager/internal/storage"
)

// AccountService is the Account Store: account records, their balances and
// the one-primary-per-owner rule.
type AccountService struct {
	deps
}

func NewAccountService(store Store, events EventPublisher, config Config) *AccountService {
	return &AccountService{deps: newDeps(store, events, config)}
}

// CreateAccountInput holds the caller-supplied fields of a new account
type CreateAccountInput struct {
	Name           string
	InitialBalance core.Money
	IsPrimary      bool
}

// Create adds an account. When IsPrimary is set the owner's current primary is
// demoted in the same atomic unit, so no reader ever sees two primaries.
func (s *AccountService) Create(ctx context.Context, ownerID string, in CreateAccountInput) (core.Account, error) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentAccounts)
	if err := requireOwner(ownerID); err != nil {
		return core.Account{}, err
	}
	name := strings.TrimSpace(in.Name)
	if err := core.ValidateAccountName(name); err != nil {
		return core.Account{}, err
	}

	now := s.now()
	account := core.Account{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		Name:           name,
		Balance:        in.InitialBalance,
		InitialBalance: in.InitialBalance,
		IsPrimary:      in.IsPrimary,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.store.InTx(ctx, func(q storage.Querier) error {
		if err := ensureNameFree(ctx, q, ownerID, name, ""); err != nil {
			return err
		}
		if account.IsPrimary {
			if err := q.ClearPrimary(ctx, ownerID, account.ID, now); err != nil {
				return fmt.Errorf("demote primary: %w", err)
			}
		}
		return q.CreateAccount(ctx, account)
	})
	if err != nil {
		logger.Failure(ctx, "Failed to create account", err, log.OpCreate, log.NewFields().WithOwner(ownerID))
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	logger.InfoContext(ctx, "Account created",
		log.NewFields().WithOwner(ownerID).WithAccount(account.ID, account.Balance).
			With("primary", account.IsPrimary).ToSlice()...)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventAccountCreated, ownerID, account.ID))

	return account, nil
}

// Get returns one of the owner's accounts
func (s *AccountService) Get(ctx context.Context, ownerID, id string) (core.Account, error) {
	account, err := s.store.Querier().GetAccountForOwner(ctx, ownerID, id)
	if err != nil {
		return core.Account{}, fmt.Errorf("get account %s: %w", id, err)
	}
	return account, nil
}

// List returns the owner's accounts newest first
func (s *AccountService) List(ctx context.Context, ownerID string, req core.PageRequest) (core.Page[core.Account], error) {
	req = req.Normalize()
	q := s.store.Querier()

	var (
		items []core.Account
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = q.ListAccounts(gctx, ownerID, req.Limit, req.Offset())
		return err
	})
	g.Go(func() error {
		var err error
		total, err = q.CountAccounts(gctx, ownerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Page[core.Account]{}, fmt.Errorf("list accounts: %w", err)
	}

	return core.NewPage(req, total, items), nil
}

// Rename changes an account's name, keeping names unique per owner
func (s *AccountService) Rename(ctx context.Context, ownerID, id, name string) (core.Account, error) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentAccounts)
	name = strings.TrimSpace(name)
	if err := core.ValidateAccountName(name); err != nil {
		return core.Account{}, err
	}

	var account core.Account
	err := s.store.InTx(ctx, func(q storage.Querier) error {
		var err error
		account, err = q.GetAccountForOwner(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if account.Name == name {
			return nil
		}
		if err := ensureNameFree(ctx, q, ownerID, name, id); err != nil {
			return err
		}
		now := s.now()
		if err := q.RenameAccount(ctx, ownerID, id, name, now); err != nil {
			return err
		}
		account.Name = name
		account.UpdatedAt = now
		return nil
	})
	if err != nil {
		logger.Failure(ctx, "Failed to rename account", err, log.OpUpdate,
			log.NewFields().WithOwner(ownerID).With(log.FieldAccountID, id))
		return core.Account{}, fmt.Errorf("rename account %s: %w", id, err)
	}
	return account, nil
}

// ApplyDelta atomically adds delta to the balance and returns the new balance.
func (s *AccountService) ApplyDelta(ctx context.Context, ownerID, id string, delta core.Money) (core.Money, error) {
	balance, err := s.store.Querier().ApplyBalanceDelta(ctx, ownerID, id, delta.Cents, s.now())
	if err != nil {
		log.FromContext(ctx).WithComponent(log.ComponentAccounts).Failure(ctx, "Failed to apply balance delta", err,
			log.OpApplyDelta, log.NewFields().WithOwner(ownerID).With(log.FieldAccountID, id).With(log.FieldAmountCents, delta.Cents))
		return core.Money{}, fmt.Errorf("apply delta to account %s: %w", id, err)
	}
	return core.Money{Cents: balance}, nil
}

// SetPrimary makes id the owner's only primary account
func (s *AccountService) SetPrimary(ctx context.Context, ownerID, id string) (core.Account, error) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentAccounts)

	var account core.Account
	err := s.store.InTx(ctx, func(q storage.Querier) error {
		var err error
		account, err = q.GetAccountForOwner(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if account.IsPrimary {
			return nil
		}
		now := s.now()
		if err := q.ClearPrimary(ctx, ownerID, id, now); err != nil {
			return fmt.Errorf("demote primary: %w", err)
		}
		if err := q.MarkPrimary(ctx, ownerID, id, now); err != nil {
			return err
		}
		account.IsPrimary = true
		account.UpdatedAt = now
		return nil
	})
	if err != nil {
		logger.Failure(ctx, "Failed to set primary account", err, log.OpSetPrimary,
			log.NewFields().WithOwner(ownerID).With(log.FieldAccountID, id))
		return core.Account{}, fmt.Errorf("set primary account %s: %w", id, err)
	}

	logger.InfoContext(ctx, "Primary account changed", log.FieldOwnerID, ownerID, log.FieldAccountID, id)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventAccountPrimaryChange, ownerID, id))

	return account, nil
}

// Delete removes a non-primary account that no transaction references.
func (s *AccountService) Delete(ctx context.Context, ownerID, id string) error {
	logger := log.FromContext(ctx).WithComponent(log.ComponentAccounts)

	err := s.store.InTx(ctx, func(q storage.Querier) error {
		account, err := q.GetAccountForOwner(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if account.IsPrimary {
			return core.ErrPrimaryAccountProtected
		}
		n, err := q.CountAccountTransactions(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %d transactions", core.ErrAccountInUse, n)
		}
		return q.DeleteAccount(ctx, ownerID, id)
	})
	if err != nil {
		logger.Failure(ctx, "Failed to delete account", err, log.OpDelete,
			log.NewFields().WithOwner(ownerID).With(log.FieldAccountID, id))
		return fmt.Errorf("delete account %s: %w", id, err)
	}

	logger.InfoContext(ctx, "Account deleted", log.FieldOwnerID, ownerID, log.FieldAccountID, id)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventAccountDeleted, ownerID, id))

	return nil
}

// EnsurePrimary returns the owner's primary account. An owner without
// accounts gets a zero-balance Main Account; an owner whose accounts have no
// primary gets the oldest one promoted.
func (s *AccountService) EnsurePrimary(ctx context.Context, ownerID string) (core.Account, error) {
	if err := requireOwner(ownerID); err != nil {
		return core.Account{}, err
	}
	logger := log.FromContext(ctx).WithComponent(log.ComponentAccounts)

	var (
		account core.Account
		event   *amqp.LedgerEvent
	)
	err := s.store.InTx(ctx, func(q storage.Querier) error {
		var err error
		account, err = q.GetPrimaryAccount(ctx, ownerID)
		if err == nil || !errors.Is(err, core.ErrNotFound) {
			return err
		}

		now := s.now()
		account, err = q.GetOldestAccount(ctx, ownerID)
		switch {
		case err == nil:
			if err := q.MarkPrimary(ctx, ownerID, account.ID, now); err != nil {
				return err
			}
			account.IsPrimary = true
			account.UpdatedAt = now
			event = amqp.NewLedgerEvent(amqp.EventAccountPrimaryChange, ownerID, account.ID)
			return nil
		case errors.Is(err, core.ErrNotFound):
			account = core.Account{
				ID:        uuid.NewString(),
				OwnerID:   ownerID,
				Name:      core.MainAccountName,
				IsPrimary: true,
				CreatedAt: now,
				UpdatedAt: now,
			}
			event = amqp.NewLedgerEvent(amqp.EventAccountCreated, ownerID, account.ID)
			return q.CreateAccount(ctx, account)
		default:
			return err
		}
	})
	if err != nil {
		logger.Failure(ctx, "Failed to ensure primary account", err, log.OpSetPrimary, log.NewFields().WithOwner(ownerID))
		return core.Account{}, fmt.Errorf("ensure primary account: %w", err)
	}

	if event != nil {
		logger.InfoContext(ctx, "Primary account provisioned",
			log.FieldOwnerID, ownerID, log.FieldAccountID, account.ID, "event", string(event.Type))
		s.publish(ctx, event)
	}
	return account, nil
}

// ensureNameFree fails with ErrDuplicateName if another account of the owner
// (other than exceptID) already uses name.
func ensureNameFree(ctx context.Context, q storage.Querier, ownerID, name, exceptID string) error {
	existing, err := q.GetAccountByName(ctx, ownerID, name)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != exceptID:
		return fmt.Errorf("%w: %s", core.ErrDuplicateName, name)
	default:
		return nil
	}
}
