package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"moneymanager/internal/core"
	"moneymanager/internal/log"
	"moneymanager/internal/storage"
)

// BudgetService manages budget definitions and is the Budget Aggregator:
// spent is never stored, it is recomputed from the ledger on every read.
type BudgetService struct {
	deps
}

func NewBudgetService(store Store, config Config) *BudgetService {
	return &BudgetService{deps: newDeps(store, nil, config)}
}

// CreateBudgetInput holds the caller-supplied fields of a new budget
type CreateBudgetInput struct {
	Category  string
	Division  core.Division
	Allocated core.Money
	Period    core.Period
}

// Create adds a budget; at most one budget exists per (category, division).
func (s *BudgetService) Create(ctx context.Context, ownerID string, in CreateBudgetInput) (core.Budget, error) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentBudget)
	if err := requireOwner(ownerID); err != nil {
		return core.Budget{}, err
	}

	now := s.now()
	b := core.Budget{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Category:  strings.TrimSpace(in.Category),
		Division:  in.Division,
		Allocated: in.Allocated,
		Period:    in.Period,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	err := s.store.InTx(ctx, func(q storage.Querier) error {
		if err := ensureBudgetFree(ctx, q, b); err != nil {
			return err
		}
		return q.CreateBudget(ctx, b)
	})
	if err != nil {
		logger.Failure(ctx, "Failed to create budget", err, log.OpCreate,
			log.NewFields().WithOwner(ownerID).With(log.FieldCategory, b.Category).With(log.FieldDivision, string(b.Division)))
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}

	logger.InfoContext(ctx, "Budget created",
		log.FieldOwnerID, ownerID,
		log.FieldBudgetID, b.ID,
		log.FieldCategory, b.Category,
		log.FieldDivision, string(b.Division),
		log.FieldPeriod, string(b.Period),
		log.FieldAmountCents, b.Allocated.Cents)
	return b, nil
}

// Get returns one of the owner's budgets
func (s *BudgetService) Get(ctx context.Context, ownerID, id string) (core.Budget, error) {
	b, err := s.store.Querier().GetBudget(ctx, ownerID, id)
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget %s: %w", id, err)
	}
	return b, nil
}

// Status returns a budget with its spend in the period containing now
func (s *BudgetService) Status(ctx context.Context, ownerID, id string) (core.BudgetStatus, error) {
	b, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return core.BudgetStatus{}, err
	}
	return s.ComputeSpent(ctx, b, s.now())
}

// Update patches a budget. Moving it onto a (category, division) pair that
// another budget holds fails with ErrDuplicateBudget.
func (s *BudgetService) Update(ctx context.Context, ownerID, id string, patch core.BudgetPatch) (core.Budget, error) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentBudget)

	var updated core.Budget
	err := s.store.InTx(ctx, func(q storage.Querier) error {
		current, err := q.GetBudget(ctx, ownerID, id)
		if err != nil {
			return err
		}
		updated = patch.Apply(current)
		if err := updated.Validate(); err != nil {
			return err
		}
		if updated.Category != current.Category || updated.Division != current.Division {
			if err := ensureBudgetFree(ctx, q, updated); err != nil {
				return err
			}
		}
		updated.UpdatedAt = s.now()
		return q.UpdateBudget(ctx, updated)
	})
	if err != nil {
		logger.Failure(ctx, "Failed to update budget", err, log.OpUpdate,
			log.NewFields().WithOwner(ownerID).With(log.FieldBudgetID, id))
		return core.Budget{}, fmt.Errorf("update budget %s: %w", id, err)
	}
	return updated, nil
}

func (s *BudgetService) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.store.Querier().DeleteBudget(ctx, ownerID, id); err != nil {
		log.FromContext(ctx).WithComponent(log.ComponentBudget).Failure(ctx, "Failed to delete budget", err, log.OpDelete,
			log.NewFields().WithOwner(ownerID).With(log.FieldBudgetID, id))
		return fmt.Errorf("delete budget %s: %w", id, err)
	}
	return nil
}

// ComputeSpent sums the owner's Expense transactions matching the budget's
// category and division created at or after the start of the period
// containing now.
func (s *BudgetService) ComputeSpent(ctx context.Context, b core.Budget, now time.Time) (core.BudgetStatus, error) {
	since := core.PeriodStart(b.Period, now)
	cents, err := s.store.Querier().SumExpenses(ctx, b.OwnerID, b.Category, b.Division, since)
	if err != nil {
		return core.BudgetStatus{}, fmt.Errorf("compute spent for budget %s: %w", b.ID, err)
	}
	spent := core.Money{Cents: cents}
	return core.BudgetStatus{
		Budget:    b,
		Spent:     spent,
		Remaining: b.Allocated.Sub(spent),
		Since:     since,
	}, nil
}

// List returns every budget of the owner with spend computed concurrently.
func (s *BudgetService) List(ctx context.Context, ownerID string) ([]core.BudgetStatus, error) {
	budgets, err := s.store.Querier().ListBudgets(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}

	now := s.now()
	statuses := make([]core.BudgetStatus, len(budgets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.BudgetConcurrency)
	for i, b := range budgets {
		g.Go(func() error {
			status, err := s.ComputeSpent(gctx, b, now)
			if err != nil {
				return err
			}
			statuses[i] = status
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return statuses, nil
}

func ensureBudgetFree(ctx context.Context, q storage.Querier, b core.Budget) error {
	existing, err := q.FindBudget(ctx, b.OwnerID, b.Category, b.Division)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != b.ID:
		return fmt.Errorf("%w: %s/%s", core.ErrDuplicateBudget, b.Category, b.Division)
	default:
		return nil
	}
}
