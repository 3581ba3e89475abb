package services

import (
	"context"
	"fmt"
	"time"

	"moneymanager/internal/core"
	"moneymanager/internal/storage"
)

// DashboardService produces the read-only summaries consumed by dashboards
// and report renderers. It never mutates state.
type DashboardService struct {
	deps
}

func NewDashboardService(store Store, config Config) *DashboardService {
	return &DashboardService{deps: newDeps(store, nil, config)}
}

// Summary totals the owner's income and expense since the start of the
// period containing now.
func (s *DashboardService) Summary(ctx context.Context, ownerID string, period core.Period) (core.Summary, error) {
	now := s.now()
	start := core.PeriodStart(period, now)

	totals, err := s.store.Querier().SumTransactions(ctx, storage.TransactionFilter{OwnerID: ownerID, From: start})
	if err != nil {
		return core.Summary{}, fmt.Errorf("summary: %w", err)
	}
	return core.Summary{
		TotalIncome:      core.Money{Cents: totals.IncomeCents},
		TotalExpense:     core.Money{Cents: totals.ExpenseCents},
		TransactionCount: totals.Count,
		Period:           core.DateRange{Start: start, End: now},
	}, nil
}

// CategorySummary returns per-category totals sorted by net descending.
func (s *DashboardService) CategorySummary(ctx context.Context, ownerID string, req core.PageRequest) (core.Page[core.CategorySummary], error) {
	req = req.Normalize()
	all, err := s.store.Querier().CategorySummaries(ctx, ownerID)
	if err != nil {
		return core.Page[core.CategorySummary]{}, fmt.Errorf("category summary: %w", err)
	}

	total := int64(len(all))
	lo := min(req.Offset(), len(all))
	hi := min(lo+req.Limit, len(all))
	return core.NewPage(req, total, all[lo:hi]), nil
}

// Range lists transactions created between the start of from's day and the
// end of to's day, newest first.
func (s *DashboardService) Range(ctx context.Context, ownerID string, from, to time.Time, req core.PageRequest) (core.Page[core.Transaction], error) {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	end := core.EndOfDay(to)
	if end.Before(start) {
		return core.Page[core.Transaction]{}, fmt.Errorf("%w: range ends before it starts", core.ErrInvalidInput)
	}
	return listPage(ctx, s.store.Querier(), storage.TransactionFilter{OwnerID: ownerID, From: start, To: end}, req)
}

// Report selects transactions by filter and totals them. Rendering is left to
// the caller.
func (s *DashboardService) Report(ctx context.Context, ownerID string, filter core.ReportFilter) (core.Report, error) {
	f := storage.TransactionFilter{
		OwnerID:  ownerID,
		Type:     filter.Type,
		Division: filter.Division,
		Category: filter.Category,
		From:     filter.From,
		To:       filter.To,
	}
	if filter.MinAmount != nil {
		f.MinCents = &filter.MinAmount.Cents
	}
	if filter.MaxAmount != nil {
		f.MaxCents = &filter.MaxAmount.Cents
	}
	if f.MinCents != nil && f.MaxCents != nil && *f.MinCents > *f.MaxCents {
		return core.Report{}, fmt.Errorf("%w: minimum amount above maximum", core.ErrInvalidInput)
	}

	q := s.store.Querier()
	transactions, err := q.ListTransactions(ctx, f, -1, 0)
	if err != nil {
		return core.Report{}, fmt.Errorf("report: %w", err)
	}
	totals, err := q.SumTransactions(ctx, f)
	if err != nil {
		return core.Report{}, fmt.Errorf("report totals: %w", err)
	}
	if transactions == nil {
		transactions = []core.Transaction{}
	}

	period := core.DateRange{Start: filter.From, End: filter.To}
	if period.End.IsZero() {
		period.End = s.now()
	}
	if period.Start.IsZero() && len(transactions) > 0 {
		period.Start = transactions[len(transactions)-1].CreatedAt
	}

	return core.Report{
		Transactions: transactions,
		Summary: core.Summary{
			TotalIncome:      core.Money{Cents: totals.IncomeCents},
			TotalExpense:     core.Money{Cents: totals.ExpenseCents},
			TransactionCount: totals.Count,
			Period:           period,
		},
	}, nil
}
