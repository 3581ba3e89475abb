package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"moneymanager/internal/amqp"
	"moneymanager/internal/core"
	"moneymanager/internal/storage"
)

// Store is the transactional boundary the services run on. Querier serves
// reads outside an atomic unit; InTx runs fn as one atomic unit.
type Store interface {
	Querier() storage.Querier
	InTx(ctx context.Context, fn func(q storage.Querier) error) error
}

// EventPublisher receives ledger events after a mutation has committed.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, event *amqp.LedgerEvent) error
}

// Config holds the tunables shared by the services
type Config struct {
	// EditWindow is how long after creation a transaction may be updated (default: 12h)
	EditWindow time.Duration

	// BudgetConcurrency bounds concurrent spent computations in budget listings (default: 4)
	BudgetConcurrency int

	// Now is the clock; tests replace it (default: time.Now)
	Now func() time.Time
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		EditWindow:        core.DefaultEditWindow,
		BudgetConcurrency: 4,
		Now:               time.Now,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.EditWindow <= 0 {
		c.EditWindow = d.EditWindow
	}
	if c.BudgetConcurrency <= 0 {
		c.BudgetConcurrency = d.BudgetConcurrency
	}
	if c.Now == nil {
		c.Now = d.Now
	}
	return c
}

// Services bundles the ledger services over one store.
type Services struct {
	Accounts  *AccountService
	Ledger    *LedgerService
	Transfers *TransferService
	Budgets   *BudgetService
	Dashboard *DashboardService
	Auditor   *Auditor
}

// New builds every service. events may be nil.
func New(store Store, events EventPublisher, config Config) *Services {
	return &Services{
		Accounts:  NewAccountService(store, events, config),
		Ledger:    NewLedgerService(store, events, config),
		Transfers: NewTransferService(store, events, config),
		Budgets:   NewBudgetService(store, config),
		Dashboard: NewDashboardService(store, config),
		Auditor:   NewAuditor(store),
	}
}

// deps is the state every service carries.
type deps struct {
	store  Store
	events EventPublisher
	now    func() time.Time
	config Config
}

func newDeps(store Store, events EventPublisher, config Config) deps {
	config = config.withDefaults()
	return deps{
		store:  store,
		events: events,
		now:    config.Now,
		config: config,
	}
}

func requireOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return fmt.Errorf("%w: owner", core.ErrMissingField)
	}
	return nil
}
