package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"moneymanager/internal/amqp"
	"moneymanager/internal/core"
	"moneymanager/internal/storage"
)

const (
	owner      = "user-1"
	otherOwner = "user-2"
)

var errInjected = errors.New("injected store failure")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, event *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// faultyStore fails the failAt-th call to method made inside InTx.
type faultyStore struct {
	Store
	method string
	failAt int

	mu    sync.Mutex
	calls int
}

func (f *faultyStore) InTx(ctx context.Context, fn func(q storage.Querier) error) error {
	return f.Store.InTx(ctx, func(q storage.Querier) error {
		return fn(&faultyQuerier{Querier: q, store: f})
	})
}

func (f *faultyStore) trip(method string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if method != f.method {
		return false
	}
	f.calls++
	return f.calls == f.failAt
}

type faultyQuerier struct {
	storage.Querier
	store *faultyStore
}

func (q *faultyQuerier) CreateTransaction(ctx context.Context, t core.Transaction) error {
	if q.store.trip("CreateTransaction") {
		return errInjected
	}
	return q.Querier.CreateTransaction(ctx, t)
}

func (q *faultyQuerier) ApplyBalanceDelta(ctx context.Context, ownerID, id string, delta int64, at time.Time) (int64, error) {
	if q.store.trip("ApplyBalanceDelta") {
		return 0, errInjected
	}
	return q.Querier.ApplyBalanceDelta(ctx, ownerID, id, delta, at)
}

func (q *faultyQuerier) DeleteTransaction(ctx context.Context, id string) error {
	if q.store.trip("DeleteTransaction") {
		return errInjected
	}
	return q.Querier.DeleteTransaction(ctx, id)
}

type fixture struct {
	repo   *storage.SQLiteRepository
	clock  *testClock
	events *recordingPublisher
	svc    *Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	clock := newTestClock()
	events := &recordingPublisher{}
	return &fixture{
		repo:   repo,
		clock:  clock,
		events: events,
		svc:    New(repo, events, fixtureConfig(clock)),
	}
}

func fixtureConfig(clock *testClock) Config {
	cfg := DefaultConfig()
	cfg.Now = clock.Now
	return cfg
}

// withFault returns services over the fixture's database whose atomic units
// fail on the failAt-th call to method.
func (f *fixture) withFault(method string, failAt int) *Services {
	return New(&faultyStore{Store: f.repo, method: method, failAt: failAt}, f.events, fixtureConfig(f.clock))
}

func (f *fixture) account(t *testing.T, name string, balanceCents int64) core.Account {
	t.Helper()
	a, err := f.svc.Accounts.Create(context.Background(), owner, CreateAccountInput{
		Name:           name,
		InitialBalance: core.Money{Cents: balanceCents},
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) balance(t *testing.T, id string) int64 {
	t.Helper()
	a, err := f.svc.Accounts.Get(context.Background(), owner, id)
	require.NoError(t, err)
	return a.Balance.Cents
}

func (f *fixture) transaction(t *testing.T, accountID string, typ core.TransactionType, cents int64, category string) core.Transaction {
	t.Helper()
	tx, err := f.svc.Ledger.Create(context.Background(), owner, core.NewTransaction{
		AccountID: accountID,
		Type:      typ,
		Amount:    core.Money{Cents: cents},
		Category:  category,
		Division:  core.Personal,
	})
	require.NoError(t, err)
	return tx
}

func (f *fixture) requireConsistent(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		result, err := f.svc.Auditor.AuditAccount(context.Background(), id)
		require.NoError(t, err)
		require.Truef(t, result.Consistent(), "account %s: stored %s, expected %s", id, result.Stored, result.Expected)
	}
}
