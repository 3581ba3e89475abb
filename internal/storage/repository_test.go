package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneymanager/internal/core"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testAccount(id, owner, name string, primary bool) core.Account {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	return core.Account{
		ID:        id,
		OwnerID:   owner,
		Name:      name,
		IsPrimary: primary,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	require.NoError(t, RunMigrations(path))
}

func TestOnePrimaryPerOwner(t *testing.T) {
	ctx := context.Background()
	q := newTestRepository(t).Querier()

	require.NoError(t, q.CreateAccount(ctx, testAccount("a1", "u1", "Main", true)))
	require.NoError(t, q.CreateAccount(ctx, testAccount("b1", "u2", "Main", true)))

	err := q.CreateAccount(ctx, testAccount("a2", "u1", "Second", true))
	require.Error(t, err)

	require.NoError(t, q.CreateAccount(ctx, testAccount("a3", "u1", "Third", false)))
	err = q.MarkPrimary(ctx, "u1", "a3", time.Now())
	require.Error(t, err)

	err = q.CreateAccount(ctx, testAccount("a4", "u1", "Main", false))
	assert.ErrorIs(t, err, core.ErrDuplicateName)
}

func TestInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	require.NoError(t, repo.Querier().CreateAccount(ctx, testAccount("a1", "u1", "Main", true)))

	boom := errors.New("boom")
	err := repo.InTx(ctx, func(q Querier) error {
		balance, err := q.ApplyBalanceDelta(ctx, "u1", "a1", 500, time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(500), balance)
		return boom
	})
	require.ErrorIs(t, err, boom)

	a, err := repo.Querier().GetAccount(ctx, "a1")
	require.NoError(t, err)
	assert.Zero(t, a.Balance.Cents)
}

func TestApplyBalanceDeltaScopedToOwner(t *testing.T) {
	ctx := context.Background()
	q := newTestRepository(t).Querier()
	require.NoError(t, q.CreateAccount(ctx, testAccount("a1", "u1", "Main", true)))

	_, err := q.ApplyBalanceDelta(ctx, "u2", "a1", 10, time.Now())
	assert.ErrorIs(t, err, core.ErrNotFound)

	balance, err := q.ApplyBalanceDelta(ctx, "u1", "a1", -10, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(-10), balance)
}

func TestAccountWithTransactionsCannotBeDeleted(t *testing.T) {
	ctx := context.Background()
	q := newTestRepository(t).Querier()
	require.NoError(t, q.CreateAccount(ctx, testAccount("a1", "u1", "Spare", false)))

	tx := core.Transaction{
		ID:        "t1",
		AccountID: "a1",
		Type:      core.Expense,
		Amount:    core.Money{Cents: 100},
		Category:  "Food",
		Division:  core.Personal,
		Tags:      []string{"lunch"},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, q.CreateTransaction(ctx, tx))

	assert.ErrorIs(t, q.DeleteAccount(ctx, "u1", "a1"), core.ErrAccountInUse)

	got, err := q.GetTransaction(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"lunch"}, got.Tags)
	assert.Equal(t, "Spare", got.AccountName)
	assert.Empty(t, got.TransferID)

	sum, err := q.SumSignedAmounts(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(-100), sum)

	require.NoError(t, q.DeleteTransaction(ctx, "t1"))
	assert.NoError(t, q.DeleteAccount(ctx, "u1", "a1"))
}

func TestTimestampsRoundTripInUTC(t *testing.T) {
	ctx := context.Background()
	q := newTestRepository(t).Querier()

	loc := time.FixedZone("CET", 3600)
	a := testAccount("a1", "u1", "Main", true)
	a.CreatedAt = time.Date(2024, time.March, 1, 0, 30, 0, 123, loc)
	require.NoError(t, q.CreateAccount(ctx, a))

	got, err := q.GetAccount(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(a.CreatedAt))
	assert.Equal(t, time.UTC, got.CreatedAt.Location())
}
