package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneymanager/internal/amqp"
	"moneymanager/internal/core"
)

func primaries(t *testing.T, f *fixture, ownerID string) []core.Account {
	t.Helper()
	page, err := f.svc.Accounts.List(context.Background(), ownerID, core.PageRequest{Page: 1, Limit: 100})
	require.NoError(t, err)
	var out []core.Account
	for _, a := range page.Items {
		if a.IsPrimary {
			out = append(out, a)
		}
	}
	return out
}

func TestAccountCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.svc.Accounts.Create(ctx, owner, CreateAccountInput{Name: "  Wallet ", InitialBalance: core.Money{Cents: 1500}})
	require.NoError(t, err)
	assert.Equal(t, "Wallet", a.Name)
	assert.Equal(t, int64(1500), a.Balance.Cents)
	assert.Equal(t, a.Balance, a.InitialBalance)
	assert.False(t, a.IsPrimary)
	assert.Equal(t, f.clock.Now(), a.CreatedAt)

	got, err := f.svc.Accounts.Get(ctx, owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.True(t, a.CreatedAt.Equal(got.CreatedAt))

	assert.Equal(t, []amqp.EventType{amqp.EventAccountCreated}, f.events.types())
}

func TestAccountCreateValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.account(t, "Wallet", 0)

	_, err := f.svc.Accounts.Create(ctx, owner, CreateAccountInput{Name: "Wallet"})
	assert.ErrorIs(t, err, core.ErrDuplicateName)

	_, err = f.svc.Accounts.Create(ctx, owner, CreateAccountInput{Name: "   "})
	assert.ErrorIs(t, err, core.ErrMissingField)

	_, err = f.svc.Accounts.Create(ctx, "", CreateAccountInput{Name: "Wallet"})
	assert.ErrorIs(t, err, core.ErrMissingField)

	// names are unique per owner only
	_, err = f.svc.Accounts.Create(ctx, otherOwner, CreateAccountInput{Name: "Wallet"})
	assert.NoError(t, err)
}

func TestAccountPrimaryIsExclusive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.svc.Accounts.Create(ctx, owner, CreateAccountInput{Name: "Checking", IsPrimary: true})
	require.NoError(t, err)
	second, err := f.svc.Accounts.Create(ctx, owner, CreateAccountInput{Name: "Savings", IsPrimary: true})
	require.NoError(t, err)

	p := primaries(t, f, owner)
	require.Len(t, p, 1)
	assert.Equal(t, second.ID, p[0].ID)

	_, err = f.svc.Accounts.SetPrimary(ctx, owner, first.ID)
	require.NoError(t, err)

	p = primaries(t, f, owner)
	require.Len(t, p, 1)
	assert.Equal(t, first.ID, p[0].ID)

	// another owner's primary is untouched
	_, err = f.svc.Accounts.Create(ctx, otherOwner, CreateAccountInput{Name: "Main", IsPrimary: true})
	require.NoError(t, err)
	assert.Len(t, primaries(t, f, owner), 1)
	assert.Len(t, primaries(t, f, otherOwner), 1)
}

func TestAccountSetPrimaryNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	foreign, err := f.svc.Accounts.Create(ctx, otherOwner, CreateAccountInput{Name: "Theirs"})
	require.NoError(t, err)

	_, err = f.svc.Accounts.SetPrimary(ctx, owner, foreign.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.svc.Accounts.SetPrimary(ctx, owner, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestAccountApplyDelta(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.account(t, "Wallet", 100)

	balance, err := f.svc.Accounts.ApplyDelta(ctx, owner, a.ID, core.Money{Cents: -250})
	require.NoError(t, err)
	assert.Equal(t, int64(-150), balance.Cents)
	assert.Equal(t, int64(-150), f.balance(t, a.ID))

	_, err = f.svc.Accounts.ApplyDelta(ctx, otherOwner, a.ID, core.Money{Cents: 10})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, int64(-150), f.balance(t, a.ID))
}

func TestAccountDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	primary, err := f.svc.Accounts.Create(ctx, owner, CreateAccountInput{Name: "Main", IsPrimary: true})
	require.NoError(t, err)
	used := f.account(t, "Used", 0)
	unused := f.account(t, "Unused", 0)
	f.transaction(t, used.ID, core.Income, 100, "Salary")

	err = f.svc.Accounts.Delete(ctx, owner, primary.ID)
	assert.ErrorIs(t, err, core.ErrPrimaryAccountProtected)

	err = f.svc.Accounts.Delete(ctx, owner, used.ID)
	assert.ErrorIs(t, err, core.ErrAccountInUse)

	err = f.svc.Accounts.Delete(ctx, otherOwner, unused.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, f.svc.Accounts.Delete(ctx, owner, unused.ID))
	_, err = f.svc.Accounts.Get(ctx, owner, unused.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.svc.Accounts.Get(ctx, owner, primary.ID)
	assert.NoError(t, err)
}

func TestAccountRename(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.account(t, "Wallet", 0)
	f.account(t, "Savings", 0)

	_, err := f.svc.Accounts.Rename(ctx, owner, a.ID, "Savings")
	assert.ErrorIs(t, err, core.ErrDuplicateName)

	renamed, err := f.svc.Accounts.Rename(ctx, owner, a.ID, "Cash")
	require.NoError(t, err)
	assert.Equal(t, "Cash", renamed.Name)

	// renaming to the current name is a no-op
	_, err = f.svc.Accounts.Rename(ctx, owner, a.ID, "Cash")
	assert.NoError(t, err)
}

func TestAccountEnsurePrimary(t *testing.T) {
	ctx := context.Background()

	t.Run("creates main account for a new owner", func(t *testing.T) {
		f := newFixture(t)

		a, err := f.svc.Accounts.EnsurePrimary(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, core.MainAccountName, a.Name)
		assert.True(t, a.IsPrimary)
		assert.Zero(t, a.Balance.Cents)

		again, err := f.svc.Accounts.EnsurePrimary(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, a.ID, again.ID)
		assert.Len(t, primaries(t, f, owner), 1)
	})

	t.Run("promotes the oldest account", func(t *testing.T) {
		f := newFixture(t)
		oldest := f.account(t, "Old", 0)
		f.clock.Advance(time.Minute)
		f.account(t, "New", 0)

		a, err := f.svc.Accounts.EnsurePrimary(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, oldest.ID, a.ID)
		assert.True(t, a.IsPrimary)
		assert.Len(t, primaries(t, f, owner), 1)
	})
}

func TestAccountListPagination(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, name := range []string{"A", "B", "C"} {
		f.account(t, name, 0)
		f.clock.Advance(time.Second)
	}

	page, err := f.svc.Accounts.List(ctx, owner, core.PageRequest{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "C", page.Items[0].Name)
	assert.Equal(t, "B", page.Items[1].Name)

	page, err = f.svc.Accounts.List(ctx, owner, core.PageRequest{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "A", page.Items[0].Name)
}

func TestAccountConcurrentEnsurePrimary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const workers = 10
	var wg sync.WaitGroup
	ids := make([]string, workers)
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := f.svc.Accounts.EnsurePrimary(ctx, owner)
			ids[i], errs[i] = a.ID, err
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoErrorf(t, err, "ensure primary %d", i)
		assert.Equal(t, ids[0], ids[i])
	}

	page, err := f.svc.Accounts.List(ctx, owner, core.PageRequest{Limit: 100})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, core.MainAccountName, page.Items[0].Name)
	assert.Len(t, primaries(t, f, owner), 1)
}

func TestAccountConcurrentSetPrimary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	accounts := make([]core.Account, 8)
	for i := range accounts {
		accounts[i] = f.account(t, fmt.Sprintf("Account %d", i), 0)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(accounts))
	for i, a := range accounts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Accounts.SetPrimary(ctx, owner, a.ID)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoErrorf(t, err, "set primary %d", i)
	}
	assert.Len(t, primaries(t, f, owner), 1)
}
