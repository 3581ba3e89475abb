package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneymanager/internal/amqp"
	"moneymanager/internal/core"
)

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.account(t, "A", 1000)
	b := f.account(t, "B", 50)

	result, err := f.svc.Transfers.Transfer(ctx, owner, TransferRequest{
		FromAccountID: a.ID,
		ToAccountID:   b.ID,
		Amount:        core.Money{Cents: 200},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(800), result.FromBalance.Cents)
	assert.Equal(t, int64(250), result.ToBalance.Cents)
	assert.Equal(t, int64(800), f.balance(t, a.ID))
	assert.Equal(t, int64(250), f.balance(t, b.ID))

	page, err := f.svc.Ledger.List(ctx, owner, core.PageRequest{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	byType := map[core.TransactionType]core.Transaction{}
	for _, tx := range page.Items {
		byType[tx.Type] = tx
		assert.Equal(t, core.TransferCategory, tx.Category)
		assert.Equal(t, core.Personal, tx.Division)
		assert.Equal(t, int64(200), tx.Amount.Cents)
		assert.Equal(t, result.TransferID, tx.TransferID)
	}
	assert.Equal(t, a.ID, byType[core.Expense].AccountID)
	assert.Equal(t, "Transfer to B", byType[core.Expense].Description)
	assert.Equal(t, b.ID, byType[core.Income].AccountID)
	assert.Equal(t, "Transfer from A", byType[core.Income].Description)

	f.requireConsistent(t, a.ID, b.ID)
	assert.Contains(t, f.events.types(), amqp.EventTransferCompleted)
}

func TestTransferRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.account(t, "A", 100)
	b := f.account(t, "B", 0)
	foreign, err := f.svc.Accounts.Create(ctx, otherOwner, CreateAccountInput{Name: "C", InitialBalance: core.Money{Cents: 500}})
	require.NoError(t, err)

	tests := []struct {
		name string
		req  TransferRequest
		want error
	}{
		{"same account", TransferRequest{FromAccountID: a.ID, ToAccountID: a.ID, Amount: core.Money{Cents: 10}}, core.ErrSameAccount},
		{"zero amount", TransferRequest{FromAccountID: a.ID, ToAccountID: b.ID}, core.ErrInvalidAmount},
		{"negative amount", TransferRequest{FromAccountID: a.ID, ToAccountID: b.ID, Amount: core.Money{Cents: -10}}, core.ErrInvalidAmount},
		{"missing source", TransferRequest{FromAccountID: "missing", ToAccountID: b.ID, Amount: core.Money{Cents: 10}}, core.ErrNotFound},
		{"foreign destination", TransferRequest{FromAccountID: a.ID, ToAccountID: foreign.ID, Amount: core.Money{Cents: 10}}, core.ErrNotFound},
		{"insufficient balance", TransferRequest{FromAccountID: a.ID, ToAccountID: b.ID, Amount: core.Money{Cents: 101}}, core.ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Transfers.Transfer(ctx, owner, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, int64(100), f.balance(t, a.ID))
	assert.Equal(t, int64(0), f.balance(t, b.ID))

	// the whole balance may be moved
	_, err = f.svc.Transfers.Transfer(ctx, owner, TransferRequest{FromAccountID: a.ID, ToAccountID: b.ID, Amount: core.Money{Cents: 100}})
	require.NoError(t, err)
	assert.Zero(t, f.balance(t, a.ID))
}

func TestTransferIsAtomic(t *testing.T) {
	for _, fault := range []struct {
		method string
		failAt int
	}{
		{"ApplyBalanceDelta", 2},
		{"CreateTransaction", 1},
		{"CreateTransaction", 2},
	} {
		t.Run(fault.method, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			a := f.account(t, "A", 1000)
			b := f.account(t, "B", 50)

			_, err := f.withFault(fault.method, fault.failAt).Transfers.Transfer(ctx, owner, TransferRequest{
				FromAccountID: a.ID,
				ToAccountID:   b.ID,
				Amount:        core.Money{Cents: 200},
			})
			require.ErrorIs(t, err, errInjected)

			assert.Equal(t, int64(1000), f.balance(t, a.ID))
			assert.Equal(t, int64(50), f.balance(t, b.ID))
			page, err := f.svc.Ledger.List(ctx, owner, core.PageRequest{})
			require.NoError(t, err)
			assert.Zero(t, page.TotalItems)
			assert.NotContains(t, f.events.types(), amqp.EventTransferCompleted)
		})
	}
}

func TestTransferLegs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.account(t, "A", 1000)
	b := f.account(t, "B", 50)

	result, err := f.svc.Transfers.Transfer(ctx, owner, TransferRequest{
		FromAccountID: a.ID,
		ToAccountID:   b.ID,
		Amount:        core.Money{Cents: 200},
		Description:   "rent share",
	})
	require.NoError(t, err)
	assert.Equal(t, "rent share", result.Debit.Description)

	_, err = f.svc.Ledger.Update(ctx, owner, result.Credit.ID, core.TransactionPatch{Amount: ptr(core.Money{Cents: 1})})
	assert.ErrorIs(t, err, core.ErrTransferLeg)

	t.Run("failed cascade keeps both legs", func(t *testing.T) {
		err := f.withFault("DeleteTransaction", 2).Ledger.Delete(ctx, owner, result.Credit.ID)
		require.ErrorIs(t, err, errInjected)
		assert.Equal(t, int64(800), f.balance(t, a.ID))
		assert.Equal(t, int64(250), f.balance(t, b.ID))
	})

	require.NoError(t, f.svc.Ledger.Delete(ctx, owner, result.Credit.ID))
	assert.Equal(t, int64(1000), f.balance(t, a.ID))
	assert.Equal(t, int64(50), f.balance(t, b.ID))

	_, err = f.svc.Ledger.Get(ctx, owner, result.Debit.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	f.requireConsistent(t, a.ID, b.ID)
}

func TestTransferConcurrentOverdraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.account(t, "A", 100)
	b := f.account(t, "B", 0)

	const workers = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Transfers.Transfer(ctx, owner, TransferRequest{
				FromAccountID: a.ID,
				ToAccountID:   b.ID,
				Amount:        core.Money{Cents: 60},
			})
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	succeeded, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, core.ErrInsufficientBalance):
			insufficient++
		default:
			t.Errorf("unexpected transfer error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, insufficient)

	assert.Equal(t, int64(40), f.balance(t, a.ID))
	assert.Equal(t, int64(60), f.balance(t, b.ID))
	f.requireConsistent(t, a.ID, b.ID)
}
