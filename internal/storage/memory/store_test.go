package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/allowance-server/internal/events"
	"github.com/carson-networks/allowance-server/internal/storage/account"
	"github.com/carson-networks/allowance-server/internal/storage/recurring"
	"github.com/carson-networks/allowance-server/internal/storage/transaction"
)

var testNow = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func createAccount(t *testing.T, store *Store, balance string) *account.Account {
	t.Helper()
	writer, err := store.Write(context.Background())
	require.NoError(t, err)

	created, err := writer.Account.Create(context.Background(), &account.AccountCreate{
		OwnerID:         uuid.Must(uuid.NewV4()),
		Name:            "Allowance",
		StartingBalance: decimal.RequireFromString(balance),
		CreatedAt:       testNow,
	})
	require.NoError(t, err)
	require.NoError(t, writer.Commit())
	return created
}

func TestWrite_CommitPublishesChanges(t *testing.T) {
	store := New()
	created := createAccount(t, store, "10.00")

	found, err := store.Read().Accounts.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, found.Balance.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, found.SavingsBalance.IsZero())
}

func TestWrite_RollbackDiscardsChanges(t *testing.T) {
	store := New()
	created := createAccount(t, store, "10.00")

	writer, err := store.Write(context.Background())
	require.NoError(t, err)
	row, err := writer.Account.FindByIDForUpdate(context.Background(), created.ID)
	require.NoError(t, err)
	row.Balance = decimal.RequireFromString("99.00")
	require.NoError(t, writer.Account.Update(context.Background(), row))
	_, err = writer.Transaction.Insert(context.Background(), &transaction.TransactionCreate{
		AccountID: created.ID,
		Amount:    decimal.RequireFromString("89.00"),
	})
	require.NoError(t, err)
	require.NoError(t, writer.Rollback())

	found, err := store.Read().Accounts.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, found.Balance.Equal(decimal.RequireFromString("10.00")))

	rows, err := store.Read().Transactions.List(context.Background(), &transaction.TransactionFilter{AccountID: created.ID})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWrite_ReadersDoNotSeeUncommittedChanges(t *testing.T) {
	store := New()
	created := createAccount(t, store, "5.00")

	writer, err := store.Write(context.Background())
	require.NoError(t, err)
	row, err := writer.Account.FindByIDForUpdate(context.Background(), created.ID)
	require.NoError(t, err)
	row.Balance = decimal.RequireFromString("1.00")
	require.NoError(t, writer.Account.Update(context.Background(), row))

	found, err := store.Read().Accounts.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, found.Balance.Equal(decimal.RequireFromString("5.00")))
	require.NoError(t, writer.Commit())
}

func TestWrite_SerializesWriters(t *testing.T) {
	store := New()
	created := createAccount(t, store, "0.00")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			writer, err := store.Write(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			row, err := writer.Account.FindByIDForUpdate(context.Background(), created.ID)
			if !assert.NoError(t, err) {
				_ = writer.Rollback()
				return
			}
			row.Balance = row.Balance.Add(decimal.NewFromInt(1))
			assert.NoError(t, writer.Account.Update(context.Background(), row))
			_, err = writer.Transaction.Insert(context.Background(), &transaction.TransactionCreate{
				AccountID:    created.ID,
				Amount:       decimal.NewFromInt(1),
				BalanceAfter: row.Balance,
			})
			assert.NoError(t, err)
			assert.NoError(t, writer.Commit())
		}()
	}
	wg.Wait()

	found, err := store.Read().Accounts.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, found.Balance.Equal(decimal.NewFromInt(20)))

	rows, err := store.Read().Transactions.List(context.Background(), &transaction.TransactionFilter{
		AccountID: created.ID,
		Ascending: true,
	})
	require.NoError(t, err)
	require.Len(t, rows, 20)
	for i, row := range rows {
		assert.Equal(t, int64(i+1), row.Sequence)
		assert.True(t, row.BalanceAfter.Equal(decimal.NewFromInt(int64(i+1))))
	}
}

func TestWrite_DoubleCommit(t *testing.T) {
	store := New()
	writer, err := store.Write(context.Background())
	require.NoError(t, err)
	require.NoError(t, writer.Commit())
	assert.ErrorIs(t, writer.Commit(), ErrTxDone)
	assert.NoError(t, writer.Rollback())
}

func TestWrite_InjectedError(t *testing.T) {
	store := New()
	failure := errors.New("store unavailable")
	store.SetWriteError(failure)

	_, err := store.Write(context.Background())
	assert.ErrorIs(t, err, failure)

	store.SetWriteError(nil)
	writer, err := store.Write(context.Background())
	require.NoError(t, err)
	require.NoError(t, writer.Rollback())
}

func TestAccountList_PagesByName(t *testing.T) {
	store := New()
	for _, name := range []string{"c", "a", "b"} {
		writer, err := store.Write(context.Background())
		require.NoError(t, err)
		_, err = writer.Account.Create(context.Background(), &account.AccountCreate{Name: name, CreatedAt: testNow})
		require.NoError(t, err)
		require.NoError(t, writer.Commit())
	}

	page, err := store.Read().Accounts.List(context.Background(), &account.AccountFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Accounts, 2)
	assert.Equal(t, "a", page.Accounts[0].Name)
	assert.Equal(t, "b", page.Accounts[1].Name)
	require.NotNil(t, page.NextCursor)
	assert.Equal(t, 2, page.NextCursor.Position)

	page, err = store.Read().Accounts.List(context.Background(), &account.AccountFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page.Accounts, 1)
	assert.Equal(t, "c", page.Accounts[0].Name)
	assert.Nil(t, page.NextCursor)
}

func TestTransactionList_KeysetCursor(t *testing.T) {
	store := New()
	created := createAccount(t, store, "0.00")

	writer, err := store.Write(context.Background())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = writer.Transaction.Insert(context.Background(), &transaction.TransactionCreate{AccountID: created.ID})
		require.NoError(t, err)
	}
	require.NoError(t, writer.Commit())

	rows, err := store.Read().Transactions.List(context.Background(), &transaction.TransactionFilter{
		AccountID: created.ID,
		Limit:     2,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(5), rows[0].Sequence)
	assert.Equal(t, int64(4), rows[1].Sequence)

	rows, err = store.Read().Transactions.List(context.Background(), &transaction.TransactionFilter{
		AccountID:      created.ID,
		BeforeSequence: rows[1].Sequence,
		Limit:          10,
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(3), rows[0].Sequence)
	assert.Equal(t, int64(1), rows[2].Sequence)
}

func createDefinition(t *testing.T, store *Store, accountID uuid.UUID, create recurring.DefinitionCreate) *recurring.Definition {
	t.Helper()
	writer, err := store.Write(context.Background())
	require.NoError(t, err)
	create.AccountID = accountID
	created, err := writer.Recurring.Create(context.Background(), &create)
	require.NoError(t, err)
	require.NoError(t, writer.Commit())
	return created
}

func TestClaimDue_SkipsLeasedAndIneligible(t *testing.T) {
	store := New()
	acct := createAccount(t, store, "0.00")

	due := createDefinition(t, store, acct.ID, recurring.DefinitionCreate{NextExecutionDate: testNow})
	createDefinition(t, store, acct.ID, recurring.DefinitionCreate{NextExecutionDate: testNow.AddDate(0, 0, 1)})
	createDefinition(t, store, acct.ID, recurring.DefinitionCreate{NextExecutionDate: testNow, IsPaused: true})
	createDefinition(t, store, acct.ID, recurring.DefinitionCreate{NextExecutionDate: testNow, RequiresApproval: true})
	maxOne := int32(0)
	createDefinition(t, store, acct.ID, recurring.DefinitionCreate{NextExecutionDate: testNow, MaxOccurrences: &maxOne})

	claim := func(owner string) []*recurring.Definition {
		writer, err := store.Write(context.Background())
		require.NoError(t, err)
		rows, err := writer.Recurring.ClaimDue(context.Background(), recurring.ClaimRequest{
			Owner:      owner,
			Now:        testNow,
			LeaseUntil: testNow.Add(10 * time.Minute),
			Limit:      10,
		})
		require.NoError(t, err)
		require.NoError(t, writer.Commit())
		return rows
	}

	first := claim("a")
	require.Len(t, first, 1)
	assert.Equal(t, due.ID, first[0].ID)
	require.NotNil(t, first[0].ClaimedBy)
	assert.Equal(t, "a", *first[0].ClaimedBy)

	assert.Empty(t, claim("b"))
}

func TestListAwaitingApproval(t *testing.T) {
	store := New()
	acct := createAccount(t, store, "0.00")

	approval := createDefinition(t, store, acct.ID, recurring.DefinitionCreate{NextExecutionDate: testNow, RequiresApproval: true})
	createDefinition(t, store, acct.ID, recurring.DefinitionCreate{NextExecutionDate: testNow})

	rows, err := store.Read().Recurring.ListAwaitingApproval(context.Background(), testNow, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, approval.ID, rows[0].ID)
}

func TestListExpired(t *testing.T) {
	store := New()
	acct := createAccount(t, store, "0.00")

	ended := testNow.AddDate(0, 0, -1)
	expired := createDefinition(t, store, acct.ID, recurring.DefinitionCreate{NextExecutionDate: testNow, EndDate: &ended})
	createDefinition(t, store, acct.ID, recurring.DefinitionCreate{NextExecutionDate: testNow})

	writer, err := store.Write(context.Background())
	require.NoError(t, err)
	defer func() { _ = writer.Rollback() }()

	rows, err := writer.Recurring.ListExpired(context.Background(), testNow, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, expired.ID, rows[0].ID)
}

func TestOutbox_CommitStagesEventsRollbackDropsThem(t *testing.T) {
	store := New()
	definitionID := uuid.Must(uuid.NewV4())

	writer, err := store.Write(context.Background())
	require.NoError(t, err)
	writer.Emit(events.RecurringCompleted(definitionID, testNow))
	require.NoError(t, writer.Rollback())

	writer, err = store.Write(context.Background())
	require.NoError(t, err)
	writer.Emit(events.RecurringCompleted(definitionID, testNow))
	writer.Emit(events.RecurringSkipped(definitionID, "insufficient funds", testNow))
	require.NoError(t, writer.Commit())
	staged := writer.Staged()
	require.Len(t, staged, 2)

	writer, err = store.Write(context.Background())
	require.NoError(t, err)
	pending, err := writer.Outbox.ClaimPending(context.Background(), time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.NoError(t, writer.Rollback())

	require.Len(t, pending, 2)
	assert.Equal(t, staged, []int64{pending[0].ID, pending[1].ID})
	assert.Contains(t, pending[0].Payload, `"type":"recurring.completed"`)
	assert.Equal(t, events.RecurringCompleted(definitionID, testNow).Key(), pending[0].EventKey)
}

func TestOutbox_MarkPublishedFailedAndPrune(t *testing.T) {
	store := New()
	writer, err := store.Write(context.Background())
	require.NoError(t, err)
	writer.Emit(events.RecurringCompleted(uuid.Must(uuid.NewV4()), testNow))
	writer.Emit(events.RecurringCompleted(uuid.Must(uuid.NewV4()), testNow))
	require.NoError(t, writer.Commit())
	staged := writer.Staged()
	later := time.Now().Add(time.Minute)

	writer, err = store.Write(context.Background())
	require.NoError(t, err)
	require.NoError(t, writer.Outbox.MarkFailed(context.Background(), staged))
	require.NoError(t, writer.Outbox.MarkPublished(context.Background(), staged[:1], testNow))
	require.NoError(t, writer.Commit())

	writer, err = store.Write(context.Background())
	require.NoError(t, err)
	pending, err := writer.Outbox.ClaimPending(context.Background(), later, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, staged[1], pending[0].ID)
	assert.Equal(t, int32(1), pending[0].Attempts)

	pruned, err := writer.Outbox.Prune(context.Background(), testNow.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
	require.NoError(t, writer.Commit())
}
