package actions

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/allowance-server/internal/events"
	"github.com/carson-networks/allowance-server/internal/recurrence"
	"github.com/carson-networks/allowance-server/internal/storage"
	"github.com/carson-networks/allowance-server/internal/storage/account"
	"github.com/carson-networks/allowance-server/internal/storage/memory"
	"github.com/carson-networks/allowance-server/internal/storage/recurring"
	"github.com/carson-networks/allowance-server/internal/storage/transaction"
	"github.com/carson-networks/allowance-server/internal/xerrors"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// perform runs the action on its own writer and commits it when it succeeds.
func perform(t *testing.T, store *memory.Store, action IAction) ([]events.Event, error) {
	t.Helper()
	writer, err := store.Write(context.Background())
	require.NoError(t, err)

	if err = action.Perform(context.Background(), writer); err != nil {
		require.NoError(t, writer.Rollback())
		return nil, err
	}
	require.NoError(t, writer.Commit())
	return writer.Events(), nil
}

func newAccount(t *testing.T, store *memory.Store, balance string) *account.Account {
	t.Helper()
	create := &CreateAccount{
		OwnerID:         uuid.Must(uuid.NewV4()),
		Name:            "Allowance",
		StartingBalance: decimal.RequireFromString(balance),
		CreatedAt:       testNow,
	}
	_, err := perform(t, store, create)
	require.NoError(t, err)
	return create.Result
}

func newDefinition(t *testing.T, store *memory.Store, create *CreateDefinition) *recurring.Definition {
	t.Helper()
	if create.Description == "" {
		create.Description = "Weekly allowance"
	}
	if create.StartDate.IsZero() {
		create.StartDate = testNow
	}
	create.Now = testNow
	_, err := perform(t, store, create)
	require.NoError(t, err)
	return create.Result
}

func claim(t *testing.T, store *memory.Store, owner string, now time.Time) []*recurring.Definition {
	t.Helper()
	action := &ClaimDue{Owner: owner, Now: now, LeaseUntil: now.Add(10 * time.Minute), Limit: 10}
	_, err := perform(t, store, action)
	require.NoError(t, err)
	return action.Claimed
}

func history(t *testing.T, store storage.Storage, accountID uuid.UUID) []*transaction.Transaction {
	t.Helper()
	rows, err := store.Read().Transactions.List(context.Background(), &transaction.TransactionFilter{
		AccountID: accountID,
		Ascending: true,
	})
	require.NoError(t, err)
	return rows
}

func balance(t *testing.T, store storage.Storage, accountID uuid.UUID) *account.Account {
	t.Helper()
	acct, err := store.Read().Accounts.FindByID(context.Background(), accountID)
	require.NoError(t, err)
	return acct
}

// -- CreateTransaction --

func TestCreateTransaction_CreditAndDebit(t *testing.T) {
	store := memory.New()
	acct := newAccount(t, store, "10.00")

	credit := &CreateTransaction{
		AccountID:   acct.ID,
		Direction:   transaction.DirectionCredit,
		Amount:      decimal.RequireFromString("2.50"),
		Description: "Birthday money",
		Now:         testNow,
	}
	emitted, err := perform(t, store, credit)
	require.NoError(t, err)
	assert.True(t, credit.Result.BalanceAfter.Equal(decimal.RequireFromString("12.50")))
	require.Len(t, emitted, 1)
	assert.Equal(t, events.TypeTransactionCommitted, emitted[0].Type)
	assert.Equal(t, "credit", emitted[0].Direction)

	debit := &CreateTransaction{
		AccountID:   acct.ID,
		Direction:   transaction.DirectionDebit,
		Amount:      decimal.RequireFromString("12.50"),
		Description: "Toy",
		Now:         testNow,
	}
	_, err = perform(t, store, debit)
	require.NoError(t, err)
	assert.True(t, balance(t, store, acct.ID).Balance.IsZero())
	assert.Len(t, history(t, store, acct.ID), 2)
}

func TestCreateTransaction_InsufficientFunds(t *testing.T) {
	store := memory.New()
	acct := newAccount(t, store, "3.00")

	_, err := perform(t, store, &CreateTransaction{
		AccountID:   acct.ID,
		Direction:   transaction.DirectionDebit,
		Amount:      decimal.RequireFromString("10.00"),
		Description: "Game",
		Now:         testNow,
	})
	assert.ErrorIs(t, err, xerrors.ErrInsufficientFunds)
	assert.True(t, balance(t, store, acct.ID).Balance.Equal(decimal.RequireFromString("3.00")))
	assert.Empty(t, history(t, store, acct.ID))
}

func TestCreateTransaction_AllowOverdraft(t *testing.T) {
	store := memory.New()
	acct := newAccount(t, store, "3.00")

	_, err := perform(t, store, &CreateTransaction{
		AccountID:      acct.ID,
		Direction:      transaction.DirectionDebit,
		Amount:         decimal.RequireFromString("10.00"),
		Description:    "Advance",
		AllowOverdraft: true,
		Now:            testNow,
	})
	require.NoError(t, err)
	assert.True(t, balance(t, store, acct.ID).Balance.Equal(decimal.RequireFromString("-7.00")))
}

func TestCreateTransaction_Validation(t *testing.T) {
	store := memory.New()
	acct := newAccount(t, store, "3.00")

	tests := []struct {
		name   string
		action *CreateTransaction
		want   error
	}{
		{"zero amount", &CreateTransaction{AccountID: acct.ID, Amount: decimal.Zero, Description: "x"}, xerrors.ErrInvalidAmount},
		{"three decimals", &CreateTransaction{AccountID: acct.ID, Amount: decimal.RequireFromString("1.005"), Description: "x"}, xerrors.ErrInvalidAmount},
		{"empty description", &CreateTransaction{AccountID: acct.ID, Amount: decimal.NewFromInt(1)}, xerrors.ErrInvalidInput},
		{"reserved category", &CreateTransaction{AccountID: acct.ID, Amount: decimal.NewFromInt(1), Description: "x", Category: CategorySavingsTransfer}, xerrors.ErrInvalidInput},
		{"long category", &CreateTransaction{AccountID: acct.ID, Amount: decimal.NewFromInt(1), Description: "x", Category: strings.Repeat("c", MaxCategoryLength+1)}, xerrors.ErrInvalidInput},
		{"unknown account", &CreateTransaction{AccountID: uuid.Must(uuid.NewV4()), Amount: decimal.NewFromInt(1), Description: "x"}, xerrors.ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := perform(t, store, tt.action)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreateTransaction_RetiredAccount(t *testing.T) {
	store := memory.New()
	acct := newAccount(t, store, "3.00")
	_, err := perform(t, store, &RetireAccount{AccountID: acct.ID, Now: testNow})
	require.NoError(t, err)

	_, err = perform(t, store, &CreateTransaction{
		AccountID:   acct.ID,
		Direction:   transaction.DirectionCredit,
		Amount:      decimal.NewFromInt(1),
		Description: "x",
	})
	assert.ErrorIs(t, err, xerrors.ErrAccountRetired)
}

// -- ExecuteRecurring --

func TestExecuteRecurring_ScheduledSkipOnShortfall(t *testing.T) {
	store := memory.New()
	acct := newAccount(t, store, "3.00")
	definition := newDefinition(t, store, &CreateDefinition{
		AccountID: acct.ID,
		Amount:    decimal.RequireFromString("10.00"),
		Direction: transaction.DirectionDebit,
		Pattern:   recurrence.PatternWeekly,
	})
	require.Len(t, claim(t, store, "a", testNow), 1)

	execute := &ExecuteRecurring{DefinitionID: definition.ID, Now: testNow, ClaimOwner: "a"}
	emitted, err := perform(t, store, execute)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, execute.Outcome)
	require.Len(t, emitted, 1)
	assert.Equal(t, events.TypeRecurringSkipped, emitted[0].Type)
	assert.Equal(t, SkipReasonInsufficientFunds, emitted[0].Reason)

	// a second attempt on the same occurrence stays quiet
	execute = &ExecuteRecurring{DefinitionID: definition.ID, Now: testNow.Add(time.Hour), ClaimOwner: "a"}
	emitted, err = perform(t, store, execute)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, execute.Outcome)
	assert.Empty(t, emitted)

	stored, err := store.Read().Recurring.FindByID(context.Background(), definition.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(0), stored.OccurrenceCount)
	assert.True(t, stored.NextExecutionDate.Equal(definition.NextExecutionDate))
	assert.Empty(t, history(t, store, acct.ID))
}

func TestExecuteRecurring_ScheduledRequiresClaim(t *testing.T) {
	store := memory.New()
	acct := newAccount(t, store, "0.00")
	definition := newDefinition(t, store, &CreateDefinition{
		AccountID: acct.ID,
		Amount:    decimal.RequireFromString("5.00"),
		Pattern:   recurrence.PatternDaily,
	})

	execute := &ExecuteRecurring{DefinitionID: definition.ID, Now: testNow, ClaimOwner: "a"}
	_, err := perform(t, store, execute)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotDue, execute.Outcome)
	assert.Empty(t, history(t, store, acct.ID))
}

func TestExecuteRecurring_AdvancesAndReleasesClaim(t *testing.T) {
	store := memory.New()
	acct := newAccount(t, store, "0.00")
	definition := newDefinition(t, store, &CreateDefinition{
		AccountID: acct.ID,
		Amount:    decimal.RequireFromString("20.00"),
		Category:  CategoryAllowance,
		Pattern:   recurrence.PatternWeekly,
	})
	require.Len(t, claim(t, store, "a", testNow), 1)

	execute := &ExecuteRecurring{DefinitionID: definition.ID, Now: testNow, ClaimOwner: "a"}
	emitted, err := perform(t, store, execute)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, execute.Outcome)
	assert.True(t, execute.IsAllowanceCredit())
	require.Len(t, emitted, 1)

	stored := execute.Definition
	assert.Equal(t, int32(1), stored.OccurrenceCount)
	assert.Equal(t, time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC), stored.NextExecutionDate)
	assert.Nil(t, stored.ClaimedBy)
	require.NotNil(t, execute.Transaction.ExecutionID)
	require.NotNil(t, execute.Transaction.SourceRecurringID)
	assert.Equal(t, definition.ID, *execute.Transaction.SourceRecurringID)

	updated := balance(t, store, acct.ID)
	assert.True(t, updated.Balance.Equal(decimal.RequireFromString("20.00")))
	require.NotNil(t, updated.LastAllowanceDate)
	assert.Equal(t, testNow, *updated.LastAllowanceDate)

	// the advanced definition is no longer due
	assert.Empty(t, claim(t, store, "a", testNow.Add(time.Hour)))
}

func TestExecuteRecurring_TerminatesOnMaxOccurrences(t *testing.T) {
	store := memory.New()
	acct := newAccount(t, store, "100.00")
	maxOccurrences := int32(1)
	definition := newDefinition(t, store, &CreateDefinition{
		AccountID:      acct.ID,
		Amount:         decimal.RequireFromString("10.00"),
		Direction:      transaction.DirectionDebit,
		Pattern:        recurrence.PatternMonthly,
		MaxOccurrences: &maxOccurrences,
	})

	execute := &ExecuteRecurring{DefinitionID: definition.ID, Now: testNow, Manual: true}
	emitted, err := perform(t, store, execute)
	require.NoError(t, err)
	assert.False(t, execute.Definition.IsActive)
	require.Len(t, emitted, 2)
	assert.Equal(t, events.TypeRecurringCompleted, emitted[1].Type)

	_, err = perform(t, store, &ExecuteRecurring{DefinitionID: definition.ID, Now: testNow, Manual: true})
	assert.ErrorIs(t, err, xerrors.ErrDefinitionTerminated)
}

func TestExecuteRecurring_ManualShortfallFails(t *testing.T) {
	store := memory.New()
	acct := newAccount(t, store, "1.00")
	definition := newDefinition(t, store, &CreateDefinition{
		AccountID: acct.ID,
		Amount:    decimal.RequireFromString("10.00"),
		Direction: transaction.DirectionDebit,
		Pattern:   recurrence.PatternMonthly,
	})

	_, err := perform(t, store, &ExecuteRecurring{DefinitionID: definition.ID, Now: testNow, Manual: true})
	assert.ErrorIs(t, err, xerrors.ErrInsufficientFunds)
}

func TestExecuteRecurring_ExpectedOccurrenceGuard(t *testing.T) {
	store := memory.New()
	acct := newAccount(t, store, "0.00")
	definition := newDefinition(t, store, &CreateDefinition{
		AccountID: acct.ID,
		Amount:    decimal.RequireFromString("1.00"),
		Pattern:   recurrence.PatternDaily,
	})

	expected := int32(0)
	_, err := perform(t, store, &ExecuteRecurring{DefinitionID: definition.ID, Now: testNow, Manual: true, ExpectedOccurrence: &expected})
	require.NoError(t, err)

	_, err = perform(t, store, &ExecuteRecurring{DefinitionID: definition.ID, Now: testNow, Manual: true, ExpectedOccurrence: &expected})
	assert.ErrorIs(t, err, xerrors.ErrAlreadyExecuted)
	assert.Len(t, history(t, store, acct.ID), 1)
}

func TestExecuteRecurring_ManualPaused(t *testing.T) {
	store := memory.New()
	acct := newAccount(t, store, "0.00")
	definition := newDefinition(t, store, &CreateDefinition{
		AccountID: acct.ID,
		Amount:    decimal.RequireFromString("1.00"),
		Pattern:   recurrence.PatternDaily,
		Paused:    true,
	})

	_, err := perform(t, store, &ExecuteRecurring{DefinitionID: definition.ID, Now: testNow, Manual: true})
	assert.ErrorIs(t, err, xerrors.ErrDefinitionPaused)
}

// -- SavingsTransfer --

func TestSavingsTransfer_Fixed(t *testing.T) {
	store := memory.New()
	acct := newAccount(t, store, "140.00")
	_, err := perform(t, store, &ConfigureSavings{
		AccountID:    acct.ID,
		SavingsMode:  account.SavingsModeFixed,
		SavingsValue: decimal.RequireFromString("5.00"),
	})
	require.NoError(t, err)

	executionID := uuid.Must(uuid.NewV4())
	transfer := &SavingsTransfer{
		AccountID:    acct.ID,
		CreditAmount: decimal.RequireFromString("20.00"),
		ExecutionID:  &executionID,
		Now:          testNow,
	}
	_, err = perform(t, store, transfer)
	require.NoError(t, err)
	assert.False(t, transfer.Skipped)
	assert.Equal(t, CategorySavingsTransfer, transfer.Result.Category)
	assert.Equal(t, transaction.DirectionDebit, transfer.Result.Direction)
	assert.True(t, transfer.Result.SavingsBalanceAfter.Equal(decimal.RequireFromString("5.00")))

	updated := balance(t, store, acct.ID)
	assert.True(t, updated.Balance.Equal(decimal.RequireFromString("135.00")))
	assert.True(t, updated.SavingsBalance.Equal(decimal.RequireFromString("5.00")))
}

func TestSavingsTransfer_SkipsWhenBalanceTooLow(t *testing.T) {
	store := memory.New()
	acct := newAccount(t, store, "2.00")
	_, err := perform(t, store, &ConfigureSavings{
		AccountID:    acct.ID,
		SavingsMode:  account.SavingsModeFixed,
		SavingsValue: decimal.RequireFromString("5.00"),
	})
	require.NoError(t, err)

	transfer := &SavingsTransfer{AccountID: acct.ID, CreditAmount: decimal.RequireFromString("1.00"), Now: testNow}
	emitted, err := perform(t, store, transfer)
	require.NoError(t, err)
	assert.True(t, transfer.Skipped)
	assert.Empty(t, emitted)
	assert.Empty(t, history(t, store, acct.ID))
}

func TestSavingsTransfer_NoRule(t *testing.T) {
	store := memory.New()
	acct := newAccount(t, store, "20.00")

	transfer := &SavingsTransfer{AccountID: acct.ID, CreditAmount: decimal.RequireFromString("20.00"), Now: testNow}
	_, err := perform(t, store, transfer)
	require.NoError(t, err)
	assert.True(t, transfer.Skipped)
}

// -- definition lifecycle --

func TestChangeDefinitionState_PauseResumeCancel(t *testing.T) {
	store := memory.New()
	acct := newAccount(t, store, "0.00")
	definition := newDefinition(t, store, &CreateDefinition{
		AccountID: acct.ID,
		Amount:    decimal.RequireFromString("1.00"),
		Pattern:   recurrence.PatternWeekly,
	})

	_, err := perform(t, store, &ChangeDefinitionState{DefinitionID: definition.ID, Change: StateChangePause, Now: testNow})
	require.NoError(t, err)
	assert.Empty(t, claim(t, store, "a", testNow))

	later := testNow.AddDate(0, 0, 20)
	resume := &ChangeDefinitionState{DefinitionID: definition.ID, Change: StateChangeResume, Now: later}
	_, err = perform(t, store, resume)
	require.NoError(t, err)
	assert.False(t, resume.Result.IsPaused)
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), resume.Result.NextExecutionDate)

	emitted, err := perform(t, store, &ChangeDefinitionState{DefinitionID: definition.ID, Change: StateChangeCancel, Now: later})
	require.NoError(t, err)
	require.Len(t, emitted, 1)
	assert.Equal(t, events.TypeRecurringCompleted, emitted[0].Type)

	_, err = perform(t, store, &ChangeDefinitionState{DefinitionID: definition.ID, Change: StateChangeResume, Now: later})
	assert.ErrorIs(t, err, xerrors.ErrDefinitionTerminated)

	emitted, err = perform(t, store, &ChangeDefinitionState{DefinitionID: definition.ID, Change: StateChangeCancel, Now: later})
	require.NoError(t, err)
	assert.Empty(t, emitted)
}

func TestExpireDefinitions(t *testing.T) {
	store := memory.New()
	acct := newAccount(t, store, "0.00")
	endDate := testNow.AddDate(0, 0, 2)
	definition := newDefinition(t, store, &CreateDefinition{
		AccountID: acct.ID,
		Amount:    decimal.RequireFromString("1.00"),
		Pattern:   recurrence.PatternDaily,
		EndDate:   &endDate,
	})

	expire := &ExpireDefinitions{Now: testNow, Limit: 10}
	_, err := perform(t, store, expire)
	require.NoError(t, err)
	assert.Empty(t, expire.Expired)

	expire = &ExpireDefinitions{Now: endDate.Add(time.Hour), Limit: 10}
	emitted, err := perform(t, store, expire)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{definition.ID}, expire.Expired)
	require.Len(t, emitted, 1)
	assert.Equal(t, events.TypeRecurringCompleted, emitted[0].Type)
}

func TestRetireAccount_CancelsDefinitions(t *testing.T) {
	store := memory.New()
	acct := newAccount(t, store, "0.00")
	for i := 0; i < 3; i++ {
		newDefinition(t, store, &CreateDefinition{
			AccountID: acct.ID,
			Amount:    decimal.RequireFromString("1.00"),
			Pattern:   recurrence.PatternDaily,
		})
	}

	retire := &RetireAccount{AccountID: acct.ID, Now: testNow}
	emitted, err := perform(t, store, retire)
	require.NoError(t, err)
	assert.Len(t, retire.CancelledDefinitions, 3)
	assert.Len(t, emitted, 3)
	assert.True(t, balance(t, store, acct.ID).IsRetired())

	_, err = perform(t, store, &CreateDefinition{
		AccountID:   acct.ID,
		Amount:      decimal.RequireFromString("1.00"),
		Description: "x",
		Pattern:     recurrence.PatternDaily,
		StartDate:   testNow,
	})
	assert.ErrorIs(t, err, xerrors.ErrAccountRetired)
}

// lockLog records the order of row locks taken through a writer.
type lockLog struct {
	locks []string
}

type lockingAccounts struct {
	account.IWriter
	log *lockLog
}

func (l *lockingAccounts) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	l.log.locks = append(l.log.locks, "account")
	return l.IWriter.FindByIDForUpdate(ctx, id)
}

type lockingDefinitions struct {
	recurring.IWriter
	log *lockLog
}

func (l *lockingDefinitions) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*recurring.Definition, error) {
	l.log.locks = append(l.log.locks, "definition")
	return l.IWriter.FindByIDForUpdate(ctx, id)
}

func performLogged(t *testing.T, store *memory.Store, action IAction) []string {
	t.Helper()
	writer, err := store.Write(context.Background())
	require.NoError(t, err)

	log := &lockLog{}
	writer.Account = &lockingAccounts{IWriter: writer.Account, log: log}
	writer.Recurring = &lockingDefinitions{IWriter: writer.Recurring, log: log}

	require.NoError(t, action.Perform(context.Background(), writer))
	require.NoError(t, writer.Commit())
	return log.locks
}

func TestLockOrder_AccountBeforeDefinition(t *testing.T) {
	store := memory.New()
	acct := newAccount(t, store, "0.00")
	definition := newDefinition(t, store, &CreateDefinition{
		AccountID: acct.ID,
		Amount:    decimal.RequireFromString("1.00"),
		Pattern:   recurrence.PatternDaily,
	})

	locks := performLogged(t, store, &ExecuteRecurring{DefinitionID: definition.ID, Now: testNow, Manual: true})
	assert.Equal(t, []string{"account", "definition"}, locks)

	locks = performLogged(t, store, &RetireAccount{AccountID: acct.ID, Now: testNow})
	assert.Equal(t, []string{"account", "definition"}, locks)
}
