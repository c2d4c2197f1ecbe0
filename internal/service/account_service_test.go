package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/allowance-server/internal/clock"
	"github.com/carson-networks/allowance-server/internal/recurrence"
	"github.com/carson-networks/allowance-server/internal/savings"
	"github.com/carson-networks/allowance-server/internal/storage"
	"github.com/carson-networks/allowance-server/internal/storage/account"
	"github.com/carson-networks/allowance-server/internal/xerrors"
)

func newAccountReaderService(t *testing.T) (*AccountService, *account.MockIReader) {
	t.Helper()
	mockReader := account.NewMockIReader(t)
	store := &stubStorage{reader: &storage.Reader{Accounts: mockReader}}
	svc := NewAccountService(store, nil, clock.NewManual(testStart))
	return svc, mockReader
}

func makeStorageAccounts(n int, createdAt time.Time) []*account.Account {
	rows := make([]*account.Account, n)
	for i := range rows {
		rows[i] = &account.Account{
			ID:              uuid.Must(uuid.NewV4()),
			Name:            "Allowance",
			Balance:         decimal.RequireFromString("100.00"),
			StartingBalance: decimal.RequireFromString("100.00"),
			CreatedAt:       createdAt,
		}
	}
	return rows
}

// -- CreateAccount tests --

func TestCreateAccount_Success(t *testing.T) {
	env := newTestEnv(t)
	ownerID := uuid.Must(uuid.NewV4())

	created, err := env.svc.Account.CreateAccount(context.Background(), AccountCreate{
		OwnerID:         ownerID,
		Name:            "Allowance",
		StartingBalance: decimal.RequireFromString("12.00"),
		SavingsRule:     savings.Percentage{Percent: decimal.NewFromInt(10)},
	})
	require.NoError(t, err)
	assert.Equal(t, ownerID, created.OwnerID)
	assert.True(t, created.Balance.Equal(decimal.RequireFromString("12.00")))
	assert.True(t, created.SavingsBalance.IsZero())
	assert.Equal(t, savings.Percentage{Percent: decimal.NewFromInt(10)}.String(), created.SavingsRule.String())
	assert.Equal(t, testStart, created.CreatedAt)

	found, err := env.svc.Account.GetAccount(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}

func TestCreateAccount_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		create AccountCreate
		want   error
	}{
		{"empty name", AccountCreate{StartingBalance: decimal.Zero}, xerrors.ErrInvalidInput},
		{"negative balance", AccountCreate{Name: "a", StartingBalance: decimal.NewFromInt(-1)}, xerrors.ErrInvalidAmount},
		{"fractional cents", AccountCreate{Name: "a", StartingBalance: decimal.RequireFromString("1.001")}, xerrors.ErrInvalidAmount},
		{"bad savings rule", AccountCreate{Name: "a", SavingsRule: savings.Percentage{Percent: decimal.NewFromInt(150)}}, xerrors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Account.CreateAccount(context.Background(), tt.create)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// -- GetAccount tests --

func TestGetAccount_NotFound(t *testing.T) {
	svc, mockReader := newAccountReaderService(t)

	id := uuid.Must(uuid.NewV4())
	mockReader.EXPECT().FindByID(mock.Anything, id).Return(nil, account.ErrNotFound)

	found, err := svc.GetAccount(context.Background(), id)
	assert.ErrorIs(t, err, xerrors.ErrAccountNotFound)
	assert.Nil(t, found)
}

func TestGetAccount_StorageError(t *testing.T) {
	svc, mockReader := newAccountReaderService(t)

	id := uuid.Must(uuid.NewV4())
	mockReader.EXPECT().FindByID(mock.Anything, id).Return(nil, errors.New("connection refused"))

	found, err := svc.GetAccount(context.Background(), id)
	assert.EqualError(t, err, "connection refused")
	assert.Nil(t, found)
}

func TestGetAccount_ConvertsSavingsRule(t *testing.T) {
	svc, mockReader := newAccountReaderService(t)

	row := makeStorageAccounts(1, testStart)[0]
	row.SavingsMode = account.SavingsModeFixed
	row.SavingsValue = decimal.RequireFromString("5.00")
	mockReader.EXPECT().FindByID(mock.Anything, row.ID).Return(row, nil)

	found, err := svc.GetAccount(context.Background(), row.ID)
	require.NoError(t, err)
	assert.Equal(t, savings.FixedAmount{Amount: decimal.RequireFromString("5.00")}, found.SavingsRule)
}

// -- ListAccounts tests --

func TestListAccounts_NoResults(t *testing.T) {
	svc, mockReader := newAccountReaderService(t)

	mockReader.EXPECT().List(mock.Anything, mock.Anything).
		Return(&account.AccountListResult{}, nil)

	accounts, next, err := svc.ListAccounts(context.Background(), nil, nil)

	assert.NoError(t, err)
	assert.Nil(t, accounts)
	assert.Nil(t, next)
}

func TestListAccounts_HasNextPage(t *testing.T) {
	svc, mockReader := newAccountReaderService(t)

	rows := makeStorageAccounts(defaultAccountLimit+1, testStart)
	mockReader.EXPECT().List(mock.Anything, mock.MatchedBy(func(f *account.AccountFilter) bool {
		return f.Limit == defaultAccountLimit && f.Offset == 0 && f.OwnerID == nil
	})).Return(account.Page(rows, defaultAccountLimit, 0), nil)

	accounts, next, err := svc.ListAccounts(context.Background(), nil, nil)

	assert.NoError(t, err)
	assert.Len(t, accounts, defaultAccountLimit, "truncated to default account limit")
	require.NotNil(t, next)
	assert.Equal(t, defaultAccountLimit, next.Position)
	assert.Equal(t, defaultAccountLimit, next.Limit)
}

func TestListAccounts_WithCursorAndOwner(t *testing.T) {
	svc, mockReader := newAccountReaderService(t)

	ownerID := uuid.Must(uuid.NewV4())
	rows := makeStorageAccounts(1, testStart)
	mockReader.EXPECT().List(mock.Anything, mock.MatchedBy(func(f *account.AccountFilter) bool {
		return f.Limit == 2 && f.Offset == 20 && f.OwnerID != nil && *f.OwnerID == ownerID
	})).Return(account.Page(rows, 2, 20), nil)

	accounts, next, err := svc.ListAccounts(context.Background(), &ownerID, &AccountCursor{Position: 20, Limit: 2})

	assert.NoError(t, err)
	assert.Len(t, accounts, 1)
	assert.Nil(t, next)
}

// -- ConfigureSavings / RetireAccount tests --

func TestConfigureSavings(t *testing.T) {
	env := newTestEnv(t)
	acct := env.account(t, "0.00")

	updated, err := env.svc.Account.ConfigureSavings(context.Background(), acct.ID, savings.FixedAmount{Amount: decimal.RequireFromString("2.50")})
	require.NoError(t, err)
	assert.Equal(t, "fixed:2.50", updated.SavingsRule.String())

	updated, err = env.svc.Account.ConfigureSavings(context.Background(), acct.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, savings.NoTransfer{}, updated.SavingsRule)

	_, err = env.svc.Account.ConfigureSavings(context.Background(), uuid.Must(uuid.NewV4()), savings.NoTransfer{})
	assert.ErrorIs(t, err, xerrors.ErrAccountNotFound)
}

func TestRetireAccount(t *testing.T) {
	env := newTestEnv(t)
	acct := env.account(t, "0.00")
	definition, err := env.svc.Recurring.CreateDefinition(context.Background(), DefinitionCreate{
		AccountID:   acct.ID,
		Amount:      decimal.RequireFromString("5.00"),
		Description: "Weekly allowance",
		Pattern:     recurrence.PatternWeekly,
	})
	require.NoError(t, err)

	cancelled, err := env.svc.Account.RetireAccount(context.Background(), acct.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{definition.ID}, cancelled)

	found, err := env.svc.Account.GetAccount(context.Background(), acct.ID)
	require.NoError(t, err)
	require.NotNil(t, found.RetiredAt)

	stored, err := env.svc.Recurring.GetDefinition(context.Background(), definition.ID)
	require.NoError(t, err)
	assert.Equal(t, DefinitionStateTerminated, stored.State())
}
