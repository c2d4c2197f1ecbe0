package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/allowance-server/internal/clock"
	"github.com/carson-networks/allowance-server/internal/operator"
	"github.com/carson-networks/allowance-server/internal/operator/actions"
	"github.com/carson-networks/allowance-server/internal/savings"
	"github.com/carson-networks/allowance-server/internal/storage"
	"github.com/carson-networks/allowance-server/internal/storage/account"
	"github.com/carson-networks/allowance-server/internal/xerrors"
)

const (
	defaultAccountLimit = 20
	maxAccountNameLen   = 255
)

// AccountService handles account business logic.
type AccountService struct {
	storage   storage.Storage
	delegator operator.IDelegator
	clock     clock.Clock
}

// NewAccountService creates a new AccountService.
func NewAccountService(store storage.Storage, delegator operator.IDelegator, clk clock.Clock) *AccountService {
	return &AccountService{storage: store, delegator: delegator, clock: clk}
}

// CreateAccount validates and creates a new account.
func (s *AccountService) CreateAccount(ctx context.Context, create AccountCreate) (*Account, error) {
	if create.Name == "" || utf8.RuneCountInString(create.Name) > maxAccountNameLen {
		return nil, xerrors.Invalid("name", fmt.Sprintf("must be 1 to %d characters", maxAccountNameLen))
	}
	if create.StartingBalance.IsNegative() {
		return nil, xerrors.InvalidAmount("starting balance must not be negative")
	}
	if !create.StartingBalance.Equal(create.StartingBalance.Round(2)) {
		return nil, xerrors.InvalidAmount("starting balance must have at most two decimal places")
	}

	rule := create.SavingsRule
	if rule == nil {
		rule = savings.NoTransfer{}
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	mode, value := savings.ToStorage(rule)

	action := &actions.CreateAccount{
		OwnerID:         create.OwnerID,
		Name:            create.Name,
		StartingBalance: create.StartingBalance,
		SavingsMode:     mode,
		SavingsValue:    value,
		CreatedAt:       s.clock.Now(),
	}
	if err := s.delegator.Process(ctx, action); err != nil {
		return nil, err
	}
	return accountFromStorage(action.Result)
}

// GetAccount retrieves an account by ID.
func (s *AccountService) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	row, err := s.storage.Read().Accounts.FindByID(ctx, id)
	if errors.Is(err, account.ErrNotFound) {
		return nil, fmt.Errorf("account %s: %w", id, xerrors.ErrAccountNotFound)
	}
	if err != nil {
		return nil, err
	}
	return accountFromStorage(row)
}

// ListAccounts returns a page of accounts using cursor pagination.
func (s *AccountService) ListAccounts(ctx context.Context, ownerID *uuid.UUID, cursor *AccountCursor) ([]Account, *AccountCursor, error) {
	limit := defaultAccountLimit
	offset := 0
	if cursor != nil {
		limit = cursor.Limit
		offset = cursor.Position
	}

	result, err := s.storage.Read().Accounts.List(ctx, &account.AccountFilter{
		OwnerID: ownerID,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(result.Accounts) == 0 {
		return nil, nil, nil
	}

	var nextCursor *AccountCursor
	if result.NextCursor != nil {
		nextCursor = &AccountCursor{
			Position: result.NextCursor.Position,
			Limit:    result.NextCursor.Limit,
		}
	}

	convertedAccounts := make([]Account, len(result.Accounts))
	for i, row := range result.Accounts {
		converted, err := accountFromStorage(row)
		if err != nil {
			return nil, nil, err
		}
		convertedAccounts[i] = *converted
	}

	return convertedAccounts, nextCursor, nil
}

// ConfigureSavings replaces the account's savings rule.
func (s *AccountService) ConfigureSavings(ctx context.Context, id uuid.UUID, rule savings.Rule) (*Account, error) {
	if rule == nil {
		rule = savings.NoTransfer{}
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	mode, value := savings.ToStorage(rule)

	action := &actions.ConfigureSavings{
		AccountID:    id,
		SavingsMode:  mode,
		SavingsValue: value,
	}
	if err := s.delegator.Process(ctx, action); err != nil {
		return nil, err
	}
	return accountFromStorage(action.Result)
}

// RetireAccount soft-retires the account and cancels its active recurring
// definitions. It returns the ids of the cancelled definitions.
func (s *AccountService) RetireAccount(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	action := &actions.RetireAccount{
		AccountID: id,
		Now:       s.clock.Now(),
	}
	if err := s.delegator.Process(ctx, action); err != nil {
		return nil, err
	}
	return action.CancelledDefinitions, nil
}
