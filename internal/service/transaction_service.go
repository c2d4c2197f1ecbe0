package service

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/carson-networks/allowance-server/internal/clock"
	"github.com/carson-networks/allowance-server/internal/operator"
	"github.com/carson-networks/allowance-server/internal/operator/actions"
	"github.com/carson-networks/allowance-server/internal/storage"
	"github.com/carson-networks/allowance-server/internal/storage/transaction"
)

const (
	defaultLimit = 20
	maxLimit     = 200
	replayPage   = 500
)

// TransactionService handles transaction business logic.
type TransactionService struct {
	storage   storage.Storage
	delegator operator.IDelegator
	clock     clock.Clock
	accounts  *AccountService
}

// NewTransactionService creates a new TransactionService.
func NewTransactionService(store storage.Storage, delegator operator.IDelegator, clk clock.Clock) *TransactionService {
	return &TransactionService{
		storage:   store,
		delegator: delegator,
		clock:     clk,
		accounts:  NewAccountService(store, delegator, clk),
	}
}

// CreateTransaction validates and appends a manual entry.
func (s *TransactionService) CreateTransaction(ctx context.Context, create TransactionCreate) (*Transaction, error) {
	if err := actions.ValidateAmount(create.Amount); err != nil {
		return nil, err
	}
	if err := actions.ValidateDescription(create.Description); err != nil {
		return nil, err
	}
	if err := actions.ValidateCategory(create.Category); err != nil {
		return nil, err
	}

	action := &actions.CreateTransaction{
		AccountID:      create.AccountID,
		Direction:      directionToStorage(create.Direction),
		Amount:         create.Amount,
		Description:    create.Description,
		Category:       create.Category,
		CreatedBy:      create.CreatedBy,
		AllowOverdraft: create.AllowOverdraft,
		Now:            s.clock.Now(),
	}
	if err := s.delegator.Process(ctx, action); err != nil {
		return nil, err
	}

	created := transactionFromStorage(action.Result)
	return &created, nil
}

func (s *TransactionService) GetBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	acct, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return acct.Balance, nil
}

// GetHistory returns one page of an account's transactions, newest first.
func (s *TransactionService) GetHistory(ctx context.Context, accountID uuid.UUID, cursor *TransactionCursor) ([]Transaction, *TransactionCursor, error) {
	if _, err := s.accounts.GetAccount(ctx, accountID); err != nil {
		return nil, nil, err
	}

	limit := defaultLimit
	var beforeSequence int64
	if cursor != nil {
		if cursor.Limit > 0 {
			limit = cursor.Limit
		}
		beforeSequence = cursor.BeforeSequence
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	rows, err := s.storage.Read().Transactions.List(ctx, &transaction.TransactionFilter{
		AccountID:      accountID,
		BeforeSequence: beforeSequence,
		Limit:          limit + 1,
	})
	if err != nil {
		return nil, nil, err
	}

	if len(rows) == 0 {
		return nil, nil, nil
	}

	var nextCursor *TransactionCursor
	if len(rows) > limit {
		rows = rows[:limit]
		nextCursor = &TransactionCursor{
			BeforeSequence: rows[len(rows)-1].Sequence,
			Limit:          limit,
		}
	}

	convertedTransactions := make([]Transaction, len(rows))
	for i, row := range rows {
		convertedTransactions[i] = transactionFromStorage(row)
	}

	return convertedTransactions, nextCursor, nil
}

// ReplayBalance rebuilds the primary and savings balances from the complete
// log, oldest first, and compares them with the cached values. The cached
// balances are read once the replay has caught up with the log, and the read
// is repeated if a row committed in between.
func (s *TransactionService) ReplayBalance(ctx context.Context, accountID uuid.UUID) (*Replay, error) {
	acct, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	replay := &Replay{
		AccountID:       accountID,
		StartingBalance: acct.StartingBalance,
		ReplayedBalance: acct.StartingBalance,
		ReplayedSavings: decimal.Zero,
	}

	var afterSequence int64
	for {
		rows, err := s.logAfter(ctx, accountID, afterSequence, replayPage)
		if err != nil {
			return nil, err
		}
		afterSequence = replay.apply(rows, afterSequence)
		if len(rows) == replayPage {
			continue
		}

		acct, err = s.accounts.GetAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}
		tail, err := s.logAfter(ctx, accountID, afterSequence, 1)
		if err != nil {
			return nil, err
		}
		if len(tail) == 0 {
			replay.CachedBalance = acct.Balance
			replay.CachedSavings = acct.SavingsBalance
			return replay, nil
		}
	}
}

func (s *TransactionService) logAfter(ctx context.Context, accountID uuid.UUID, afterSequence int64, limit int) ([]*transaction.Transaction, error) {
	return s.storage.Read().Transactions.List(ctx, &transaction.TransactionFilter{
		AccountID:     accountID,
		AfterSequence: afterSequence,
		Ascending:     true,
		Limit:         limit,
	})
}

// apply folds rows into the replay and returns the last sequence seen.
func (r *Replay) apply(rows []*transaction.Transaction, lastSequence int64) int64 {
	for _, row := range rows {
		r.ReplayedBalance = row.Direction.Apply(r.ReplayedBalance, row.Amount)
		if row.Category == actions.CategorySavingsTransfer {
			r.ReplayedSavings = r.ReplayedSavings.Add(row.Amount)
		}
		r.TransactionCount++

		if r.FirstMismatchSequence == 0 && !row.BalanceAfter.Equal(r.ReplayedBalance) {
			r.FirstMismatchSequence = row.Sequence
		}
		lastSequence = row.Sequence
	}
	return lastSequence
}
