package actions

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/carson-networks/allowance-server/internal/events"
	"github.com/carson-networks/allowance-server/internal/recurrence"
	"github.com/carson-networks/allowance-server/internal/storage"
	"github.com/carson-networks/allowance-server/internal/storage/account"
	"github.com/carson-networks/allowance-server/internal/storage/recurring"
	"github.com/carson-networks/allowance-server/internal/storage/transaction"
	"github.com/carson-networks/allowance-server/internal/xerrors"
)

// IAction is one unit of work that runs inside a single storage transaction.
// Returning an error rolls the whole unit back, emitted events included.
type IAction interface {
	Perform(ctx context.Context, writer *storage.Writer) error
}

const (
	MaxDescriptionLength = 255
	MaxCategoryLength    = 64

	CategoryAllowance       = "allowance"
	CategorySavingsTransfer = "savings_transfer"

	CreatedByScheduler = "scheduler"
)

// ValidateAmount requires a positive amount with at most two decimal places.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return xerrors.InvalidAmount("must be greater than zero")
	}
	if !amount.Equal(amount.Round(2)) {
		return xerrors.InvalidAmount("must have at most two decimal places")
	}
	return nil
}

func ValidateDescription(description string) error {
	if description == "" {
		return xerrors.Invalid("description", "must not be empty")
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return xerrors.Invalid("description", fmt.Sprintf("must be at most %d characters", MaxDescriptionLength))
	}
	return nil
}

// ValidateCategory rejects labels the ledger reserves for its own rows. Replay
// counts every savings_transfer row as a move into savings.
func ValidateCategory(category string) error {
	if category == CategorySavingsTransfer {
		return xerrors.Invalid("category", fmt.Sprintf("%q is reserved", category))
	}
	if utf8.RuneCountInString(category) > MaxCategoryLength {
		return xerrors.Invalid("category", fmt.Sprintf("must be at most %d characters", MaxCategoryLength))
	}
	return nil
}

func lockAccount(ctx context.Context, writer *storage.Writer, id uuid.UUID) (*account.Account, error) {
	acct, err := writer.Account.FindByIDForUpdate(ctx, id)
	if errors.Is(err, account.ErrNotFound) {
		return nil, fmt.Errorf("account %s: %w", id, xerrors.ErrAccountNotFound)
	}
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// findDefinition reads a definition without locking it.
func findDefinition(ctx context.Context, writer *storage.Writer, id uuid.UUID) (*recurring.Definition, error) {
	definition, err := writer.Recurring.FindByID(ctx, id)
	if errors.Is(err, recurring.ErrNotFound) {
		return nil, fmt.Errorf("recurring definition %s: %w", id, xerrors.ErrDefinitionNotFound)
	}
	if err != nil {
		return nil, err
	}
	return definition, nil
}

func lockDefinition(ctx context.Context, writer *storage.Writer, id uuid.UUID) (*recurring.Definition, error) {
	definition, err := writer.Recurring.FindByIDForUpdate(ctx, id)
	if errors.Is(err, recurring.ErrNotFound) {
		return nil, fmt.Errorf("recurring definition %s: %w", id, xerrors.ErrDefinitionNotFound)
	}
	if err != nil {
		return nil, err
	}
	return definition, nil
}

// entry is one ledger row about to be appended to a locked account.
type entry struct {
	direction         transaction.Direction
	amount            decimal.Decimal
	savingsDelta      decimal.Decimal
	description       string
	category          string
	sourceRecurringID *uuid.UUID
	executionID       *uuid.UUID
	createdBy         string
	at                time.Time
}

// appendEntry moves the locked account's balance, appends the ledger row and
// writes the account back, all on the caller's writer.
func appendEntry(ctx context.Context, writer *storage.Writer, acct *account.Account, e entry) (*transaction.Transaction, error) {
	acct.Balance = e.direction.Apply(acct.Balance, e.amount)
	acct.SavingsBalance = acct.SavingsBalance.Add(e.savingsDelta)

	row, err := writer.Transaction.Insert(ctx, &transaction.TransactionCreate{
		AccountID:           acct.ID,
		Direction:           e.direction,
		Amount:              e.amount,
		BalanceAfter:        acct.Balance,
		SavingsBalanceAfter: acct.SavingsBalance,
		Description:         e.description,
		Category:            e.category,
		SourceRecurringID:   e.sourceRecurringID,
		ExecutionID:         e.executionID,
		CreatedBy:           e.createdBy,
		CreatedAt:           e.at,
	})
	if err != nil {
		return nil, err
	}

	if err = writer.Account.Update(ctx, acct); err != nil {
		return nil, err
	}

	writer.Emit(events.TransactionCommitted(row.ID, acct.ID, row.Amount, row.Direction.String(), row.BalanceAfter, e.at))
	return row, nil
}

// ScheduleOf reads the scheduling state out of a stored definition.
func ScheduleOf(definition *recurring.Definition) recurrence.Schedule {
	s := recurrence.Schedule{
		Pattern:           recurrence.Pattern(definition.Pattern),
		StartDate:         definition.StartDate,
		EndDate:           definition.EndDate,
		OccurrenceCount:   int(definition.OccurrenceCount),
		LastExecutedAt:    definition.LastExecutedAt,
		NextExecutionDate: definition.NextExecutionDate,
		IsActive:          definition.IsActive,
		IsPaused:          definition.IsPaused,
	}
	if definition.MaxOccurrences != nil {
		maxOccurrences := int(*definition.MaxOccurrences)
		s.MaxOccurrences = &maxOccurrences
	}
	return s
}

func applySchedule(definition *recurring.Definition, s recurrence.Schedule) {
	definition.OccurrenceCount = int32(s.OccurrenceCount)
	definition.LastExecutedAt = s.LastExecutedAt
	definition.NextExecutionDate = s.NextExecutionDate
	definition.IsActive = s.IsActive
	definition.IsPaused = s.IsPaused
}

// terminate moves the definition to its absorbing state and drops any lease.
func terminate(writer *storage.Writer, definition *recurring.Definition, at time.Time) {
	definition.IsActive = false
	definition.ClaimedBy = nil
	definition.ClaimedUntil = nil
	definition.UpdatedAt = at
	writer.Emit(events.RecurringCompleted(definition.ID, at))
}
