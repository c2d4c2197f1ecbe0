package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/allowance-server/internal/events"
	"github.com/carson-networks/allowance-server/internal/recurrence"
	"github.com/carson-networks/allowance-server/internal/storage"
	"github.com/carson-networks/allowance-server/internal/storage/recurring"
	"github.com/carson-networks/allowance-server/internal/storage/transaction"
	"github.com/carson-networks/allowance-server/internal/xerrors"
)

type Outcome int8

const (
	// OutcomeNotDue means nothing happened: the definition was not due, was
	// paused, or the claim was lost to another replica.
	OutcomeNotDue Outcome = iota
	OutcomeExecuted
	OutcomeSkipped
	OutcomeCompleted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeExecuted:
		return "executed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeCompleted:
		return "completed"
	default:
		return "not_due"
	}
}

const SkipReasonInsufficientFunds = "insufficient funds"

// ExecuteRecurring runs one occurrence of a recurring definition: the ledger
// row, the account update and the occurrence bookkeeping all land in the same
// storage transaction.
//
// A scheduled run (Manual false) only acts on a due definition it holds the
// claim on, and turns a debit shortfall into a skip. A manual run ignores the
// due date, fails on a shortfall and runs at most once a day. When
// ExpectedOccurrence is set the run fails with ErrAlreadyExecuted if another
// run advanced the definition first.
//
// Locks are taken account first, then definition, the same order as
// RetireAccount.
type ExecuteRecurring struct {
	DefinitionID       uuid.UUID
	Now                time.Time
	Manual             bool
	ClaimOwner         string
	ExpectedOccurrence *int32
	CreatedBy          string

	Outcome     Outcome
	Transaction *transaction.Transaction
	Definition  *recurring.Definition

	IAction
}

func (e *ExecuteRecurring) Perform(ctx context.Context, writer *storage.Writer) error {
	unlocked, err := findDefinition(ctx, writer, e.DefinitionID)
	if err != nil {
		return err
	}
	acct, err := lockAccount(ctx, writer, unlocked.AccountID)
	if err != nil {
		return err
	}
	definition, err := lockDefinition(ctx, writer, e.DefinitionID)
	if err != nil {
		return err
	}
	e.Definition = definition

	if !e.Manual && !e.holdsClaim(definition) {
		e.Outcome = OutcomeNotDue
		return nil
	}
	if e.ExpectedOccurrence != nil && definition.OccurrenceCount != *e.ExpectedOccurrence {
		return fmt.Errorf("recurring definition %s at occurrence %d: %w", definition.ID, definition.OccurrenceCount, xerrors.ErrAlreadyExecuted)
	}

	schedule := ScheduleOf(definition)
	if err = e.checkRunnable(writer, definition, schedule); err != nil {
		return err
	}
	if e.Outcome == OutcomeCompleted {
		return writer.Recurring.Update(ctx, definition)
	}
	if e.Manual && e.ranToday(definition) {
		return fmt.Errorf("recurring definition %s already ran on %s: %w",
			definition.ID, recurrence.Day(e.Now).Format(time.DateOnly), xerrors.ErrAlreadyExecuted)
	}
	if !e.Manual && !recurrence.IsDue(schedule, e.Now) {
		e.release(definition)
		return writer.Recurring.Update(ctx, definition)
	}

	if acct.IsRetired() {
		return fmt.Errorf("account %s: %w", acct.ID, xerrors.ErrAccountRetired)
	}

	if definition.Direction == transaction.DirectionDebit && acct.Balance.LessThan(definition.Amount) {
		if e.Manual {
			return fmt.Errorf("recurring debit of %s from balance %s: %w",
				definition.Amount.StringFixed(2), acct.Balance.StringFixed(2), xerrors.ErrInsufficientFunds)
		}
		e.skip(writer, definition)
		return writer.Recurring.Update(ctx, definition)
	}

	executionID, err := uuid.NewV4()
	if err != nil {
		return err
	}

	if definition.Direction == transaction.DirectionCredit && definition.Category == CategoryAllowance {
		allowanceDate := e.Now
		acct.LastAllowanceDate = &allowanceDate
	}

	createdBy := e.CreatedBy
	if createdBy == "" {
		createdBy = CreatedByScheduler
	}

	row, err := appendEntry(ctx, writer, acct, entry{
		direction:         definition.Direction,
		amount:            definition.Amount,
		description:       definition.Description,
		category:          definition.Category,
		sourceRecurringID: &definition.ID,
		executionID:       &executionID,
		createdBy:         createdBy,
		at:                e.Now,
	})
	if err != nil {
		return err
	}
	e.Transaction = row

	advanced, err := recurrence.Advance(schedule, e.Now)
	if err != nil {
		return err
	}
	applySchedule(definition, advanced)
	definition.SkipNotifiedFor = nil
	e.release(definition)
	e.Outcome = OutcomeExecuted
	if !definition.IsActive {
		writer.Emit(events.RecurringCompleted(definition.ID, e.Now))
	}

	return writer.Recurring.Update(ctx, definition)
}

// IsAllowanceCredit reports whether the executed row should trigger the
// savings transfer.
func (e *ExecuteRecurring) IsAllowanceCredit() bool {
	return e.Outcome == OutcomeExecuted &&
		e.Transaction != nil &&
		e.Transaction.Direction == transaction.DirectionCredit &&
		e.Transaction.Category == CategoryAllowance
}

// checkRunnable rejects manual runs of terminated or paused definitions and
// terminates exhausted ones, setting OutcomeCompleted.
func (e *ExecuteRecurring) checkRunnable(writer *storage.Writer, definition *recurring.Definition, schedule recurrence.Schedule) error {
	if !definition.IsActive {
		if e.Manual {
			return fmt.Errorf("recurring definition %s: %w", definition.ID, xerrors.ErrDefinitionTerminated)
		}
		return nil
	}
	if definition.IsPaused {
		if e.Manual {
			return fmt.Errorf("recurring definition %s: %w", definition.ID, xerrors.ErrDefinitionPaused)
		}
		return nil
	}
	if recurrence.IsTerminal(schedule, e.Now) {
		terminate(writer, definition, e.Now)
		e.Outcome = OutcomeCompleted
	}
	return nil
}

// ranToday limits manual runs to one per definition and calendar day, so a
// retried "execute now" does not pay twice.
func (e *ExecuteRecurring) ranToday(definition *recurring.Definition) bool {
	return definition.LastExecutedAt != nil &&
		recurrence.Day(*definition.LastExecutedAt).Equal(recurrence.Day(e.Now))
}

func (e *ExecuteRecurring) holdsClaim(definition *recurring.Definition) bool {
	return definition.ClaimedBy != nil && *definition.ClaimedBy == e.ClaimOwner
}

// skip leaves the occurrence bookkeeping alone so the same occurrence is
// retried on later ticks. The skip event goes out once per occurrence. The
// claim is kept until its lease runs out.
func (e *ExecuteRecurring) skip(writer *storage.Writer, definition *recurring.Definition) {
	e.Outcome = OutcomeSkipped
	if definition.SkipNotifiedFor != nil && definition.SkipNotifiedFor.Equal(definition.NextExecutionDate) {
		return
	}

	occurrence := definition.NextExecutionDate
	definition.SkipNotifiedFor = &occurrence
	definition.UpdatedAt = e.Now
	writer.Emit(events.RecurringSkipped(definition.ID, SkipReasonInsufficientFunds, e.Now))
}

func (e *ExecuteRecurring) release(definition *recurring.Definition) {
	definition.ClaimedBy = nil
	definition.ClaimedUntil = nil
	definition.UpdatedAt = e.Now
}
