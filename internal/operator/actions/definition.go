package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/carson-networks/allowance-server/internal/recurrence"
	"github.com/carson-networks/allowance-server/internal/storage"
	"github.com/carson-networks/allowance-server/internal/storage/recurring"
	"github.com/carson-networks/allowance-server/internal/storage/transaction"
	"github.com/carson-networks/allowance-server/internal/xerrors"
)

type CreateDefinition struct {
	AccountID        uuid.UUID
	Amount           decimal.Decimal
	Direction        transaction.Direction
	Description      string
	Category         string
	Pattern          recurrence.Pattern
	StartDate        time.Time
	EndDate          *time.Time
	MaxOccurrences   *int32
	Paused           bool
	RequiresApproval bool
	CreatedBy        string
	Now              time.Time

	Result *recurring.Definition

	IAction
}

func (c *CreateDefinition) Perform(ctx context.Context, writer *storage.Writer) error {
	if err := ValidateCategory(c.Category); err != nil {
		return err
	}
	acct, err := lockAccount(ctx, writer, c.AccountID)
	if err != nil {
		return err
	}
	if acct.IsRetired() {
		return fmt.Errorf("account %s: %w", acct.ID, xerrors.ErrAccountRetired)
	}

	startDate := recurrence.Day(c.StartDate)
	var endDate *time.Time
	if c.EndDate != nil {
		day := recurrence.Day(*c.EndDate)
		endDate = &day
	}
	next, err := recurrence.FirstExecution(c.Pattern, startDate)
	if err != nil {
		return err
	}

	created, err := writer.Recurring.Create(ctx, &recurring.DefinitionCreate{
		AccountID:         c.AccountID,
		Amount:            c.Amount,
		Direction:         c.Direction,
		Description:       c.Description,
		Category:          c.Category,
		Pattern:           recurring.Pattern(c.Pattern),
		StartDate:         startDate,
		EndDate:           endDate,
		MaxOccurrences:    c.MaxOccurrences,
		NextExecutionDate: next,
		IsPaused:          c.Paused,
		RequiresApproval:  c.RequiresApproval,
		CreatedBy:         c.CreatedBy,
		CreatedAt:         c.Now,
	})
	if err != nil {
		return err
	}

	c.Result = created
	return nil
}

type StateChange int8

const (
	StateChangePause StateChange = iota
	StateChangeResume
	StateChangeCancel
)

// ChangeDefinitionState pauses, resumes or cancels a definition under its row
// lock, so a pause is visible to the next claim. Terminated definitions reject
// every change except a repeated cancel.
type ChangeDefinitionState struct {
	DefinitionID uuid.UUID
	Change       StateChange
	Now          time.Time

	Result *recurring.Definition

	IAction
}

func (c *ChangeDefinitionState) Perform(ctx context.Context, writer *storage.Writer) error {
	definition, err := lockDefinition(ctx, writer, c.DefinitionID)
	if err != nil {
		return err
	}
	c.Result = definition

	if !definition.IsActive {
		if c.Change == StateChangeCancel {
			return nil
		}
		return fmt.Errorf("recurring definition %s: %w", definition.ID, xerrors.ErrDefinitionTerminated)
	}

	switch c.Change {
	case StateChangePause:
		if definition.IsPaused {
			return nil
		}
		definition.IsPaused = true
		definition.ClaimedBy = nil
		definition.ClaimedUntil = nil
	case StateChangeResume:
		if !definition.IsPaused {
			return nil
		}
		next, err := recurrence.Rebase(ScheduleOf(definition), c.Now)
		if err != nil {
			return err
		}
		definition.IsPaused = false
		definition.NextExecutionDate = next
		definition.SkipNotifiedFor = nil
		if recurrence.IsTerminal(ScheduleOf(definition), c.Now) {
			terminate(writer, definition, c.Now)
		}
	case StateChangeCancel:
		terminate(writer, definition, c.Now)
	default:
		return xerrors.Invalid("change", fmt.Sprintf("unknown state change %d", c.Change))
	}

	definition.UpdatedAt = c.Now
	return writer.Recurring.Update(ctx, definition)
}

// ExpireDefinitions terminates up to Limit active definitions whose end date
// has passed.
type ExpireDefinitions struct {
	Now   time.Time
	Limit int

	Expired []uuid.UUID

	IAction
}

func (e *ExpireDefinitions) Perform(ctx context.Context, writer *storage.Writer) error {
	expired, err := writer.Recurring.ListExpired(ctx, e.Now, e.Limit)
	if err != nil {
		return err
	}

	for _, definition := range expired {
		terminate(writer, definition, e.Now)
		if err = writer.Recurring.Update(ctx, definition); err != nil {
			return err
		}
		e.Expired = append(e.Expired, definition.ID)
	}
	return nil
}

// ClaimDue leases up to Limit due definitions to Owner until LeaseUntil.
type ClaimDue struct {
	Owner      string
	Now        time.Time
	LeaseUntil time.Time
	Limit      int

	Claimed []*recurring.Definition

	IAction
}

func (c *ClaimDue) Perform(ctx context.Context, writer *storage.Writer) error {
	claimed, err := writer.Recurring.ClaimDue(ctx, recurring.ClaimRequest{
		Owner:      c.Owner,
		Now:        c.Now,
		LeaseUntil: c.LeaseUntil,
		Limit:      c.Limit,
	})
	if err != nil {
		return err
	}

	c.Claimed = claimed
	return nil
}
