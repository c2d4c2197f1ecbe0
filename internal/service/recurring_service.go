package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/sirupsen/logrus"

	"github.com/carson-networks/allowance-server/internal/clock"
	"github.com/carson-networks/allowance-server/internal/operator"
	"github.com/carson-networks/allowance-server/internal/operator/actions"
	"github.com/carson-networks/allowance-server/internal/recurrence"
	"github.com/carson-networks/allowance-server/internal/storage"
	"github.com/carson-networks/allowance-server/internal/storage/recurring"
	"github.com/carson-networks/allowance-server/internal/xerrors"
)

const (
	defaultDefinitionLimit = 50
	maxOccurrencesLimit    = 1 << 30
)

// RecurringService manages recurring definitions and runs their occurrences.
type RecurringService struct {
	storage   storage.Storage
	delegator operator.IDelegator
	clock     clock.Clock
	logger    *logrus.Logger
}

// NewRecurringService creates a new RecurringService.
func NewRecurringService(store storage.Storage, delegator operator.IDelegator, clk clock.Clock, logger *logrus.Logger) *RecurringService {
	return &RecurringService{
		storage:   store,
		delegator: delegator,
		clock:     clk,
		logger:    logger,
	}
}

// CreateDefinition validates and stores a new definition. Its first execution
// is the first occurrence of the pattern on or after the start date.
func (s *RecurringService) CreateDefinition(ctx context.Context, create DefinitionCreate) (*Definition, error) {
	if err := actions.ValidateAmount(create.Amount); err != nil {
		return nil, err
	}
	if err := actions.ValidateDescription(create.Description); err != nil {
		return nil, err
	}
	if err := actions.ValidateCategory(create.Category); err != nil {
		return nil, err
	}
	if !create.Pattern.Valid() {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrInvalidPattern, create.Pattern)
	}

	now := s.clock.Now()
	startDate := create.StartDate
	if startDate.IsZero() {
		startDate = now
	}
	if create.EndDate != nil && recurrence.Day(*create.EndDate).Before(recurrence.Day(startDate)) {
		return nil, xerrors.Invalid("endDate", "must not be before startDate")
	}

	var maxOccurrences *int32
	if create.MaxOccurrences != nil {
		if *create.MaxOccurrences < 1 || *create.MaxOccurrences > maxOccurrencesLimit {
			return nil, xerrors.Invalid("maxOccurrences", fmt.Sprintf("must be between 1 and %d", maxOccurrencesLimit))
		}
		value := int32(*create.MaxOccurrences)
		maxOccurrences = &value
	}

	action := &actions.CreateDefinition{
		AccountID:        create.AccountID,
		Amount:           create.Amount,
		Direction:        directionToStorage(create.Direction),
		Description:      create.Description,
		Category:         create.Category,
		Pattern:          create.Pattern,
		StartDate:        startDate,
		EndDate:          create.EndDate,
		MaxOccurrences:   maxOccurrences,
		Paused:           create.Paused,
		RequiresApproval: create.RequiresApproval,
		CreatedBy:        create.CreatedBy,
		Now:              now,
	}
	if err := s.delegator.Process(ctx, action); err != nil {
		return nil, err
	}
	return definitionFromStorage(action.Result), nil
}

func (s *RecurringService) GetDefinition(ctx context.Context, id uuid.UUID) (*Definition, error) {
	row, err := s.storage.Read().Recurring.FindByID(ctx, id)
	if errors.Is(err, recurring.ErrNotFound) {
		return nil, fmt.Errorf("recurring definition %s: %w", id, xerrors.ErrDefinitionNotFound)
	}
	if err != nil {
		return nil, err
	}
	return definitionFromStorage(row), nil
}

// ListDefinitions returns a page of an account's definitions, ordered by next
// execution date.
func (s *RecurringService) ListDefinitions(ctx context.Context, accountID uuid.UUID, includeInactive bool, cursor *DefinitionCursor) ([]Definition, *DefinitionCursor, error) {
	limit := defaultDefinitionLimit
	offset := 0
	if cursor != nil {
		limit = cursor.Limit
		offset = cursor.Position
	}

	rows, err := s.storage.Read().Recurring.List(ctx, &recurring.DefinitionFilter{
		AccountID:       &accountID,
		IncludeInactive: includeInactive,
		Limit:           limit + 1,
		Offset:          offset,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	var nextCursor *DefinitionCursor
	if len(rows) > limit {
		rows = rows[:limit]
		nextCursor = &DefinitionCursor{Position: offset + limit, Limit: limit}
	}

	converted := make([]Definition, len(rows))
	for i, row := range rows {
		converted[i] = *definitionFromStorage(row)
	}
	return converted, nextCursor, nil
}

// ListAwaitingApproval returns due definitions that the scheduler leaves for a
// person to approve through ExecuteNow.
func (s *RecurringService) ListAwaitingApproval(ctx context.Context, limit int) ([]Definition, error) {
	if limit <= 0 {
		limit = defaultDefinitionLimit
	}
	rows, err := s.storage.Read().Recurring.ListAwaitingApproval(ctx, s.clock.Now(), limit)
	if err != nil {
		return nil, err
	}

	converted := make([]Definition, len(rows))
	for i, row := range rows {
		converted[i] = *definitionFromStorage(row)
	}
	return converted, nil
}

func (s *RecurringService) Pause(ctx context.Context, id uuid.UUID) (*Definition, error) {
	return s.changeState(ctx, id, actions.StateChangePause)
}

// Resume moves a stale next execution date forward to the next occurrence on
// or after today, so missed periods are not paid out.
func (s *RecurringService) Resume(ctx context.Context, id uuid.UUID) (*Definition, error) {
	return s.changeState(ctx, id, actions.StateChangeResume)
}

func (s *RecurringService) Cancel(ctx context.Context, id uuid.UUID) (*Definition, error) {
	return s.changeState(ctx, id, actions.StateChangeCancel)
}

func (s *RecurringService) changeState(ctx context.Context, id uuid.UUID, change actions.StateChange) (*Definition, error) {
	action := &actions.ChangeDefinitionState{
		DefinitionID: id,
		Change:       change,
		Now:          s.clock.Now(),
	}
	if err := s.delegator.Process(ctx, action); err != nil {
		return nil, err
	}
	return definitionFromStorage(action.Result), nil
}

// ExecuteNow runs the definition's current occurrence regardless of its due
// date. expectedOccurrence, when set, is the occurrence count the caller saw;
// otherwise the current count is read first. Either way a run that loses a
// race to another run fails with ErrAlreadyExecuted.
func (s *RecurringService) ExecuteNow(ctx context.Context, id uuid.UUID, expectedOccurrence *int, createdBy string) (*Execution, error) {
	var expected int32
	if expectedOccurrence != nil {
		expected = int32(*expectedOccurrence)
	} else {
		current, err := s.GetDefinition(ctx, id)
		if err != nil {
			return nil, err
		}
		expected = int32(current.OccurrenceCount)
	}

	action := &actions.ExecuteRecurring{
		DefinitionID:       id,
		Now:                s.clock.Now(),
		Manual:             true,
		ExpectedOccurrence: &expected,
		CreatedBy:          createdBy,
	}
	if err := s.delegator.Process(ctx, action); err != nil {
		return nil, err
	}
	if action.Outcome == actions.OutcomeCompleted {
		return nil, fmt.Errorf("recurring definition %s: %w", id, xerrors.ErrDefinitionTerminated)
	}

	return s.finishExecution(ctx, action), nil
}

// ExecuteClaimed runs a definition the caller claimed through ClaimDue.
func (s *RecurringService) ExecuteClaimed(ctx context.Context, claimed *recurring.Definition, owner string) (*Execution, error) {
	expected := claimed.OccurrenceCount
	action := &actions.ExecuteRecurring{
		DefinitionID:       claimed.ID,
		Now:                s.clock.Now(),
		ClaimOwner:         owner,
		ExpectedOccurrence: &expected,
	}
	if err := s.delegator.Process(ctx, action); err != nil {
		return nil, err
	}
	return s.finishExecution(ctx, action), nil
}

// finishExecution chains the savings transfer after a committed allowance
// credit. A failed transfer is logged; the credit stands.
func (s *RecurringService) finishExecution(ctx context.Context, action *actions.ExecuteRecurring) *Execution {
	execution := &Execution{
		Outcome:    action.Outcome,
		Definition: definitionFromStorage(action.Definition),
	}
	if action.Transaction != nil {
		credit := transactionFromStorage(action.Transaction)
		execution.Transaction = &credit
	}
	if !action.IsAllowanceCredit() {
		return execution
	}

	transfer := &actions.SavingsTransfer{
		AccountID:         action.Transaction.AccountID,
		CreditAmount:      action.Transaction.Amount,
		SourceRecurringID: action.Transaction.SourceRecurringID,
		ExecutionID:       action.Transaction.ExecutionID,
		Now:               s.clock.Now(),
	}
	if err := s.delegator.Process(context.WithoutCancel(ctx), transfer); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"definitionId": action.DefinitionID,
			"accountId":    action.Transaction.AccountID,
		}).Error("RecurringService.savingsTransfer")
		return execution
	}
	if transfer.Result != nil {
		moved := transactionFromStorage(transfer.Result)
		execution.SavingsTransfer = &moved
	}
	return execution
}

// ClaimDue leases up to limit due definitions to owner for the lease duration.
func (s *RecurringService) ClaimDue(ctx context.Context, owner string, lease time.Duration, limit int) ([]*recurring.Definition, error) {
	now := s.clock.Now()
	action := &actions.ClaimDue{
		Owner:      owner,
		Now:        now,
		LeaseUntil: now.Add(lease),
		Limit:      limit,
	}
	if err := s.delegator.Process(ctx, action); err != nil {
		return nil, err
	}
	return action.Claimed, nil
}

// ExpireEnded terminates up to limit definitions whose end date has passed.
func (s *RecurringService) ExpireEnded(ctx context.Context, limit int) ([]uuid.UUID, error) {
	action := &actions.ExpireDefinitions{
		Now:   s.clock.Now(),
		Limit: limit,
	}
	if err := s.delegator.Process(ctx, action); err != nil {
		return nil, err
	}
	return action.Expired, nil
}
