package service

import (
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/carson-networks/allowance-server/internal/operator/actions"
	"github.com/carson-networks/allowance-server/internal/recurrence"
	"github.com/carson-networks/allowance-server/internal/storage/recurring"
)

type DefinitionState string

const (
	DefinitionStateActive     DefinitionState = "active"
	DefinitionStatePaused     DefinitionState = "paused"
	DefinitionStateTerminated DefinitionState = "terminated"
)

// Definition represents a recurring definition in the service layer.
type Definition struct {
	ID                uuid.UUID
	AccountID         uuid.UUID
	Amount            decimal.Decimal
	Direction         Direction
	Description       string
	Category          string
	Pattern           recurrence.Pattern
	StartDate         time.Time
	EndDate           *time.Time
	MaxOccurrences    *int
	OccurrenceCount   int
	LastExecutedAt    *time.Time
	NextExecutionDate time.Time
	IsActive          bool
	IsPaused          bool
	RequiresApproval  bool
	CreatedBy         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (d *Definition) State() DefinitionState {
	switch {
	case !d.IsActive:
		return DefinitionStateTerminated
	case d.IsPaused:
		return DefinitionStatePaused
	default:
		return DefinitionStateActive
	}
}

// DefinitionCreate is the input for a new recurring definition. A zero
// StartDate means today.
type DefinitionCreate struct {
	AccountID        uuid.UUID
	Amount           decimal.Decimal
	Direction        Direction
	Description      string
	Category         string
	Pattern          recurrence.Pattern
	StartDate        time.Time
	EndDate          *time.Time
	MaxOccurrences   *int
	Paused           bool
	RequiresApproval bool
	CreatedBy        string
}

// DefinitionCursor identifies a position in a paginated list of definitions.
type DefinitionCursor struct {
	Position int
	Limit    int
}

// Execution reports what one run of a definition did. SavingsTransfer is set
// only when the run was an allowance credit and the transfer went through.
type Execution struct {
	Outcome         actions.Outcome
	Definition      *Definition
	Transaction     *Transaction
	SavingsTransfer *Transaction
}

func definitionFromStorage(row *recurring.Definition) *Definition {
	converted := &Definition{
		ID:                row.ID,
		AccountID:         row.AccountID,
		Amount:            row.Amount,
		Direction:         directionFromStorage(row.Direction),
		Description:       row.Description,
		Category:          row.Category,
		Pattern:           recurrence.Pattern(row.Pattern),
		StartDate:         row.StartDate,
		EndDate:           row.EndDate,
		OccurrenceCount:   int(row.OccurrenceCount),
		LastExecutedAt:    row.LastExecutedAt,
		NextExecutionDate: row.NextExecutionDate,
		IsActive:          row.IsActive,
		IsPaused:          row.IsPaused,
		RequiresApproval:  row.RequiresApproval,
		CreatedBy:         row.CreatedBy,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
	if row.MaxOccurrences != nil {
		maxOccurrences := int(*row.MaxOccurrences)
		converted.MaxOccurrences = &maxOccurrences
	}
	return converted
}
