package recurring

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/carson-networks/allowance-server/internal/storage/transaction"
)

var ErrNotFound = errors.New("recurring definition row not found")

// StartOfDay truncates t to midnight UTC. End dates are stored that way and
// stay runnable for the whole of their day, so "end_date passed" means
// end_date < StartOfDay(now).
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Pattern mirrors recurrence.Pattern as stored in the database.
type Pattern int8

// Definition represents a recurring definition record. ClaimedBy and
// ClaimedUntil form the lease a scheduler replica holds while it works on the
// row.
type Definition struct {
	ID                uuid.UUID             `db:"id"`
	AccountID         uuid.UUID             `db:"account_id"`
	Amount            decimal.Decimal       `db:"amount"`
	Direction         transaction.Direction `db:"direction"`
	Description       string                `db:"description"`
	Category          string                `db:"category"`
	Pattern           Pattern               `db:"pattern"`
	StartDate         time.Time             `db:"start_date"`
	EndDate           *time.Time            `db:"end_date"`
	MaxOccurrences    *int32                `db:"max_occurrences"`
	OccurrenceCount   int32                 `db:"occurrence_count"`
	LastExecutedAt    *time.Time            `db:"last_executed_at"`
	NextExecutionDate time.Time             `db:"next_execution_date"`
	IsActive          bool                  `db:"is_active"`
	IsPaused          bool                  `db:"is_paused"`
	RequiresApproval  bool                  `db:"requires_approval"`
	SkipNotifiedFor   *time.Time            `db:"skip_notified_for"`
	ClaimedBy         *string               `db:"claimed_by"`
	ClaimedUntil      *time.Time            `db:"claimed_until"`
	CreatedBy         string                `db:"created_by"`
	CreatedAt         time.Time             `db:"created_at"`
	UpdatedAt         time.Time             `db:"updated_at"`
}

// DefinitionCreate is the input for creating a recurring definition.
type DefinitionCreate struct {
	AccountID         uuid.UUID
	Amount            decimal.Decimal
	Direction         transaction.Direction
	Description       string
	Category          string
	Pattern           Pattern
	StartDate         time.Time
	EndDate           *time.Time
	MaxOccurrences    *int32
	NextExecutionDate time.Time
	IsPaused          bool
	RequiresApproval  bool
	CreatedBy         string
	CreatedAt         time.Time
}

// DefinitionFilter specifies filters for listing definitions.
type DefinitionFilter struct {
	AccountID       *uuid.UUID
	IncludeInactive bool
	Limit           int
	Offset          int
}

// ClaimRequest asks for up to Limit due definitions that nobody holds a live
// lease on. Definitions requiring approval are never claimed.
type ClaimRequest struct {
	Owner      string
	Now        time.Time
	LeaseUntil time.Time
	Limit      int
}

// IReader defines the read side of recurring definition storage.
type IReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Definition, error)
	List(ctx context.Context, filter *DefinitionFilter) ([]*Definition, error)
	ListAwaitingApproval(ctx context.Context, now time.Time, limit int) ([]*Definition, error)
}

// IWriter defines recurring definition operations that run inside a storage
// transaction.
type IWriter interface {
	IReader
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Definition, error)
	Create(ctx context.Context, create *DefinitionCreate) (*Definition, error)
	Update(ctx context.Context, definition *Definition) error
	// ClaimDue atomically leases due definitions to req.Owner. Two concurrent
	// callers never receive the same row.
	ClaimDue(ctx context.Context, req ClaimRequest) ([]*Definition, error)
	// ListExpired returns active definitions whose end date is before the day
	// of now, locked for update.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*Definition, error)
}

const DefaultListLimit = 50
