package transaction

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("transaction row not found")

type Direction int8

const (
	DirectionCredit Direction = iota
	DirectionDebit
)

func (d Direction) String() string {
	switch d {
	case DirectionCredit:
		return "credit"
	case DirectionDebit:
		return "debit"
	default:
		return "unknown"
	}
}

// Apply returns balance moved by amount in this direction.
func (d Direction) Apply(balance, amount decimal.Decimal) decimal.Decimal {
	if d == DirectionDebit {
		return balance.Sub(amount)
	}
	return balance.Add(amount)
}

// Transaction represents an immutable ledger row. Sequence is assigned by the
// store in commit order.
type Transaction struct {
	ID                  uuid.UUID       `db:"id"`
	Sequence            int64           `db:"sequence"`
	AccountID           uuid.UUID       `db:"account_id"`
	Direction           Direction       `db:"direction"`
	Amount              decimal.Decimal `db:"amount"`
	BalanceAfter        decimal.Decimal `db:"balance_after"`
	SavingsBalanceAfter decimal.Decimal `db:"savings_balance_after"`
	Description         string          `db:"description"`
	Category            string          `db:"category"`
	SourceRecurringID   *uuid.UUID      `db:"source_recurring_id"`
	ExecutionID         *uuid.UUID      `db:"execution_id"`
	CreatedBy           string          `db:"created_by"`
	CreatedAt           time.Time       `db:"created_at"`
}

// TransactionCreate is the input for appending a transaction.
type TransactionCreate struct {
	AccountID           uuid.UUID
	Direction           Direction
	Amount              decimal.Decimal
	BalanceAfter        decimal.Decimal
	SavingsBalanceAfter decimal.Decimal
	Description         string
	Category            string
	SourceRecurringID   *uuid.UUID
	ExecutionID         *uuid.UUID
	CreatedBy           string
	CreatedAt           time.Time
}

// TransactionFilter selects one page of an account's history. BeforeSequence
// of zero starts at the newest row. Ascending walks oldest-first from
// AfterSequence instead.
type TransactionFilter struct {
	AccountID      uuid.UUID
	BeforeSequence int64
	AfterSequence  int64
	Ascending      bool
	Limit          int
}

// TransactionCursor carries the keyset position and limit so subsequent pages
// are consistent even while new rows are appended.
type TransactionCursor struct {
	BeforeSequence int64
	Limit          int
}

// IReader defines the read side of the transaction log.
type IReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	List(ctx context.Context, filter *TransactionFilter) ([]*Transaction, error)
}

// IWriter appends to the transaction log. There is no update or
// delete.
type IWriter interface {
	IReader
	Insert(ctx context.Context, create *TransactionCreate) (*Transaction, error)
}
