package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/carson-networks/allowance-server/internal/storage/transaction"
	"github.com/carson-networks/allowance-server/internal/xerrors"
)

// Direction represents a transaction direction in the service layer.
type Direction int8

const (
	DirectionCredit Direction = iota
	DirectionDebit
)

func (d Direction) String() string {
	return directionToStorage(d).String()
}

// ParseDirection accepts "credit" and "debit", case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "credit":
		return DirectionCredit, nil
	case "debit":
		return DirectionDebit, nil
	default:
		return 0, xerrors.Invalid("direction", fmt.Sprintf("unknown direction %q", s))
	}
}

// Transaction represents a ledger row in the service layer.
type Transaction struct {
	ID                  uuid.UUID
	Sequence            int64
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

// TransactionCreate is a manual ledger entry.
type TransactionCreate struct {
	AccountID      uuid.UUID
	Direction      Direction
	Amount         decimal.Decimal
	Description    string
	Category       string
	CreatedBy      string
	AllowOverdraft bool
}

// TransactionCursor identifies a position in an account's history. Paging on
// the sequence keeps later pages stable while new rows are appended.
type TransactionCursor struct {
	BeforeSequence int64
	Limit          int
}

// Replay is the result of rebuilding an account's balances from its log.
type Replay struct {
	AccountID        uuid.UUID
	StartingBalance  decimal.Decimal
	CachedBalance    decimal.Decimal
	ReplayedBalance  decimal.Decimal
	CachedSavings    decimal.Decimal
	ReplayedSavings  decimal.Decimal
	TransactionCount int
	// FirstMismatchSequence is the first row whose balance snapshot disagrees
	// with the replayed balance, zero when none does.
	FirstMismatchSequence int64
}

func (r *Replay) Consistent() bool {
	return r.FirstMismatchSequence == 0 &&
		r.CachedBalance.Equal(r.ReplayedBalance) &&
		r.CachedSavings.Equal(r.ReplayedSavings)
}

func directionToStorage(d Direction) transaction.Direction {
	return transaction.Direction(d)
}

func directionFromStorage(d transaction.Direction) Direction {
	return Direction(d)
}

func transactionFromStorage(row *transaction.Transaction) Transaction {
	return Transaction{
		ID:                  row.ID,
		Sequence:            row.Sequence,
		AccountID:           row.AccountID,
		Direction:           directionFromStorage(row.Direction),
		Amount:              row.Amount,
		BalanceAfter:        row.BalanceAfter,
		SavingsBalanceAfter: row.SavingsBalanceAfter,
		Description:         row.Description,
		Category:            row.Category,
		SourceRecurringID:   row.SourceRecurringID,
		ExecutionID:         row.ExecutionID,
		CreatedBy:           row.CreatedBy,
		CreatedAt:           row.CreatedAt,
	}
}
