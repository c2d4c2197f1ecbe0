package account

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("account row not found")

// SavingsMode says how SavingsValue is read. It is stored next to the value so
// that "no transfer" and "transfer of zero" stay distinct.
type SavingsMode int8

const (
	SavingsModeNone SavingsMode = iota
	SavingsModeFixed
	SavingsModePercentage
)

// Account represents an account record.
type Account struct {
	ID                uuid.UUID       `db:"id"`
	OwnerID           uuid.UUID       `db:"owner_id"`
	Name              string          `db:"name"`
	Balance           decimal.Decimal `db:"balance"`
	StartingBalance   decimal.Decimal `db:"starting_balance"`
	SavingsBalance    decimal.Decimal `db:"savings_balance"`
	SavingsMode       SavingsMode     `db:"savings_mode"`
	SavingsValue      decimal.Decimal `db:"savings_value"`
	LastAllowanceDate *time.Time      `db:"last_allowance_date"`
	RetiredAt         *time.Time      `db:"retired_at"`
	CreatedAt         time.Time       `db:"created_at"`
}

// IsRetired reports whether the account was soft-retired.
func (a *Account) IsRetired() bool {
	return a.RetiredAt != nil
}

// AccountCreate is the input for creating a new account.
type AccountCreate struct {
	OwnerID         uuid.UUID
	Name            string
	StartingBalance decimal.Decimal
	SavingsMode     SavingsMode
	SavingsValue    decimal.Decimal
	CreatedAt       time.Time
}

// AccountFilter specifies filters for listing accounts.
type AccountFilter struct {
	OwnerID *uuid.UUID
	Limit   int
	Offset  int
}

// AccountCursor identifies a position in a paginated result set.
type AccountCursor struct {
	Position int
	Limit    int
}

// AccountListResult contains a page of accounts and an optional next cursor.
type AccountListResult struct {
	Accounts   []*Account
	NextCursor *AccountCursor
}

// IReader defines the read side of account storage.
type IReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	List(ctx context.Context, filter *AccountFilter) (*AccountListResult, error)
}

// IWriter defines account storage operations that run inside a storage
// transaction. FindByIDForUpdate locks the row until the transaction ends.
type IWriter interface {
	IReader
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)
	Create(ctx context.Context, create *AccountCreate) (*Account, error)
	Update(ctx context.Context, account *Account) error
}

const DefaultListLimit = 20

// Page trims an over-fetched page (limit+1 rows) and builds the next cursor.
func Page(rows []*Account, limit, offset int) *AccountListResult {
	if len(rows) == 0 {
		return &AccountListResult{Accounts: nil, NextCursor: nil}
	}

	var nextCursor *AccountCursor
	if len(rows) > limit {
		rows = rows[:limit]
		nextCursor = &AccountCursor{
			Position: offset + limit,
			Limit:    limit,
		}
	}
	return &AccountListResult{Accounts: rows, NextCursor: nextCursor}
}

// LimitAndOffset applies the default page size.
func LimitAndOffset(filter *AccountFilter) (int, int) {
	limit := DefaultListLimit
	offset := 0
	if filter != nil {
		if filter.Limit > 0 {
			limit = filter.Limit
		}
		offset = filter.Offset
	}
	return limit, offset
}
