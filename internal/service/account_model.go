package service

import (
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/carson-networks/allowance-server/internal/savings"
	"github.com/carson-networks/allowance-server/internal/storage/account"
)

// Account represents an account in the service layer.
type Account struct {
	ID                uuid.UUID
	OwnerID           uuid.UUID
	Name              string
	Balance           decimal.Decimal
	StartingBalance   decimal.Decimal
	SavingsBalance    decimal.Decimal
	SavingsRule       savings.Rule
	LastAllowanceDate *time.Time
	RetiredAt         *time.Time
	CreatedAt         time.Time
}

// AccountCreate is the input for creating an account. A nil SavingsRule means
// no transfer.
type AccountCreate struct {
	OwnerID         uuid.UUID
	Name            string
	StartingBalance decimal.Decimal
	SavingsRule     savings.Rule
}

// AccountCursor identifies a position in a paginated result set.
type AccountCursor struct {
	Position int
	Limit    int
}

func accountFromStorage(row *account.Account) (*Account, error) {
	rule, err := savings.FromStorage(row.SavingsMode, row.SavingsValue)
	if err != nil {
		return nil, err
	}
	return &Account{
		ID:                row.ID,
		OwnerID:           row.OwnerID,
		Name:              row.Name,
		Balance:           row.Balance,
		StartingBalance:   row.StartingBalance,
		SavingsBalance:    row.SavingsBalance,
		SavingsRule:       rule,
		LastAllowanceDate: row.LastAllowanceDate,
		RetiredAt:         row.RetiredAt,
		CreatedAt:         row.CreatedAt,
	}, nil
}
