// Package savings holds the per-account auto-transfer rule applied after an
// allowance credit.
package savings

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/carson-networks/allowance-server/internal/storage/account"
	"github.com/carson-networks/allowance-server/internal/xerrors"
)

// Rule is one of NoTransfer, FixedAmount or Percentage.
type Rule interface {
	// TransferAmount returns the amount to move to savings for a credit, and
	// false when nothing should move.
	TransferAmount(credit decimal.Decimal) (decimal.Decimal, bool)
	Validate() error
	String() string

	isRule()
}

type NoTransfer struct{}

type FixedAmount struct {
	Amount decimal.Decimal
}

// Percentage of the credit, 0 < Percent <= 100.
type Percentage struct {
	Percent decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

func (NoTransfer) isRule()  {}
func (FixedAmount) isRule() {}
func (Percentage) isRule()  {}

func (NoTransfer) TransferAmount(decimal.Decimal) (decimal.Decimal, bool) {
	return decimal.Zero, false
}

func (r FixedAmount) TransferAmount(decimal.Decimal) (decimal.Decimal, bool) {
	return r.Amount, r.Amount.IsPositive()
}

// TransferAmount rounds half-up to the cent.
func (r Percentage) TransferAmount(credit decimal.Decimal) (decimal.Decimal, bool) {
	amount := credit.Mul(r.Percent).Div(hundred).Round(2)
	return amount, amount.IsPositive()
}

func (NoTransfer) Validate() error {
	return nil
}

func (r FixedAmount) Validate() error {
	if !r.Amount.IsPositive() {
		return xerrors.InvalidAmount("fixed savings amount must be greater than zero")
	}
	if !r.Amount.Equal(r.Amount.Round(2)) {
		return xerrors.InvalidAmount("fixed savings amount has more than two decimal places")
	}
	return nil
}

func (r Percentage) Validate() error {
	if !r.Percent.IsPositive() || r.Percent.GreaterThan(hundred) {
		return xerrors.Invalid("percent", "must be greater than 0 and at most 100")
	}
	if !r.Percent.Equal(r.Percent.Round(2)) {
		return xerrors.Invalid("percent", "has more than two decimal places")
	}
	return nil
}

func (NoTransfer) String() string {
	return "none"
}

func (r FixedAmount) String() string {
	return "fixed:" + r.Amount.StringFixed(2)
}

func (r Percentage) String() string {
	return "percentage:" + r.Percent.String()
}

// FromStorage rebuilds the rule from an account's savings columns.
func FromStorage(mode account.SavingsMode, value decimal.Decimal) (Rule, error) {
	switch mode {
	case account.SavingsModeNone:
		return NoTransfer{}, nil
	case account.SavingsModeFixed:
		return FixedAmount{Amount: value}, nil
	case account.SavingsModePercentage:
		return Percentage{Percent: value}, nil
	default:
		return nil, fmt.Errorf("unknown savings mode %d", mode)
	}
}

// ToStorage flattens the rule into the account's savings columns.
func ToStorage(rule Rule) (account.SavingsMode, decimal.Decimal) {
	switch r := rule.(type) {
	case FixedAmount:
		return account.SavingsModeFixed, r.Amount
	case Percentage:
		return account.SavingsModePercentage, r.Percent
	default:
		return account.SavingsModeNone, decimal.Zero
	}
}
