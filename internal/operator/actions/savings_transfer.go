package actions

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/carson-networks/allowance-server/internal/savings"
	"github.com/carson-networks/allowance-server/internal/storage"
	"github.com/carson-networks/allowance-server/internal/storage/transaction"
)

// SavingsTransfer moves part of an allowance credit from the primary balance
// to the savings balance, following the account's savings rule as it stands
// under the row lock. It is skipped, without error, when the rule transfers
// nothing or the primary balance cannot cover it.
type SavingsTransfer struct {
	AccountID         uuid.UUID
	CreditAmount      decimal.Decimal
	SourceRecurringID *uuid.UUID
	ExecutionID       *uuid.UUID
	Now               time.Time

	Result  *transaction.Transaction
	Skipped bool

	IAction
}

func (s *SavingsTransfer) Perform(ctx context.Context, writer *storage.Writer) error {
	acct, err := lockAccount(ctx, writer, s.AccountID)
	if err != nil {
		return err
	}

	rule, err := savings.FromStorage(acct.SavingsMode, acct.SavingsValue)
	if err != nil {
		return err
	}

	amount, ok := rule.TransferAmount(s.CreditAmount)
	if !ok || acct.IsRetired() || acct.Balance.LessThan(amount) {
		s.Skipped = true
		return nil
	}

	row, err := appendEntry(ctx, writer, acct, entry{
		direction:         transaction.DirectionDebit,
		amount:            amount,
		savingsDelta:      amount,
		description:       "Savings transfer",
		category:          CategorySavingsTransfer,
		sourceRecurringID: s.SourceRecurringID,
		executionID:       s.ExecutionID,
		createdBy:         CreatedByScheduler,
		at:                s.Now,
	})
	if err != nil {
		return err
	}

	s.Result = row
	return nil
}
