package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/carson-networks/allowance-server/internal/storage"
	"github.com/carson-networks/allowance-server/internal/storage/transaction"
	"github.com/carson-networks/allowance-server/internal/xerrors"
)

// CreateTransaction is a manually entered ledger row. Debits that would take
// the balance below zero fail unless AllowOverdraft is set.
type CreateTransaction struct {
	AccountID      uuid.UUID
	Direction      transaction.Direction
	Amount         decimal.Decimal
	Description    string
	Category       string
	CreatedBy      string
	AllowOverdraft bool
	Now            time.Time

	Result *transaction.Transaction

	IAction
}

func (t *CreateTransaction) Perform(ctx context.Context, writer *storage.Writer) error {
	if err := ValidateAmount(t.Amount); err != nil {
		return err
	}
	if err := ValidateDescription(t.Description); err != nil {
		return err
	}
	if err := ValidateCategory(t.Category); err != nil {
		return err
	}

	acct, err := lockAccount(ctx, writer, t.AccountID)
	if err != nil {
		return err
	}
	if acct.IsRetired() {
		return fmt.Errorf("account %s: %w", acct.ID, xerrors.ErrAccountRetired)
	}
	if t.Direction == transaction.DirectionDebit && acct.Balance.LessThan(t.Amount) && !t.AllowOverdraft {
		return fmt.Errorf("debit of %s from balance %s: %w", t.Amount.StringFixed(2), acct.Balance.StringFixed(2), xerrors.ErrInsufficientFunds)
	}

	row, err := appendEntry(ctx, writer, acct, entry{
		direction:   t.Direction,
		amount:      t.Amount,
		description: t.Description,
		category:    t.Category,
		createdBy:   t.CreatedBy,
		at:          t.Now,
	})
	if err != nil {
		return err
	}

	t.Result = row
	return nil
}
