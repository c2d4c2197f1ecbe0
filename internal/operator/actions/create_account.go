package actions

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/carson-networks/allowance-server/internal/storage"
	"github.com/carson-networks/allowance-server/internal/storage/account"
)

type CreateAccount struct {
	OwnerID         uuid.UUID
	Name            string
	StartingBalance decimal.Decimal
	SavingsMode     account.SavingsMode
	SavingsValue    decimal.Decimal
	CreatedAt       time.Time

	Result *account.Account

	IAction
}

func (c *CreateAccount) Perform(ctx context.Context, writer *storage.Writer) error {
	created, err := writer.Account.Create(ctx, &account.AccountCreate{
		OwnerID:         c.OwnerID,
		Name:            c.Name,
		StartingBalance: c.StartingBalance,
		SavingsMode:     c.SavingsMode,
		SavingsValue:    c.SavingsValue,
		CreatedAt:       c.CreatedAt,
	})
	if err != nil {
		return err
	}

	c.Result = created
	return nil
}

type ConfigureSavings struct {
	AccountID    uuid.UUID
	SavingsMode  account.SavingsMode
	SavingsValue decimal.Decimal

	Result *account.Account

	IAction
}

func (c *ConfigureSavings) Perform(ctx context.Context, writer *storage.Writer) error {
	acct, err := lockAccount(ctx, writer, c.AccountID)
	if err != nil {
		return err
	}

	acct.SavingsMode = c.SavingsMode
	acct.SavingsValue = c.SavingsValue
	if err = writer.Account.Update(ctx, acct); err != nil {
		return err
	}

	c.Result = acct
	return nil
}
