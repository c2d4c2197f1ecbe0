package account

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/stephenafamo/scan"
)

type Writer struct {
	tx bob.Executor
	Reader
}

var _ IWriter = (*Writer)(nil)

func NewWriter(tx bob.Executor) *Writer {
	return &Writer{
		tx: tx,
		Reader: Reader{
			exec: tx,
		},
	}
}

func (w *Writer) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Account, error) {
	return findOne(ctx, w.tx, id, true)
}

func (w *Writer) Create(ctx context.Context, create *AccountCreate) (*Account, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	query := psql.Insert(
		im.Into(tableName,
			"id", "owner_id", "name", "balance", "starting_balance", "savings_balance",
			"savings_mode", "savings_value", "created_at",
		),
		im.Values(psql.Arg(
			id, create.OwnerID, create.Name, create.StartingBalance, create.StartingBalance, decimal.Zero,
			int16(create.SavingsMode), create.SavingsValue, create.CreatedAt,
		)),
		im.Returning(columns...),
	)
	return bob.One(ctx, w.tx, query, scan.StructMapper[*Account]())
}

func (w *Writer) Update(ctx context.Context, account *Account) error {
	query := psql.Update(
		um.Table(tableName),
		um.SetCol("balance").ToArg(account.Balance),
		um.SetCol("savings_balance").ToArg(account.SavingsBalance),
		um.SetCol("savings_mode").ToArg(int16(account.SavingsMode)),
		um.SetCol("savings_value").ToArg(account.SavingsValue),
		um.SetCol("last_allowance_date").ToArg(account.LastAllowanceDate),
		um.SetCol("retired_at").ToArg(account.RetiredAt),
		um.Where(psql.Quote("id").EQ(psql.Arg(account.ID))),
	)
	result, err := bob.Exec(ctx, w.tx, query)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return fmt.Errorf("account %s: %w", account.ID, ErrNotFound)
	}
	return nil
}
