package transaction

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
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

// Insert appends a row. The sequence column is filled by the database.
func (w *Writer) Insert(ctx context.Context, create *TransactionCreate) (*Transaction, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	query := psql.Insert(
		im.Into(tableName,
			"id", "account_id", "direction", "amount", "balance_after", "savings_balance_after",
			"description", "category", "source_recurring_id", "execution_id", "created_by", "created_at",
		),
		im.Values(psql.Arg(
			id, create.AccountID, int16(create.Direction), create.Amount, create.BalanceAfter, create.SavingsBalanceAfter,
			create.Description, create.Category, create.SourceRecurringID, create.ExecutionID, create.CreatedBy, create.CreatedAt,
		)),
		im.Returning(columns...),
	)
	return bob.One(ctx, w.tx, query, scan.StructMapper[*Transaction]())
}
