package transaction

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/scan"
)

const tableName = "transactions"

var columns = []any{
	"id", "sequence", "account_id", "direction", "amount", "balance_after",
	"savings_balance_after", "description", "category", "source_recurring_id",
	"execution_id", "created_by", "created_at",
}

type Reader struct {
	exec bob.Executor
}

var _ IReader = (*Reader)(nil)

func NewReader(exec bob.Executor) *Reader {
	return &Reader{exec: exec}
}

func (r *Reader) FindByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	query := psql.Select(
		sm.Columns(columns...),
		sm.From(tableName),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)
	row, err := bob.One(ctx, r.exec, query, scan.StructMapper[*Transaction]())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// List returns rows for one account ordered by sequence. Limit is passed
// through as is, callers over-fetch by one to detect a next page.
func (r *Reader) List(ctx context.Context, filter *TransactionFilter) ([]*Transaction, error) {
	queryMods := []bob.Mod[*dialect.SelectQuery]{
		sm.Columns(columns...),
		sm.From(tableName),
	}

	whereMods := []bob.Expression{
		psql.Quote("account_id").EQ(psql.Arg(filter.AccountID)),
	}
	if filter.BeforeSequence > 0 {
		whereMods = append(whereMods, psql.Quote("sequence").LT(psql.Arg(filter.BeforeSequence)))
	}
	if filter.AfterSequence > 0 {
		whereMods = append(whereMods, psql.Quote("sequence").GT(psql.Arg(filter.AfterSequence)))
	}
	queryMods = append(queryMods, sm.Where(psql.And(whereMods...)))

	if filter.Ascending {
		queryMods = append(queryMods, sm.OrderBy(psql.Quote("sequence")).Asc())
	} else {
		queryMods = append(queryMods, sm.OrderBy(psql.Quote("sequence")).Desc())
	}
	if filter.Limit > 0 {
		queryMods = append(queryMods, sm.Limit(filter.Limit))
	}

	return bob.All(ctx, r.exec, psql.Select(queryMods...), scan.StructMapper[*Transaction]())
}
