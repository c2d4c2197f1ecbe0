package recurring

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/scan"
)

const tableName = "recurring_definitions"

var columns = []any{
	"id", "account_id", "amount", "direction", "description", "category", "pattern",
	"start_date", "end_date", "max_occurrences", "occurrence_count", "last_executed_at",
	"next_execution_date", "is_active", "is_paused", "requires_approval", "skip_notified_for",
	"claimed_by", "claimed_until", "created_by", "created_at", "updated_at",
}

type Reader struct {
	exec bob.Executor
}

var _ IReader = (*Reader)(nil)

func NewReader(exec bob.Executor) *Reader {
	return &Reader{exec: exec}
}

func (r *Reader) FindByID(ctx context.Context, id uuid.UUID) (*Definition, error) {
	return findOne(ctx, r.exec, id, false)
}

func (r *Reader) List(ctx context.Context, filter *DefinitionFilter) ([]*Definition, error) {
	limit := DefaultListLimit
	offset := 0
	queryMods := []bob.Mod[*dialect.SelectQuery]{
		sm.Columns(columns...),
		sm.From(tableName),
	}

	var whereMods []bob.Expression
	if filter != nil {
		if filter.Limit > 0 {
			limit = filter.Limit
		}
		offset = filter.Offset
		if filter.AccountID != nil {
			whereMods = append(whereMods, psql.Quote("account_id").EQ(psql.Arg(*filter.AccountID)))
		}
		if !filter.IncludeInactive {
			whereMods = append(whereMods, psql.Quote("is_active").EQ(psql.Arg(true)))
		}
	}
	if len(whereMods) == 1 {
		queryMods = append(queryMods, sm.Where(whereMods[0]))
	} else if len(whereMods) > 1 {
		queryMods = append(queryMods, sm.Where(psql.And(whereMods...)))
	}

	queryMods = append(queryMods,
		sm.OrderBy(psql.Quote("next_execution_date")).Asc(),
		sm.OrderBy(psql.Quote("id")).Asc(),
		sm.Limit(limit),
		sm.Offset(offset),
	)
	return bob.All(ctx, r.exec, psql.Select(queryMods...), scan.StructMapper[*Definition]())
}

func (r *Reader) ListAwaitingApproval(ctx context.Context, now time.Time, limit int) ([]*Definition, error) {
	query := psql.Select(
		sm.Columns(columns...),
		sm.From(tableName),
		sm.Where(psql.And(
			psql.Quote("requires_approval").EQ(psql.Arg(true)),
			psql.Quote("is_active").EQ(psql.Arg(true)),
			psql.Quote("is_paused").EQ(psql.Arg(false)),
			psql.Quote("next_execution_date").LTE(psql.Arg(now)),
		)),
		sm.OrderBy(psql.Quote("next_execution_date")).Asc(),
		sm.Limit(limit),
	)
	return bob.All(ctx, r.exec, query, scan.StructMapper[*Definition]())
}

func findOne(ctx context.Context, exec bob.Executor, id uuid.UUID, forUpdate bool) (*Definition, error) {
	queryMods := []bob.Mod[*dialect.SelectQuery]{
		sm.Columns(columns...),
		sm.From(tableName),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	}
	if forUpdate {
		queryMods = append(queryMods, sm.ForUpdate())
	}

	row, err := bob.One(ctx, exec, psql.Select(queryMods...), scan.StructMapper[*Definition]())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}
