package recurring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
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

func (w *Writer) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Definition, error) {
	return findOne(ctx, w.tx, id, true)
}

func (w *Writer) Create(ctx context.Context, create *DefinitionCreate) (*Definition, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	query := psql.Insert(
		im.Into(tableName,
			"id", "account_id", "amount", "direction", "description", "category", "pattern",
			"start_date", "end_date", "max_occurrences", "occurrence_count", "next_execution_date",
			"is_active", "is_paused", "requires_approval", "created_by", "created_at", "updated_at",
		),
		im.Values(psql.Arg(
			id, create.AccountID, create.Amount, int16(create.Direction), create.Description, create.Category, int16(create.Pattern),
			create.StartDate, create.EndDate, create.MaxOccurrences, 0, create.NextExecutionDate,
			true, create.IsPaused, create.RequiresApproval, create.CreatedBy, create.CreatedAt, create.CreatedAt,
		)),
		im.Returning(columns...),
	)
	return bob.One(ctx, w.tx, query, scan.StructMapper[*Definition]())
}

// Update writes every mutable column of the definition.
func (w *Writer) Update(ctx context.Context, definition *Definition) error {
	query := psql.Update(
		um.Table(tableName),
		um.SetCol("occurrence_count").ToArg(definition.OccurrenceCount),
		um.SetCol("last_executed_at").ToArg(definition.LastExecutedAt),
		um.SetCol("next_execution_date").ToArg(definition.NextExecutionDate),
		um.SetCol("is_active").ToArg(definition.IsActive),
		um.SetCol("is_paused").ToArg(definition.IsPaused),
		um.SetCol("skip_notified_for").ToArg(definition.SkipNotifiedFor),
		um.SetCol("claimed_by").ToArg(definition.ClaimedBy),
		um.SetCol("claimed_until").ToArg(definition.ClaimedUntil),
		um.SetCol("updated_at").ToArg(definition.UpdatedAt),
		um.Where(psql.Quote("id").EQ(psql.Arg(definition.ID))),
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
		return fmt.Errorf("recurring definition %s: %w", definition.ID, ErrNotFound)
	}
	return nil
}

// claimDueQuery leases due rows in one statement. SKIP LOCKED keeps replicas
// from waiting on each other and the lease predicate keeps them from picking
// rows another replica is still working on.
var claimDueQuery = `
UPDATE recurring_definitions AS d
SET claimed_by = ?, claimed_until = ?, updated_at = ?
WHERE d.id IN (
	SELECT id FROM recurring_definitions
	WHERE is_active AND NOT is_paused AND NOT requires_approval
		AND next_execution_date <= ?
		AND (end_date IS NULL OR end_date >= ?)
		AND (max_occurrences IS NULL OR occurrence_count < max_occurrences)
		AND (claimed_until IS NULL OR claimed_until < ?)
	ORDER BY next_execution_date, id
	LIMIT ?
	FOR UPDATE SKIP LOCKED
)
RETURNING ` + strings.Join(columnNames(), ", ")

func (w *Writer) ClaimDue(ctx context.Context, req ClaimRequest) ([]*Definition, error) {
	query := psql.RawQuery(claimDueQuery,
		req.Owner, req.LeaseUntil, req.Now,
		req.Now, StartOfDay(req.Now), req.Now, req.Limit,
	)
	return bob.All(ctx, w.tx, query, scan.StructMapper[*Definition]())
}

func (w *Writer) ListExpired(ctx context.Context, now time.Time, limit int) ([]*Definition, error) {
	query := psql.Select(
		sm.Columns(columns...),
		sm.From(tableName),
		sm.Where(psql.And(
			psql.Quote("is_active").EQ(psql.Arg(true)),
			psql.Quote("end_date").LT(psql.Arg(StartOfDay(now))),
		)),
		sm.OrderBy(psql.Quote("end_date")).Asc(),
		sm.Limit(limit),
		sm.ForUpdate().SkipLocked(),
	)
	return bob.All(ctx, w.tx, query, scan.StructMapper[*Definition]())
}

func columnNames() []string {
	names := make([]string, len(columns))
	for i, column := range columns {
		names[i] = column.(string)
	}
	return names
}
