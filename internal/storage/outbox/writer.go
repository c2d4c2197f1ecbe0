package outbox

import (
	"context"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/scan"
)

const tableName = "event_outbox"

var columns = []any{"id", "event_key", "payload", "attempts", "created_at", "published_at"}

type Writer struct {
	tx bob.Executor
}

var _ IWriter = (*Writer)(nil)

func NewWriter(tx bob.Executor) *Writer {
	return &Writer{tx: tx}
}

func (w *Writer) Append(ctx context.Context, create *EntryCreate) (*Entry, error) {
	query := psql.Insert(
		im.Into(tableName, "event_key", "payload", "created_at"),
		im.Values(psql.Arg(create.EventKey, create.Payload, create.CreatedAt)),
		im.Returning(columns...),
	)
	return bob.One(ctx, w.tx, query, scan.StructMapper[*Entry]())
}

var claimPendingQuery = `
SELECT ` + columnList() + `
FROM event_outbox
WHERE published_at IS NULL AND created_at < ?
ORDER BY id
LIMIT ?
FOR UPDATE SKIP LOCKED`

func (w *Writer) ClaimPending(ctx context.Context, before time.Time, limit int) ([]*Entry, error) {
	query := psql.RawQuery(claimPendingQuery, before, limit)
	return bob.All(ctx, w.tx, query, scan.StructMapper[*Entry]())
}

func (w *Writer) MarkPublished(ctx context.Context, ids []int64, at time.Time) error {
	query := psql.RawQuery(`UPDATE event_outbox SET published_at = ? WHERE id = ANY(?)`, at, pq.Array(ids))
	_, err := bob.Exec(ctx, w.tx, query)
	return err
}

func (w *Writer) MarkFailed(ctx context.Context, ids []int64) error {
	query := psql.RawQuery(`UPDATE event_outbox SET attempts = attempts + 1 WHERE id = ANY(?)`, pq.Array(ids))
	_, err := bob.Exec(ctx, w.tx, query)
	return err
}

func (w *Writer) Prune(ctx context.Context, before time.Time) (int64, error) {
	query := psql.RawQuery(`DELETE FROM event_outbox WHERE published_at IS NOT NULL AND published_at < ?`, before)
	result, err := bob.Exec(ctx, w.tx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func columnList() string {
	names := make([]string, len(columns))
	for i, column := range columns {
		names[i] = column.(string)
	}
	return strings.Join(names, ", ")
}
