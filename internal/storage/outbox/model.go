package outbox

import (
	"context"
	"time"
)

// Entry is one committed event. PublishedAt stays nil until a publisher
// accepted it.
type Entry struct {
	ID          int64      `db:"id"`
	EventKey    string     `db:"event_key"`
	Payload     string     `db:"payload"`
	Attempts    int32      `db:"attempts"`
	CreatedAt   time.Time  `db:"created_at"`
	PublishedAt *time.Time `db:"published_at"`
}

type EntryCreate struct {
	EventKey  string
	Payload   string
	CreatedAt time.Time
}

// IWriter defines outbox operations that run inside a storage transaction.
type IWriter interface {
	Append(ctx context.Context, create *EntryCreate) (*Entry, error)
	// ClaimPending locks up to limit unpublished entries created before
	// before, oldest first. Entries locked by another transaction are skipped.
	ClaimPending(ctx context.Context, before time.Time, limit int) ([]*Entry, error)
	MarkPublished(ctx context.Context, ids []int64, at time.Time) error
	// MarkFailed counts a failed delivery attempt. The entries stay pending.
	MarkFailed(ctx context.Context, ids []int64) error
	// Prune deletes entries published before the given time.
	Prune(ctx context.Context, before time.Time) (int64, error)
}
