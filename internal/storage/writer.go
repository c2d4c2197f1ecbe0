package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/stephenafamo/bob"

	"github.com/carson-networks/allowance-server/internal/events"
	"github.com/carson-networks/allowance-server/internal/storage/account"
	"github.com/carson-networks/allowance-server/internal/storage/outbox"
	"github.com/carson-networks/allowance-server/internal/storage/recurring"
	"github.com/carson-networks/allowance-server/internal/storage/transaction"
)

// Finisher ends a storage transaction.
type Finisher interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Writer is one storage transaction. Events emitted through it are written to
// the outbox in the same transaction on Commit and handed to the publisher only
// after that.
type Writer struct {
	tx          Finisher
	Account     account.IWriter
	Transaction transaction.IWriter
	Recurring   recurring.IWriter
	Outbox      outbox.IWriter

	eventsMutex sync.Mutex
	events      []events.Event
	staged      []int64
}

func NewWriter(tx Finisher, accounts account.IWriter, transactions transaction.IWriter, definitions recurring.IWriter, entries outbox.IWriter) *Writer {
	return &Writer{
		tx:          tx,
		Account:     accounts,
		Transaction: transactions,
		Recurring:   definitions,
		Outbox:      entries,
	}
}

func NewSQLWriter(tx bob.Tx) *Writer {
	return NewWriter(tx, account.NewWriter(tx), transaction.NewWriter(tx), recurring.NewWriter(tx), outbox.NewWriter(tx))
}

func (w *Writer) Emit(event events.Event) {
	w.eventsMutex.Lock()
	defer w.eventsMutex.Unlock()
	w.events = append(w.events, event)
}

func (w *Writer) Events() []events.Event {
	w.eventsMutex.Lock()
	defer w.eventsMutex.Unlock()
	out := make([]events.Event, len(w.events))
	copy(out, w.events)
	return out
}

// Staged returns the outbox ids of the committed events.
func (w *Writer) Staged() []int64 {
	w.eventsMutex.Lock()
	defer w.eventsMutex.Unlock()
	return append([]int64(nil), w.staged...)
}

func (w *Writer) Commit() error {
	ctx := context.Background()
	if err := w.stage(ctx); err != nil {
		_ = w.tx.Rollback(ctx)
		return err
	}
	return w.tx.Commit(ctx)
}

func (w *Writer) stage(ctx context.Context) error {
	emitted := w.Events()
	if len(emitted) == 0 {
		return nil
	}

	staged := make([]int64, 0, len(emitted))
	now := time.Now().UTC()
	for _, event := range emitted {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", event.Key(), err)
		}
		entry, err := w.Outbox.Append(ctx, &outbox.EntryCreate{
			EventKey:  event.Key(),
			Payload:   string(payload),
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		staged = append(staged, entry.ID)
	}

	w.eventsMutex.Lock()
	w.staged = staged
	w.eventsMutex.Unlock()
	return nil
}

func (w *Writer) Rollback() error {
	return w.tx.Rollback(context.Background())
}
