package memory

import (
	"context"
	"time"

	"github.com/carson-networks/allowance-server/internal/storage/outbox"
)

type outboxStore struct {
	view func() *state
}

var _ outbox.IWriter = (*outboxStore)(nil)

func (s *outboxStore) Append(_ context.Context, create *outbox.EntryCreate) (*outbox.Entry, error) {
	st := s.view()
	st.outboxSequence++
	entry := outbox.Entry{
		ID:        st.outboxSequence,
		EventKey:  create.EventKey,
		Payload:   create.Payload,
		CreatedAt: create.CreatedAt,
	}
	st.outbox = append(st.outbox, entry)
	return &entry, nil
}

func (s *outboxStore) ClaimPending(_ context.Context, before time.Time, limit int) ([]*outbox.Entry, error) {
	var pending []*outbox.Entry
	for _, entry := range s.view().outbox {
		if limit > 0 && len(pending) >= limit {
			break
		}
		if entry.PublishedAt == nil && entry.CreatedAt.Before(before) {
			entry := entry
			pending = append(pending, &entry)
		}
	}
	return pending, nil
}

func (s *outboxStore) MarkPublished(_ context.Context, ids []int64, at time.Time) error {
	s.each(ids, func(entry *outbox.Entry) {
		published := at
		entry.PublishedAt = &published
	})
	return nil
}

func (s *outboxStore) MarkFailed(_ context.Context, ids []int64) error {
	s.each(ids, func(entry *outbox.Entry) {
		entry.Attempts++
	})
	return nil
}

func (s *outboxStore) Prune(_ context.Context, before time.Time) (int64, error) {
	st := s.view()
	kept := st.outbox[:0:0]
	var pruned int64
	for _, entry := range st.outbox {
		if entry.PublishedAt != nil && entry.PublishedAt.Before(before) {
			pruned++
			continue
		}
		kept = append(kept, entry)
	}
	st.outbox = kept
	return pruned, nil
}

func (s *outboxStore) each(ids []int64, apply func(entry *outbox.Entry)) {
	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	st := s.view()
	for i := range st.outbox {
		if _, ok := wanted[st.outbox[i].ID]; ok {
			apply(&st.outbox[i])
		}
	}
}
