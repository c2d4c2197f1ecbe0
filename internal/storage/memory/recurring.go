package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/allowance-server/internal/storage/recurring"
)

type recurringStore struct {
	view func() *state
}

var _ recurring.IWriter = (*recurringStore)(nil)

func (s *recurringStore) FindByID(_ context.Context, id uuid.UUID) (*recurring.Definition, error) {
	row, ok := s.view().definitions[id]
	if !ok {
		return nil, recurring.ErrNotFound
	}
	return &row, nil
}

func (s *recurringStore) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*recurring.Definition, error) {
	return s.FindByID(ctx, id)
}

func (s *recurringStore) List(_ context.Context, filter *recurring.DefinitionFilter) ([]*recurring.Definition, error) {
	limit := recurring.DefaultListLimit
	offset := 0
	if filter != nil {
		if filter.Limit > 0 {
			limit = filter.Limit
		}
		offset = filter.Offset
	}

	rows := s.sorted(func(d *recurring.Definition) bool {
		if filter == nil {
			return true
		}
		if filter.AccountID != nil && d.AccountID != *filter.AccountID {
			return false
		}
		return filter.IncludeInactive || d.IsActive
	})

	if offset >= len(rows) {
		return nil, nil
	}
	rows = rows[offset:]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *recurringStore) ListAwaitingApproval(_ context.Context, now time.Time, limit int) ([]*recurring.Definition, error) {
	rows := s.sorted(func(d *recurring.Definition) bool {
		return d.RequiresApproval && d.IsActive && !d.IsPaused && !d.NextExecutionDate.After(now)
	})
	return truncate(rows, limit), nil
}

func (s *recurringStore) Create(_ context.Context, create *recurring.DefinitionCreate) (*recurring.Definition, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	row := recurring.Definition{
		ID:                id,
		AccountID:         create.AccountID,
		Amount:            create.Amount,
		Direction:         create.Direction,
		Description:       create.Description,
		Category:          create.Category,
		Pattern:           create.Pattern,
		StartDate:         create.StartDate,
		EndDate:           create.EndDate,
		MaxOccurrences:    create.MaxOccurrences,
		NextExecutionDate: create.NextExecutionDate,
		IsActive:          true,
		IsPaused:          create.IsPaused,
		RequiresApproval:  create.RequiresApproval,
		CreatedBy:         create.CreatedBy,
		CreatedAt:         create.CreatedAt,
		UpdatedAt:         create.CreatedAt,
	}
	s.view().definitions[id] = row
	return &row, nil
}

func (s *recurringStore) Update(_ context.Context, updated *recurring.Definition) error {
	st := s.view()
	existing, ok := st.definitions[updated.ID]
	if !ok {
		return fmt.Errorf("recurring definition %s: %w", updated.ID, recurring.ErrNotFound)
	}

	existing.OccurrenceCount = updated.OccurrenceCount
	existing.LastExecutedAt = updated.LastExecutedAt
	existing.NextExecutionDate = updated.NextExecutionDate
	existing.IsActive = updated.IsActive
	existing.IsPaused = updated.IsPaused
	existing.SkipNotifiedFor = updated.SkipNotifiedFor
	existing.ClaimedBy = updated.ClaimedBy
	existing.ClaimedUntil = updated.ClaimedUntil
	existing.UpdatedAt = updated.UpdatedAt
	st.definitions[updated.ID] = existing
	return nil
}

func (s *recurringStore) ClaimDue(_ context.Context, req recurring.ClaimRequest) ([]*recurring.Definition, error) {
	rows := s.sorted(func(d *recurring.Definition) bool {
		if !d.IsActive || d.IsPaused || d.RequiresApproval {
			return false
		}
		if d.NextExecutionDate.After(req.Now) {
			return false
		}
		if d.EndDate != nil && d.EndDate.Before(recurring.StartOfDay(req.Now)) {
			return false
		}
		if d.MaxOccurrences != nil && d.OccurrenceCount >= *d.MaxOccurrences {
			return false
		}
		return d.ClaimedUntil == nil || d.ClaimedUntil.Before(req.Now)
	})
	rows = truncate(rows, req.Limit)

	st := s.view()
	for _, row := range rows {
		owner := req.Owner
		leaseUntil := req.LeaseUntil
		row.ClaimedBy = &owner
		row.ClaimedUntil = &leaseUntil
		row.UpdatedAt = req.Now
		st.definitions[row.ID] = *row
	}
	return rows, nil
}

func (s *recurringStore) ListExpired(_ context.Context, now time.Time, limit int) ([]*recurring.Definition, error) {
	rows := s.sorted(func(d *recurring.Definition) bool {
		return d.IsActive && d.EndDate != nil && d.EndDate.Before(recurring.StartOfDay(now))
	})
	return truncate(rows, limit), nil
}

// sorted returns copies of the matching definitions ordered by next execution
// date, then id.
func (s *recurringStore) sorted(match func(d *recurring.Definition) bool) []*recurring.Definition {
	var rows []*recurring.Definition
	for _, row := range s.view().definitions {
		row := row
		if match(&row) {
			rows = append(rows, &row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].NextExecutionDate.Equal(rows[j].NextExecutionDate) {
			return rows[i].NextExecutionDate.Before(rows[j].NextExecutionDate)
		}
		return rows[i].ID.String() < rows[j].ID.String()
	})
	return rows
}

func truncate(rows []*recurring.Definition, limit int) []*recurring.Definition {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
