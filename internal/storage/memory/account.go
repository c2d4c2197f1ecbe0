package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/carson-networks/allowance-server/internal/storage/account"
)

type accountStore struct {
	view func() *state
}

var _ account.IWriter = (*accountStore)(nil)

func (s *accountStore) FindByID(_ context.Context, id uuid.UUID) (*account.Account, error) {
	row, ok := s.view().accounts[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	return &row, nil
}

func (s *accountStore) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return s.FindByID(ctx, id)
}

func (s *accountStore) List(_ context.Context, filter *account.AccountFilter) (*account.AccountListResult, error) {
	limit, offset := account.LimitAndOffset(filter)

	var rows []*account.Account
	for _, row := range s.view().accounts {
		if filter != nil && filter.OwnerID != nil && row.OwnerID != *filter.OwnerID {
			continue
		}
		row := row
		rows = append(rows, &row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].ID.String() < rows[j].ID.String()
	})

	if offset >= len(rows) {
		return account.Page(nil, limit, offset), nil
	}
	rows = rows[offset:]
	if len(rows) > limit+1 {
		rows = rows[:limit+1]
	}
	return account.Page(rows, limit, offset), nil
}

func (s *accountStore) Create(_ context.Context, create *account.AccountCreate) (*account.Account, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	row := account.Account{
		ID:              id,
		OwnerID:         create.OwnerID,
		Name:            create.Name,
		Balance:         create.StartingBalance,
		StartingBalance: create.StartingBalance,
		SavingsBalance:  decimal.Zero,
		SavingsMode:     create.SavingsMode,
		SavingsValue:    create.SavingsValue,
		CreatedAt:       create.CreatedAt,
	}
	s.view().accounts[id] = row
	return &row, nil
}

func (s *accountStore) Update(_ context.Context, updated *account.Account) error {
	st := s.view()
	existing, ok := st.accounts[updated.ID]
	if !ok {
		return fmt.Errorf("account %s: %w", updated.ID, account.ErrNotFound)
	}

	existing.Balance = updated.Balance
	existing.SavingsBalance = updated.SavingsBalance
	existing.SavingsMode = updated.SavingsMode
	existing.SavingsValue = updated.SavingsValue
	existing.LastAllowanceDate = updated.LastAllowanceDate
	existing.RetiredAt = updated.RetiredAt
	st.accounts[updated.ID] = existing
	return nil
}
