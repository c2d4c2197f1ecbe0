package memory

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/allowance-server/internal/storage/transaction"
)

type transactionStore struct {
	view func() *state
}

var _ transaction.IWriter = (*transactionStore)(nil)

func (s *transactionStore) FindByID(_ context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	for _, row := range s.view().transactions {
		if row.ID == id {
			copied := *row
			return &copied, nil
		}
	}
	return nil, transaction.ErrNotFound
}

func (s *transactionStore) List(_ context.Context, filter *transaction.TransactionFilter) ([]*transaction.Transaction, error) {
	rows := s.view().transactions
	var result []*transaction.Transaction

	matches := func(row *transaction.Transaction) bool {
		if row.AccountID != filter.AccountID {
			return false
		}
		if filter.BeforeSequence > 0 && row.Sequence >= filter.BeforeSequence {
			return false
		}
		if filter.AfterSequence > 0 && row.Sequence <= filter.AfterSequence {
			return false
		}
		return true
	}

	full := func() bool {
		return filter.Limit > 0 && len(result) >= filter.Limit
	}

	// rows are stored in sequence order
	if filter.Ascending {
		for i := 0; i < len(rows) && !full(); i++ {
			if matches(rows[i]) {
				copied := *rows[i]
				result = append(result, &copied)
			}
		}
		return result, nil
	}

	for i := len(rows) - 1; i >= 0 && !full(); i-- {
		if matches(rows[i]) {
			copied := *rows[i]
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (s *transactionStore) Insert(_ context.Context, create *transaction.TransactionCreate) (*transaction.Transaction, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	st := s.view()
	st.sequence++
	row := &transaction.Transaction{
		ID:                  id,
		Sequence:            st.sequence,
		AccountID:           create.AccountID,
		Direction:           create.Direction,
		Amount:              create.Amount,
		BalanceAfter:        create.BalanceAfter,
		SavingsBalanceAfter: create.SavingsBalanceAfter,
		Description:         create.Description,
		Category:            create.Category,
		SourceRecurringID:   create.SourceRecurringID,
		ExecutionID:         create.ExecutionID,
		CreatedBy:           create.CreatedBy,
		CreatedAt:           create.CreatedAt,
	}
	st.transactions = append(st.transactions, row)

	copied := *row
	return &copied, nil
}
