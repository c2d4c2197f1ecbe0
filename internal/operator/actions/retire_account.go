package actions

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/allowance-server/internal/storage"
	"github.com/carson-networks/allowance-server/internal/storage/recurring"
)

// RetireAccount soft-retires an account and terminates every active recurring
// definition on it. Retiring twice is a no-op.
type RetireAccount struct {
	AccountID uuid.UUID
	Now       time.Time

	CancelledDefinitions []uuid.UUID

	IAction
}

func (r *RetireAccount) Perform(ctx context.Context, writer *storage.Writer) error {
	acct, err := lockAccount(ctx, writer, r.AccountID)
	if err != nil {
		return err
	}
	if acct.IsRetired() {
		return nil
	}

	retiredAt := r.Now
	acct.RetiredAt = &retiredAt
	if err = writer.Account.Update(ctx, acct); err != nil {
		return err
	}

	// Every cancelled row drops out of the active filter, so the first page
	// is re-read until it comes back empty.
	for {
		page, err := writer.Recurring.List(ctx, &recurring.DefinitionFilter{
			AccountID: &r.AccountID,
			Limit:     recurring.DefaultListLimit,
		})
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}

		for _, listed := range page {
			definition, err := lockDefinition(ctx, writer, listed.ID)
			if err != nil {
				return err
			}
			terminate(writer, definition, r.Now)
			if err = writer.Recurring.Update(ctx, definition); err != nil {
				return err
			}
			r.CancelledDefinitions = append(r.CancelledDefinitions, definition.ID)
		}
	}
}
