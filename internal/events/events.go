// Package events carries ledger events to the collaborators that consume them
// (notifications, real-time sync, reporting). Delivery is at-least-once, so
// consumers de-duplicate on the event's entity id.
package events

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeTransactionCommitted Type = "transaction.committed"
	TypeRecurringSkipped     Type = "recurring.skipped"
	TypeRecurringCompleted   Type = "recurring.completed"
)

// Event is the envelope published for every ledger event. Only the fields of
// the event's Type are set.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	TransactionID *uuid.UUID       `json:"transactionId,omitempty"`
	AccountID     *uuid.UUID       `json:"accountId,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Direction     string           `json:"direction,omitempty"`
	BalanceAfter  *decimal.Decimal `json:"balanceAfter,omitempty"`

	DefinitionID *uuid.UUID `json:"definitionId,omitempty"`
	Reason       string     `json:"reason,omitempty"`
}

// Key is the id consumers de-duplicate on.
func (e Event) Key() string {
	switch {
	case e.TransactionID != nil:
		return string(e.Type) + ":" + e.TransactionID.String()
	case e.DefinitionID != nil:
		return string(e.Type) + ":" + e.DefinitionID.String() + ":" + e.Timestamp.Format(time.RFC3339Nano)
	default:
		return string(e.Type)
	}
}

func TransactionCommitted(transactionID, accountID uuid.UUID, amount decimal.Decimal, direction string, balanceAfter decimal.Decimal, at time.Time) Event {
	return Event{
		Type:          TypeTransactionCommitted,
		Timestamp:     at,
		TransactionID: &transactionID,
		AccountID:     &accountID,
		Amount:        &amount,
		Direction:     direction,
		BalanceAfter:  &balanceAfter,
	}
}

func RecurringSkipped(definitionID uuid.UUID, reason string, at time.Time) Event {
	return Event{
		Type:         TypeRecurringSkipped,
		Timestamp:    at,
		DefinitionID: &definitionID,
		Reason:       reason,
	}
}

func RecurringCompleted(definitionID uuid.UUID, at time.Time) Event {
	return Event{
		Type:         TypeRecurringCompleted,
		Timestamp:    at,
		DefinitionID: &definitionID,
	}
}

// Publisher delivers committed events. It is only ever called after the
// storage transaction that produced the events has committed.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}
