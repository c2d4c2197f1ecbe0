package transaction

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/allowance-server/internal/service"
)

// Transaction is the API response model for a ledger row.
type Transaction struct {
	ID                  string `json:"id" doc:"Transaction UUID"`
	Sequence            int64  `json:"sequence" doc:"Position in the ledger, strictly increasing"`
	AccountID           string `json:"accountId" doc:"Account UUID"`
	Direction           string `json:"direction" enum:"credit,debit" doc:"credit or debit"`
	Amount              string `json:"amount" doc:"Positive decimal amount"`
	BalanceAfter        string `json:"balanceAfter" doc:"Account balance right after this row"`
	SavingsBalanceAfter string `json:"savingsBalanceAfter" doc:"Savings balance right after this row"`
	Description         string `json:"description" doc:"Free text description"`
	Category            string `json:"category,omitempty" doc:"Category label"`
	SourceRecurringID   string `json:"sourceRecurringId,omitempty" doc:"Recurring definition that produced this row"`
	ExecutionID         string `json:"executionId,omitempty" doc:"Groups the rows of one recurring execution"`
	CreatedBy           string `json:"createdBy,omitempty" doc:"Who created the row"`
	CreatedAt           string `json:"createdAt" format:"date-time" doc:"Creation time"`
}

// ToTransaction converts a service transaction to its API model.
func ToTransaction(tx *service.Transaction) Transaction {
	resp := Transaction{
		ID:                  tx.ID.String(),
		Sequence:            tx.Sequence,
		AccountID:           tx.AccountID.String(),
		Direction:           tx.Direction.String(),
		Amount:              tx.Amount.StringFixed(2),
		BalanceAfter:        tx.BalanceAfter.StringFixed(2),
		SavingsBalanceAfter: tx.SavingsBalanceAfter.StringFixed(2),
		Description:         tx.Description,
		Category:            tx.Category,
		CreatedBy:           tx.CreatedBy,
		CreatedAt:           tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.SourceRecurringID != nil {
		resp.SourceRecurringID = tx.SourceRecurringID.String()
	}
	if tx.ExecutionID != nil {
		resp.ExecutionID = tx.ExecutionID.String()
	}
	return resp
}

// AccountPathInput addresses the ledger of one account.
type AccountPathInput struct {
	ID string `path:"id" format:"uuid" doc:"Account UUID"`
}

func parseAccountID(raw string) (uuid.UUID, error) {
	id, err := uuid.FromString(raw)
	if err != nil {
		return uuid.Nil, huma.NewError(http.StatusBadRequest, "invalid account id", err)
	}
	return id, nil
}
