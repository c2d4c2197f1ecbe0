package transaction

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/allowance-server/internal/handlers/v1/apierror"
	"github.com/carson-networks/allowance-server/internal/logging"
	"github.com/carson-networks/allowance-server/internal/service"
)

// ListTransactionsCursor points just below the last row of a page. New rows
// appended meanwhile never shift later pages.
type ListTransactionsCursor struct {
	BeforeSequence int64 `json:"beforeSequence" doc:"Return rows with a smaller sequence"`
	Limit          int   `json:"limit" doc:"Page size used for this cursor"`
}

// ListTransactionsInput is the Huma input for an account's history.
type ListTransactionsInput struct {
	ID             string `path:"id" format:"uuid" doc:"Account UUID"`
	BeforeSequence int64  `query:"beforeSequence" minimum:"0" doc:"Cursor from a previous page"`
	Limit          int    `query:"limit" minimum:"0" maximum:"200" doc:"Page size, default 20"`
}

// ListTransactionsResponseBody is the response body for listing transactions.
type ListTransactionsResponseBody struct {
	Transactions []Transaction          `json:"transactions" doc:"Page of transactions, newest first"`
	NextCursor   *ListTransactionsCursor `json:"nextCursor,omitempty" doc:"Cursor to fetch the next page, absent on the last page"`
}

// ListTransactionsOutput is the Huma output for listing transactions.
type ListTransactionsOutput struct {
	Body ListTransactionsResponseBody
}

// transactionLister is the interface for listing transactions.
type transactionLister interface {
	GetHistory(ctx context.Context, accountID uuid.UUID, cursor *service.TransactionCursor) ([]service.Transaction, *service.TransactionCursor, error)
}

// ListTransactionsHandler handles GET /v1/account/{id}/transactions.
type ListTransactionsHandler struct {
	TransactionService transactionLister
}

// NewListTransactionsHandler creates a new ListTransactionsHandler.
func NewListTransactionsHandler(svc transactionLister) *ListTransactionsHandler {
	return &ListTransactionsHandler{TransactionService: svc}
}

// Register registers the list transactions endpoint with the Huma API.
func (h *ListTransactionsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-transactions",
		Method:      http.MethodGet,
		Path:        "/v1/account/{id}/transactions",
		Summary:     "List transactions",
		Description: "Returns an account's ledger, newest first, with keyset pagination on the sequence.",
		Tags:        []string{"Transactions"},
	}, h.handle)
}

func (h *ListTransactionsHandler) handle(ctx context.Context, input *ListTransactionsInput) (*ListTransactionsOutput, error) {
	logData := logging.GetLogData(ctx)

	accountID, err := parseAccountID(input.ID)
	if err != nil {
		return nil, err
	}
	cursor := &service.TransactionCursor{
		BeforeSequence: input.BeforeSequence,
		Limit:          input.Limit,
	}

	var stopTimer func()
	if logData != nil {
		stopTimer = logData.AddTiming("listTransactionsMs")
	}
	transactions, nextCursor, err := h.TransactionService.GetHistory(ctx, accountID, cursor)
	if stopTimer != nil {
		stopTimer()
	}
	if err != nil {
		return nil, apierror.FromService(err, "failed to list transactions")
	}

	if logData != nil {
		logData.AddData("transactionCount", len(transactions))
	}

	resp := ListTransactionsResponseBody{
		Transactions: make([]Transaction, len(transactions)),
	}
	for i := range transactions {
		resp.Transactions[i] = ToTransaction(&transactions[i])
	}
	if nextCursor != nil {
		resp.NextCursor = &ListTransactionsCursor{
			BeforeSequence: nextCursor.BeforeSequence,
			Limit:          nextCursor.Limit,
		}
	}

	return &ListTransactionsOutput{Body: resp}, nil
}
