package transaction

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/carson-networks/allowance-server/internal/handlers/v1/apierror"
	"github.com/carson-networks/allowance-server/internal/logging"
	"github.com/carson-networks/allowance-server/internal/service"
)

// CreateTransactionBody is the request body for creating a transaction.
type CreateTransactionBody struct {
	AccountID      string `json:"accountId" format:"uuid" doc:"Account UUID"`
	Direction      string `json:"direction" enum:"credit,debit" doc:"credit adds to the balance, debit takes from it"`
	Amount         string `json:"amount" doc:"Positive decimal amount with at most two decimal places"`
	Description    string `json:"description" maxLength:"255" doc:"Free text description"`
	Category       string `json:"category,omitempty" doc:"Category label"`
	CreatedBy      string `json:"createdBy,omitempty" doc:"Who is creating the entry"`
	AllowOverdraft bool   `json:"allowOverdraft,omitempty" doc:"Let a debit take the balance below zero"`
}

// CreateTransactionInput is the Huma input for creating a transaction.
type CreateTransactionInput struct {
	Body CreateTransactionBody
}

// CreateTransactionOutput is the Huma output for creating a transaction.
type CreateTransactionOutput struct {
	Status int
	Body   Transaction
}

// transactionCreator is the interface for creating transactions.
type transactionCreator interface {
	CreateTransaction(ctx context.Context, create service.TransactionCreate) (*service.Transaction, error)
}

// CreateTransactionHandler handles POST /v1/transaction.
type CreateTransactionHandler struct {
	TransactionService transactionCreator
}

// NewCreateTransactionHandler creates a new CreateTransactionHandler.
func NewCreateTransactionHandler(svc transactionCreator) *CreateTransactionHandler {
	return &CreateTransactionHandler{TransactionService: svc}
}

// Register registers the create transaction endpoint with the Huma API.
func (h *CreateTransactionHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "create-transaction",
		Method:      http.MethodPost,
		Path:        "/v1/transaction",
		Summary:     "Create transaction",
		Description: "Appends a manual credit or debit to an account's ledger and updates its balance.",
		Tags:        []string{"Transactions"},
	}, h.handle)
}

func parseCreateTransactionInput(input *CreateTransactionInput) (service.TransactionCreate, error) {
	accountID, err := uuid.FromString(input.Body.AccountID)
	if err != nil {
		return service.TransactionCreate{}, huma.NewError(http.StatusBadRequest, "invalid accountId", err)
	}
	direction, err := service.ParseDirection(input.Body.Direction)
	if err != nil {
		return service.TransactionCreate{}, huma.NewError(http.StatusBadRequest, "invalid direction", err)
	}
	amount, err := decimal.NewFromString(input.Body.Amount)
	if err != nil {
		return service.TransactionCreate{}, huma.NewError(http.StatusBadRequest, "invalid amount", err)
	}

	return service.TransactionCreate{
		AccountID:      accountID,
		Direction:      direction,
		Amount:         amount,
		Description:    input.Body.Description,
		Category:       input.Body.Category,
		CreatedBy:      input.Body.CreatedBy,
		AllowOverdraft: input.Body.AllowOverdraft,
	}, nil
}

func (h *CreateTransactionHandler) handle(ctx context.Context, input *CreateTransactionInput) (*CreateTransactionOutput, error) {
	logData := logging.GetLogData(ctx)

	create, err := parseCreateTransactionInput(input)
	if err != nil {
		return nil, err
	}

	var stopTimer func()
	if logData != nil {
		stopTimer = logData.AddTiming("createTransactionMs")
	}
	created, err := h.TransactionService.CreateTransaction(ctx, create)
	if stopTimer != nil {
		stopTimer()
	}
	if err != nil {
		return nil, apierror.FromService(err, "failed to create transaction")
	}

	if logData != nil {
		logData.AddData("transactionID", created.ID.String())
		logData.AddData("sequence", created.Sequence)
	}

	return &CreateTransactionOutput{
		Status: http.StatusCreated,
		Body:   ToTransaction(created),
	}, nil
}
