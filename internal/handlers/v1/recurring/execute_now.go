package recurring

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/allowance-server/internal/handlers/v1/apierror"
	"github.com/carson-networks/allowance-server/internal/handlers/v1/transaction"
	"github.com/carson-networks/allowance-server/internal/logging"
	"github.com/carson-networks/allowance-server/internal/service"
)

type ExecuteNowBody struct {
	ExpectedOccurrence *int   `json:"expectedOccurrence,omitempty" minimum:"0" doc:"occurrenceCount the caller last saw, a retry with the same value never pays twice"`
	CreatedBy          string `json:"createdBy,omitempty" doc:"Who triggered the run"`
}

type ExecuteNowInput struct {
	ID   string          `path:"id" format:"uuid" doc:"Definition UUID"`
	Body *ExecuteNowBody `required:"false"`
}

type ExecutionResponse struct {
	Outcome         string                   `json:"outcome" doc:"executed, skipped, completed or not_due"`
	Definition      Definition               `json:"definition"`
	Transaction     *transaction.Transaction `json:"transaction,omitempty" doc:"Ledger row of this run"`
	SavingsTransfer *transaction.Transaction `json:"savingsTransfer,omitempty" doc:"Savings transfer that followed an allowance credit"`
}

type ExecuteNowOutput struct {
	Body ExecutionResponse
}

type executor interface {
	ExecuteNow(ctx context.Context, id uuid.UUID, expectedOccurrence *int, createdBy string) (*service.Execution, error)
}

// ExecuteNowHandler handles POST /v1/recurring/{id}/execute.
type ExecuteNowHandler struct {
	RecurringService executor
}

func NewExecuteNowHandler(svc executor) *ExecuteNowHandler {
	return &ExecuteNowHandler{RecurringService: svc}
}

func (h *ExecuteNowHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "execute-recurring",
		Method:      http.MethodPost,
		Path:        "/v1/recurring/{id}/execute",
		Summary:     "Execute a recurring definition now",
		Description: "Runs the current occurrence regardless of its due date. Also approves definitions that require approval.",
		Tags:        []string{"Recurring"},
	}, h.handle)
}

func (h *ExecuteNowHandler) handle(ctx context.Context, input *ExecuteNowInput) (*ExecuteNowOutput, error) {
	logData := logging.GetLogData(ctx)

	id, err := parseUUID(input.ID, "definition id")
	if err != nil {
		return nil, err
	}
	var expectedOccurrence *int
	var createdBy string
	if input.Body != nil {
		expectedOccurrence = input.Body.ExpectedOccurrence
		createdBy = input.Body.CreatedBy
	}

	var stopTimer func()
	if logData != nil {
		stopTimer = logData.AddTiming("executeRecurringMs")
	}
	execution, err := h.RecurringService.ExecuteNow(ctx, id, expectedOccurrence, createdBy)
	if stopTimer != nil {
		stopTimer()
	}
	if err != nil {
		return nil, apierror.FromService(err, "failed to execute recurring definition")
	}

	resp := ExecutionResponse{
		Outcome:    execution.Outcome.String(),
		Definition: toDefinition(execution.Definition),
	}
	if execution.Transaction != nil {
		row := transaction.ToTransaction(execution.Transaction)
		resp.Transaction = &row
	}
	if execution.SavingsTransfer != nil {
		row := transaction.ToTransaction(execution.SavingsTransfer)
		resp.SavingsTransfer = &row
	}

	if logData != nil {
		logData.AddData("definitionID", id.String())
		logData.AddData("outcome", resp.Outcome)
	}
	return &ExecuteNowOutput{Body: resp}, nil
}
