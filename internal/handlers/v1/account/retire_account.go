package account

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/allowance-server/internal/handlers/v1/apierror"
	"github.com/carson-networks/allowance-server/internal/logging"
)

// RetireAccountResponse lists the recurring definitions cancelled with the
// account.
type RetireAccountResponse struct {
	CancelledDefinitions []string `json:"cancelledDefinitions" doc:"UUIDs of the recurring definitions that were cancelled"`
}

type RetireAccountOutput struct {
	Body RetireAccountResponse
}

type accountRetirer interface {
	RetireAccount(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
}

// RetireAccountHandler handles POST /v1/account/{id}/retire.
type RetireAccountHandler struct {
	AccountService accountRetirer
}

func NewRetireAccountHandler(svc accountRetirer) *RetireAccountHandler {
	return &RetireAccountHandler{AccountService: svc}
}

func (h *RetireAccountHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "retire-account",
		Method:      http.MethodPost,
		Path:        "/v1/account/{id}/retire",
		Summary:     "Retire an account",
		Description: "Retires the account. Its history stays readable, new entries are refused and its recurring definitions are cancelled.",
		Tags:        []string{"Accounts"},
	}, h.handle)
}

func (h *RetireAccountHandler) handle(ctx context.Context, input *AccountPathInput) (*RetireAccountOutput, error) {
	id, err := parseAccountID(input.ID)
	if err != nil {
		return nil, err
	}

	cancelled, err := h.AccountService.RetireAccount(ctx, id)
	if err != nil {
		return nil, apierror.FromService(err, "failed to retire account")
	}

	if logData := logging.GetLogData(ctx); logData != nil {
		logData.AddData("cancelledDefinitions", len(cancelled))
	}

	resp := RetireAccountResponse{CancelledDefinitions: make([]string, len(cancelled))}
	for i, definitionID := range cancelled {
		resp.CancelledDefinitions[i] = definitionID.String()
	}
	return &RetireAccountOutput{Body: resp}, nil
}
