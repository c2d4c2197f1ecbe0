package account

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/allowance-server/internal/handlers/v1/apierror"
	"github.com/carson-networks/allowance-server/internal/service"
)

// AccountPathInput addresses a single account.
type AccountPathInput struct {
	ID string `path:"id" format:"uuid" doc:"Account UUID"`
}

// AccountOutput wraps a single account.
type AccountOutput struct {
	Body Account
}

type accountGetter interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*service.Account, error)
}

// GetAccountHandler handles GET /v1/account/{id}.
type GetAccountHandler struct {
	AccountService accountGetter
}

func NewGetAccountHandler(svc accountGetter) *GetAccountHandler {
	return &GetAccountHandler{AccountService: svc}
}

func (h *GetAccountHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-account",
		Method:      http.MethodGet,
		Path:        "/v1/account/{id}",
		Summary:     "Get an account",
		Tags:        []string{"Accounts"},
	}, h.handle)
}

func (h *GetAccountHandler) handle(ctx context.Context, input *AccountPathInput) (*AccountOutput, error) {
	id, err := parseAccountID(input.ID)
	if err != nil {
		return nil, err
	}

	acct, err := h.AccountService.GetAccount(ctx, id)
	if err != nil {
		return nil, apierror.FromService(err, "failed to get account")
	}
	return &AccountOutput{Body: toAccount(acct)}, nil
}
