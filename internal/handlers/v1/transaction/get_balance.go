package transaction

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/carson-networks/allowance-server/internal/handlers/v1/apierror"
)

type BalanceResponse struct {
	AccountID string `json:"accountId" doc:"Account UUID"`
	Balance   string `json:"balance" doc:"Current spendable balance"`
}

type BalanceOutput struct {
	Body BalanceResponse
}

type balanceGetter interface {
	GetBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
}

// GetBalanceHandler handles GET /v1/account/{id}/balance.
type GetBalanceHandler struct {
	TransactionService balanceGetter
}

func NewGetBalanceHandler(svc balanceGetter) *GetBalanceHandler {
	return &GetBalanceHandler{TransactionService: svc}
}

func (h *GetBalanceHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-balance",
		Method:      http.MethodGet,
		Path:        "/v1/account/{id}/balance",
		Summary:     "Get balance",
		Tags:        []string{"Transactions"},
	}, h.handle)
}

func (h *GetBalanceHandler) handle(ctx context.Context, input *AccountPathInput) (*BalanceOutput, error) {
	accountID, err := parseAccountID(input.ID)
	if err != nil {
		return nil, err
	}

	balance, err := h.TransactionService.GetBalance(ctx, accountID)
	if err != nil {
		return nil, apierror.FromService(err, "failed to get balance")
	}
	return &BalanceOutput{Body: BalanceResponse{
		AccountID: accountID.String(),
		Balance:   balance.StringFixed(2),
	}}, nil
}
