package account

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/allowance-server/internal/handlers/v1/apierror"
	"github.com/carson-networks/allowance-server/internal/savings"
	"github.com/carson-networks/allowance-server/internal/service"
)

// ConfigureSavingsInput replaces an account's savings rule.
type ConfigureSavingsInput struct {
	ID   string `path:"id" format:"uuid" doc:"Account UUID"`
	Body SavingsRule
}

type savingsConfigurer interface {
	ConfigureSavings(ctx context.Context, id uuid.UUID, rule savings.Rule) (*service.Account, error)
}

// ConfigureSavingsHandler handles PUT /v1/account/{id}/savings.
type ConfigureSavingsHandler struct {
	AccountService savingsConfigurer
}

func NewConfigureSavingsHandler(svc savingsConfigurer) *ConfigureSavingsHandler {
	return &ConfigureSavingsHandler{AccountService: svc}
}

func (h *ConfigureSavingsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "configure-savings",
		Method:      http.MethodPut,
		Path:        "/v1/account/{id}/savings",
		Summary:     "Configure the savings rule",
		Description: "Replaces the rule that moves part of every allowance credit to savings. Mode none turns it off.",
		Tags:        []string{"Accounts"},
	}, h.handle)
}

func (h *ConfigureSavingsHandler) handle(ctx context.Context, input *ConfigureSavingsInput) (*AccountOutput, error) {
	id, err := parseAccountID(input.ID)
	if err != nil {
		return nil, err
	}
	rule, err := parseSavingsRule(&input.Body)
	if err != nil {
		return nil, err
	}

	acct, err := h.AccountService.ConfigureSavings(ctx, id, rule)
	if err != nil {
		return nil, apierror.FromService(err, "failed to configure savings")
	}
	return &AccountOutput{Body: toAccount(acct)}, nil
}
