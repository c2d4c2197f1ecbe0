package account

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

// CreateAccountInput is the Huma input for creating an account.
type CreateAccountInput struct {
	Body CreateAccountBody
}

// CreateAccountBody is the request body fields for creating an account.
type CreateAccountBody struct {
	OwnerID         string       `json:"ownerId,omitempty" doc:"Owner UUID"`
	Name            string       `json:"name" minLength:"1" maxLength:"255" doc:"Account name"`
	StartingBalance string       `json:"startingBalance,omitempty" doc:"Starting balance (e.g. '0' or '12.50'), defaults to 0"`
	SavingsRule     *SavingsRule `json:"savingsRule,omitempty" doc:"Savings rule, defaults to none"`
}

// CreateAccountOutput is the response for creating an account.
type CreateAccountOutput struct {
	Status int
	Body   Account
}

// accountCreator is the interface for creating accounts.
type accountCreator interface {
	CreateAccount(ctx context.Context, create service.AccountCreate) (*service.Account, error)
}

// CreateAccountHandler handles POST /v1/account.
type CreateAccountHandler struct {
	AccountService accountCreator
}

// NewCreateAccountHandler creates a new CreateAccountHandler.
func NewCreateAccountHandler(svc accountCreator) *CreateAccountHandler {
	return &CreateAccountHandler{AccountService: svc}
}

// Register registers the create account endpoint with the Huma API.
func (h *CreateAccountHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "create-account",
		Method:      http.MethodPost,
		Path:        "/v1/account",
		Summary:     "Create an account",
		Description: "Creates a new allowance account with a starting balance and an optional savings rule.",
		Tags:        []string{"Accounts"},
	}, h.handle)
}

func parseCreateAccountInput(input *CreateAccountInput) (service.AccountCreate, error) {
	startingBalanceStr := input.Body.StartingBalance
	if startingBalanceStr == "" {
		startingBalanceStr = "0"
	}
	startingBalance, err := decimal.NewFromString(startingBalanceStr)
	if err != nil {
		return service.AccountCreate{}, huma.NewError(http.StatusBadRequest, "invalid startingBalance", err)
	}

	var ownerID uuid.UUID
	if input.Body.OwnerID != "" {
		ownerID, err = uuid.FromString(input.Body.OwnerID)
		if err != nil {
			return service.AccountCreate{}, huma.NewError(http.StatusBadRequest, "invalid ownerId", err)
		}
	}

	rule, err := parseSavingsRule(input.Body.SavingsRule)
	if err != nil {
		return service.AccountCreate{}, err
	}

	return service.AccountCreate{
		OwnerID:         ownerID,
		Name:            input.Body.Name,
		StartingBalance: startingBalance,
		SavingsRule:     rule,
	}, nil
}

func (h *CreateAccountHandler) handle(ctx context.Context, input *CreateAccountInput) (*CreateAccountOutput, error) {
	logData := logging.GetLogData(ctx)

	create, err := parseCreateAccountInput(input)
	if err != nil {
		return nil, err
	}

	var stopTimer func()
	if logData != nil {
		stopTimer = logData.AddTiming("createAccountMs")
	}
	acct, err := h.AccountService.CreateAccount(ctx, create)
	if stopTimer != nil {
		stopTimer()
	}
	if err != nil {
		return nil, apierror.FromService(err, "failed to create account")
	}

	if logData != nil {
		logData.AddData("accountID", acct.ID.String())
	}

	return &CreateAccountOutput{
		Status: http.StatusCreated,
		Body:   toAccount(acct),
	}, nil
}
