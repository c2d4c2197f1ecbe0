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

// ReplayResponse compares the cached balances with the ones rebuilt from the
// ledger.
type ReplayResponse struct {
	AccountID             string `json:"accountId" doc:"Account UUID"`
	StartingBalance       string `json:"startingBalance"`
	CachedBalance         string `json:"cachedBalance"`
	ReplayedBalance       string `json:"replayedBalance"`
	CachedSavings         string `json:"cachedSavings"`
	ReplayedSavings       string `json:"replayedSavings"`
	TransactionCount      int    `json:"transactionCount"`
	FirstMismatchSequence int64  `json:"firstMismatchSequence,omitempty" doc:"First row whose balance snapshot disagrees with the replay"`
	Consistent            bool   `json:"consistent"`
}

type ReplayOutput struct {
	Body ReplayResponse
}

type balanceReplayer interface {
	ReplayBalance(ctx context.Context, accountID uuid.UUID) (*service.Replay, error)
}

// ReplayBalanceHandler handles GET /v1/account/{id}/replay.
type ReplayBalanceHandler struct {
	TransactionService balanceReplayer
}

func NewReplayBalanceHandler(svc balanceReplayer) *ReplayBalanceHandler {
	return &ReplayBalanceHandler{TransactionService: svc}
}

func (h *ReplayBalanceHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "replay-balance",
		Method:      http.MethodGet,
		Path:        "/v1/account/{id}/replay",
		Summary:     "Replay the ledger",
		Description: "Rebuilds the account's balances from its full ledger and reports whether they match the cached values.",
		Tags:        []string{"Transactions"},
	}, h.handle)
}

func (h *ReplayBalanceHandler) handle(ctx context.Context, input *AccountPathInput) (*ReplayOutput, error) {
	accountID, err := parseAccountID(input.ID)
	if err != nil {
		return nil, err
	}

	replay, err := h.TransactionService.ReplayBalance(ctx, accountID)
	if err != nil {
		return nil, apierror.FromService(err, "failed to replay balance")
	}

	consistent := replay.Consistent()
	if logData := logging.GetLogData(ctx); logData != nil {
		logData.AddData("consistent", consistent)
		logData.AddData("transactionCount", replay.TransactionCount)
	}

	return &ReplayOutput{Body: ReplayResponse{
		AccountID:             replay.AccountID.String(),
		StartingBalance:       replay.StartingBalance.StringFixed(2),
		CachedBalance:         replay.CachedBalance.StringFixed(2),
		ReplayedBalance:       replay.ReplayedBalance.StringFixed(2),
		CachedSavings:         replay.CachedSavings.StringFixed(2),
		ReplayedSavings:       replay.ReplayedSavings.StringFixed(2),
		TransactionCount:      replay.TransactionCount,
		FirstMismatchSequence: replay.FirstMismatchSequence,
		Consistent:            consistent,
	}}, nil
}
