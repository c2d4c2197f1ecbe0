package account

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/carson-networks/allowance-server/internal/savings"
	"github.com/carson-networks/allowance-server/internal/service"
)

const (
	savingsModeNone       = "none"
	savingsModeFixed      = "fixed"
	savingsModePercentage = "percentage"
)

// Account is the API response model for an account.
type Account struct {
	ID                string      `json:"id" doc:"Account UUID"`
	OwnerID           string      `json:"ownerId,omitempty" doc:"Owner UUID"`
	Name              string      `json:"name" doc:"Account name"`
	Balance           string      `json:"balance" doc:"Spendable balance"`
	StartingBalance   string      `json:"startingBalance" doc:"Balance the account was opened with"`
	SavingsBalance    string      `json:"savingsBalance" doc:"Balance moved to savings"`
	SavingsRule       SavingsRule `json:"savingsRule" doc:"Auto-transfer applied after each allowance credit"`
	LastAllowanceDate string      `json:"lastAllowanceDate,omitempty" format:"date-time" doc:"When the last allowance was credited"`
	RetiredAt         string      `json:"retiredAt,omitempty" format:"date-time" doc:"When the account was retired"`
	CreatedAt         string      `json:"createdAt" format:"date-time" doc:"Creation time"`
}

// SavingsRule is the API model for an account's savings rule.
type SavingsRule struct {
	Mode  string `json:"mode" enum:"none,fixed,percentage" doc:"none, fixed (amount per credit) or percentage (of each credit)"`
	Value string `json:"value,omitempty" doc:"Decimal amount for fixed, percent for percentage"`
}

func toAccount(acct *service.Account) Account {
	resp := Account{
		ID:              acct.ID.String(),
		Name:            acct.Name,
		Balance:         acct.Balance.StringFixed(2),
		StartingBalance: acct.StartingBalance.StringFixed(2),
		SavingsBalance:  acct.SavingsBalance.StringFixed(2),
		SavingsRule:     toSavingsRule(acct.SavingsRule),
		CreatedAt:       acct.CreatedAt.Format(time.RFC3339),
	}
	if acct.OwnerID != uuid.Nil {
		resp.OwnerID = acct.OwnerID.String()
	}
	if acct.LastAllowanceDate != nil {
		resp.LastAllowanceDate = acct.LastAllowanceDate.Format(time.RFC3339)
	}
	if acct.RetiredAt != nil {
		resp.RetiredAt = acct.RetiredAt.Format(time.RFC3339)
	}
	return resp
}

func toSavingsRule(rule savings.Rule) SavingsRule {
	switch r := rule.(type) {
	case savings.FixedAmount:
		return SavingsRule{Mode: savingsModeFixed, Value: r.Amount.StringFixed(2)}
	case savings.Percentage:
		return SavingsRule{Mode: savingsModePercentage, Value: r.Percent.String()}
	default:
		return SavingsRule{Mode: savingsModeNone}
	}
}

// parseSavingsRule returns nil for a nil body, which the service treats as no
// transfer.
func parseSavingsRule(body *SavingsRule) (savings.Rule, error) {
	if body == nil || body.Mode == "" || body.Mode == savingsModeNone {
		return nil, nil
	}

	value, err := decimal.NewFromString(body.Value)
	if err != nil {
		return nil, huma.NewError(http.StatusBadRequest, "invalid savingsRule.value", err)
	}

	switch body.Mode {
	case savingsModeFixed:
		return savings.FixedAmount{Amount: value}, nil
	case savingsModePercentage:
		return savings.Percentage{Percent: value}, nil
	default:
		return nil, huma.NewError(http.StatusBadRequest, "invalid savingsRule.mode")
	}
}

func parseAccountID(raw string) (uuid.UUID, error) {
	id, err := uuid.FromString(raw)
	if err != nil {
		return uuid.Nil, huma.NewError(http.StatusBadRequest, "invalid account id", err)
	}
	return id, nil
}
