package recurring

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/allowance-server/internal/service"
)

// Definition is the API response model for a recurring definition.
type Definition struct {
	ID                string `json:"id" doc:"Definition UUID"`
	AccountID         string `json:"accountId" doc:"Account UUID"`
	Amount            string `json:"amount" doc:"Amount of every occurrence"`
	Direction         string `json:"direction" enum:"credit,debit"`
	Description       string `json:"description"`
	Category          string `json:"category,omitempty"`
	Pattern           string `json:"pattern" doc:"daily, weekly, biweekly, monthly, firstOfMonth or lastOfMonth"`
	StartDate         string `json:"startDate" format:"date"`
	EndDate           string `json:"endDate,omitempty" format:"date"`
	MaxOccurrences    *int   `json:"maxOccurrences,omitempty"`
	OccurrenceCount   int    `json:"occurrenceCount" doc:"Occurrences executed so far, pass it back as expectedOccurrence"`
	LastExecutedAt    string `json:"lastExecutedAt,omitempty" format:"date-time"`
	NextExecutionDate string `json:"nextExecutionDate" format:"date"`
	State             string `json:"state" enum:"active,paused,terminated"`
	RequiresApproval  bool   `json:"requiresApproval"`
	CreatedBy         string `json:"createdBy,omitempty"`
	CreatedAt         string `json:"createdAt" format:"date-time"`
	UpdatedAt         string `json:"updatedAt" format:"date-time"`
}

func toDefinition(definition *service.Definition) Definition {
	resp := Definition{
		ID:                definition.ID.String(),
		AccountID:         definition.AccountID.String(),
		Amount:            definition.Amount.StringFixed(2),
		Direction:         definition.Direction.String(),
		Description:       definition.Description,
		Category:          definition.Category,
		Pattern:           definition.Pattern.String(),
		StartDate:         definition.StartDate.Format(time.DateOnly),
		MaxOccurrences:    definition.MaxOccurrences,
		OccurrenceCount:   definition.OccurrenceCount,
		NextExecutionDate: definition.NextExecutionDate.Format(time.DateOnly),
		State:             string(definition.State()),
		RequiresApproval:  definition.RequiresApproval,
		CreatedBy:         definition.CreatedBy,
		CreatedAt:         definition.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         definition.UpdatedAt.Format(time.RFC3339),
	}
	if definition.EndDate != nil {
		resp.EndDate = definition.EndDate.Format(time.DateOnly)
	}
	if definition.LastExecutedAt != nil {
		resp.LastExecutedAt = definition.LastExecutedAt.Format(time.RFC3339)
	}
	return resp
}

// DefinitionPathInput addresses a single definition.
type DefinitionPathInput struct {
	ID string `path:"id" format:"uuid" doc:"Definition UUID"`
}

// DefinitionOutput wraps a single definition.
type DefinitionOutput struct {
	Body Definition
}

func parseUUID(raw, name string) (uuid.UUID, error) {
	id, err := uuid.FromString(raw)
	if err != nil {
		return uuid.Nil, huma.NewError(http.StatusBadRequest, "invalid "+name, err)
	}
	return id, nil
}
