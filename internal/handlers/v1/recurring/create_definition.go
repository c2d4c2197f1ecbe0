package recurring

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"

	"github.com/carson-networks/allowance-server/internal/handlers/v1/apierror"
	"github.com/carson-networks/allowance-server/internal/logging"
	"github.com/carson-networks/allowance-server/internal/recurrence"
	"github.com/carson-networks/allowance-server/internal/service"
)

// CreateDefinitionBody is the request body for a new recurring definition.
type CreateDefinitionBody struct {
	AccountID        string `json:"accountId" format:"uuid" doc:"Account UUID"`
	Amount           string `json:"amount" doc:"Positive decimal amount with at most two decimal places"`
	Direction        string `json:"direction" enum:"credit,debit"`
	Description      string `json:"description" maxLength:"255"`
	Category         string `json:"category,omitempty" doc:"Category label, allowance credits trigger the savings rule"`
	Pattern          string `json:"pattern" enum:"daily,weekly,biweekly,monthly,firstOfMonth,lastOfMonth"`
	StartDate        string `json:"startDate,omitempty" format:"date" doc:"First day the definition may run, defaults to today"`
	EndDate          string `json:"endDate,omitempty" format:"date" doc:"Last day the definition may run"`
	MaxOccurrences   *int   `json:"maxOccurrences,omitempty" minimum:"1" doc:"Terminate after this many executions"`
	Paused           bool   `json:"paused,omitempty" doc:"Create the definition paused"`
	RequiresApproval bool   `json:"requiresApproval,omitempty" doc:"Never run on schedule, only through execute"`
	CreatedBy        string `json:"createdBy,omitempty"`
}

type CreateDefinitionInput struct {
	Body CreateDefinitionBody
}

type CreateDefinitionOutput struct {
	Status int
	Body   Definition
}

type definitionCreator interface {
	CreateDefinition(ctx context.Context, create service.DefinitionCreate) (*service.Definition, error)
}

// CreateDefinitionHandler handles POST /v1/recurring.
type CreateDefinitionHandler struct {
	RecurringService definitionCreator
}

func NewCreateDefinitionHandler(svc definitionCreator) *CreateDefinitionHandler {
	return &CreateDefinitionHandler{RecurringService: svc}
}

func (h *CreateDefinitionHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "create-recurring",
		Method:      http.MethodPost,
		Path:        "/v1/recurring",
		Summary:     "Create a recurring definition",
		Description: "Schedules a credit or debit that the scheduler applies on every occurrence of the pattern.",
		Tags:        []string{"Recurring"},
	}, h.handle)
}

func parseDate(raw, name string) (time.Time, error) {
	parsed, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, huma.NewError(http.StatusBadRequest, "invalid "+name, err)
	}
	return parsed, nil
}

func parseCreateDefinitionInput(input *CreateDefinitionInput) (service.DefinitionCreate, error) {
	body := input.Body

	accountID, err := parseUUID(body.AccountID, "accountId")
	if err != nil {
		return service.DefinitionCreate{}, err
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		return service.DefinitionCreate{}, huma.NewError(http.StatusBadRequest, "invalid amount", err)
	}
	direction, err := service.ParseDirection(body.Direction)
	if err != nil {
		return service.DefinitionCreate{}, huma.NewError(http.StatusBadRequest, "invalid direction", err)
	}
	pattern, err := recurrence.ParsePattern(body.Pattern)
	if err != nil {
		return service.DefinitionCreate{}, huma.NewError(http.StatusBadRequest, "invalid pattern", err)
	}

	create := service.DefinitionCreate{
		AccountID:        accountID,
		Amount:           amount,
		Direction:        direction,
		Description:      body.Description,
		Category:         body.Category,
		Pattern:          pattern,
		MaxOccurrences:   body.MaxOccurrences,
		Paused:           body.Paused,
		RequiresApproval: body.RequiresApproval,
		CreatedBy:        body.CreatedBy,
	}
	if body.StartDate != "" {
		if create.StartDate, err = parseDate(body.StartDate, "startDate"); err != nil {
			return service.DefinitionCreate{}, err
		}
	}
	if body.EndDate != "" {
		endDate, err := parseDate(body.EndDate, "endDate")
		if err != nil {
			return service.DefinitionCreate{}, err
		}
		create.EndDate = &endDate
	}
	return create, nil
}

func (h *CreateDefinitionHandler) handle(ctx context.Context, input *CreateDefinitionInput) (*CreateDefinitionOutput, error) {
	logData := logging.GetLogData(ctx)

	create, err := parseCreateDefinitionInput(input)
	if err != nil {
		return nil, err
	}

	var stopTimer func()
	if logData != nil {
		stopTimer = logData.AddTiming("createRecurringMs")
	}
	definition, err := h.RecurringService.CreateDefinition(ctx, create)
	if stopTimer != nil {
		stopTimer()
	}
	if err != nil {
		return nil, apierror.FromService(err, "failed to create recurring definition")
	}

	if logData != nil {
		logData.AddData("definitionID", definition.ID.String())
	}

	return &CreateDefinitionOutput{
		Status: http.StatusCreated,
		Body:   toDefinition(definition),
	}, nil
}
