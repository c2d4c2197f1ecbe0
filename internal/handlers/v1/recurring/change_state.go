package recurring

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/allowance-server/internal/handlers/v1/apierror"
	"github.com/carson-networks/allowance-server/internal/logging"
	"github.com/carson-networks/allowance-server/internal/service"
)

type stateChanger interface {
	Pause(ctx context.Context, id uuid.UUID) (*service.Definition, error)
	Resume(ctx context.Context, id uuid.UUID) (*service.Definition, error)
	Cancel(ctx context.Context, id uuid.UUID) (*service.Definition, error)
}

// ChangeStateHandler handles the pause, resume and cancel endpoints.
type ChangeStateHandler struct {
	RecurringService stateChanger
}

func NewChangeStateHandler(svc stateChanger) *ChangeStateHandler {
	return &ChangeStateHandler{RecurringService: svc}
}

func (h *ChangeStateHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "pause-recurring",
		Method:      http.MethodPost,
		Path:        "/v1/recurring/{id}/pause",
		Summary:     "Pause a recurring definition",
		Tags:        []string{"Recurring"},
	}, h.handler("pause", h.RecurringService.Pause))

	huma.Register(api, huma.Operation{
		OperationID: "resume-recurring",
		Method:      http.MethodPost,
		Path:        "/v1/recurring/{id}/resume",
		Summary:     "Resume a recurring definition",
		Description: "Resumes a paused definition. Occurrences missed while paused are not paid out.",
		Tags:        []string{"Recurring"},
	}, h.handler("resume", h.RecurringService.Resume))

	huma.Register(api, huma.Operation{
		OperationID: "cancel-recurring",
		Method:      http.MethodPost,
		Path:        "/v1/recurring/{id}/cancel",
		Summary:     "Cancel a recurring definition",
		Description: "Terminates the definition for good. Cancelling a terminated definition is a no-op.",
		Tags:        []string{"Recurring"},
	}, h.handler("cancel", h.RecurringService.Cancel))
}

func (h *ChangeStateHandler) handler(
	change string,
	apply func(context.Context, uuid.UUID) (*service.Definition, error),
) func(context.Context, *DefinitionPathInput) (*DefinitionOutput, error) {
	return func(ctx context.Context, input *DefinitionPathInput) (*DefinitionOutput, error) {
		id, err := parseUUID(input.ID, "definition id")
		if err != nil {
			return nil, err
		}

		definition, err := apply(ctx, id)
		if err != nil {
			return nil, apierror.FromService(err, "failed to "+change+" recurring definition")
		}

		if logData := logging.GetLogData(ctx); logData != nil {
			logData.AddData("definitionID", id.String())
			logData.AddData("state", string(definition.State()))
		}
		return &DefinitionOutput{Body: toDefinition(definition)}, nil
	}
}
