package recurring

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/allowance-server/internal/handlers/v1/apierror"
	"github.com/carson-networks/allowance-server/internal/service"
)

type definitionGetter interface {
	GetDefinition(ctx context.Context, id uuid.UUID) (*service.Definition, error)
}

// GetDefinitionHandler handles GET /v1/recurring/{id}.
type GetDefinitionHandler struct {
	RecurringService definitionGetter
}

func NewGetDefinitionHandler(svc definitionGetter) *GetDefinitionHandler {
	return &GetDefinitionHandler{RecurringService: svc}
}

func (h *GetDefinitionHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-recurring",
		Method:      http.MethodGet,
		Path:        "/v1/recurring/{id}",
		Summary:     "Get a recurring definition",
		Tags:        []string{"Recurring"},
	}, h.handle)
}

func (h *GetDefinitionHandler) handle(ctx context.Context, input *DefinitionPathInput) (*DefinitionOutput, error) {
	id, err := parseUUID(input.ID, "definition id")
	if err != nil {
		return nil, err
	}

	definition, err := h.RecurringService.GetDefinition(ctx, id)
	if err != nil {
		return nil, apierror.FromService(err, "failed to get recurring definition")
	}
	return &DefinitionOutput{Body: toDefinition(definition)}, nil
}
