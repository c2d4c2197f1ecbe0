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

type ListDefinitionsCursor struct {
	Position int `json:"position" doc:"Offset for next page"`
	Limit    int `json:"limit" doc:"Page size"`
}

type ListDefinitionsInput struct {
	ID              string `path:"id" format:"uuid" doc:"Account UUID"`
	IncludeInactive bool   `query:"includeInactive" doc:"Also list terminated definitions"`
	Position        int    `query:"position" minimum:"0" doc:"Offset for pagination"`
	Limit           int    `query:"limit" minimum:"0" maximum:"100" doc:"Page size, default 20"`
}

type ListDefinitionsResponseBody struct {
	Definitions []Definition           `json:"definitions" doc:"Page of definitions ordered by next execution date"`
	NextCursor  *ListDefinitionsCursor `json:"nextCursor,omitempty" doc:"Cursor to fetch the next page, absent on the last page"`
}

type ListDefinitionsOutput struct {
	Body ListDefinitionsResponseBody
}

type definitionLister interface {
	ListDefinitions(ctx context.Context, accountID uuid.UUID, includeInactive bool, cursor *service.DefinitionCursor) ([]service.Definition, *service.DefinitionCursor, error)
}

// ListDefinitionsHandler handles GET /v1/account/{id}/recurring.
type ListDefinitionsHandler struct {
	RecurringService definitionLister
}

func NewListDefinitionsHandler(svc definitionLister) *ListDefinitionsHandler {
	return &ListDefinitionsHandler{RecurringService: svc}
}

func (h *ListDefinitionsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-recurring",
		Method:      http.MethodGet,
		Path:        "/v1/account/{id}/recurring",
		Summary:     "List an account's recurring definitions",
		Tags:        []string{"Recurring"},
	}, h.handle)
}

func (h *ListDefinitionsHandler) handle(ctx context.Context, input *ListDefinitionsInput) (*ListDefinitionsOutput, error) {
	accountID, err := parseUUID(input.ID, "account id")
	if err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit == 0 {
		limit = 20
	}
	definitions, nextCursor, err := h.RecurringService.ListDefinitions(ctx, accountID, input.IncludeInactive, &service.DefinitionCursor{
		Position: input.Position,
		Limit:    limit,
	})
	if err != nil {
		return nil, apierror.FromService(err, "failed to list recurring definitions")
	}

	if logData := logging.GetLogData(ctx); logData != nil {
		logData.AddData("definitionCount", len(definitions))
	}

	resp := ListDefinitionsResponseBody{Definitions: make([]Definition, len(definitions))}
	for i := range definitions {
		resp.Definitions[i] = toDefinition(&definitions[i])
	}
	if nextCursor != nil {
		resp.NextCursor = &ListDefinitionsCursor{Position: nextCursor.Position, Limit: nextCursor.Limit}
	}
	return &ListDefinitionsOutput{Body: resp}, nil
}
