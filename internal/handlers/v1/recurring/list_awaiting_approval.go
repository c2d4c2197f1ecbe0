package recurring

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/allowance-server/internal/handlers/v1/apierror"
	"github.com/carson-networks/allowance-server/internal/service"
)

type ListAwaitingApprovalInput struct {
	Limit int `query:"limit" minimum:"0" maximum:"100" doc:"Maximum number of definitions, default 20"`
}

type ListAwaitingApprovalOutput struct {
	Body struct {
		Definitions []Definition `json:"definitions" doc:"Due definitions waiting for approval, oldest due first"`
	}
}

type approvalLister interface {
	ListAwaitingApproval(ctx context.Context, limit int) ([]service.Definition, error)
}

// ListAwaitingApprovalHandler handles GET /v1/recurring/awaiting-approval.
type ListAwaitingApprovalHandler struct {
	RecurringService approvalLister
}

func NewListAwaitingApprovalHandler(svc approvalLister) *ListAwaitingApprovalHandler {
	return &ListAwaitingApprovalHandler{RecurringService: svc}
}

func (h *ListAwaitingApprovalHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-awaiting-approval",
		Method:      http.MethodGet,
		Path:        "/v1/recurring/awaiting-approval",
		Summary:     "List definitions awaiting approval",
		Description: "Due definitions that require approval. Approve one by executing it.",
		Tags:        []string{"Recurring"},
	}, h.handle)
}

func (h *ListAwaitingApprovalHandler) handle(ctx context.Context, input *ListAwaitingApprovalInput) (*ListAwaitingApprovalOutput, error) {
	definitions, err := h.RecurringService.ListAwaitingApproval(ctx, input.Limit)
	if err != nil {
		return nil, apierror.FromService(err, "failed to list definitions awaiting approval")
	}

	out := &ListAwaitingApprovalOutput{}
	out.Body.Definitions = make([]Definition, len(definitions))
	for i := range definitions {
		out.Body.Definitions[i] = toDefinition(&definitions[i])
	}
	return out, nil
}
