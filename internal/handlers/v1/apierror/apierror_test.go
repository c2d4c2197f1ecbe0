package apierror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"

	"github.com/carson-networks/allowance-server/internal/xerrors"
)

func TestFromService(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", xerrors.Invalid("name", "must not be empty"), http.StatusBadRequest},
		{"amount", xerrors.InvalidAmount("must be positive"), http.StatusBadRequest},
		{"pattern", fmt.Errorf("%w: yearly", xerrors.ErrInvalidPattern), http.StatusBadRequest},
		{"account not found", fmt.Errorf("account x: %w", xerrors.ErrAccountNotFound), http.StatusNotFound},
		{"definition not found", xerrors.ErrDefinitionNotFound, http.StatusNotFound},
		{"retired", xerrors.ErrAccountRetired, http.StatusConflict},
		{"terminated", xerrors.ErrDefinitionTerminated, http.StatusConflict},
		{"paused", xerrors.ErrDefinitionPaused, http.StatusConflict},
		{"already executed", xerrors.ErrAlreadyExecuted, http.StatusConflict},
		{"insufficient funds", xerrors.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{"unknown", errors.New("connection refused"), http.StatusInternalServerError},
		{"cancelled", context.Canceled, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var statusErr huma.StatusError
			assert.True(t, errors.As(FromService(tt.err, "failed"), &statusErr))
			assert.Equal(t, tt.status, statusErr.GetStatus())
		})
	}
}

func TestFromService_InternalErrorHidesCause(t *testing.T) {
	err := FromService(errors.New("pq: password authentication failed"), "failed to create account")
	var model *huma.ErrorModel
	assert.True(t, errors.As(err, &model))
	assert.Equal(t, "failed to create account", model.Detail)
}

func TestFromService_Nil(t *testing.T) {
	assert.NoError(t, FromService(nil, "failed"))
}
