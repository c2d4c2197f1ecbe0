// Package apierror maps service errors onto HTTP problem responses.
package apierror

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/allowance-server/internal/xerrors"
)

// FromService turns a service error into a huma error. Domain errors keep
// their message so the client can tell them apart; anything else becomes a
// 500 with msg.
func FromService(err error, msg string) error {
	if err == nil {
		return nil
	}

	var validation *xerrors.ValidationError
	switch {
	case errors.As(err, &validation):
		return huma.NewError(http.StatusBadRequest, err.Error(), &huma.ErrorDetail{
			Message:  validation.Msg,
			Location: "body." + validation.Field,
		})
	case errors.Is(err, xerrors.ErrInvalidInput),
		errors.Is(err, xerrors.ErrInvalidAmount),
		errors.Is(err, xerrors.ErrInvalidPattern):
		return huma.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, xerrors.ErrAccountNotFound),
		errors.Is(err, xerrors.ErrDefinitionNotFound):
		return huma.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, xerrors.ErrAccountRetired),
		errors.Is(err, xerrors.ErrDefinitionTerminated),
		errors.Is(err, xerrors.ErrDefinitionPaused),
		errors.Is(err, xerrors.ErrAlreadyExecuted):
		return huma.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, xerrors.ErrInsufficientFunds):
		return huma.NewError(http.StatusUnprocessableEntity, err.Error())
	default:
		return huma.NewError(http.StatusInternalServerError, msg, err)
	}
}
