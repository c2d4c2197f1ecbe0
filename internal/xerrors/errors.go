package xerrors

import (
	"errors"
	"fmt"
)

// Validation
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidPattern = errors.New("invalid recurrence pattern")
)

// Ledger
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountRetired    = errors.New("account retired")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Recurring definitions
var (
	ErrDefinitionNotFound   = errors.New("recurring definition not found")
	ErrDefinitionTerminated = errors.New("recurring definition terminated")
	ErrDefinitionPaused     = errors.New("recurring definition paused")
	ErrAlreadyExecuted      = errors.New("occurrence already executed")
)

// ValidationError names the offending field. It matches ErrInvalidInput with
// errors.Is unless Err says otherwise.
type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

func Invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

func InvalidAmount(msg string) error {
	return &ValidationError{Field: "amount", Msg: msg, Err: ErrInvalidAmount}
}
