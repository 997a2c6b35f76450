package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the commission core and the HTTP layer
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidState     = errors.New("invalid state")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrTransientStorage = errors.New("transient storage error")
	ErrDelivery         = errors.New("delivery failed")
	ErrForbidden        = errors.New("forbidden")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrDuplicateEntry   = errors.New("duplicate entry")
)

// Commission errors
var (
	ErrSubmissionNotFound = fmt.Errorf("%w: submission", ErrNotFound)
	ErrAgentNotFound      = fmt.Errorf("%w: agent", ErrNotFound)
	ErrPayableNotFound    = fmt.Errorf("%w: payable record", ErrNotFound)
	ErrVoucherNotFound    = fmt.Errorf("%w: voucher", ErrNotFound)
	ErrProjectNotFound    = fmt.Errorf("%w: project", ErrNotFound)
	ErrUnitNotFound       = fmt.Errorf("%w: unit", ErrNotFound)
	ErrUserNotFound       = fmt.Errorf("%w: user", ErrNotFound)

	ErrAlreadyDistributed = fmt.Errorf("%w: commission already distributed", ErrAlreadyProcessed)

	ErrInvalidPrice    = fmt.Errorf("%w: price must be greater than 0", ErrValidation)
	ErrInvalidRate     = fmt.Errorf("%w: rate must be between 0 and 100", ErrValidation)
	ErrSelfUpline      = fmt.Errorf("%w: agent cannot be its own upline", ErrValidation)
	ErrUnitOutsideProj = fmt.Errorf("%w: unit does not belong to project", ErrValidation)

	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
)

// Validationf builds a validation error with a message
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// InvalidStatef builds an invalid state error with a message
func InvalidStatef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}
