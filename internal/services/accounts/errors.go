package accounts

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrRoleMismatch       = errors.New("incorrect role selected for this account")
	ErrInternal           = errors.New("internal error")

	ErrPasswordMismatch = fmt.Errorf("%w: passwords do not match", ErrValidation)
	ErrMissingField     = fmt.Errorf("%w: name, email and password are required", ErrValidation)
	ErrInvalidRole      = fmt.Errorf("%w: role must be patient or doctor", ErrValidation)
	ErrEmailTaken       = fmt.Errorf("%w: email already registered", ErrConflict)
)

// Message is the user-facing text for a workflow error. Internal details
// never leave the service.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrPasswordMismatch):
		return "Passwords do not match."
	case errors.Is(err, ErrMissingField):
		return "Name, email and password are required."
	case errors.Is(err, ErrInvalidRole):
		return "Role must be patient or doctor."
	case errors.Is(err, ErrEmailTaken):
		return "Email already registered."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, ErrRoleMismatch):
		return "Incorrect role selected for this account."
	default:
		return "Internal server error."
	}
}
