package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication errors. ErrInvalidCredentials covers every login failure
	// mode (unknown email, wrong password, inactive account) so callers cannot
	// distinguish them and enumerate accounts. ErrAccountLocked is the one
	// failure surfaced distinctly, so locked-out users understand the delay.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrRegistrationFailed = errors.New("registration failed")
)
