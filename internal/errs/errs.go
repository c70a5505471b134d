// Package errs holds the sentinel errors shared by stores, services and
// handlers. Match them with errors.Is; handlers map them to HTTP status codes.
package errs

import "errors"

var (
	// Swap request lifecycle.
	ErrConflict          = errors.New("request already sent to this user")
	ErrNotFound          = errors.New("request not found")
	ErrForbidden         = errors.New("not authorized")
	ErrInvalidTransition = errors.New("request is no longer pending or status is invalid")
	ErrSelfRequest       = errors.New("cannot send a request to yourself")

	// Identity.
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("not authenticated")

	// Input.
	ErrValidation = errors.New("validation error")
)
