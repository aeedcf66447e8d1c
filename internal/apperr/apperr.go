// Package apperr holds the error taxonomy shared by the session state
// components and the HTTP layer.
package apperr

import "errors"

var (
	// ErrUnauthenticated: the action requires a logged-in user.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNetwork: transport error or non-2xx answer from the content API.
	ErrNetwork = errors.New("network failure")
	// ErrValidation: form-level problem detected before any request is made.
	ErrValidation = errors.New("validation")
)
