package client

import (
	"errors"
	"fmt"
)

// ErrAnonymous signals that no usable session exists. UIs treat it as
// redirect-to-login.
var ErrAnonymous = errors.New("no active session")

// APIError is a non-2xx response from the server, carrying the error
// taxonomy code the API uses (VALIDATION_ERROR, NOT_FOUND, CONFLICT, ...).
type APIError struct {
	Status  int
	Code    string
	Message string
	Details string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is an API not-found response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 404
}

// IsConflict reports whether err is an API conflict response, e.g. a
// display name or email already taken.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 409
}

// IsValidation reports whether err is an API validation failure.
func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 400
}
