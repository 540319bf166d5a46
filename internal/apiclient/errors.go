package apiclient

import (
	"errors"
	"net/http"

	internal_errors "github.com/filevault/filevault/internal/errors"
)

// ErrNotFound matches an *APIError with status 404 via errors.Is.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return e.Detail
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Unwrap exposes the status for handlers that map errors with
// internal_errors.StatusCode. Backend 5xx stay 502 towards the browser.
func (e *APIError) Unwrap() error {
	status := e.StatusCode
	if status >= 500 {
		status = http.StatusBadGateway
	}
	return &internal_errors.ErrorWithStatusCode{Message: e.Detail, StatusCode: status}
}

// Detail returns the user-facing message carried by err: the backend detail
// for an *APIError, err.Error() otherwise.
func Detail(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return err.Error()
}
