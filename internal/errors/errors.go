package errors

import (
	stderrors "errors"
	"net/http"
)

// ErrorWithStatusCode carries the HTTP status a handler should answer with.
// Errors without one are treated as internal server errors.
type ErrorWithStatusCode struct {
	Message    string
	StatusCode int
}

func (e *ErrorWithStatusCode) Error() string {
	return e.Message
}

// StatusCode returns the status attached to err, or 500.
func StatusCode(err error) int {
	var e *ErrorWithStatusCode
	if stderrors.As(err, &e) {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// WriteErrorAndStatusCode writes err as a plain-text response.
func WriteErrorAndStatusCode(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), StatusCode(err))
}
