package handler

import (
	"errors"
	"net/http"

	"github.com/filevault/filevault/internal/apiclient"
	internal_errors "github.com/filevault/filevault/internal/errors"
)

type errorBody struct {
	Detail string `json:"detail"`
}

// errorStatus maps a backend call failure to the status sent to the browser.
// Errors without a status mean the backend could not be reached.
func errorStatus(err error) int {
	var withStatus *internal_errors.ErrorWithStatusCode
	if errors.As(err, &withStatus) {
		return withStatus.StatusCode
	}
	return http.StatusBadGateway
}

func detail(err error) string {
	return apiclient.Detail(err)
}

// wantsJSON reports whether the caller is the page script rather than a
// plain form submission.
func wantsJSON(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") == "fetch"
}
