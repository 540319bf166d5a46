package middleware

import "net/http"

// MaxBody caps the request body. Reads past the limit fail with an
// *http.MaxBytesError, which handlers turn into their own 413 response.
func MaxBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
