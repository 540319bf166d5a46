package middleware

import (
	"net/http"
)

// DefaultCSP keeps every resource same-origin. PDF previews render in an
// <iframe> of our own origin.
const DefaultCSP = "default-src 'self'; img-src 'self' data:; media-src 'self'; " +
	"frame-src 'self'; object-src 'none'; connect-src 'self'; base-uri 'self'; form-action 'self'"

// SecurityHeadersWithCSP adds security headers with custom Content-Security-Policy
// isHTTPS: if true, adds Strict-Transport-Security header
// csp: Content-Security-Policy value (if empty, no CSP header is set)
func SecurityHeadersWithCSP(isHTTPS bool, csp string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers := w.Header()

			// Same-origin framing is needed by the PDF viewer.
			headers.Set("X-Frame-Options", "SAMEORIGIN")
			headers.Set("X-Content-Type-Options", "nosniff")
			headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			headers.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=()")

			if csp != "" {
				headers.Set("Content-Security-Policy", csp)
			}
			if isHTTPS {
				headers.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
