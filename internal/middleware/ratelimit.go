package middleware

import (
	"fmt"
	"net"
	"net/http"

	"github.com/filevault/filevault/internal/errors"
	"github.com/filevault/filevault/internal/logger"
	"github.com/filevault/filevault/internal/ratelimiter"
)

// RateLimit answers 429 once the caller's bucket in rl is empty. Callers are
// keyed by getIdentity.
func RateLimit(rl *ratelimiter.Limiter, getIdentity func(r *http.Request) (string, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := getIdentity(r)
			if err != nil {
				errors.WriteErrorAndStatusCode(w, err)
				return
			}
			if !rl.Allow(identity) {
				logger.Log.Warn("rate limit exceeded", "identity", identity, "path", r.URL.Path)
				http.Error(w, "Rate limit exceeded, try again later", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetIP keys callers by the peer address of the connection. Forwarding
// headers are client supplied and ignored.
func GetIP(r *http.Request) (string, error) {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}

	if net.ParseIP(ip) == nil {
		return "", &errors.ErrorWithStatusCode{
			Message:    fmt.Sprintf("invalid IP address: %s", ip),
			StatusCode: http.StatusBadRequest,
		}
	}
	return ip, nil
}
