package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/filevault/filevault/internal/logger"
)

// TransferDeadline replaces the server-wide write timeout on routes that move
// whole files. Both connection deadlines are set to now+d.
func TransferDeadline(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deadline := time.Now().Add(d)
			rc := http.NewResponseController(w)
			if err := rc.SetReadDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
				logger.Log.Warn("failed to set read deadline", "path", r.URL.Path, "error", err)
			}
			if err := rc.SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
				logger.Log.Warn("failed to set write deadline", "path", r.URL.Path, "error", err)
			}
			next.ServeHTTP(w, r)
		})
	}
}
