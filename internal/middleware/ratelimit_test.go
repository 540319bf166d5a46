package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/filevault/filevault/internal/ratelimiter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetIP(t *testing.T) {
	tests := []struct {
		remote  string
		want    string
		wantErr bool
	}{
		{"192.0.2.1:1234", "192.0.2.1", false},
		{"[2001:db8::1]:80", "2001:db8::1", false},
		{"192.0.2.9", "192.0.2.9", false},
		{"not-an-ip:80", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			req.Header.Set("X-Forwarded-For", "203.0.113.7")

			ip, err := GetIP(req)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ip)
		})
	}
}

func TestRateLimit(t *testing.T) {
	rl := ratelimiter.New(ratelimiter.Config{PerSecond: 0.001, Burst: 2, Idle: time.Hour})
	defer rl.Stop()

	handler := RateLimit(rl, GetIP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("192.0.2.1:1"))
	assert.Equal(t, http.StatusOK, do("192.0.2.1:2"))
	assert.Equal(t, http.StatusTooManyRequests, do("192.0.2.1:3"))
	assert.Equal(t, http.StatusOK, do("192.0.2.2:1"))
	assert.Equal(t, http.StatusBadRequest, do("garbage"))
}

func TestMaxBody(t *testing.T) {
	handler := MaxBody(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "too large", http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("abc")))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", w.Body.String())

	// A declared oversized length still reaches the handler.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("abcdefgh"))
	require.Equal(t, int64(8), req.ContentLength)
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "too large\n", w.Body.String())
}

func TestSecurityHeadersWithCSP(t *testing.T) {
	handler := SecurityHeadersWithCSP(true, DefaultCSP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	h := w.Header()
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", h.Get("X-Frame-Options"))
	assert.Equal(t, DefaultCSP, h.Get("Content-Security-Policy"))
	assert.NotEmpty(t, h.Get("Strict-Transport-Security"))

	w = httptest.NewRecorder()
	SecurityHeadersWithCSP(false, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, w.Header().Get("Content-Security-Policy"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}
