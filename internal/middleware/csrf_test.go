package middleware

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCSRFToken(t *testing.T) {
	var seen string
	handler := GenerateCSRFToken(CSRFConfig{SecureCookies: true})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetCSRFTokenFromContext(r)
			w.WriteHeader(http.StatusOK)
		}),
	)

	t.Run("sets cookie when missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		require.NotEmpty(t, seen)
		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, csrfCookieName, cookies[0].Name)
		assert.Equal(t, seen, cookies[0].Value)
		assert.True(t, cookies[0].Secure)
		assert.True(t, cookies[0].HttpOnly)
	})

	t.Run("reuses existing cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, "existing", seen)
		assert.Empty(t, w.Result().Cookies())
	})
}

func TestValidateCSRFToken(t *testing.T) {
	const token = "test-token-123"
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name           string
		method         string
		cookie         *http.Cookie
		formToken      string
		header         string
		expectedStatus int
	}{
		{"valid POST request", http.MethodPost, &http.Cookie{Name: "csrf_token", Value: token}, token, "", http.StatusOK},
		{"header token", http.MethodPost, &http.Cookie{Name: "csrf_token", Value: token}, "", token, http.StatusOK},
		{"GET request is not validated", http.MethodGet, nil, "", "", http.StatusOK},
		{"missing cookie", http.MethodPost, nil, token, "", http.StatusForbidden},
		{"missing form token", http.MethodPost, &http.Cookie{Name: "csrf_token", Value: token}, "", "", http.StatusForbidden},
		{"mismatched tokens", http.MethodPost, &http.Cookie{Name: "csrf_token", Value: token}, "different-token", "", http.StatusForbidden},
		{"mismatched header", http.MethodDelete, &http.Cookie{Name: "csrf_token", Value: token}, "", "nope", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{}
			if tt.formToken != "" {
				form.Set("csrf_token", tt.formToken)
			}
			req := httptest.NewRequest(tt.method, "/", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tt.header != "" {
				req.Header.Set("X-CSRF-Token", tt.header)
			}
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}

			w := httptest.NewRecorder()
			ValidateCSRFToken()(ok).ServeHTTP(w, req)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestValidateCSRFToken_Multipart(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("csrf_token", "tok"))
	part, err := mw.CreateFormFile("file", "a.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("hello"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "tok"})

	var filePresent bool
	w := httptest.NewRecorder()
	ValidateCSRFToken()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, filePresent = r.MultipartForm.File["file"]
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, filePresent, "parsed form is left for the handler")
}

func TestValidateCSRFToken_OversizedBodyReachesHandler(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("csrf_token", "tok"))
	part, err := mw.CreateFormFile("file", "big.bin")
	require.NoError(t, err)
	_, _ = part.Write(bytes.Repeat([]byte("z"), 4096))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "tok"})

	var handlerErr error
	h := MaxBody(512)(ValidateCSRFToken()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerErr = r.ParseMultipartForm(1 << 10)
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	})))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	var tooLarge *http.MaxBytesError
	assert.True(t, errors.As(handlerErr, &tooLarge), "handler sees the size error again, got %v", handlerErr)
}
