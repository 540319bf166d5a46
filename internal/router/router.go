package router

import (
	"net/http"

	"github.com/filevault/filevault/internal/handler"
	mw "github.com/filevault/filevault/internal/middleware"
	"github.com/filevault/filevault/internal/middleware/metrics"
	"github.com/filevault/filevault/internal/setup"
	"github.com/filevault/filevault/internal/web"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// multipartOverhead is allowed on top of the file size for form fields and
// part headers.
const multipartOverhead = 1 << 20

func SetupRouter(deps *setup.Dependencies) http.Handler {
	h := deps.Handler
	cfg := deps.Config

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(mw.SecurityHeadersWithCSP(cfg.Server.SecureCookies, mw.DefaultCSP))

	r.Get("/health", handler.HealthHandler)
	r.Get("/ready", h.ReadyHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/static/*", http.StripPrefix("/static/", web.Static()))
	r.Get("/ws/uploads/{id}", h.UploadProgressHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		r.Get("/files", h.FilesJSONHandler)
	})

	r.Group(func(r chi.Router) {
		r.Use(mw.GenerateCSRFToken(mw.CSRFConfig{SecureCookies: cfg.Server.SecureCookies}))

		r.Get("/", h.IndexGetHandler)
		r.Get("/files/{id}/view", h.ViewGetHandler)
		r.With(mw.TransferDeadline(cfg.Server.TransferTimeout)).Get("/files/{id}/download", h.DownloadHandler)
		r.Get("/files/{id}/thumbnail", h.ThumbnailHandler)
		r.Get("/files/{id}/delete", h.DeleteGetHandler)
		r.With(mw.TransferDeadline(cfg.Server.TransferTimeout)).Get("/preview/{token}/content", h.PreviewContentHandler)

		// The body limit must apply before the CSRF check parses the form.
		r.With(
			mw.TransferDeadline(cfg.Server.TransferTimeout),
			mw.MaxBody(cfg.Upload.MaxBytes+multipartOverhead),
			mw.RateLimit(deps.UploadLimiter, mw.GetIP),
			mw.ValidateCSRFToken(),
		).Post("/upload", h.UploadPostHandler)

		r.With(
			mw.RateLimit(deps.DeleteLimiter, mw.GetIP),
			mw.ValidateCSRFToken(),
		).Post("/files/{id}/delete", h.DeletePostHandler)

		r.With(mw.ValidateCSRFToken()).Post("/preview/{token}/release", h.PreviewReleaseHandler)
	})

	return otelhttp.NewHandler(r, "filevault",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
