package handler

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/filevault/filevault/internal/apiclient"
	"github.com/filevault/filevault/internal/domain"
	"github.com/filevault/filevault/internal/logger"
	"github.com/filevault/filevault/internal/preview"
	"github.com/go-chi/chi/v5"
)

type viewPage struct {
	File  domain.FileMetadata
	Kind  preview.Kind
	Token string
	Text  preview.Text
	Error string
}

// ViewGetHandler renders the preview overlay for one file. Load failures
// become an error preview rather than an error response.
func (h *Handler) ViewGetHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	info, err := h.API.GetFileInfo(r.Context(), id)
	if err != nil {
		logger.Log.Error("fetching file info via API", "storage_id", id, "error", err)
		page := viewPage{
			File:  domain.FileMetadata{StorageID: id, OriginalName: id},
			Kind:  preview.KindError,
			Error: "Failed to load file: " + detail(err),
		}
		status := http.StatusOK
		if errors.Is(err, apiclient.ErrNotFound) {
			status = http.StatusNotFound
		}
		h.renderTemplateWithStatus(w, r, "view.html", page, status)
		return
	}

	page := viewPage{File: *info}
	handle, err := h.Previews.Open(r.Context(), *info)
	switch {
	case errors.Is(err, preview.ErrTooLarge):
		page.Kind = preview.KindError
		page.Error = fmt.Sprintf("File is too large to preview (limit %s).", domain.FormatFileSize(h.Options.PreviewMaxBytes))
	case err != nil:
		logger.Log.Error("opening preview", "storage_id", id, "error", err)
		page.Kind = preview.KindError
		page.Error = "Failed to load file preview: " + detail(err)
	default:
		page.Kind = handle.Kind
		page.Token = handle.Token
		if handle.Kind == preview.KindText {
			page.Text = h.Text.Render(handle.Data(), info.MimeType)
		}
	}

	h.renderTemplate(w, r, "view.html", page)
}

// PreviewContentHandler serves the bytes behind an open preview handle,
// with Range support for media seeking.
func (h *Handler) PreviewContentHandler(w http.ResponseWriter, r *http.Request) {
	handle, err := h.Previews.Get(chi.URLParam(r, "token"))
	if err != nil {
		http.Error(w, "Preview expired, reopen the file", http.StatusNotFound)
		return
	}

	headers := w.Header()
	headers.Set("Content-Type", handle.ContentType)
	headers.Set("Cache-Control", "private, no-store")
	if disposition := mime.FormatMediaType("inline", map[string]string{"filename": handle.File.OriginalName}); disposition != "" {
		headers.Set("Content-Disposition", disposition)
	}
	if strings.Contains(strings.ToLower(handle.ContentType), "svg") {
		// Scripts inside SVG must not run on our origin.
		headers.Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
	}

	http.ServeContent(w, r, "", handle.CreatedAt, handle.Reader())
}

// PreviewReleaseHandler frees a preview handle when the overlay is closed.
func (h *Handler) PreviewReleaseHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if h.Previews.Release(token) {
		logger.Log.Debug("preview released", "token", token)
	}
	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
