package handler

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/filevault/filevault/internal/logger"
	"github.com/go-chi/chi/v5"
)

// DownloadHandler streams a file from the backend as an attachment named
// after the original upload.
func (h *Handler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dl, err := h.API.DownloadFile(r.Context(), id)
	if err != nil {
		logger.Log.Error("downloading file via API", "storage_id", id, "error", err)
		h.redirectWithFlash(w, r, "/", flashCookieError, "Download failed: "+detail(err))
		return
	}
	defer dl.Body.Close()

	name := dl.Filename
	if name == "" {
		name = id
	}
	contentType := dl.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	headers := w.Header()
	headers.Set("Content-Type", contentType)
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": name})
	if disposition == "" {
		disposition = "attachment"
	}
	headers.Set("Content-Disposition", disposition)
	if dl.ContentLength >= 0 {
		headers.Set("Content-Length", strconv.FormatInt(dl.ContentLength, 10))
	}

	n, err := io.Copy(w, dl.Body)
	if err != nil {
		// Headers are gone; the client sees a truncated body.
		logger.Log.Warn("download interrupted", "storage_id", id, "written", n, "error", err)
	}
}
