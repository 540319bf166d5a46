package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/filevault/filevault/internal/apiclient"
	"github.com/filevault/filevault/internal/cache"
	"github.com/filevault/filevault/internal/domain"
	"github.com/filevault/filevault/internal/logger"
	"github.com/go-chi/chi/v5"
)

type deletePage struct {
	File domain.FileMetadata
}

// DeleteGetHandler asks for confirmation before deleting.
func (h *Handler) DeleteGetHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	info, err := h.API.GetFileInfo(r.Context(), id)
	if err != nil {
		logger.Log.Error("fetching file info via API", "storage_id", id, "error", err)
		msg := "Delete failed: " + detail(err)
		if errors.Is(err, apiclient.ErrNotFound) {
			msg = "Delete failed: file not found"
		}
		h.redirectWithFlash(w, r, "/", flashCookieError, msg)
		return
	}

	h.renderTemplate(w, r, "delete.html", deletePage{File: *info})
}

func (h *Handler) DeletePostHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := r.FormValue("name")
	if name == "" {
		name = id
	}

	if err := h.API.DeleteFile(r.Context(), id); err != nil {
		logger.Log.Error("deleting file via API", "storage_id", id, "error", err)
		if wantsJSON(r) {
			writeJSON(w, errorStatus(err), errorBody{Detail: detail(err)})
			return
		}
		h.redirectWithFlash(w, r, "/", flashCookieError, "Delete failed: "+detail(err))
		return
	}

	h.invalidate(r.Context(), cache.ThumbnailKey(id, h.Options.ThumbnailSide))
	logger.Log.Info("file deleted", "storage_id", id)

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, domain.DeleteResponse{Message: "File deleted successfully"})
		return
	}
	h.redirectWithFlash(w, r, "/", flashCookieSuccess, fmt.Sprintf("Deleted %q", name))
}
