package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/filevault/filevault/internal/cache"
	"github.com/filevault/filevault/internal/logger"
	"github.com/filevault/filevault/internal/preview"
	"github.com/go-chi/chi/v5"
)

// ThumbnailHandler serves a scaled PNG of an image file, cached by storage id.
func (h *Handler) ThumbnailHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	side := h.Options.ThumbnailSide
	key := cache.ThumbnailKey(id, side)

	if data, ok, err := h.Cache.Get(ctx, key); err != nil {
		logger.Log.Warn("thumbnail cache read failed", "storage_id", id, "error", err)
	} else if ok {
		writeThumbnail(w, data)
		return
	}

	info, err := h.API.GetFileInfo(ctx, id)
	if err != nil {
		http.Error(w, detail(err), errorStatus(err))
		return
	}
	if !preview.CanThumbnail(info.MimeType) || info.Size > h.Options.PreviewMaxBytes {
		http.NotFound(w, r)
		return
	}

	dl, err := h.API.DownloadFile(ctx, id)
	if err != nil {
		logger.Log.Error("downloading file for thumbnail", "storage_id", id, "error", err)
		http.Error(w, detail(err), errorStatus(err))
		return
	}
	defer dl.Body.Close()

	data, err := preview.Thumbnail(io.LimitReader(dl.Body, h.Options.PreviewMaxBytes), side)
	if err != nil {
		if errors.Is(err, preview.ErrNotImage) {
			http.Error(w, "not a supported image", http.StatusUnsupportedMediaType)
			return
		}
		logger.Log.Error("generating thumbnail", "storage_id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.Cache.Set(ctx, key, data, h.Options.ThumbnailTTL); err != nil {
		logger.Log.Warn("thumbnail cache write failed", "storage_id", id, "error", err)
	}
	writeThumbnail(w, data)
}

func writeThumbnail(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = w.Write(data)
}
