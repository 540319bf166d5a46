package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/filevault/filevault/internal/cache"
	"github.com/filevault/filevault/internal/domain"
	"github.com/filevault/filevault/internal/logger"
)

const (
	viewTable = "table"
	viewCards = "cards"
)

type indexPage struct {
	Files     []domain.FileMetadata
	View      string
	ListError string
}

func (h *Handler) IndexGetHandler(w http.ResponseWriter, r *http.Request) {
	page := indexPage{View: viewTable}
	if r.URL.Query().Get("view") == viewCards {
		page.View = viewCards
	}

	files, err := h.listFiles(r.Context())
	if err != nil {
		logger.Log.Error("listing files via API", "error", err)
		page.ListError = "Could not load files: " + detail(err)
	}
	page.Files = files

	h.renderTemplate(w, r, "index.html", page)
}

// FilesJSONHandler serves the file list for the upload script, which
// refreshes the table without a page reload.
func (h *Handler) FilesJSONHandler(w http.ResponseWriter, r *http.Request) {
	files, err := h.listFiles(r.Context())
	if err != nil {
		logger.Log.Error("listing files via API", "error", err)
		writeJSON(w, errorStatus(err), errorBody{Detail: detail(err)})
		return
	}
	writeJSON(w, http.StatusOK, domain.FileListResponse{Files: files})
}

// listFiles reads the listing through the cache. Cache failures only cost a
// backend round trip.
func (h *Handler) listFiles(ctx context.Context) ([]domain.FileMetadata, error) {
	if h.Options.ListTTL > 0 {
		if raw, ok, err := h.Cache.Get(ctx, cache.ListKey); err != nil {
			logger.Log.Warn("file list cache read failed", "error", err)
		} else if ok {
			var files []domain.FileMetadata
			if err := json.Unmarshal(raw, &files); err == nil {
				return files, nil
			}
			logger.Log.Warn("dropping undecodable file list cache entry")
		}
	}

	files, err := h.API.ListFiles(ctx)
	if err != nil {
		return []domain.FileMetadata{}, err
	}

	if h.Options.ListTTL > 0 {
		if raw, err := json.Marshal(files); err == nil {
			if err := h.Cache.Set(ctx, cache.ListKey, raw, h.Options.ListTTL); err != nil {
				logger.Log.Warn("file list cache write failed", "error", err)
			}
		}
	}
	return files, nil
}

// invalidate drops the cached listing plus any keys derived from a file.
func (h *Handler) invalidate(ctx context.Context, keys ...string) {
	keys = append(keys, cache.ListKey)
	if err := h.Cache.Delete(ctx, keys...); err != nil {
		logger.Log.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}
