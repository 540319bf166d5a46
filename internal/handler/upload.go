package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/filevault/filevault/internal/domain"
	"github.com/filevault/filevault/internal/logger"
	"github.com/filevault/filevault/internal/progress"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	uploadFormField = "file"
	uploadIDField   = "upload_id"
	// Multipart bodies beyond this spill to temp files.
	multipartMemory = 32 << 20
)

var (
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filevault_uploads_total",
			Help: "Uploads forwarded to the backend by result",
		},
		[]string{"result"},
	)
	uploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filevault_upload_bytes_total",
			Help: "Bytes successfully uploaded to the backend",
		},
	)
)

type uploadForm struct {
	UploadID string `validate:"omitempty,uuid"`
	Filename string `validate:"required,max=255"`
	Size     int64  `validate:"gte=0"`
}

type uploadResponse struct {
	UploadID string               `json:"upload_id"`
	File     *domain.FileMetadata `json:"file"`
}

// UploadPostHandler forwards the first file of the form to the backend.
// Only one file is uploaded per request, like the drop zone.
func (h *Handler) UploadPostHandler(w http.ResponseWriter, r *http.Request) {
	if r.MultipartForm == nil {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				h.uploadFailed(w, r, "", http.StatusRequestEntityTooLarge,
					fmt.Sprintf("file is larger than %s", domain.FormatFileSize(h.Options.UploadMaxBytes)))
				return
			}
			h.uploadFailed(w, r, "", http.StatusBadRequest, "invalid form data")
			return
		}
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[uploadFormField]
	if len(headers) == 0 {
		h.uploadFailed(w, r, "", http.StatusBadRequest, "no file selected")
		return
	}
	fh := headers[0]

	form := uploadForm{
		UploadID: r.FormValue(uploadIDField),
		Filename: fh.Filename,
		Size:     fh.Size,
	}
	if err := h.validate.Struct(form); err != nil {
		logger.Log.Warn("rejected upload form", "error", err)
		h.uploadFailed(w, r, "", http.StatusBadRequest, "invalid file name or upload id")
		return
	}
	if fh.Size > h.Options.UploadMaxBytes {
		h.uploadFailed(w, r, "", http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file is larger than %s", domain.FormatFileSize(h.Options.UploadMaxBytes)))
		return
	}

	uploadID := progress.NormalizeID(form.UploadID)
	file, err := fh.Open()
	if err != nil {
		logger.Log.Error("opening uploaded file", "error", err)
		h.uploadFailed(w, r, uploadID, http.StatusInternalServerError, "could not read uploaded file")
		return
	}
	defer file.Close()

	h.Uploads.Start(uploadID, fh.Filename, fh.Size)
	meta, err := h.API.UploadFile(r.Context(), fh.Filename, fh.Header.Get("Content-Type"), file, fh.Size, h.Uploads.Reporter(uploadID))
	if err != nil {
		logger.Log.Error("uploading file via API", "file", fh.Filename, "error", err)
		h.uploadFailed(w, r, uploadID, errorStatus(err), detail(err))
		return
	}

	h.Uploads.Finish(uploadID, meta.StorageID)
	uploadsTotal.WithLabelValues("ok").Inc()
	uploadBytes.Add(float64(meta.Size))
	h.invalidate(r.Context())
	logger.Log.Info("file uploaded", "file", meta.OriginalName, "storage_id", meta.StorageID, "size", meta.Size)

	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, uploadResponse{UploadID: uploadID, File: meta})
		return
	}
	h.redirectWithFlash(w, r, "/", flashCookieSuccess, fmt.Sprintf("Uploaded %q", meta.OriginalName))
}

func (h *Handler) uploadFailed(w http.ResponseWriter, r *http.Request, uploadID string, status int, message string) {
	uploadsTotal.WithLabelValues("failed").Inc()
	if uploadID != "" {
		h.Uploads.Fail(uploadID, message)
	}
	if wantsJSON(r) {
		writeJSON(w, status, errorBody{Detail: message})
		return
	}
	h.redirectWithFlash(w, r, "/", flashCookieError, "Upload failed: "+message)
}

// UploadProgressHandler streams progress events for one upload over WebSocket.
func (h *Handler) UploadProgressHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid upload id", http.StatusBadRequest)
		return
	}
	h.Uploads.ServeWebSocket(w, r, id.String())
}
