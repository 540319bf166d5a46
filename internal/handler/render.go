package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/filevault/filevault/internal/domain"
	"github.com/filevault/filevault/internal/logger"
	"github.com/filevault/filevault/internal/middleware"
	"github.com/filevault/filevault/internal/preview"
)

// CommonTemplateData holds fields that are common to all page templates.
// Available in templates as .Common via the TemplateData wrapper.
type CommonTemplateData struct {
	Error          string
	Success        string
	CSRFToken      string
	UploadMaxBytes int64
}

// TemplateData wraps page-specific data with common template data.
// Templates access page data via .Data and common data via .Common.
type TemplateData struct {
	Data   any
	Common CommonTemplateData
}

func (h *Handler) initCommonTemplateData(w http.ResponseWriter, r *http.Request) CommonTemplateData {
	return CommonTemplateData{
		Error:          h.popFlash(w, r, flashCookieError),
		Success:        h.popFlash(w, r, flashCookieSuccess),
		CSRFToken:      middleware.GetCSRFTokenFromContext(r),
		UploadMaxBytes: h.Options.UploadMaxBytes,
	}
}

func (h *Handler) renderTemplate(w http.ResponseWriter, r *http.Request, name string, data any) {
	h.renderTemplateWithStatus(w, r, name, data, http.StatusOK)
}

func (h *Handler) renderTemplateWithStatus(w http.ResponseWriter, r *http.Request, name string, data any, status int) {
	tmpl, ok := h.Templates[name]
	if !ok {
		http.Error(w, fmt.Sprintf("Template %s not found", name), http.StatusInternalServerError)
		return
	}

	wrapped := TemplateData{
		Data:   data,
		Common: h.initCommonTemplateData(w, r),
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, wrapped); err != nil {
		logger.Log.Error("error executing template", "template", name, "error", err)
		http.Error(w, "Internal Server Error rendering template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error("failed to encode JSON response", "error", err)
	}
}

// FuncMap is the template function set shared by all pages.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"formatSize": domain.FormatFileSize,
		"fileCount":  domain.FileCountLabel,
		"date":       formatDate,
		"relative":   relativeTime,
		"icon":       func(mimeType string) string { return string(preview.Icon(mimeType)) },
		"thumbnail":  preview.CanThumbnail,
	}
}

func formatDate(ts domain.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format("2006-01-02")
}

func relativeTime(ts domain.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return humanize.RelTime(ts.Time, time.Now(), "ago", "from now")
}
