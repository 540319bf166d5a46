package handler

import (
	"context"
	"html/template"
	"io"
	"time"

	"github.com/filevault/filevault/internal/apiclient"
	"github.com/filevault/filevault/internal/cache"
	"github.com/filevault/filevault/internal/domain"
	"github.com/filevault/filevault/internal/preview"
	"github.com/filevault/filevault/internal/progress"
	"github.com/go-playground/validator/v10"
)

// FileAPI is the backend file service.
type FileAPI interface {
	ListFiles(ctx context.Context) ([]domain.FileMetadata, error)
	GetFileInfo(ctx context.Context, id domain.StorageID) (*domain.FileMetadata, error)
	DownloadFile(ctx context.Context, id domain.StorageID) (*apiclient.Download, error)
	DeleteFile(ctx context.Context, id domain.StorageID) error
	UploadFile(ctx context.Context, filename, contentType string, body io.Reader, size int64, progress apiclient.ProgressFunc) (*domain.FileMetadata, error)
	Status(ctx context.Context) error
}

// Options are the handler-level limits and cache lifetimes.
type Options struct {
	UploadMaxBytes  int64
	PreviewMaxBytes int64
	ThumbnailSide   int
	ListTTL         time.Duration
	ThumbnailTTL    time.Duration
	SecureCookies   bool
}

type Handler struct {
	Templates map[string]*template.Template
	API       FileAPI
	Previews  *preview.Store
	Text      *preview.TextRenderer
	Cache     cache.Cache
	Uploads   *progress.Tracker
	Options   Options

	validate *validator.Validate
}

func New(templates map[string]*template.Template, api FileAPI, previews *preview.Store, text *preview.TextRenderer, c cache.Cache, uploads *progress.Tracker, opts Options) *Handler {
	return &Handler{
		Templates: templates,
		API:       api,
		Previews:  previews,
		Text:      text,
		Cache:     c,
		Uploads:   uploads,
		Options:   opts,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}
