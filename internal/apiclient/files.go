package apiclient

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/filevault/filevault/internal/domain"
)

const defaultContentType = "application/octet-stream"

// ProgressFunc is called as upload bytes leave for the backend. total is -1
// when the size is unknown.
type ProgressFunc func(sent, total int64)

// Download is an open backend download. The caller must close Body.
type Download struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	Filename      string
}

func (c *APIClient) ListFiles(ctx context.Context) ([]domain.FileMetadata, error) {
	resp, err := c.do(ctx, http.MethodGet, "/files/list", nil, "")
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var list domain.FileListResponse
	if err := decodeJSON(resp, &list); err != nil {
		return nil, err
	}
	if list.Files == nil {
		list.Files = []domain.FileMetadata{}
	}
	return list.Files, nil
}

func (c *APIClient) GetFileInfo(ctx context.Context, id domain.StorageID) (*domain.FileMetadata, error) {
	resp, err := c.do(ctx, http.MethodGet, "/files/info/"+url.PathEscape(id), nil, "")
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var file domain.FileMetadata
	if err := decodeJSON(resp, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

func (c *APIClient) DownloadFile(ctx context.Context, id domain.StorageID) (*Download, error) {
	resp, err := c.do(ctx, http.MethodGet, "/files/download/"+url.PathEscape(id), nil, "")
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}
	return &Download{
		Body:          resp.Body,
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
		Filename:      filenameFromDisposition(resp.Header.Get("Content-Disposition")),
	}, nil
}

func (c *APIClient) DeleteFile(ctx context.Context, id domain.StorageID) error {
	resp, err := c.do(ctx, http.MethodDelete, "/files/delete/"+url.PathEscape(id), nil, "")
	if err != nil {
		return err
	}
	if err := checkResponse(resp); err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// UploadFile streams body to the backend as the multipart field "file".
// size may be -1 when unknown; progress may be nil.
func (c *APIClient) UploadFile(ctx context.Context, filename, contentType string, body io.Reader, size int64, progress ProgressFunc) (*domain.FileMetadata, error) {
	if contentType == "" {
		contentType = defaultContentType
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreatePart(filePartHeader(filename, contentType))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		src := body
		if progress != nil {
			src = &countingReader{r: body, total: size, onRead: progress}
		}
		if _, err := io.Copy(part, src); err != nil {
			pw.CloseWithError(fmt.Errorf("failed to stream upload: %w", err))
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	resp, err := c.do(ctx, http.MethodPost, "/files/upload", pr, mw.FormDataContentType())
	if err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		pr.CloseWithError(err)
		return nil, err
	}

	var file domain.FileMetadata
	if err := decodeJSON(resp, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// filePartHeader is multipart.Writer.CreateFormFile with the real content
// type instead of application/octet-stream; the backend stores it as the
// file's mime type.
func filePartHeader(filename, contentType string) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
	h.Set("Content-Type", contentType)
	return h
}

// filenameFromDisposition reads the filename parameter. The backend does not
// quote it, so names with spaces are recovered by hand when mime parsing fails.
func filenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(header); err == nil {
		if name := params["filename"]; name != "" {
			return name
		}
	}
	idx := strings.Index(strings.ToLower(header), "filename=")
	if idx < 0 {
		return ""
	}
	name := strings.TrimSpace(header[idx+len("filename="):])
	if i := strings.Index(name, ";"); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	return strings.Trim(name, `"`)
}

type countingReader struct {
	r      io.Reader
	sent   int64
	total  int64
	onRead ProgressFunc
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.sent += int64(n)
		cr.onRead(cr.sent, cr.total)
	}
	return n, err
}
