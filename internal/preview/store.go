package preview

import (
	"bytes"
	"container/list"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/filevault/filevault/internal/apiclient"
	"github.com/filevault/filevault/internal/domain"
	"github.com/filevault/filevault/internal/logger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrTooLarge       = errors.New("file is too large to preview")
	ErrHandleNotFound = errors.New("preview handle not found or expired")
	ErrBusy           = errors.New("too many previews loading, try again shortly")
)

var (
	previewOpens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filevault_preview_opens_total",
			Help: "Preview loads by viewer kind",
		},
		[]string{"kind"},
	)
	previewRetainedBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filevault_preview_retained_bytes",
			Help: "Bytes held by open preview handles",
		},
	)
	previewPendingBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filevault_preview_pending_bytes",
			Help: "Bytes reserved by preview downloads in flight",
		},
	)
)

// Downloader is the part of the backend client the store needs.
type Downloader interface {
	DownloadFile(ctx context.Context, id domain.StorageID) (*apiclient.Download, error)
}

// Handle is a loaded preview. Streamed kinds are registered under Token and
// served from /preview/{token}/content until released or expired.
type Handle struct {
	Token       string
	File        domain.FileMetadata
	Kind        Kind
	ContentType string
	CreatedAt   time.Time
	ExpiresAt   time.Time

	data []byte
	elem *list.Element
}

// Data returns the downloaded bytes. Callers must not modify them.
func (h *Handle) Data() []byte { return h.data }

// Size is the number of retained bytes.
func (h *Handle) Size() int64 { return int64(len(h.data)) }

// Reader returns a fresh seeker over the bytes for http.ServeContent.
func (h *Handle) Reader() io.ReadSeeker { return bytes.NewReader(h.data) }

// StoreConfig bounds what a Store downloads and keeps. Text files are read
// up to TextMaxBytes+1 so the renderer can tell they were cut; zero means
// MaxBytes. BudgetBytes covers retained handles and downloads in flight.
type StoreConfig struct {
	MaxBytes     int64
	TextMaxBytes int64
	BudgetBytes  int64
	TTL          time.Duration
}

// Store holds open preview handles, the server-side stand-in for browser
// object URLs. It is safe for concurrent use.
type Store struct {
	downloader Downloader
	cfg        StoreConfig
	now        func() time.Time

	mu      sync.Mutex
	handles map[string]*Handle
	order   *list.List // oldest first
	used    int64
	pending int64
}

func NewStore(downloader Downloader, cfg StoreConfig) *Store {
	return &Store{
		downloader: downloader,
		cfg:        cfg,
		now:        time.Now,
		handles:    make(map[string]*Handle),
		order:      list.New(),
	}
}

// Open classifies file and, for previewable kinds, downloads its bytes.
// Streamed kinds are registered and get a Token; text handles are returned
// unregistered since they render inline. Unsupported files are not
// downloaded at all. Text longer than TextMaxBytes is cut, not rejected.
func (s *Store) Open(ctx context.Context, file domain.FileMetadata) (*Handle, error) {
	kind := Classify(file.MimeType)
	h := &Handle{File: file, Kind: kind, ContentType: file.MimeType}
	if kind == KindUnsupported {
		previewOpens.WithLabelValues(string(kind)).Inc()
		return h, nil
	}

	data, contentType, err := s.fetch(ctx, file.StorageID, kind)
	if err != nil {
		previewOpens.WithLabelValues(string(KindError)).Inc()
		return nil, err
	}

	h.data = data
	if h.ContentType == "" {
		h.ContentType = contentType
	}
	previewOpens.WithLabelValues(string(kind)).Inc()

	if kind.Streamed() {
		s.register(h)
	}
	return h, nil
}

func (s *Store) fetch(ctx context.Context, id domain.StorageID, kind Kind) ([]byte, string, error) {
	limit := s.cfg.MaxBytes
	if kind == KindText && s.cfg.TextMaxBytes > 0 {
		limit = s.cfg.TextMaxBytes
	}

	dl, err := s.downloader.DownloadFile(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download %s for preview: %w", id, err)
	}
	defer dl.Body.Close()

	if kind != KindText && dl.ContentLength > limit {
		return nil, "", ErrTooLarge
	}

	want := limit
	if dl.ContentLength >= 0 && dl.ContentLength < limit {
		want = dl.ContentLength
	}
	if err := s.reserve(want); err != nil {
		return nil, "", err
	}
	defer s.unreserve(want)

	data, err := io.ReadAll(io.LimitReader(dl.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s for preview: %w", id, err)
	}
	if kind != KindText && int64(len(data)) > limit {
		return nil, "", ErrTooLarge
	}
	return data, dl.ContentType, nil
}

// reserve counts n in-flight bytes against the budget, evicting the oldest
// handles to make room. It fails with ErrBusy when other downloads already
// hold the room.
func (s *Store) reserve(n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.used+s.pending+n > s.cfg.BudgetBytes && s.order.Len() > 0 {
		oldest := s.order.Front().Value.(*Handle)
		logger.Log.Debug("evicting preview handle for download", "token", oldest.Token, "bytes", oldest.Size())
		s.removeLocked(oldest)
	}
	if s.pending+n > s.cfg.BudgetBytes {
		return ErrBusy
	}
	s.pending += n
	previewPendingBytes.Set(float64(s.pending))
	return nil
}

func (s *Store) unreserve(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending -= n
	previewPendingBytes.Set(float64(s.pending))
}

func (s *Store) register(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	h.Token = uuid.NewString()
	h.CreatedAt = now
	h.ExpiresAt = now.Add(s.cfg.TTL)

	for s.used+s.pending+h.Size() > s.cfg.BudgetBytes && s.order.Len() > 0 {
		oldest := s.order.Front().Value.(*Handle)
		logger.Log.Debug("evicting preview handle over budget", "token", oldest.Token, "bytes", oldest.Size())
		s.removeLocked(oldest)
	}

	h.elem = s.order.PushBack(h)
	s.handles[h.Token] = h
	s.used += h.Size()
	previewRetainedBytes.Set(float64(s.used))
}

// Get returns the live handle for token.
func (s *Store) Get(token string) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[token]
	if !ok {
		return nil, ErrHandleNotFound
	}
	if !s.now().Before(h.ExpiresAt) {
		s.removeLocked(h)
		return nil, ErrHandleNotFound
	}
	return h, nil
}

// Release frees the handle. It reports whether the token was live.
func (s *Store) Release(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[token]
	if !ok {
		return false
	}
	s.removeLocked(h)
	return true
}

// Sweep drops expired handles and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	// Handles share one TTL, so list order is expiry order.
	for e := s.order.Front(); e != nil; {
		h := e.Value.(*Handle)
		if now.Before(h.ExpiresAt) {
			break
		}
		e = e.Next()
		s.removeLocked(h)
		removed++
	}
	return removed
}

// Run sweeps periodically until ctx is done.
func (s *Store) Run(ctx context.Context) {
	interval := s.cfg.TTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Log.Debug("swept expired preview handles", "count", n)
			}
		}
	}
}

// Stats reports the number of live handles and bytes retained.
func (s *Store) Stats() (int, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles), s.used
}

func (s *Store) removeLocked(h *Handle) {
	delete(s.handles, h.Token)
	if h.elem != nil {
		s.order.Remove(h.elem)
		h.elem = nil
	}
	s.used -= h.Size()
	previewRetainedBytes.Set(float64(s.used))
}
