package preview

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/filevault/filevault/internal/apiclient"
	"github.com/filevault/filevault/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDownloader struct {
	mu      sync.Mutex
	content map[string][]byte
	length  map[string]int64
	err     error
	calls   int
}

func (f *fakeDownloader) DownloadFile(_ context.Context, id domain.StorageID) (*apiclient.Download, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.content[id]
	if !ok {
		return nil, apiclient.ErrNotFound
	}
	length := int64(len(data))
	if l, ok := f.length[id]; ok {
		length = l
	}
	return &apiclient.Download{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentType:   "application/octet-stream",
		ContentLength: length,
	}, nil
}

type storeClock struct{ t time.Time }

func (c *storeClock) now() time.Time          { return c.t }
func (c *storeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(dl Downloader, cfg StoreConfig) (*Store, *storeClock) {
	clock := &storeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewStore(dl, cfg)
	s.now = clock.now
	return s, clock
}

func file(id, mime string) domain.FileMetadata {
	return domain.FileMetadata{ID: "rec-" + id, StorageID: id, OriginalName: id, MimeType: mime}
}

var defaultStoreConfig = StoreConfig{MaxBytes: 100, BudgetBytes: 250, TTL: time.Minute}

func TestStore_OpenImageRegistersHandle(t *testing.T) {
	dl := &fakeDownloader{content: map[string][]byte{"a": []byte("png-bytes")}}
	s, _ := newTestStore(dl, defaultStoreConfig)

	h, err := s.Open(context.Background(), file("a", "image/png"))
	require.NoError(t, err)
	assert.Equal(t, KindImage, h.Kind)
	assert.NotEmpty(t, h.Token)
	assert.Equal(t, "image/png", h.ContentType)

	got, err := s.Get(h.Token)
	require.NoError(t, err)
	assert.Same(t, h, got)

	body, err := io.ReadAll(got.Reader())
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(body))

	n, used := s.Stats()
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(9), used)
}

func TestStore_OpenTextIsNotRegistered(t *testing.T) {
	dl := &fakeDownloader{content: map[string][]byte{"t": []byte("hello")}}
	s, _ := newTestStore(dl, defaultStoreConfig)

	h, err := s.Open(context.Background(), file("t", "text/plain"))
	require.NoError(t, err)
	assert.Equal(t, KindText, h.Kind)
	assert.Empty(t, h.Token)
	assert.Equal(t, "hello", string(h.Data()))

	n, _ := s.Stats()
	assert.Zero(t, n)
}

func TestStore_OpenUnsupportedSkipsDownload(t *testing.T) {
	dl := &fakeDownloader{}
	s, _ := newTestStore(dl, defaultStoreConfig)

	h, err := s.Open(context.Background(), file("z", "application/zip"))
	require.NoError(t, err)
	assert.Equal(t, KindUnsupported, h.Kind)
	assert.Zero(t, dl.calls)
}

func TestStore_OpenClassifiesCaseInsensitively(t *testing.T) {
	dl := &fakeDownloader{content: map[string][]byte{"a": []byte("x")}}
	s, _ := newTestStore(dl, defaultStoreConfig)

	h, err := s.Open(context.Background(), file("a", "IMAGE/PNG"))
	require.NoError(t, err)
	assert.Equal(t, KindImage, h.Kind)
	assert.Equal(t, "IMAGE/PNG", h.ContentType)
}

func TestStore_OpenErrors(t *testing.T) {
	t.Run("download failure", func(t *testing.T) {
		dl := &fakeDownloader{err: errors.New("boom")}
		s, _ := newTestStore(dl, defaultStoreConfig)
		_, err := s.Open(context.Background(), file("a", "image/png"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("declared length too large", func(t *testing.T) {
		dl := &fakeDownloader{
			content: map[string][]byte{"a": []byte("x")},
			length:  map[string]int64{"a": 1000},
		}
		s, _ := newTestStore(dl, defaultStoreConfig)
		_, err := s.Open(context.Background(), file("a", "video/mp4"))
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("unknown length but body too large", func(t *testing.T) {
		dl := &fakeDownloader{
			content: map[string][]byte{"a": bytes.Repeat([]byte("x"), 101)},
			length:  map[string]int64{"a": -1},
		}
		s, _ := newTestStore(dl, defaultStoreConfig)
		_, err := s.Open(context.Background(), file("a", "audio/mpeg"))
		assert.ErrorIs(t, err, ErrTooLarge)
		n, used := s.Stats()
		assert.Zero(t, n)
		assert.Zero(t, used)
	})
}

func TestStore_Release(t *testing.T) {
	dl := &fakeDownloader{content: map[string][]byte{"a": []byte("abc")}}
	s, _ := newTestStore(dl, defaultStoreConfig)

	h, err := s.Open(context.Background(), file("a", "application/pdf"))
	require.NoError(t, err)

	assert.True(t, s.Release(h.Token))
	assert.False(t, s.Release(h.Token))

	_, err = s.Get(h.Token)
	assert.ErrorIs(t, err, ErrHandleNotFound)
	_, used := s.Stats()
	assert.Zero(t, used)
}

func TestStore_ExpiryAndSweep(t *testing.T) {
	dl := &fakeDownloader{content: map[string][]byte{
		"a": []byte("aaa"),
		"b": []byte("bbb"),
	}}
	s, clock := newTestStore(dl, defaultStoreConfig)
	ctx := context.Background()

	ha, err := s.Open(ctx, file("a", "image/png"))
	require.NoError(t, err)
	clock.advance(30 * time.Second)
	hb, err := s.Open(ctx, file("b", "image/png"))
	require.NoError(t, err)

	clock.advance(31 * time.Second)
	_, err = s.Get(ha.Token)
	assert.ErrorIs(t, err, ErrHandleNotFound, "expired handle is not served")

	assert.Equal(t, 0, s.Sweep(), "already dropped by Get")
	_, err = s.Get(hb.Token)
	require.NoError(t, err)

	clock.advance(30 * time.Second)
	assert.Equal(t, 1, s.Sweep())
	n, used := s.Stats()
	assert.Zero(t, n)
	assert.Zero(t, used)
}

func TestStore_BudgetEvictsOldest(t *testing.T) {
	dl := &fakeDownloader{content: map[string][]byte{
		"a": bytes.Repeat([]byte("a"), 100),
		"b": bytes.Repeat([]byte("b"), 100),
		"c": bytes.Repeat([]byte("c"), 100),
	}}
	s, _ := newTestStore(dl, defaultStoreConfig)
	ctx := context.Background()

	ha, err := s.Open(ctx, file("a", "image/png"))
	require.NoError(t, err)
	hb, err := s.Open(ctx, file("b", "image/png"))
	require.NoError(t, err)
	hc, err := s.Open(ctx, file("c", "image/png"))
	require.NoError(t, err)

	_, err = s.Get(ha.Token)
	assert.ErrorIs(t, err, ErrHandleNotFound)
	_, err = s.Get(hb.Token)
	assert.NoError(t, err)
	_, err = s.Get(hc.Token)
	assert.NoError(t, err)

	_, used := s.Stats()
	assert.LessOrEqual(t, used, defaultStoreConfig.BudgetBytes)
}

func TestStore_TextReadIsCappedNotRejected(t *testing.T) {
	body := bytes.Repeat([]byte("t"), 90)
	dl := &fakeDownloader{
		content: map[string][]byte{"t": body},
		length:  map[string]int64{"t": 5000},
	}
	cfg := defaultStoreConfig
	cfg.TextMaxBytes = 10
	s, _ := newTestStore(dl, cfg)

	h, err := s.Open(context.Background(), file("t", "text/plain"))
	require.NoError(t, err, "long text previews truncated")
	assert.Len(t, h.Data(), 11, "one byte past the text cap marks truncation")

	rendered := NewTextRenderer(cfg.TextMaxBytes).Render(h.Data(), "text/plain")
	assert.True(t, rendered.Truncated)
	assert.Len(t, rendered.Plain, 10)
}

// gatedDownloader serves bodies that block until release is closed and
// signals started once the first read begins.
type gatedDownloader struct {
	size    int64
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

type gatedBody struct {
	d *gatedDownloader
	r io.Reader
}

func (b *gatedBody) Read(p []byte) (int, error) {
	b.d.once.Do(func() { close(b.d.started) })
	<-b.d.release
	return b.r.Read(p)
}

func (b *gatedBody) Close() error { return nil }

func (d *gatedDownloader) DownloadFile(_ context.Context, _ domain.StorageID) (*apiclient.Download, error) {
	return &apiclient.Download{
		Body:          &gatedBody{d: d, r: bytes.NewReader(bytes.Repeat([]byte("x"), int(d.size)))},
		ContentType:   "image/png",
		ContentLength: d.size,
	}, nil
}

func TestStore_InFlightDownloadsCountAgainstBudget(t *testing.T) {
	slow := &gatedDownloader{size: 100, started: make(chan struct{}), release: make(chan struct{})}
	cfg := StoreConfig{MaxBytes: 100, BudgetBytes: 150, TTL: time.Minute}
	s, _ := newTestStore(slow, cfg)
	ctx := context.Background()

	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Open(ctx, file("a", "image/png"))
		firstErr <- err
	}()
	select {
	case <-slow.started:
	case <-time.After(time.Second):
		t.Fatal("first download never started reading")
	}

	s.downloader = &fakeDownloader{content: map[string][]byte{"b": bytes.Repeat([]byte("b"), 100)}}
	_, err := s.Open(ctx, file("b", "image/png"))
	assert.ErrorIs(t, err, ErrBusy)

	close(slow.release)
	require.NoError(t, <-firstErr)

	hb, err := s.Open(ctx, file("b", "image/png"))
	require.NoError(t, err, "room is back once the first download lands")
	n, used := s.Stats()
	assert.Equal(t, 1, n, "first handle evicted to fit the second")
	assert.Equal(t, hb.Size(), used)
}

func TestStore_ReservationEvictsRetainedHandles(t *testing.T) {
	dl := &fakeDownloader{
		content: map[string][]byte{
			"a": bytes.Repeat([]byte("a"), 100),
			"t": []byte("short text"),
		},
		length: map[string]int64{"t": -1},
	}
	s, _ := newTestStore(dl, StoreConfig{MaxBytes: 100, BudgetBytes: 150, TTL: time.Minute})
	ctx := context.Background()

	ha, err := s.Open(ctx, file("a", "image/png"))
	require.NoError(t, err)

	// Unknown length reserves the full cap, which only fits without a.
	_, err = s.Open(ctx, file("t", "text/plain"))
	require.NoError(t, err)

	_, err = s.Get(ha.Token)
	assert.ErrorIs(t, err, ErrHandleNotFound)
}

func TestStore_ConcurrentOpenRelease(t *testing.T) {
	dl := &fakeDownloader{content: map[string][]byte{"a": []byte("abc")}}
	s := NewStore(dl, StoreConfig{MaxBytes: 100, BudgetBytes: 1 << 20, TTL: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := s.Open(context.Background(), file("a", "image/png"))
			if !assert.NoError(t, err) {
				return
			}
			s.Sweep()
			assert.True(t, s.Release(h.Token))
		}()
	}
	wg.Wait()

	n, used := s.Stats()
	assert.Zero(t, n)
	assert.Zero(t, used)
}

func TestStore_RunStopsOnCancel(t *testing.T) {
	s := NewStore(&fakeDownloader{}, defaultStoreConfig)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
